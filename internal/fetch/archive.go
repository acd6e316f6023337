package fetch

import (
	"archive/tar"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
)

// Extract unpacks a gzipped tarball into dest, stripping the leading path
// component of every entry the way release tarballs wrap their content in
// a single top-level directory. Returns the number of files written.
func Extract(r io.Reader, dest string) (int, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return 0, errors.Wrap(err, "cannot decompress archive")
	}
	defer gz.Close()

	files := 0
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return files, errors.Wrap(err, "cannot read archive")
		}
		rel, ok := stripComponent(hdr.Name)
		if !ok {
			continue
		}
		if !isLocal(rel) {
			return files, errors.Errorf("archive entry escapes target directory: %s", hdr.Name)
		}
		target := filepath.Join(dest, filepath.FromSlash(rel))

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return files, errors.Wrap(err, "cannot create directory")
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return files, errors.Wrap(err, "cannot create directory")
			}
			if err := writeEntry(target, tr, os.FileMode(hdr.Mode).Perm()|0600); err != nil {
				return files, err
			}
			files++
		default:
			Log.WithField("entry", hdr.Name).
				WithField("type", string(hdr.Typeflag)).
				Debug("skipping archive entry")
		}
	}
	if files == 0 {
		return 0, errors.New("archive contains no files")
	}
	return files, nil
}

func writeEntry(target string, r io.Reader, mode os.FileMode) error {
	fh, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return errors.Wrap(err, "cannot create file")
	}
	if _, err := io.Copy(fh, r); err != nil {
		fh.Close()
		return errors.Wrapf(err, "cannot extract %s", target)
	}
	return errors.Wrapf(fh.Close(), "cannot extract %s", target)
}

// stripComponent drops the top-level directory. Entries that are the top
// directory itself, or live outside any directory, yield false.
func stripComponent(name string) (string, bool) {
	name = strings.TrimPrefix(path.Clean("/"+name), "/")
	idx := strings.Index(name, "/")
	if idx < 0 || idx == len(name)-1 {
		return "", false
	}
	return name[idx+1:], true
}

func isLocal(rel string) bool {
	if rel == "" || path.IsAbs(rel) {
		return false
	}
	for _, part := range strings.Split(rel, "/") {
		if part == ".." {
			return false
		}
	}
	return true
}
