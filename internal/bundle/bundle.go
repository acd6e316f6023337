// Package bundle holds the unpacked set of LDIF templates a setup run
// renders from.
package bundle

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/aakso/totp-ldap-setup/internal/logging"
)

var Log *logrus.Entry = logging.GetLogger("bundle").WithField("pkg", "bundle")

const (
	SchemaFile         = "totp-schema.ldif"
	ACLFile            = "totp-acls.ldif"
	ServiceAccountFile = "service-account.ldif"
)

// Bundle is a directory of templates. Bundles backed by a scratch
// directory remove it on Close.
type Bundle struct {
	Dir string
	// Where the templates came from, for reporting
	Origin string

	owned  bool
	closed bool
}

// NewTemp creates a bundle backed by a fresh, uniquely named scratch dir.
func NewTemp(origin string) (*Bundle, error) {
	dir, err := os.MkdirTemp("", "totp-ldap-setup-")
	if err != nil {
		return nil, errors.Wrap(err, "cannot create temporary directory")
	}
	Log.WithField("dir", dir).Debug("created scratch directory")
	return &Bundle{Dir: dir, Origin: origin, owned: true}, nil
}

// Local wraps an existing directory. It is never removed.
func Local(dir string) (*Bundle, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot resolve %s", dir)
	}
	st, err := os.Stat(abs)
	if err != nil {
		return nil, errors.Wrap(err, "cannot open template directory")
	}
	if !st.IsDir() {
		return nil, errors.Errorf("not a directory: %s", abs)
	}
	return &Bundle{Dir: abs, Origin: abs}, nil
}

// Close removes the scratch directory of an owned bundle. Safe to call
// more than once.
func (b *Bundle) Close() error {
	if b == nil || b.closed {
		return nil
	}
	b.closed = true
	if !b.owned {
		return nil
	}
	Log.WithField("dir", b.Dir).Debug("removing scratch directory")
	if err := os.RemoveAll(b.Dir); err != nil {
		return errors.Wrap(err, "cannot remove temporary directory")
	}
	return nil
}

// Find returns the path of the named template. The bundle root is checked
// first, then the shallowest match anywhere below it.
func (b *Bundle) Find(name string) (string, bool) {
	direct := filepath.Join(b.Dir, name)
	if st, err := os.Stat(direct); err == nil && st.Mode().IsRegular() {
		return direct, true
	}

	g, err := glob.Compile("**/"+glob.QuoteMeta(name), '/')
	if err != nil {
		Log.WithError(err).Error("cannot compile template pattern")
		return "", false
	}
	var matches []string
	_ = filepath.WalkDir(b.Dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(b.Dir, path)
		if err != nil {
			return nil
		}
		if g.Match(filepath.ToSlash(rel)) {
			matches = append(matches, rel)
		}
		return nil
	})
	if len(matches) == 0 {
		return "", false
	}
	sort.Slice(matches, func(i, j int) bool {
		di, dj := strings.Count(matches[i], string(filepath.Separator)), strings.Count(matches[j], string(filepath.Separator))
		if di != dj {
			return di < dj
		}
		return matches[i] < matches[j]
	})
	Log.WithField("template", name).WithField("path", matches[0]).Debug("found template below bundle root")
	return filepath.Join(b.Dir, matches[0]), true
}
