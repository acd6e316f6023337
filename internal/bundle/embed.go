package bundle

import (
	"embed"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

//go:embed templates/*.ldif
var templates embed.FS

// EmbeddedOrigin names bundles created by Embedded.
const EmbeddedOrigin = "embedded templates"

// Embedded unpacks the templates shipped with the binary into a scratch
// directory.
func Embedded() (*Bundle, error) {
	b, err := NewTemp(EmbeddedOrigin)
	if err != nil {
		return nil, err
	}
	entries, err := fs.ReadDir(templates, "templates")
	if err != nil {
		b.Close()
		return nil, errors.Wrap(err, "cannot read embedded templates")
	}
	for _, e := range entries {
		data, err := templates.ReadFile("templates/" + e.Name())
		if err != nil {
			b.Close()
			return nil, errors.Wrapf(err, "cannot read embedded template %s", e.Name())
		}
		if err := os.WriteFile(filepath.Join(b.Dir, e.Name()), data, 0644); err != nil {
			b.Close()
			return nil, errors.Wrapf(err, "cannot unpack embedded template %s", e.Name())
		}
	}
	return b, nil
}

// Template returns the content of an embedded template.
func Template(name string) ([]byte, error) {
	data, err := templates.ReadFile("templates/" + name)
	if err != nil {
		return nil, errors.Wrapf(err, "no embedded template %s", name)
	}
	return data, nil
}
