package setup

import (
	"archive/tar"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aakso/totp-ldap-setup/internal/bundle"
	"github.com/aakso/totp-ldap-setup/internal/credential"
	"github.com/aakso/totp-ldap-setup/internal/fetch"
	"github.com/aakso/totp-ldap-setup/internal/logging"
	"github.com/aakso/totp-ldap-setup/internal/prompt"
	"github.com/aakso/totp-ldap-setup/internal/render"
	"github.com/aakso/totp-ldap-setup/internal/ui"
)

const fakeHash = "{SSHA}b3BhcXVlLWRpZ2VzdA=="

// Never dialed
const unusedUpstream = "http://127.0.0.1:1"

func TestMain(m *testing.M) {
	logging.SetLevel(logrus.DebugLevel)
	os.Exit(m.Run())
}

type fakeHasher struct{}

func (fakeHasher) Name() string { return "fake" }
func (fakeHasher) Hash(secret string) (string, error) {
	return fakeHash, nil
}

func templateTarball(t *testing.T, names ...string) []byte {
	buf := &bytes.Buffer{}
	gz := gzip.NewWriter(buf)
	tw := tar.NewWriter(gz)
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "schema-1.0.0/", Typeflag: tar.TypeDir, Mode: 0755}))
	for _, name := range names {
		data, err := bundle.Template(name)
		require.NoError(t, err)
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name:     "schema-1.0.0/" + name,
			Typeflag: tar.TypeReg,
			Mode:     0644,
			Size:     int64(len(data)),
		}))
		_, err = tw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

func newServer(t *testing.T, tarball []byte) *httptest.Server {
	var srv *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/schema/releases/latest", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"tag_name":"v1.0.0","tarball_url":"%s/tarball/v1.0.0"}`, srv.URL)
	})
	mux.HandleFunc("/tarball/v1.0.0", func(w http.ResponseWriter, r *http.Request) {
		w.Write(tarball)
	})
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testOptions(t *testing.T, upstream string, out io.Writer) (Options, *ui.Printer) {
	fc := *fetch.Defaults
	fc.APIURL = upstream
	fc.ArchiveURL = upstream
	fc.Owner = "acme"
	fc.Repo = "schema"
	fc.Retries = 0
	p := ui.NewBuffered(out)
	return Options{
		Args:    []string{"dc=acme,dc=io"},
		Fetch:   &fc,
		Render:  &render.Config{OutputDir: filepath.Join(t.TempDir(), "out"), Lint: true},
		Hashers: []credential.Hasher{fakeHasher{}},
		Out:     p,
	}, p
}

func TestRunEndToEnd(t *testing.T) {
	assert := assert.New(t)
	t.Setenv("TMPDIR", t.TempDir())
	out := &bytes.Buffer{}
	srv := newServer(t, templateTarball(t, bundle.SchemaFile, bundle.ACLFile, bundle.ServiceAccountFile))
	opts, p := testOptions(t, srv.URL, out)

	rep, err := Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(0, p.Warnings(), out.String())
	assert.Equal("dc=acme,dc=io", rep.BaseDN)
	assert.Equal("release v1.0.0", rep.Origin)
	assert.Len(rep.Files, 4)
	assert.True(rep.Hashed)

	dir := opts.Render.OutputDir
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(entries, 4)

	schema, err := os.ReadFile(filepath.Join(dir, bundle.SchemaFile))
	require.NoError(t, err)
	orig, _ := bundle.Template(bundle.SchemaFile)
	assert.Equal(orig, schema)

	for _, name := range []string{bundle.ACLFile, bundle.ServiceAccountFile} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err)
		assert.NotContains(string(data), "dc=example,dc=com", name)
		assert.Contains(string(data), "dc=acme,dc=io", name)
	}

	st, err := os.Stat(filepath.Join(dir, render.PasswordFile))
	require.NoError(t, err)
	assert.Equal(os.FileMode(0600), st.Mode().Perm())
	pw, err := os.ReadFile(filepath.Join(dir, render.PasswordFile))
	require.NoError(t, err)
	var secret string
	for _, line := range strings.Split(string(pw), "\n") {
		if strings.HasPrefix(line, "Password: ") {
			secret = strings.TrimPrefix(line, "Password: ")
		}
	}
	assert.True(credential.Valid(secret, credential.DefaultLength), secret)

	sa, err := os.ReadFile(filepath.Join(dir, bundle.ServiceAccountFile))
	require.NoError(t, err)
	assert.Contains(string(sa), "userPassword: "+fakeHash)
	assert.NotContains(string(sa), secret)

	assert.Equal([]string{
		"ldapadd -Y EXTERNAL -H ldapi:/// -f totp-schema.ldif",
		"ldapmodify -Y EXTERNAL -H ldapi:/// -f totp-acls.ldif",
		`ldapadd -x -D "cn=admin,dc=acme,dc=io" -W -f service-account.ldif`,
	}, rep.Commands)

	scratch, err := filepath.Glob(filepath.Join(os.TempDir(), "totp-ldap-setup-*"))
	require.NoError(t, err)
	assert.Empty(scratch, "scratch directory must be removed")

	rep.Print(p)
	assert.Contains(out.String(), "Base DN: dc=acme,dc=io")
	assert.Contains(out.String(), "cn=totp-service,ou=services,dc=acme,dc=io")
}

func TestRunMissingTemplate(t *testing.T) {
	assert := assert.New(t)
	out := &bytes.Buffer{}
	srv := newServer(t, templateTarball(t, bundle.SchemaFile, bundle.ServiceAccountFile))
	opts, p := testOptions(t, srv.URL, out)

	rep, err := Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(1, p.Warnings(), out.String())
	assert.Len(rep.Files, 3)
	for _, c := range rep.Commands {
		assert.NotContains(c, bundle.ACLFile)
	}
	assert.Len(rep.Commands, 2)
}

func TestRunInvalidArgument(t *testing.T) {
	assert := assert.New(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request %s", r.URL)
	}))
	defer srv.Close()
	opts, _ := testOptions(t, srv.URL, &bytes.Buffer{})
	opts.Args = []string{"example.com"}

	_, err := Run(context.Background(), opts)
	assert.Equal(prompt.ErrInvalidArgument, errors.Cause(err))
	assert.Equal("invalid base DN", Describe(err))
	_, statErr := os.Stat(opts.Render.OutputDir)
	assert.True(os.IsNotExist(statErr))
}

func TestRunDownloadFails(t *testing.T) {
	assert := assert.New(t)
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	opts, _ := testOptions(t, srv.URL, &bytes.Buffer{})

	_, err := Run(context.Background(), opts)
	assert.Equal(fetch.ErrUnavailable, errors.Cause(err))
	assert.Equal("template download failed", Describe(err))
}

func TestRunOffline(t *testing.T) {
	assert := assert.New(t)
	out := &bytes.Buffer{}
	opts, p := testOptions(t, unusedUpstream, out)
	opts.Fetch = nil
	opts.Offline = true
	rep, err := Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(bundle.EmbeddedOrigin, rep.Origin)
	assert.Len(rep.Commands, 3)
	assert.Equal(0, p.Warnings())
	assert.Contains(out.String(), "stand-in for the upstream wheelybird/ldap-totp-schema schema")
}

func TestRunLocalSourceAndPassword(t *testing.T) {
	assert := assert.New(t)
	src := t.TempDir()
	for _, name := range []string{bundle.ServiceAccountFile} {
		data, err := bundle.Template(name)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(src, name), data, 0644))
	}
	out := &bytes.Buffer{}
	opts, p := testOptions(t, unusedUpstream, out)
	opts.Source = src
	opts.AskPassword = true
	opts.Ask = func(io.Writer, string) (string, error) { return "s3cret-pass", nil }

	rep, err := Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(2, p.Warnings(), out.String())
	assert.Len(rep.Commands, 1)
	pw, err := os.ReadFile(filepath.Join(opts.Render.OutputDir, render.PasswordFile))
	require.NoError(t, err)
	assert.Contains(string(pw), "Password: s3cret-pass")
	_, err = os.Stat(src)
	assert.NoError(err, "local source is kept")
}
