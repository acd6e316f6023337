package bundle

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestTempBundleRemovedOnClose(t *testing.T) {
	assert := assert.New(t)
	b, err := NewTemp("test")
	require.NoError(t, err)
	writeFile(t, filepath.Join(b.Dir, "sub", ACLFile), "x")
	assert.NoError(b.Close())
	_, err = os.Stat(b.Dir)
	assert.True(os.IsNotExist(err))
	assert.NoError(b.Close(), "second close is a no-op")
}

func TestTempBundlesAreUnique(t *testing.T) {
	b1, err := NewTemp("a")
	require.NoError(t, err)
	defer b1.Close()
	b2, err := NewTemp("b")
	require.NoError(t, err)
	defer b2.Close()
	assert.NotEqual(t, b1.Dir, b2.Dir)
}

func TestLocalBundleNotRemoved(t *testing.T) {
	assert := assert.New(t)
	dir := t.TempDir()
	b, err := Local(dir)
	require.NoError(t, err)
	assert.NoError(b.Close())
	_, err = os.Stat(dir)
	assert.NoError(err)
}

func TestLocalBundleMissing(t *testing.T) {
	_, err := Local(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)

	file := filepath.Join(t.TempDir(), "file")
	writeFile(t, file, "x")
	_, err = Local(file)
	assert.Error(t, err)
}

func TestFind(t *testing.T) {
	assert := assert.New(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, SchemaFile), "root")
	writeFile(t, filepath.Join(dir, "docs", "examples", "deep", ACLFile), "deep")
	writeFile(t, filepath.Join(dir, "ldif", ACLFile), "shallow")
	writeFile(t, filepath.Join(dir, "ldif", "x"+ServiceAccountFile), "decoy")
	b, err := Local(dir)
	require.NoError(t, err)

	p, ok := b.Find(SchemaFile)
	if assert.True(ok) {
		assert.Equal(filepath.Join(dir, SchemaFile), p)
	}
	p, ok = b.Find(ACLFile)
	if assert.True(ok) {
		assert.Equal(filepath.Join(dir, "ldif", ACLFile), p)
	}
	_, ok = b.Find(ServiceAccountFile)
	assert.False(ok)
}

func TestEmbedded(t *testing.T) {
	assert := assert.New(t)
	b, err := Embedded()
	require.NoError(t, err)
	defer b.Close()
	assert.Equal(EmbeddedOrigin, b.Origin)
	for _, name := range []string{SchemaFile, ACLFile, ServiceAccountFile} {
		p, ok := b.Find(name)
		if assert.True(ok, name) {
			data, err := os.ReadFile(p)
			assert.NoError(err)
			assert.NotEmpty(data)
		}
	}
}

func TestEmbeddedTemplatesCarryPlaceholders(t *testing.T) {
	assert := assert.New(t)
	schema, err := Template(SchemaFile)
	require.NoError(t, err)
	assert.Contains(string(schema), "1.3.6.1.4.1.64419")
	assert.Contains(string(schema), "AUXILIARY")
	assert.Contains(string(schema), "stand-in")
	assert.NotContains(string(schema), "dc=example,dc=com")

	acl, err := Template(ACLFile)
	require.NoError(t, err)
	assert.Equal(2, strings.Count(string(acl), "dc=example,dc=com"))

	sa, err := Template(ServiceAccountFile)
	require.NoError(t, err)
	assert.Contains(string(sa), "{SSHA}YourHashedPasswordHere")
	assert.Contains(string(sa), "dc=example,dc=com")

	_, err = Template("nope.ldif")
	assert.Error(err)
}
