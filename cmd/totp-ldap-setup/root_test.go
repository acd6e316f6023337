package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/aakso/totp-ldap-setup/internal/bundle"
	"github.com/aakso/totp-ldap-setup/internal/config"
	"github.com/aakso/totp-ldap-setup/internal/render"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Cleanup(config.Reset)
	out := &bytes.Buffer{}
	RootCmd.SetOut(out)
	RootCmd.SetArgs(args)
	err := RootCmd.Execute()
	return out.String(), err
}

func writeConfig(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestDefaultsCommand(t *testing.T) {
	assert := assert.New(t)
	out, err := execute(t, "defaults", "--config", writeConfig(t, "{}\n"))
	require.NoError(t, err)
	var parsed map[string]interface{}
	require.NoError(t, yaml.Unmarshal([]byte(out), &parsed))
	for _, section := range []string{"logging", "fetch", "credential", "render", "enroll"} {
		assert.Contains(parsed, section)
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version", "--config", writeConfig(t, "{}\n"))
	require.NoError(t, err)
	assert.Equal(t, "0.0.0-snapshot\n", out)
}

func TestOfflineRunUsesConfigOutput(t *testing.T) {
	assert := assert.New(t)
	dir := filepath.Join(t.TempDir(), "ldif")
	cfg := writeConfig(t, "render:\n  outputDir: "+dir+"\ncredential:\n  nativeHash: true\n")
	_, err := execute(t, "--config", cfg, "--offline", "--quiet", "dc=acme,dc=io")
	require.NoError(t, err)
	for _, name := range []string{bundle.SchemaFile, bundle.ACLFile, bundle.ServiceAccountFile, render.PasswordFile} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(err, name)
	}
}

func TestRunRejectsInvalidDN(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "ldif")
	_, err := execute(t, "--config", writeConfig(t, "{}\n"), "--offline", "-o", dir, "example.com")
	if assert.Error(t, err) {
		assert.Contains(t, err.Error(), "invalid base DN")
	}
	_, statErr := os.Stat(dir)
	assert.True(t, os.IsNotExist(statErr))
}

func TestCompletionCommand(t *testing.T) {
	out, err := execute(t, "completion", "bash", "--config", writeConfig(t, "{}\n"))
	require.NoError(t, err)
	assert.Contains(t, out, "totp-ldap-setup")

	_, err = execute(t, "completion", "tcsh", "--config", writeConfig(t, "{}\n"))
	assert.Error(t, err)
}
