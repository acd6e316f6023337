package prompt

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/aakso/totp-ldap-setup/internal/logging"
	"github.com/aakso/totp-ldap-setup/internal/ui"
)

func TestMain(m *testing.M) {
	logging.SetLevel(logrus.DebugLevel)
	os.Exit(m.Run())
}

func scripted(input string, prompts *bytes.Buffer) func(string) (LineReader, error) {
	return func(p string) (LineReader, error) {
		return NewLineReader(strings.NewReader(input), prompts, p), nil
	}
}

func mustNotOpen(t *testing.T) func(string) (LineReader, error) {
	return func(string) (LineReader, error) {
		t.Fatal("reader opened")
		return nil, nil
	}
}

func TestResolveArgument(t *testing.T) {
	assert := assert.New(t)
	opts := Options{Interactive: mustNotOpen(t), Reattach: mustNotOpen(t)}
	dn, err := Resolve([]string{"dc=acme,dc=io"}, opts)
	assert.NoError(err)
	assert.Equal("dc=acme,dc=io", dn)

	for _, bad := range []string{"", "example.com", "DC=acme", "dc=acme;dc=io", " dc=acme,dc=io", "dc=acme,dc=io\n"} {
		_, err = Resolve([]string{bad}, opts)
		assert.Equal(ErrInvalidArgument, errors.Cause(err), bad)
	}
}

func TestResolveInteractiveLoop(t *testing.T) {
	assert := assert.New(t)
	out := &bytes.Buffer{}
	p := ui.NewBuffered(out)
	prompts := &bytes.Buffer{}
	dn, err := Resolve(nil, Options{
		Out:             p,
		StdinIsTerminal: func() bool { return true },
		Interactive:     scripted("\n  \nexample.com\n  ou=people,o=acme  \n", prompts),
		Reattach:        mustNotOpen(t),
	})
	assert.NoError(err)
	assert.Equal("ou=people,o=acme", dn)
	assert.Equal(3, p.Warnings())
	assert.Equal(2, strings.Count(out.String(), "cannot be empty"))
	assert.Contains(out.String(), `Invalid base DN "example.com"`)
	assert.Equal(4, strings.Count(prompts.String(), DefaultPrompt))
}

func TestResolveReattach(t *testing.T) {
	assert := assert.New(t)
	dn, err := Resolve(nil, Options{
		Out:             ui.NewBuffered(&bytes.Buffer{}),
		StdinIsTerminal: func() bool { return false },
		Interactive:     mustNotOpen(t),
		Reattach:        scripted("dc=acme,dc=io", &bytes.Buffer{}),
	})
	assert.NoError(err)
	assert.Equal("dc=acme,dc=io", dn)
}

func TestResolveNoTerminal(t *testing.T) {
	_, err := Resolve(nil, Options{
		StdinIsTerminal: func() bool { return false },
		Reattach: func(string) (LineReader, error) {
			return nil, errors.New("no such device")
		},
	})
	assert.Equal(t, ErrNoTerminal, err)
}

func TestResolveEOFAborts(t *testing.T) {
	_, err := Resolve(nil, Options{
		Out:             ui.NewBuffered(&bytes.Buffer{}),
		StdinIsTerminal: func() bool { return true },
		Interactive:     scripted("bogus\n", &bytes.Buffer{}),
	})
	assert.Equal(t, ErrAborted, err)
}
