// Package render turns a template bundle into the customized LDIF
// artifacts and the service account credential file.
package render

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-ldap/ldif"
	"github.com/natefinch/atomic"
	"github.com/pkg/errors"

	"github.com/aakso/totp-ldap-setup/internal/basedn"
	"github.com/aakso/totp-ldap-setup/internal/bundle"
	"github.com/aakso/totp-ldap-setup/internal/credential"
)

const (
	// Marker for the userPassword value in the service account template
	PasswordMarker = "{SSHA}YourHashedPasswordHere"
	PasswordFile   = "service-account-password.txt"

	// Used when the rendered template does not reveal the account entry
	DefaultAccountRDN = "cn=totp-service,ou=services"

	passwordAttr = "userPassword"
)

// Reporter receives the operator facing progress lines.
type Reporter interface {
	Info(format string, args ...interface{})
	Success(format string, args ...interface{})
	Warn(format string, args ...interface{})
}

type Artifact struct {
	Name    string
	Path    string
	Skipped bool
}

type Result struct {
	OutputDir string
	Artifacts []Artifact
	AccountDN string
	// Credential details, empty when the service account was skipped
	CredentialSource string
	Hashed           bool
	Hasher           string
}

// Produced reports whether the named artifact was written.
func (r *Result) Produced(name string) bool {
	for _, a := range r.Artifacts {
		if a.Name == name {
			return !a.Skipped
		}
	}
	return false
}

type Renderer struct {
	Config *Config
	Out    Reporter

	// Credential generation, see credential.DefaultSources
	Length  int
	Sources []credential.Source
	Hashers []credential.Hasher
	// Use this password instead of generating one
	Password string

	Now func() time.Time
}

// Render writes the artifacts for baseDN into the configured output
// directory. Missing templates are skipped with a warning; only problems
// with the output directory or writing files are errors.
func (r *Renderer) Render(b *bundle.Bundle, baseDN string) (*Result, error) {
	if err := basedn.Validate(baseDN); err != nil {
		return nil, err
	}
	conf := r.Config
	if conf == nil {
		conf = Defaults
	}
	outDir, err := filepath.Abs(conf.OutputDir)
	if err != nil {
		return nil, errors.Wrap(err, "cannot resolve output directory")
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, errors.Wrap(err, "cannot create output directory")
	}
	res := &Result{OutputDir: outDir}
	log := Log.WithField("action", "render").WithField("output", outDir)
	log.WithField("bundle", b.Dir).Debug("rendering templates")

	steps := []struct {
		name string
		fn   func(src, dst string) error
	}{
		{bundle.ACLFile, func(src, dst string) error { return r.renderACL(src, dst, baseDN, conf.Lint) }},
		{bundle.ServiceAccountFile, func(src, dst string) error { return r.renderServiceAccount(src, dst, baseDN, conf.Lint, res) }},
		{bundle.SchemaFile, r.copySchema},
	}
	for _, step := range steps {
		dst := filepath.Join(outDir, step.name)
		src, ok := b.Find(step.name)
		if !ok {
			r.Out.Warn("%s not found in the template bundle, skipping", step.name)
			res.Artifacts = append(res.Artifacts, Artifact{Name: step.name, Path: dst, Skipped: true})
			continue
		}
		if err := step.fn(src, dst); err != nil {
			return res, errors.Wrapf(err, "cannot render %s", step.name)
		}
		res.Artifacts = append(res.Artifacts, Artifact{Name: step.name, Path: dst})
		if step.name == bundle.ServiceAccountFile {
			res.Artifacts = append(res.Artifacts, Artifact{Name: PasswordFile, Path: filepath.Join(outDir, PasswordFile)})
		}
	}
	return res, nil
}

// Substitute replaces every occurrence of placeholder and returns the
// number of replacements.
func Substitute(content, placeholder, value string) (string, int) {
	n := strings.Count(content, placeholder)
	if n == 0 {
		return content, 0
	}
	return strings.ReplaceAll(content, placeholder, value), n
}

func (r *Renderer) renderACL(src, dst, baseDN string, lint bool) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return errors.Wrap(err, "cannot read template")
	}
	out, n := Substitute(string(data), basedn.Placeholder, baseDN)
	Log.WithField("replacements", n).Debug("substituted ACL base DN")
	if lint {
		lintLDIF(bundle.ACLFile, out)
	}
	if err := writeAtomic(dst, []byte(out), 0644); err != nil {
		return err
	}
	r.Out.Success("%s written (%d DN substitutions)", bundle.ACLFile, n)
	return nil
}

func (r *Renderer) renderServiceAccount(src, dst, baseDN string, lint bool, res *Result) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return errors.Wrap(err, "cannot read template")
	}
	tpl := string(data)
	if !strings.Contains(tpl, PasswordMarker) {
		r.Out.Warn("%s has no %s marker, the password is not injected", bundle.ServiceAccountFile, PasswordMarker)
	}

	secret := r.Password
	res.CredentialSource = "operator"
	if secret == "" {
		length := r.Length
		if length == 0 {
			length = credential.DefaultLength
		}
		sources := r.Sources
		if sources == nil {
			sources = credential.DefaultSources(nil)
		}
		secret, res.CredentialSource, err = credential.Generate(length, sources...)
		if err != nil {
			return err
		}
		if res.CredentialSource == "math/rand" {
			r.Out.Warn("no secure entropy source available, the generated password is predictable; replace it")
		}
	}

	hashers := r.Hashers
	if hashers == nil {
		hashers = credential.DefaultHashers(nil)
	}
	hashed := credential.Hash(secret, hashers...)
	res.Hashed = hashed.Hashed
	res.Hasher = hashed.Hasher
	if !hashed.Hashed {
		r.Out.Warn("%s, %s contains the PLAINTEXT password; hash it with slappasswd before loading", hashFailure(hashed.Failures), bundle.ServiceAccountFile)
	}

	replacer := strings.NewReplacer(
		basedn.Placeholder, baseDN,
		passwordAttr+": "+PasswordMarker, LDIFLine(passwordAttr, hashed.Value),
		PasswordMarker, hashed.Value,
	)
	out := replacer.Replace(tpl)
	if lint {
		lintLDIF(bundle.ServiceAccountFile, out)
	}

	if err := WritePrivate(dst, []byte(out)); err != nil {
		return err
	}
	r.Out.Success("%s written", bundle.ServiceAccountFile)

	res.AccountDN = accountDN(out, baseDN)
	pwFile := filepath.Join(filepath.Dir(dst), PasswordFile)
	if err := r.writePasswordFile(pwFile, res.AccountDN, secret); err != nil {
		return err
	}
	r.Out.Success("%s written (mode 0600)", PasswordFile)
	return nil
}

func (r *Renderer) copySchema(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return errors.Wrap(err, "cannot read template")
	}
	if err := writeAtomic(dst, data, 0644); err != nil {
		return err
	}
	r.Out.Success("%s written", bundle.SchemaFile)
	return nil
}

// writePasswordFile creates path with mode 0600 from the start. A previous
// file is removed so its permissions never apply to the new content.
func (r *Renderer) writePasswordFile(path, dn, secret string) error {
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "cannot replace existing password file")
	}
	fh, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return errors.Wrap(err, "cannot create password file")
	}
	// umask can only narrow the mode, make sure the owner keeps access
	if err := fh.Chmod(0600); err != nil {
		fh.Close()
		return errors.Wrap(err, "cannot restrict password file")
	}
	content := fmt.Sprintf(`# TOTP service account credentials
# Keep this file secret. Delete it once the password is stored safely.
# Generated: %s
DN: %s
Password: %s
`, now().UTC().Format(time.RFC3339), dn, secret)
	if _, err := fh.WriteString(content); err != nil {
		fh.Close()
		return errors.Wrap(err, "cannot write password file")
	}
	return errors.Wrap(fh.Close(), "cannot write password file")
}

// WritePrivate atomically replaces path with data readable by the owner
// only. An existing file is removed first so its mode is not inherited.
func WritePrivate(path string, data []byte) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "cannot replace existing file")
	}
	return writeAtomic(path, data, 0600)
}

func writeAtomic(path string, data []byte, mode os.FileMode) error {
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return errors.Wrapf(err, "cannot write %s", path)
	}
	return errors.Wrapf(os.Chmod(path, mode), "cannot set mode of %s", path)
}

// accountDN finds the entry carrying the password in the rendered LDIF.
func accountDN(content, baseDN string) string {
	fallback := DefaultAccountRDN + "," + baseDN
	parsed, err := ldif.Parse(content)
	if err != nil {
		Log.WithError(err).Debug("cannot parse service account LDIF, using default account DN")
		return fallback
	}
	for _, e := range parsed.Entries {
		switch {
		case e.Entry != nil:
			for _, attr := range e.Entry.Attributes {
				if strings.EqualFold(attr.Name, passwordAttr) {
					return e.Entry.DN
				}
			}
		case e.Add != nil:
			for _, attr := range e.Add.Attributes {
				if strings.EqualFold(attr.Type, passwordAttr) {
					return e.Add.DN
				}
			}
		}
	}
	return fallback
}

func lintLDIF(name, content string) {
	if _, err := ldif.Parse(content); err != nil {
		Log.WithField("file", name).WithError(err).Warn("rendered LDIF does not parse, check it before loading")
	}
}

// hashFailure summarizes why no hasher produced a value.
func hashFailure(failures []error) string {
	if len(failures) == 0 {
		return "no password hasher configured"
	}
	msgs := make([]string, len(failures))
	for i, err := range failures {
		msgs[i] = err.Error()
	}
	return "password not hashed (" + strings.Join(msgs, "; ") + ")"
}

// LDIFLine renders "attr: value", switching to the base64 form for values
// that are not a SAFE-STRING in RFC 2849 terms.
func LDIFLine(attr, value string) string {
	if isSafeString(value) {
		return attr + ": " + value
	}
	return attr + ":: " + base64.StdEncoding.EncodeToString([]byte(value))
}

func isSafeString(s string) bool {
	if s == "" {
		return true
	}
	switch s[0] {
	case ' ', ':', '<':
		return false
	}
	if s[len(s)-1] == ' ' {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == 0 || c == '\n' || c == '\r' || c > 127 {
			return false
		}
	}
	return true
}
