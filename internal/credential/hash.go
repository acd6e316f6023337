package credential

import (
	"crypto/rand"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/crypto/argon2"
)

const (
	SchemeSSHA   = "{SSHA}"
	SchemeArgon2 = "{ARGON2}"

	sshaSaltLen = 8

	argon2Time    = 2
	argon2Memory  = 64 * 1024
	argon2Threads = 1
	argon2KeyLen  = 32
	argon2SaltLen = 16
)

// Hasher turns a plaintext secret into a userPassword value.
type Hasher interface {
	Name() string
	Hash(secret string) (string, error)
}

type HashResult struct {
	// Value to put into userPassword, plaintext when Hashed is false
	Value  string
	Hashed bool
	Hasher string
	// Failures of the hashers that were tried
	Failures []error
}

// DefaultHashers returns the hasher chain for conf. Without NativeHash the
// chain only contains slappasswd.
func DefaultHashers(conf *Config) []Hasher {
	if conf == nil {
		conf = Defaults
	}
	hashers := []Hasher{
		&SlappasswdHasher{Path: conf.SlappasswdPath, Scheme: conf.HashScheme},
	}
	if conf.NativeHash {
		hashers = append(hashers, &NativeHasher{Scheme: conf.HashScheme})
	}
	return hashers
}

// Hash returns the first successful hash. When every hasher fails the
// plaintext secret is returned with Hashed set to false.
func Hash(secret string, hashers ...Hasher) HashResult {
	res := HashResult{Value: secret}
	for _, h := range hashers {
		log := Log.WithField("hasher", h.Name())
		hashed, err := h.Hash(secret)
		if err != nil {
			log.WithError(err).Debug("hasher failed")
			res.Failures = append(res.Failures, errors.Wrap(err, h.Name()))
			continue
		}
		log.Debug("hashed credential")
		res.Value = hashed
		res.Hashed = true
		res.Hasher = h.Name()
		return res
	}
	return res
}

// SlappasswdHasher uses the OpenLDAP slappasswd utility. The secret is
// handed over in an owner-only temp file so it never shows up in the
// process list.
type SlappasswdHasher struct {
	Path   string
	Scheme string

	// Overridable for tests
	run func(name string, args ...string) ([]byte, error)
}

func (s *SlappasswdHasher) Name() string { return "slappasswd" }

func (s *SlappasswdHasher) Hash(secret string) (string, error) {
	path := s.Path
	if path == "" {
		path = "slappasswd"
	}
	bin, err := exec.LookPath(path)
	if err != nil {
		return "", errors.Wrap(err, "slappasswd not available")
	}
	fh, err := os.CreateTemp("", "totp-ldap-setup-secret")
	if err != nil {
		return "", errors.Wrap(err, "cannot create secret file")
	}
	defer os.Remove(fh.Name())
	if err := fh.Chmod(0600); err != nil {
		fh.Close()
		return "", errors.Wrap(err, "cannot restrict secret file")
	}
	if _, err := fh.WriteString(secret); err != nil {
		fh.Close()
		return "", errors.Wrap(err, "cannot write secret file")
	}
	if err := fh.Close(); err != nil {
		return "", errors.Wrap(err, "cannot write secret file")
	}

	args := []string{"-T", fh.Name()}
	if s.Scheme != "" {
		args = append([]string{"-h", s.Scheme}, args...)
	}
	run := s.run
	if run == nil {
		run = func(name string, args ...string) ([]byte, error) {
			return exec.Command(name, args...).Output()
		}
	}
	out, err := run(bin, args...)
	if err != nil {
		return "", errors.Wrap(err, "slappasswd failed")
	}
	hashed := strings.TrimSpace(string(out))
	if !hasScheme(hashed) || hashed == secret {
		return "", errors.Errorf("unexpected slappasswd output")
	}
	return hashed, nil
}

// hasScheme reports whether value starts with a {SCHEME} tag followed by
// the encoded hash.
func hasScheme(value string) bool {
	if !strings.HasPrefix(value, "{") {
		return false
	}
	end := strings.Index(value, "}")
	return end > 1 && end < len(value)-1
}

// NativeHasher computes {SSHA} or {ARGON2} values without external tools.
type NativeHasher struct {
	Scheme string
}

func (n *NativeHasher) Name() string { return "native" }

func (n *NativeHasher) Hash(secret string) (string, error) {
	switch strings.ToUpper(n.Scheme) {
	case "", SchemeSSHA:
		return HashSSHA(secret)
	case SchemeArgon2:
		return HashArgon2(secret)
	default:
		return "", errors.Errorf("unsupported native hash scheme: %s", n.Scheme)
	}
}

// HashSSHA returns base64(SHA1(secret || salt) || salt) prefixed with {SSHA}.
func HashSSHA(secret string) (string, error) {
	salt := make([]byte, sshaSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", errors.Wrap(err, "cannot read salt")
	}
	return SchemeSSHA + base64.StdEncoding.EncodeToString(sshaDigest(secret, salt)), nil
}

func sshaDigest(secret string, salt []byte) []byte {
	h := sha1.New()
	h.Write([]byte(secret))
	h.Write(salt)
	return append(h.Sum(nil), salt...)
}

// VerifySSHA checks secret against an {SSHA} value.
func VerifySSHA(hashed, secret string) bool {
	if !strings.HasPrefix(hashed, SchemeSSHA) {
		return false
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(hashed, SchemeSSHA))
	if err != nil || len(raw) <= sha1.Size {
		return false
	}
	salt := raw[sha1.Size:]
	return subtle.ConstantTimeCompare(sshaDigest(secret, salt), raw) == 1
}

// HashArgon2 returns an argon2id value in the format understood by the
// OpenLDAP pw-argon2 module.
func HashArgon2(secret string) (string, error) {
	salt := make([]byte, argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", errors.Wrap(err, "cannot read salt")
	}
	key := argon2.IDKey([]byte(secret), salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)
	return fmt.Sprintf("%s$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		SchemeArgon2,
		argon2.Version,
		argon2Memory, argon2Time, argon2Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// VerifyArgon2 checks secret against a value produced by HashArgon2.
func VerifyArgon2(hashed, secret string) bool {
	parts := strings.Split(strings.TrimPrefix(hashed, SchemeArgon2), "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false
	}
	var m, t uint32
	var p uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &m, &t, &p); err != nil {
		return false
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false
	}
	got := argon2.IDKey([]byte(secret), salt, t, m, p, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1
}
