package credential

import (
	"math/rand"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-secure-stdlib/base62"
	"github.com/pkg/errors"
)

const (
	Alphabet      = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	DefaultLength = 32
)

// Source produces a random string of the requested length. Sources may
// return fewer or foreign characters; Generate rejects those results.
type Source interface {
	Name() string
	Generate(length int) (string, error)
}

// DefaultSources returns the entropy chain in order of preference.
func DefaultSources(conf *Config) []Source {
	openssl := "openssl"
	if conf != nil && conf.OpenSSLPath != "" {
		openssl = conf.OpenSSLPath
	}
	return []Source{
		CryptoSource{},
		&OpenSSLSource{Path: openssl},
		&PseudoSource{},
	}
}

// Generate tries each source in turn and returns the first result that has
// exactly length characters from Alphabet, together with the source name.
func Generate(length int, sources ...Source) (string, string, error) {
	if length <= 0 {
		return "", "", errors.Errorf("invalid credential length: %d", length)
	}
	for _, src := range sources {
		log := Log.WithField("source", src.Name())
		secret, err := src.Generate(length)
		if err != nil {
			log.WithError(err).Debug("entropy source failed")
			continue
		}
		if !Valid(secret, length) {
			log.WithField("got_length", len(secret)).Debug("entropy source returned unusable value")
			continue
		}
		log.Debug("generated credential")
		return secret, src.Name(), nil
	}
	return "", "", errors.New("no entropy source could produce a credential")
}

// Valid reports whether s has exactly length characters, all from Alphabet.
func Valid(s string, length int) bool {
	if len(s) != length {
		return false
	}
	for _, r := range s {
		if !strings.ContainsRune(Alphabet, r) {
			return false
		}
	}
	return true
}

func filterAlphabet(s string) string {
	var b strings.Builder
	for _, r := range s {
		if strings.ContainsRune(Alphabet, r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// CryptoSource reads the operating system CSPRNG and keeps alphanumerics.
type CryptoSource struct{}

func (CryptoSource) Name() string { return "crypto/rand" }

func (CryptoSource) Generate(length int) (string, error) {
	return base62.Random(length)
}

// OpenSSLSource runs "openssl rand -base64" on the host.
type OpenSSLSource struct {
	Path string

	// Overridable for tests
	run func(name string, args ...string) ([]byte, error)
}

func (o *OpenSSLSource) Name() string { return "openssl" }

func (o *OpenSSLSource) Generate(length int) (string, error) {
	bin, err := exec.LookPath(o.Path)
	if err != nil {
		return "", errors.Wrap(err, "openssl not available")
	}
	run := o.run
	if run == nil {
		run = func(name string, args ...string) ([]byte, error) {
			return exec.Command(name, args...).Output()
		}
	}
	// base64 of n bytes yields ~4n/3 characters of which roughly 3% are
	// '+', '/' or '=', so twice the length leaves plenty after filtering.
	out, err := run(bin, "rand", "-base64", strconv.Itoa(length*2))
	if err != nil {
		return "", errors.Wrap(err, "openssl rand failed")
	}
	filtered := filterAlphabet(string(out))
	if len(filtered) < length {
		return "", errors.Errorf("openssl returned %d usable characters, need %d", len(filtered), length)
	}
	return filtered[:length], nil
}

// PseudoSource is the last resort, it is not cryptographically secure.
type PseudoSource struct {
	Rand *rand.Rand
}

func (p *PseudoSource) Name() string { return "math/rand" }

func (p *PseudoSource) Generate(length int) (string, error) {
	rnd := p.Rand
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	buf := make([]byte, length)
	for i := range buf {
		buf[i] = Alphabet[rnd.Intn(len(Alphabet))]
	}
	return string(buf), nil
}
