// Package enroll prepares the LDIF that attaches a TOTP credential to an
// existing directory entry.
package enroll

import (
	"bytes"
	"crypto/rand"
	"fmt"
	"image/png"
	"io"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/go-ldap/ldif"
	"github.com/pkg/errors"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"github.com/aakso/totp-ldap-setup/internal/render"
)

const (
	StatusActive      = "active"
	scratchCodeDigits = 8
	generalizedTime   = "20060102150405Z"
)

var ErrInvalidDN = errors.New("invalid user DN")

type Enrollment struct {
	DN           string
	Account      string
	Key          *otp.Key
	ScratchCodes []string
	Enrolled     time.Time
}

// New generates a fresh key and scratch codes for the entry at dn. The
// account label is the value of the entry's first RDN.
func New(dn string, conf *Config, now time.Time) (*Enrollment, error) {
	if conf == nil {
		conf = Defaults
	}
	parsed, err := ldap.ParseDN(dn)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidDN, err.Error())
	}
	if len(parsed.RDNs) == 0 || len(parsed.RDNs[0].Attributes) == 0 {
		return nil, errors.Wrap(ErrInvalidDN, "DN is empty")
	}
	alg, err := parseAlgorithm(conf.Algorithm)
	if err != nil {
		return nil, err
	}
	digits, err := parseDigits(conf.Digits)
	if err != nil {
		return nil, err
	}
	if conf.ScratchCodes < 0 {
		return nil, errors.New("scratch code count cannot be negative")
	}

	account := parsed.RDNs[0].Attributes[0].Value
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      conf.Issuer,
		AccountName: account,
		Period:      conf.Period,
		SecretSize:  conf.SecretSize,
		Digits:      digits,
		Algorithm:   alg,
	})
	if err != nil {
		return nil, errors.Wrap(err, "cannot generate TOTP key")
	}
	codes, err := ScratchCodes(conf.ScratchCodes)
	if err != nil {
		return nil, err
	}
	Log.WithField("action", "new").
		WithField("dn", dn).
		WithField("algorithm", alg.String()).
		Debug("generated TOTP key")
	return &Enrollment{
		DN:           dn,
		Account:      account,
		Key:          key,
		ScratchCodes: codes,
		Enrolled:     now.UTC(),
	}, nil
}

// ScratchCodes returns n distinct 8 digit codes from crypto/rand.
func ScratchCodes(n int) ([]string, error) {
	max := big.NewInt(100000000)
	seen := make(map[string]bool, n)
	codes := make([]string, 0, n)
	for len(codes) < n {
		v, err := rand.Int(rand.Reader, max)
		if err != nil {
			return nil, errors.Wrap(err, "cannot generate scratch code")
		}
		code := fmt.Sprintf("%0*d", scratchCodeDigits, v.Int64())
		if seen[code] {
			continue
		}
		seen[code] = true
		codes = append(codes, code)
	}
	return codes, nil
}

// LDIF renders a modify record adding the totpUser class and replacing all
// TOTP attributes. Applying it to an entry that already has the class
// fails, which keeps an existing enrollment from being overwritten by
// accident.
func (e *Enrollment) LDIF() string {
	b := &strings.Builder{}
	fmt.Fprintf(b, "# TOTP enrollment for %s\n", e.DN)
	fmt.Fprintf(b, "# Generated: %s\n", e.Enrolled.Format(time.RFC3339))
	b.WriteString(render.LDIFLine("dn", e.DN) + "\n")
	b.WriteString("changetype: modify\n")
	b.WriteString("add: objectClass\nobjectClass: totpUser\n-\n")
	replace := func(attr string, vals ...string) {
		fmt.Fprintf(b, "replace: %s\n", attr)
		for _, v := range vals {
			b.WriteString(render.LDIFLine(attr, v) + "\n")
		}
		b.WriteString("-\n")
	}
	replace("totpSecret", e.Key.Secret())
	replace("totpStatus", StatusActive)
	replace("totpEnrolledDate", e.Enrolled.Format(generalizedTime))
	replace("totpAlgorithm", e.Key.Algorithm().String())
	replace("totpDigits", strconv.Itoa(e.Key.Digits().Length()))
	replace("totpPeriod", strconv.FormatUint(uint64(e.Key.Period()), 10))
	if len(e.ScratchCodes) > 0 {
		replace("totpScratchCode", e.ScratchCodes...)
	}
	return b.String()
}

// Write stores the LDIF at path readable by the owner only. The rendered
// record is parsed back first so a broken file is never written.
func (e *Enrollment) Write(path string) error {
	content := e.LDIF()
	if _, err := ldif.Parse(content); err != nil {
		return errors.Wrap(err, "rendered enrollment LDIF does not parse")
	}
	return render.WritePrivate(path, []byte(content))
}

// WriteQR encodes the provisioning URI as a PNG QR code.
func (e *Enrollment) WriteQR(w io.Writer, size int) error {
	img, err := e.Key.Image(size, size)
	if err != nil {
		return errors.Wrap(err, "cannot render QR code")
	}
	return errors.Wrap(png.Encode(w, img), "cannot encode QR code")
}

// WriteQRFile writes the QR code to path with owner-only permissions.
func (e *Enrollment) WriteQRFile(path string, size int) error {
	buf := &bytes.Buffer{}
	if err := e.WriteQR(buf, size); err != nil {
		return err
	}
	return render.WritePrivate(path, buf.Bytes())
}

// URL is the otpauth:// provisioning URI.
func (e *Enrollment) URL() string {
	return e.Key.URL()
}

func parseAlgorithm(name string) (otp.Algorithm, error) {
	switch strings.ToUpper(name) {
	case "", "SHA1":
		return otp.AlgorithmSHA1, nil
	case "SHA256":
		return otp.AlgorithmSHA256, nil
	case "SHA512":
		return otp.AlgorithmSHA512, nil
	}
	return 0, errors.Errorf("unsupported algorithm: %s", name)
}

func parseDigits(n int) (otp.Digits, error) {
	switch n {
	case 0, 6:
		return otp.DigitsSix, nil
	case 8:
		return otp.DigitsEight, nil
	}
	return 0, errors.Errorf("unsupported digit count: %d", n)
}
