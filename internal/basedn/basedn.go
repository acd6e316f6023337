// Package basedn validates the directory base DN substituted into the
// LDIF templates.
package basedn

import (
	"regexp"

	"github.com/go-ldap/ldap/v3"
	"github.com/pkg/errors"
)

// Placeholder is the DN the upstream templates are written against.
const Placeholder = "dc=example,dc=com"

var (
	ErrEmpty   = errors.New("base DN cannot be empty")
	ErrInvalid = errors.New("invalid base DN")

	grammar = regexp.MustCompile(`^(dc|o|ou|c)=[a-zA-Z0-9._-]+(,(dc|o|ou|c)=[a-zA-Z0-9._-]+)*$`)
)

// Validate accepts a comma separated list of dc, o, ou or c components.
func Validate(dn string) error {
	if dn == "" {
		return ErrEmpty
	}
	if !grammar.MatchString(dn) {
		return errors.Wrapf(ErrInvalid, "%q does not match component=value[,component=value...] with component one of dc, o, ou, c", dn)
	}
	if _, err := ldap.ParseDN(dn); err != nil {
		return errors.Wrapf(ErrInvalid, "%q: %s", dn, err)
	}
	return nil
}

// IsInvalid reports whether err came from Validate.
func IsInvalid(err error) bool {
	cause := errors.Cause(err)
	return cause == ErrInvalid || cause == ErrEmpty
}
