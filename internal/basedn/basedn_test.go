package basedn

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateAccepts(t *testing.T) {
	for _, dn := range []string{
		"dc=example,dc=com",
		"dc=acme,dc=io",
		"o=acme",
		"c=FI",
		"ou=people,o=acme.corp,c=us",
		"dc=my-company_01,dc=co.uk",
		Placeholder,
	} {
		assert.NoError(t, Validate(dn), dn)
	}
}

func TestValidateRejects(t *testing.T) {
	for _, dn := range []string{
		"example.com",
		"cn=admin,dc=example,dc=com",
		"DC=example,DC=com",
		"dc=example, dc=com",
		"dc=example,",
		",dc=example",
		"dc=",
		"dc=exa mple",
		"dc=example;dc=com",
		"uid=john",
		"dc=ex+ample",
	} {
		err := Validate(dn)
		if assert.Error(t, err, dn) {
			assert.True(t, IsInvalid(err), dn)
		}
	}
}

func TestValidateEmpty(t *testing.T) {
	assert := assert.New(t)
	err := Validate("")
	assert.Equal(ErrEmpty, err)
	assert.True(IsInvalid(err))
}
