package enroll

type Config struct {
	// Issuer shown by authenticator apps
	Issuer string
	// Time step in seconds
	Period uint
	// Code length, 6 or 8
	Digits int
	// SHA1, SHA256 or SHA512
	Algorithm string
	// Number of single use recovery codes
	ScratchCodes int `yaml:"scratchCodes"`
	// Bytes of shared secret
	SecretSize uint `yaml:"secretSize"`
}

var Defaults *Config = &Config{
	Issuer:       "OpenLDAP",
	Period:       30,
	Digits:       6,
	Algorithm:    "SHA1",
	ScratchCodes: 5,
	SecretSize:   20,
}
