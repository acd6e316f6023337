package credential

type Config struct {
	// Length of generated service account passwords
	Length int

	// Host utilities probed for presence, looked up in PATH unless absolute
	OpenSSLPath    string `yaml:"opensslPath"`
	SlappasswdPath string `yaml:"slappasswdPath"`

	// Scheme passed to slappasswd -h
	HashScheme string `yaml:"hashScheme"`

	// Hash in-process when slappasswd is not available instead of
	// falling back to plaintext
	NativeHash bool `yaml:"nativeHash"`
}

var Defaults *Config = &Config{
	Length:         DefaultLength,
	OpenSSLPath:    "openssl",
	SlappasswdPath: "slappasswd",
	HashScheme:     SchemeSSHA,
	NativeHash:     false,
}
