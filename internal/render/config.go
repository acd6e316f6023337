package render

type Config struct {
	// Directory receiving the rendered artifacts, created if missing
	OutputDir string `yaml:"outputDir"`
	// Parse rendered LDIF and log problems
	Lint bool
}

var Defaults *Config = &Config{
	OutputDir: "ldap-totp-setup",
	Lint:      true,
}
