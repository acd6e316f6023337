package fetch

import "github.com/aakso/totp-ldap-setup/internal/globals"

type Config struct {
	// Release metadata API, GitHub compatible
	APIURL string `yaml:"apiURL"`
	// Base of the branch archive download
	ArchiveURL string `yaml:"archiveURL"`
	Owner      string
	Repo       string
	Branch     string
	// Pin a release tag instead of the latest release
	Release  string
	Timeout  string
	Retries  int
	Insecure bool
	// Request level debugging to stderr
	Debug bool
}

var Defaults *Config = &Config{
	APIURL:     "https://api.github.com",
	ArchiveURL: "https://github.com",
	Owner:      globals.DefaultOwner,
	Repo:       globals.DefaultRepo,
	Branch:     "main",
	Release:    "",
	Timeout:    "30s",
	Retries:    1,
	Insecure:   false,
	Debug:      false,
}
