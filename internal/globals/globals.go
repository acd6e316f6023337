package globals

import (
	"os"
	"path"

	"github.com/blang/semver/v4"
)

// Override thru linker -X flag if needed
var (
	confDir = ""
	version = "0.0.0-snapshot"
)

const (
	UserAgent = "totp-ldap-setup"

	// Upstream project publishing the template bundle
	DefaultOwner = "wheelybird"
	DefaultRepo  = "ldap-totp-schema"
)

func ConfDir() string {
	if confDir == "" {
		return path.Join(os.Getenv("HOME"), ".totp_ldap_setup")
	}
	return confDir
}

func Version() semver.Version {
	return semver.MustParse(version)
}

func IsSnapshotVersion(ver semver.Version) bool {
	return len(ver.Pre) > 0
}

func UserAgentString() string {
	return UserAgent + "/" + Version().String()
}
