package logging

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/aakso/totp-ldap-setup/internal/config"
)

func TestGetLoggerIsShared(t *testing.T) {
	assert.Same(t, GetLogger("shared"), GetLogger("shared"))
}

func TestSetupLevelOverride(t *testing.T) {
	assert := assert.New(t)
	logger := GetLogger("leveltest")
	if assert.NoError(Setup("debug")) {
		assert.Equal(logrus.DebugLevel, logger.Level)
	}
	if assert.NoError(Setup("")) {
		assert.Equal(logrus.WarnLevel, logger.Level)
	}
}

func TestSetupUnknownLevel(t *testing.T) {
	assert.Error(t, Setup("chatty"))
}

func TestSetupFromConfig(t *testing.T) {
	assert := assert.New(t)
	defer config.Reset()
	logger := GetLogger("configtest")
	err := config.LoadBytes([]byte(`
logging:
  defaultLevel: error
  format: json
  packageLevel:
    configtest: trace
`))
	assert.NoError(err)
	if assert.NoError(Setup("")) {
		assert.Equal(logrus.TraceLevel, logger.Level)
		assert.IsType(&logrus.JSONFormatter{}, logger.Formatter)
	}
}

func TestSetupUnknownFormat(t *testing.T) {
	defer config.Reset()
	assert.NoError(t, config.LoadBytes([]byte("logging:\n  format: xml\n")))
	assert.Error(t, Setup(""))
}

func TestPackages(t *testing.T) {
	GetLogger("zz-listed")
	assert.Contains(t, Packages(), "zz-listed")
}

func TestSetupUnknownPackage(t *testing.T) {
	defer config.Reset()
	assert.NoError(t, config.LoadBytes([]byte("logging:\n  packageLevel:\n    nosuchpkg: debug\n")))
	assert.Error(t, Setup(""))
}
