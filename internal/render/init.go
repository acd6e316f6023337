package render

import (
	"github.com/sirupsen/logrus"

	"github.com/aakso/totp-ldap-setup/internal/config"
	"github.com/aakso/totp-ldap-setup/internal/logging"
)

var Log *logrus.Entry = logging.GetLogger("render").WithField("pkg", "render")

func init() {
	config.SetDefault("render", Defaults)
}
