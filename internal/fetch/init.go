package fetch

import (
	"github.com/sirupsen/logrus"

	"github.com/aakso/totp-ldap-setup/internal/config"
	"github.com/aakso/totp-ldap-setup/internal/logging"
)

var Log *logrus.Entry = logging.GetLogger("fetch").WithField("pkg", "fetch")

func init() {
	config.SetDefault("fetch", Defaults)
}
