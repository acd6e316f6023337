package enroll

import (
	"github.com/sirupsen/logrus"

	"github.com/aakso/totp-ldap-setup/internal/config"
	"github.com/aakso/totp-ldap-setup/internal/logging"
)

var Log *logrus.Entry = logging.GetLogger("enroll").WithField("pkg", "enroll")

func init() {
	config.SetDefault("enroll", Defaults)
}
