package credential

import (
	"github.com/sirupsen/logrus"

	"github.com/aakso/totp-ldap-setup/internal/config"
	"github.com/aakso/totp-ldap-setup/internal/logging"
)

var Log *logrus.Entry = logging.GetLogger("credential").WithField("pkg", "credential")

func init() {
	config.SetDefault("credential", Defaults)
}
