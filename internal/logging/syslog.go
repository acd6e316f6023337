//go:build !windows

package logging

import (
	"log/syslog"
	"net"
	"net/url"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	lsyslog "github.com/sirupsen/logrus/hooks/syslog"
)

const syslogTag = "totp-ldap-setup"

// getSyslogLoggerHook connects to the daemon at syslogURL, for example
// udp://loghost:514. An empty URL means the local daemon.
func getSyslogLoggerHook(syslogURL string) (logrus.Hook, error) {
	var network, addr string
	if syslogURL != "" {
		u, err := url.Parse(syslogURL)
		if err != nil {
			return nil, errors.Wrap(err, "cannot parse syslogURL")
		}
		network, addr = u.Scheme, net.JoinHostPort(u.Hostname(), u.Port())
	}
	hook, err := lsyslog.NewSyslogHook(network, addr, syslog.LOG_INFO, syslogTag)
	if err != nil {
		return nil, errors.Wrap(err, "cannot create syslog hook")
	}
	return hook, nil
}
