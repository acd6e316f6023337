// Package logging hands out one logrus logger per package and configures
// them all from the "logging" config section.
package logging

import (
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/aakso/totp-ldap-setup/internal/config"
)

var (
	mu      sync.Mutex
	loggers = map[string]*logrus.Logger{}
	// Hooks already attached by Setup, keyed by syslog URL
	hooked = map[string]bool{}
)

func init() {
	config.SetDefault("logging", Defaults)
}

// GetLogger returns the logger for a package, creating it on first use.
// Loggers write to stderr so stdout stays reserved for operator output.
func GetLogger(name string) *logrus.Logger {
	mu.Lock()
	defer mu.Unlock()
	if logger, ok := loggers[name]; ok {
		return logger
	}
	logger := logrus.New()
	logger.Out = os.Stderr
	loggers[name] = logger
	return logger
}

// SetLevel sets the level of every package logger, mostly for tests.
func SetLevel(level logrus.Level) {
	each(func(_ string, l *logrus.Logger) { l.SetLevel(level) })
}

func SetOutput(w io.Writer) {
	each(func(_ string, l *logrus.Logger) { l.SetOutput(w) })
}

func GetAvailableLevelNames() []string {
	names := make([]string, 0, len(logrus.AllLevels))
	for _, lvl := range logrus.AllLevels {
		names = append(names, lvl.String())
	}
	return names
}

// Packages lists the names of the registered loggers.
func Packages() []string {
	var names []string
	each(func(name string, _ *logrus.Logger) { names = append(names, name) })
	sort.Strings(names)
	return names
}

// Setup applies the logging section to all package loggers. A non-empty
// levelOverride replaces the configured default level.
func Setup(levelOverride string) error {
	conf, err := config.Section[Config]("logging")
	if err != nil {
		return errors.Wrap(err, "cannot initialize logging")
	}
	if levelOverride != "" {
		conf.DefaultLevel = levelOverride
	}
	level, err := parseLevel(conf.DefaultLevel)
	if err != nil {
		return err
	}
	formatter, err := newFormatter(conf.Format)
	if err != nil {
		return err
	}
	levels := make(map[string]logrus.Level, len(conf.PackageLevel))
	for pkg, name := range conf.PackageLevel {
		if !hasLogger(pkg) {
			return errors.Errorf("unknown package %q, available: %s", pkg, strings.Join(Packages(), ", "))
		}
		if levels[pkg], err = parseLevel(name); err != nil {
			return err
		}
	}

	var hook logrus.Hook
	if conf.EnableSyslog && !alreadyHooked(conf.SyslogURL) {
		if hook, err = getSyslogLoggerHook(conf.SyslogURL); err != nil {
			return err
		}
	}

	each(func(name string, l *logrus.Logger) {
		if !conf.EnableConsole {
			l.SetOutput(io.Discard)
		}
		l.SetFormatter(formatter)
		l.SetLevel(level)
		if pkgLevel, ok := levels[name]; ok {
			l.SetLevel(pkgLevel)
		}
		if hook != nil {
			l.AddHook(hook)
		}
	})
	return nil
}

func parseLevel(name string) (logrus.Level, error) {
	level, err := logrus.ParseLevel(strings.ToLower(name))
	if err != nil {
		return level, errors.Errorf("unknown log level: %q, available: %s",
			name, strings.Join(GetAvailableLevelNames(), ", "))
	}
	return level, nil
}

func newFormatter(name string) (logrus.Formatter, error) {
	switch strings.ToLower(name) {
	case "", "text":
		return new(logrus.TextFormatter), nil
	case "json":
		return new(logrus.JSONFormatter), nil
	}
	return nil, errors.Errorf("unknown log formatter: %q, available: text, json", name)
}

func each(fn func(string, *logrus.Logger)) {
	mu.Lock()
	defer mu.Unlock()
	for name, l := range loggers {
		fn(name, l)
	}
}

func hasLogger(name string) bool {
	mu.Lock()
	defer mu.Unlock()
	_, ok := loggers[name]
	return ok
}

func alreadyHooked(url string) bool {
	mu.Lock()
	defer mu.Unlock()
	if hooked[url] {
		return true
	}
	hooked[url] = true
	return false
}
