// Package prompt resolves the base DN from the command line or the
// operator's terminal.
package prompt

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/aakso/totp-ldap-setup/internal/basedn"
	"github.com/aakso/totp-ldap-setup/internal/logging"
)

const (
	DefaultPrompt = "Enter base DN (e.g. dc=example,dc=com): "
	ttyDevice     = "/dev/tty"
)

var Log *logrus.Entry = logging.GetLogger("prompt").WithField("pkg", "prompt")

var (
	ErrInvalidArgument = errors.New("invalid base DN argument")
	ErrNoTerminal      = errors.New("no terminal available for input, pass the base DN as an argument")
	ErrAborted         = errors.New("input aborted")
)

// LineReader yields one line of operator input per call.
type LineReader interface {
	Readline() (string, error)
	Close() error
}

type Warner interface {
	Warn(format string, args ...interface{})
}

type Options struct {
	Prompt string
	Out    Warner

	// Overridable for tests
	StdinIsTerminal func() bool
	// Reader on the interactive stdin
	Interactive func(prompt string) (LineReader, error)
	// Reader on the controlling terminal when stdin is redirected
	Reattach func(prompt string) (LineReader, error)
}

// Resolve returns the validated base DN. A DN given in args is validated
// without prompting, otherwise the operator is asked until a valid DN is
// entered or input ends.
func Resolve(args []string, opts Options) (string, error) {
	if len(args) > 0 {
		dn := args[0]
		if err := basedn.Validate(dn); err != nil {
			return "", errors.Wrap(ErrInvalidArgument, err.Error())
		}
		return dn, nil
	}
	opts = withDefaults(opts)
	log := Log.WithField("action", "resolve")

	var (
		lr  LineReader
		err error
	)
	if opts.StdinIsTerminal() {
		lr, err = opts.Interactive(opts.Prompt)
		if err != nil {
			return "", errors.Wrap(err, "cannot start prompt")
		}
	} else {
		log.Debug("stdin is not a terminal, reattaching to the controlling terminal")
		lr, err = opts.Reattach(opts.Prompt)
		if err != nil {
			log.WithError(err).Debug("cannot open terminal")
			return "", ErrNoTerminal
		}
	}
	defer lr.Close()

	for {
		line, err := lr.Readline()
		if err == io.EOF || err == readline.ErrInterrupt {
			return "", ErrAborted
		}
		if err != nil {
			return "", errors.Wrap(err, "cannot read input")
		}
		dn := strings.TrimSpace(line)
		switch err := basedn.Validate(dn); {
		case err == basedn.ErrEmpty:
			opts.Out.Warn("Base DN cannot be empty")
		case err != nil:
			opts.Out.Warn("Invalid base DN %q, expected e.g. dc=example,dc=com", dn)
		default:
			return dn, nil
		}
	}
}

func withDefaults(opts Options) Options {
	if opts.Prompt == "" {
		opts.Prompt = DefaultPrompt
	}
	if opts.Out == nil {
		opts.Out = logWarner{}
	}
	if opts.StdinIsTerminal == nil {
		opts.StdinIsTerminal = func() bool {
			return isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())
		}
	}
	if opts.Interactive == nil {
		opts.Interactive = func(prompt string) (LineReader, error) {
			return readline.NewEx(&readline.Config{Prompt: prompt})
		}
	}
	if opts.Reattach == nil {
		opts.Reattach = OpenTTY
	}
	return opts
}

// OpenTTY reads from the controlling terminal.
func OpenTTY(prompt string) (LineReader, error) {
	fh, err := os.OpenFile(ttyDevice, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	return NewLineReader(fh, fh, prompt), nil
}

// NewLineReader prompts on w before each line read from r. r is closed by
// Close when it is an io.Closer.
func NewLineReader(r io.Reader, w io.Writer, prompt string) LineReader {
	return &lineReader{in: bufio.NewReader(r), src: r, out: w, prompt: prompt}
}

type lineReader struct {
	in     *bufio.Reader
	src    io.Reader
	out    io.Writer
	prompt string
}

func (l *lineReader) Readline() (string, error) {
	if l.out != nil {
		fmt.Fprint(l.out, l.prompt)
	}
	line, err := l.in.ReadString('\n')
	if err == io.EOF && line != "" {
		return strings.TrimRight(line, "\r\n"), nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (l *lineReader) Close() error {
	if c, ok := l.src.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

type logWarner struct{}

func (logWarner) Warn(format string, args ...interface{}) {
	Log.Warnf(format, args...)
}
