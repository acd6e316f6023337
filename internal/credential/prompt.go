package credential

import (
	"io"
	"os"

	"github.com/bgentry/speakeasy"
	"github.com/pkg/errors"
)

// AskFunc reads a secret without echo.
type AskFunc func(w io.Writer, prompt string) (string, error)

// Prompt asks the operator for a password twice and returns it when both
// entries match. The value must be non-empty and may use any characters.
func Prompt(ask AskFunc) (string, error) {
	if ask == nil {
		ask = speakeasy.FAsk
	}
	first, err := ask(os.Stderr, "Service account password: ")
	if err != nil {
		return "", errors.Wrap(err, "cannot do password prompt")
	}
	if first == "" {
		return "", errors.New("password cannot be empty")
	}
	second, err := ask(os.Stderr, "Repeat password: ")
	if err != nil {
		return "", errors.Wrap(err, "cannot do password prompt")
	}
	if first != second {
		return "", errors.New("passwords do not match")
	}
	return first, nil
}
