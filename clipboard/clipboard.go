// Package clipboard copies result text to the system clipboard.
package clipboard

import (
	"errors"
	"strings"

	cb "github.com/atotto/clipboard"
)

var ErrNothingToCopy = errors.New("nothing to copy")

// Available reports whether a clipboard helper was found at startup.
func Available() bool { return !cb.Unsupported }

func Copy(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrNothingToCopy
	}
	return cb.WriteAll(text)
}

func Read() (string, error) {
	return cb.ReadAll()
}
