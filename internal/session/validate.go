package session

import (
	"errors"
	"fmt"
	"regexp"
)

// ErrInvalidName is wrapped by every rejected session name.
var ErrInvalidName = errors.New("invalid session name")

const maxNameLen = 64

var namePattern = regexp.MustCompile(`^[a-z0-9_-]+$`)

// ValidateName checks that name can be used as a session directory: 1 to 64
// characters from a-z, 0-9, '-' and '_'.
func ValidateName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: name is empty", ErrInvalidName)
	case len(name) > maxNameLen:
		return fmt.Errorf("%w: %q is longer than %d characters", ErrInvalidName, name, maxNameLen)
	case !namePattern.MatchString(name):
		return fmt.Errorf("%w: %q may only use a-z, 0-9, '-' and '_'", ErrInvalidName, name)
	}
	return nil
}
