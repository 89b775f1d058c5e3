// Licensed under the MIT License.

package userutils

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/snnbyyds/ubuntu-build/internal/shell"
)

const (
	// UIDMin is the first UID available for regular users.
	UIDMin = 1000
	// UIDMax is the largest valid UID.
	UIDMax = 60000
)

var nameRegex = regexp.MustCompile(`^[a-z_][a-z0-9_-]*\$?$`)

// NameIsValid checks that the name is a legal login name.
func NameIsValid(name string) error {
	if name == "" {
		return fmt.Errorf("user name cannot be empty")
	}
	if len(name) > 32 {
		return fmt.Errorf("user name (%s) is longer than 32 characters", name)
	}
	if !nameRegex.MatchString(name) {
		return fmt.Errorf("user name (%s) contains invalid characters", name)
	}
	return nil
}

// UIDIsValid checks that the UID lies in the regular-user range.
func UIDIsValid(uid int) error {
	if uid < UIDMin || uid > UIDMax {
		return fmt.Errorf("uid (%d) is outside the valid range (%d-%d)", uid, UIDMin, UIDMax)
	}
	return nil
}

// HashPassword produces a SHA-512 crypt hash of the password with a random
// salt, suitable for /etc/shadow.
func HashPassword(password string) (string, error) {
	salt := strings.ReplaceAll(uuid.New().String(), "-", "")[:16]

	stdout, _, err := shell.NewExecBuilder("openssl", "passwd", "-6", "-salt", salt, "-stdin").
		Stdin(password).
		LogLevel(shell.LogDisabledLevel, logrus.DebugLevel).
		ExecuteCaptureOutput()
	if err != nil {
		return "", fmt.Errorf("failed to hash password:\n%w", err)
	}

	return strings.TrimSpace(stdout), nil
}
