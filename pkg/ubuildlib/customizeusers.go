// Licensed under the MIT License.

package ubuildlib

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/snnbyyds/ubuntu-build/internal/logger"
	"github.com/snnbyyds/ubuntu-build/internal/userutils"
)

// createLiveUser adds the autologin user the live session runs as. The
// password is hashed on the host and passed pre-hashed so it never appears
// in the jail's process list.
func (b *Builder) createLiveUser() error {
	user := b.config.LiveUser

	logger.Log.Infof("Creating live user (%s)", user.Name)

	args := []string{"-m", "-s", "/bin/bash"}

	if user.UID != nil {
		args = append(args, "-u", strconv.Itoa(*user.UID))
	}

	if user.FullName != "" {
		args = append(args, "-c", user.FullName)
	}

	if user.Password != "" {
		hash, err := userutils.HashPassword(user.Password)
		if err != nil {
			return fmt.Errorf("failed to hash password for user (%s):\n%w", user.Name, err)
		}
		args = append(args, "-p", hash)
	}

	args = append(args, user.Name)

	err := b.chroot.Run(nil, "useradd", args...)
	if err != nil {
		return fmt.Errorf("failed to create user (%s):\n%w", user.Name, err)
	}

	if len(user.Groups) > 0 {
		err = b.chroot.Run(nil, "usermod", "-aG", strings.Join(user.Groups, ","), user.Name)
		if err != nil {
			return fmt.Errorf("failed to add user (%s) to groups:\n%w", user.Name, err)
		}
	}

	return nil
}
