// Licensed under the MIT License.

package ubuildlib

import (
	"os"
	"testing"

	"github.com/snnbyyds/ubuntu-build/internal/logger"
)

var logMessagesHook *logger.MemoryLogHook

func TestMain(m *testing.M) {
	logger.InitStderrLog()

	logMessagesHook = logger.NewMemoryLogHook()
	logger.Log.Hooks.Add(logMessagesHook)

	retVal := m.Run()

	os.Exit(retVal)
}
