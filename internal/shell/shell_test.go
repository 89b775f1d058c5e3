// Licensed under the MIT License.

package shell

import (
	"os"
	"testing"

	"github.com/snnbyyds/ubuntu-build/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logger.InitStderrLog()

	os.Exit(m.Run())
}

func TestExecuteCapturesOutput(t *testing.T) {
	stdout, stderr, err := Execute("sh", "-c", "echo hello; echo oops >&2")
	require.NoError(t, err)
	assert.Equal(t, "hello\n", stdout)
	assert.Equal(t, "oops\n", stderr)
}

func TestExecuteNonZeroExit(t *testing.T) {
	_, _, err := Execute("sh", "-c", "echo broken >&2; exit 3")

	var execErr *ExecError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, 3, execErr.ExitCode)
	assert.Contains(t, execErr.Stderr, "broken")
}

func TestExecuteMissingProgram(t *testing.T) {
	_, _, err := Execute("this-program-does-not-exist")
	assert.Error(t, err)
}

func TestExecuteLive(t *testing.T) {
	assert.NoError(t, ExecuteLive(true, "true"))
	assert.Error(t, ExecuteLive(true, "false"))
}

func TestExecBuilderStdin(t *testing.T) {
	stdout, _, err := NewExecBuilder("cat").
		Stdin("from stdin").
		ExecuteCaptureOutput()
	require.NoError(t, err)
	assert.Equal(t, "from stdin\n", stdout)
}

func TestExecBuilderEnv(t *testing.T) {
	stdout, _, err := NewExecBuilder("sh", "-c", "echo $GREETING").
		Env([]string{"GREETING=hi"}).
		ExecuteCaptureOutput()
	require.NoError(t, err)
	assert.Equal(t, "hi\n", stdout)
}

func TestExecBuilderWorkingDirectory(t *testing.T) {
	dir := t.TempDir()

	stdout, _, err := NewExecBuilder("pwd").
		WorkingDirectory(dir).
		ExecuteCaptureOutput()
	require.NoError(t, err)
	assert.Contains(t, stdout, dir)
}

func TestExecBuilderStdoutCallback(t *testing.T) {
	var lines []string

	err := NewExecBuilder("sh", "-c", "echo one; echo two").
		StdoutCallback(func(line string) { lines = append(lines, line) }).
		Execute()
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two"}, lines)
}

func TestTailBufferKeepsLastLines(t *testing.T) {
	tail := newTailBuffer(2)
	tail.add("one")
	tail.add("two")
	tail.add("three")

	assert.Equal(t, "two\nthree", tail.String())
}
