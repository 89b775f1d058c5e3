// Licensed under the MIT License.

// Package shell runs external programs, streaming or capturing their output
// through the shared logger.
package shell

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/snnbyyds/ubuntu-build/internal/logger"
)

const (
	// LogDisabledLevel suppresses logging of a stream entirely.
	LogDisabledLevel = logrus.Level(^uint32(0))

	// DefaultErrorStderrLines is the number of trailing stderr lines attached
	// to an ExecError when the caller does not override it.
	DefaultErrorStderrLines = 3
)

// ExecError reports a program that started but exited non-zero.
type ExecError struct {
	Cmd      string
	Args     []string
	ExitCode int
	Stderr   string
}

func (e *ExecError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("command (%s) failed with exit code (%d):\n%s", e.Cmd, e.ExitCode, e.Stderr)
	}
	return fmt.Sprintf("command (%s) failed with exit code (%d)", e.Cmd, e.ExitCode)
}

// Execute runs the program, captures stdout and stderr, and returns them.
func Execute(program string, args ...string) (stdout string, stderr string, err error) {
	return NewExecBuilder(program, args...).
		LogLevel(LogDisabledLevel, LogDisabledLevel).
		ExecuteCaptureOutput()
}

// ExecuteLive runs the program, streaming its output to the log as it runs.
// When squashErrors is set, stderr is logged at debug level instead of warn
// (for tools with a noisy stderr).
func ExecuteLive(squashErrors bool, program string, args ...string) error {
	stderrLevel := logrus.WarnLevel
	if squashErrors {
		stderrLevel = logrus.DebugLevel
	}

	return NewExecBuilder(program, args...).
		LogLevel(logrus.DebugLevel, stderrLevel).
		Execute()
}

// ExecBuilder configures a single program execution.
type ExecBuilder struct {
	program          string
	args             []string
	env              []string
	stdin            string
	workingDirectory string
	stdoutLogLevel   logrus.Level
	stderrLogLevel   logrus.Level
	stdoutCallback   func(line string)
	errorStderrLines int
}

// NewExecBuilder returns an ExecBuilder that logs stdout at debug and stderr
// at warn level.
func NewExecBuilder(program string, args ...string) ExecBuilder {
	return ExecBuilder{
		program:          program,
		args:             args,
		stdoutLogLevel:   logrus.DebugLevel,
		stderrLogLevel:   logrus.WarnLevel,
		errorStderrLines: DefaultErrorStderrLines,
	}
}

// Env sets the environment of the process. An empty slice inherits the
// parent environment.
func (b ExecBuilder) Env(env []string) ExecBuilder {
	b.env = env
	return b
}

// Stdin provides the string written to the process's stdin.
func (b ExecBuilder) Stdin(stdin string) ExecBuilder {
	b.stdin = stdin
	return b
}

// WorkingDirectory sets the working directory of the process.
func (b ExecBuilder) WorkingDirectory(dir string) ExecBuilder {
	b.workingDirectory = dir
	return b
}

// LogLevel sets the log levels for the stdout and stderr streams.
func (b ExecBuilder) LogLevel(stdoutLevel, stderrLevel logrus.Level) ExecBuilder {
	b.stdoutLogLevel = stdoutLevel
	b.stderrLogLevel = stderrLevel
	return b
}

// ErrorStderrLines sets how many trailing stderr lines are attached to an
// ExecError.
func (b ExecBuilder) ErrorStderrLines(lines int) ExecBuilder {
	b.errorStderrLines = lines
	return b
}

// StdoutCallback invokes the callback for every stdout line.
func (b ExecBuilder) StdoutCallback(callback func(line string)) ExecBuilder {
	b.stdoutCallback = callback
	return b
}

// Execute runs the program, streaming output to the log.
func (b ExecBuilder) Execute() error {
	_, _, err := b.run(false)
	return err
}

// ExecuteCaptureOutput runs the program and captures stdout and stderr.
func (b ExecBuilder) ExecuteCaptureOutput() (stdout string, stderr string, err error) {
	return b.run(true)
}

func (b ExecBuilder) run(capture bool) (stdout string, stderr string, err error) {
	logger.Log.Debugf("Executing: %s %s", b.program, strings.Join(b.args, " "))

	cmd := exec.Command(b.program, b.args...)
	cmd.Dir = b.workingDirectory
	if len(b.env) > 0 {
		cmd.Env = b.env
	}
	if b.stdin != "" {
		cmd.Stdin = strings.NewReader(b.stdin)
	}

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return "", "", fmt.Errorf("failed to create stdout pipe:\n%w", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return "", "", fmt.Errorf("failed to create stderr pipe:\n%w", err)
	}

	err = cmd.Start()
	if err != nil {
		return "", "", fmt.Errorf("failed to start (%s):\n%w", b.program, err)
	}

	var wg sync.WaitGroup
	var stdoutBuilder, stderrBuilder strings.Builder
	trailingStderr := newTailBuffer(b.errorStderrLines)

	wg.Add(2)
	go func() {
		defer wg.Done()
		b.consumeStream(stdoutPipe, b.stdoutLogLevel, b.stdoutCallback, capture, &stdoutBuilder, nil)
	}()
	go func() {
		defer wg.Done()
		b.consumeStream(stderrPipe, b.stderrLogLevel, nil, capture, &stderrBuilder, trailingStderr)
	}()
	wg.Wait()

	err = cmd.Wait()
	if err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}

		return stdoutBuilder.String(), stderrBuilder.String(), &ExecError{
			Cmd:      b.program,
			Args:     b.args,
			ExitCode: exitCode,
			Stderr:   trailingStderr.String(),
		}
	}

	return stdoutBuilder.String(), stderrBuilder.String(), nil
}

func (b ExecBuilder) consumeStream(stream io.Reader, level logrus.Level, callback func(string), capture bool,
	builder *strings.Builder, tail *tailBuffer,
) {
	scanner := bufio.NewScanner(stream)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if level != LogDisabledLevel {
			logger.Log.Log(level, line)
		}
		if callback != nil {
			callback(line)
		}
		if capture {
			builder.WriteString(line)
			builder.WriteString("\n")
		}
		if tail != nil {
			tail.add(line)
		}
	}
}

// tailBuffer keeps the last N lines written to it.
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	lines []string
}

func newTailBuffer(limit int) *tailBuffer {
	return &tailBuffer{limit: limit}
}

func (t *tailBuffer) add(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.lines = append(t.lines, line)
	if t.limit > 0 && len(t.lines) > t.limit {
		t.lines = t.lines[len(t.lines)-t.limit:]
	}
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	return strings.Join(t.lines, "\n")
}
