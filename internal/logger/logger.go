// Licensed under the MIT License.

// Package logger provides the shared logrus logger used by every tool in
// this repository. The logger always writes to stderr; a secondary log file
// capturing all levels can be attached at init time.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
)

// Log is the shared logger instance. It is valid after any of the Init
// functions have been called.
var Log *logrus.Logger

const (
	LevelsFlag         = "log-level"
	LevelsHelp         = "Minimum log level to print to stderr."
	LevelsPlaceholder  = "(panic|fatal|error|warn|info|debug|trace)"
	FileFlag           = "log-file"
	FileFlagHelp       = "Also write all log messages (trace level) to a file."
	ColorFlag          = "log-color"
	ColorFlagHelp      = "Color setting for stderr log messages."
	ColorsPlaceholder  = "(always|auto|never)"
	defaultStderrLevel = logrus.InfoLevel
)

const (
	colorAlways = "always"
	colorAuto   = "auto"
	colorNever  = "never"
)

// LogFlags holds the values of the shared command line log flags.
type LogFlags struct {
	LogColor *string
	LogFile  *string
	LogLevel *string
}

// Levels returns the accepted values for the log level flag.
func Levels() []string {
	levels := make([]string, 0, len(logrus.AllLevels))
	for _, level := range logrus.AllLevels {
		levels = append(levels, level.String())
	}
	return levels
}

// Colors returns the accepted values for the log color flag.
func Colors() []string {
	return []string{colorAlways, colorAuto, colorNever}
}

// InitStderrLog initializes the logger with stderr output only and the
// default log level. Used by tests and tools without log flags.
func InitStderrLog() {
	initLogger()
}

// InitBestEffort initializes the logger from the given flags. Invalid flag
// values fall back to defaults instead of failing, so that logging is
// available as early as possible.
func InitBestEffort(flags *LogFlags) {
	initLogger()

	if flags == nil {
		return
	}

	if flags.LogLevel != nil && *flags.LogLevel != "" {
		err := SetStderrLogLevel(*flags.LogLevel)
		if err != nil {
			Log.Warnf("Failed to set log level: %v", err)
		}
	}

	if flags.LogColor != nil && *flags.LogColor != "" {
		setColorMode(*flags.LogColor)
	}

	if flags.LogFile != nil && *flags.LogFile != "" {
		err := AddFileOutput(*flags.LogFile)
		if err != nil {
			Log.Warnf("Failed to attach log file (%s): %v", *flags.LogFile, err)
		}
	}
}

// SetStderrLogLevel changes the minimum level written to stderr.
func SetStderrLogLevel(level string) error {
	parsedLevel, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		return fmt.Errorf("invalid log level (%s):\n%w", level, err)
	}

	Log.SetLevel(parsedLevel)
	return nil
}

// AddFileOutput attaches a file capturing all log levels, regardless of the
// stderr level.
func AddFileOutput(path string) error {
	logFile, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file (%s):\n%w", path, err)
	}

	Log.AddHook(&fileHook{
		writer: logFile,
		formatter: &logrus.TextFormatter{
			FullTimestamp: true,
			DisableColors: true,
		},
	})
	return nil
}

func initLogger() {
	Log = logrus.New()
	Log.SetOutput(os.Stderr)
	Log.SetLevel(defaultStderrLevel)
	Log.SetFormatter(&stderrFormatter{})
}

func setColorMode(mode string) {
	switch mode {
	case colorAlways:
		color.NoColor = false
	case colorNever:
		color.NoColor = true
	case colorAuto:
		// fatih/color auto-detects the terminal by default.
	}
}

// stderrFormatter prints "time level: message" with the level colored
// according to its severity.
type stderrFormatter struct {
}

func (f *stderrFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	levelText := entry.Level.String()

	switch entry.Level {
	case logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel:
		levelText = color.RedString(levelText)
	case logrus.WarnLevel:
		levelText = color.YellowString(levelText)
	case logrus.DebugLevel, logrus.TraceLevel:
		levelText = color.CyanString(levelText)
	}

	message := fmt.Sprintf("%s [%s] %s\n", entry.Time.Format("2006-01-02T15:04:05Z07:00"), levelText, entry.Message)
	return []byte(message), nil
}

// fileHook mirrors every entry to the attached log file.
type fileHook struct {
	writer    io.Writer
	formatter logrus.Formatter
}

func (h *fileHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *fileHook) Fire(entry *logrus.Entry) error {
	line, err := h.formatter.Format(entry)
	if err != nil {
		return err
	}

	_, err = h.writer.Write(line)
	return err
}
