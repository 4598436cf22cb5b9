package app

import (
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Logger is the explicit logger for one invocation. When a log file is
// configured it is opened by NewLogger and released by Close.
type Logger struct {
	*logrus.Logger

	invocation string
	out        io.Writer
	file       *os.File
}

// NewLogger builds a logger writing to out, and to the configured log file
// if any.
func NewLogger(config Config, out io.Writer) (*Logger, error) {
	log := logrus.New()

	switch strings.ToLower(config.LogFormat) {
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	case "text", "":
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, errors.Errorf("unknown log format %q", config.LogFormat)
	}

	l := &Logger{Logger: log, invocation: uuid.NewString(), out: out}
	log.SetOutput(out)

	level, err := logrus.ParseLevel(strings.ToLower(config.LogLevel))
	if err != nil {
		log.WithField("log_level", config.LogLevel).Warn("unknown log level, ignoring")
	} else {
		log.SetLevel(level)
	}

	if config.LogFile != "" {
		if err := l.OpenFile(config.LogFile); err != nil {
			return nil, err
		}
	}

	return l, nil
}

// OpenFile additionally writes to the file at path. It does nothing when a
// log file is already open.
func (l *Logger) OpenFile(path string) error {
	if l.file != nil {
		return nil
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return errors.Wrapf(err, "failed to open log file %s", path)
	}

	l.file = f
	l.SetOutput(io.MultiWriter(l.out, f))
	return nil
}

// Component returns an entry tagged with the component name and the
// invocation id, so lines from concurrent runs sharing a log file can be
// told apart.
func (l *Logger) Component(name string) *logrus.Entry {
	return l.WithFields(logrus.Fields{
		"type":       name,
		"invocation": l.invocation,
	})
}

// Invocation returns the id attached to every component entry.
func (l *Logger) Invocation() string {
	return l.invocation
}

// EnableDebug raises the level to debug unless it is already more verbose.
func (l *Logger) EnableDebug() {
	if !l.IsLevelEnabled(logrus.DebugLevel) {
		l.SetLevel(logrus.DebugLevel)
	}
}

// Close releases the log file. It is safe to call more than once.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}

	f := l.file
	l.file = nil
	l.SetOutput(l.out)
	return f.Close()
}
