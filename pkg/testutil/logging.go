package testutil

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

// Components fall back to the standard logger when none is injected, which
// stays quiet unless the tests run verbosely.
func init() {
	logrus.SetLevel(logrus.TraceLevel)

	for _, arg := range os.Args {
		if arg == "-test.v=true" {
			return
		}
	}
	logrus.StandardLogger().Out = io.Discard
}

// NewLogger returns a component logger that writes nowhere.
func NewLogger(component string) *logrus.Entry {
	log, _ := NewRecordingLogger(component)
	return log
}

// NewRecordingLogger returns a component logger that discards output but
// keeps every entry in the returned hook.
func NewRecordingLogger(component string) (*logrus.Entry, *test.Hook) {
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.TraceLevel)
	return log.WithField("type", component), hook
}
