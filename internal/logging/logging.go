package logging

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is shared by every package. It discards output until Init runs so
// that tests and library callers stay quiet.
var Logger = newDiscardLogger()

var once sync.Once

type Formatter struct {
	Source string
}

func (f *Formatter) Format(entry *logrus.Entry) ([]byte, error) {
	b := entry.Buffer
	if b == nil {
		b = &bytes.Buffer{}
	}

	fmt.Fprintf(b, "Date: %s, Time: %s, ", entry.Time.Format("2006-01-02"), entry.Time.Format("15:04:05"))
	fmt.Fprintf(b, "Event Source: %s, ", f.Source)
	fmt.Fprintf(b, "Event Type: %s, ", strings.ToUpper(entry.Level.String()))
	fmt.Fprintf(b, "Event ID: %s, ", uuid.NewString())
	fmt.Fprintf(b, "Message: %s", entry.Message)

	for key, value := range entry.Data {
		fmt.Fprintf(b, ", %s=%v", key, value)
	}
	if entry.HasCaller() {
		fmt.Fprintf(b, ", Location: %s:%d", filepath.Base(entry.Caller.File), entry.Caller.Line)
	}
	b.WriteByte('\n')
	return b.Bytes(), nil
}

type Options struct {
	Path   string
	Level  string
	Source string
}

// Init points the shared logger at a rotating file. Only the first call has
// an effect.
func Init(opts Options) error {
	var initErr error
	once.Do(func() {
		level := logrus.InfoLevel
		if opts.Level != "" {
			parsed, err := logrus.ParseLevel(opts.Level)
			if err != nil {
				initErr = fmt.Errorf("parse log level: %w", err)
				return
			}
			level = parsed
		}

		source := opts.Source
		if source == "" {
			source = "taskdeck"
		}

		var out io.Writer = io.Discard
		if opts.Path != "" {
			out = &lumberjack.Logger{
				Filename:   opts.Path,
				MaxSize:    10,
				MaxBackups: 3,
				MaxAge:     28,
				Compress:   true,
			}
		}

		Logger.SetOutput(out)
		Logger.SetFormatter(&Formatter{Source: source})
		Logger.SetLevel(level)
		Logger.SetReportCaller(level >= logrus.DebugLevel)
		Logger.WithField("path", opts.Path).Info("logger initialized")
	})
	return initErr
}

func newDiscardLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
