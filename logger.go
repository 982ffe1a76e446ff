package jobsched

import (
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger wraps logrus.Logger with a custom Formatter that renders
// exactly the wire format mandated by §6:
//
//	YYYY-MM-DD.HH:MM:SS|LEVEL|[FUNCTION|]MESSAGE
//
// with \r and \n inside the message escaped to the literal two-
// character sequences \r and \n. Grounded on original_source/
// logger.cpp's current_timestamp/level_to_string/write.
type Logger struct {
	l *logrus.Logger
}

// NewLogger returns a Logger that writes wire-format records to w,
// dropping records below level (parsed with logrus.ParseLevel). It opens
// no file itself; the caller supplies the writer. An unparseable level
// is returned as an error.
func NewLogger(w io.Writer, level string) (*Logger, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, err
	}

	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(lvl)
	l.SetFormatter(&wireFormatter{})

	return &Logger{l: l}, nil
}

func (lg *Logger) Debug(msg string) { lg.l.Debug(msg) }
func (lg *Logger) Info(msg string)  { lg.l.Info(msg) }
func (lg *Logger) Warn(msg string)  { lg.l.Warn(msg) }
func (lg *Logger) Error(msg string) { lg.l.Error(msg) }

// WithFunction logs with the optional FUNCTION column §6 allows.
func (lg *Logger) WithFunction(fn string) *logrus.Entry {
	return lg.l.WithField("function", fn)
}

// wireFormatter is the logrus.Formatter that owns the exact on-disk
// shape of a log line. It never lets logrus's default TextFormatter or
// JSONFormatter leak through — the format is an external contract.
type wireFormatter struct{}

func (f *wireFormatter) Format(e *logrus.Entry) ([]byte, error) {
	var b strings.Builder

	b.WriteString(e.Time.Format("2006-01-02.15:04:05"))
	b.WriteByte('|')
	b.WriteString(strings.ToUpper(e.Level.String()))
	b.WriteByte('|')

	if fn, ok := e.Data["function"]; ok {
		fmt.Fprintf(&b, "%v|", fn)
	}

	b.WriteString(escapeMessage(e.Message))
	b.WriteByte('\n')

	return []byte(b.String()), nil
}

// escapeMessage replaces literal CR and LF with the two-character
// sequences \r and \n so a message can never fabricate a second
// record (§6).
func escapeMessage(s string) string {
	s = strings.ReplaceAll(s, "\r", `\r`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	return s
}
