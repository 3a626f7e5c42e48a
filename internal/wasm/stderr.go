package wasm

import (
	"bytes"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"github.com/wasmlm/bindings-go/internal/events"
)

// Engine log lines carry a level marker prefix: "@@ERROR@@text". Lines
// without a marker get the fallback level.
var levelMarkers = []struct {
	prefix string
	level  zerolog.Level
}{
	{"@@DEBUG@@", zerolog.DebugLevel},
	{"@@INFO@@", zerolog.InfoLevel},
	{"@@WARN@@", zerolog.WarnLevel},
	{"@@ERROR@@", zerolog.ErrorLevel},
}

// logTee forwards engine stdout/stderr into the host logger and event hub.
// Writes arrive in arbitrary chunks, so it buffers until a newline. When raw
// is set, every chunk is also copied there untouched.
type logTee struct {
	logger   zerolog.Logger
	hub      *events.Hub
	fallback zerolog.Level
	raw      io.Writer
	buf      []byte
}

func newLogTee(logger zerolog.Logger, hub *events.Hub, fallback zerolog.Level) *logTee {
	return &logTee{logger: logger, hub: hub, fallback: fallback}
}

// Write implements io.Writer. It never reports an error: dropping engine
// output must not fail an engine call.
func (t *logTee) Write(p []byte) (int, error) {
	if t.raw != nil {
		t.raw.Write(p)
	}
	t.buf = append(t.buf, p...)
	for {
		i := bytes.IndexByte(t.buf, '\n')
		if i < 0 {
			break
		}
		t.emit(string(t.buf[:i]))
		t.buf = t.buf[i+1:]
	}
	return len(p), nil
}

// Flush emits any buffered partial line. Call it on shutdown so the
// engine's last words are not lost.
func (t *logTee) Flush() {
	if len(t.buf) == 0 {
		return
	}
	t.emit(string(t.buf))
	t.buf = t.buf[:0]
}

func (t *logTee) emit(line string) {
	line = strings.TrimSuffix(line, "\r")
	if line == "" {
		return
	}
	level, text := splitLevel(line, t.fallback)
	t.logger.WithLevel(level).Str("source", "engine").Msg(text)
	if t.hub != nil {
		t.hub.PublishLog(events.LogEvent{Level: level.String(), Line: text})
	}
}

func splitLevel(line string, fallback zerolog.Level) (zerolog.Level, string) {
	for _, m := range levelMarkers {
		if strings.HasPrefix(line, m.prefix) {
			return m.level, line[len(m.prefix):]
		}
	}
	return fallback, line
}
