package httpapi

import (
	"bytes"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	zl "github.com/rs/zerolog/log"
)

// zlog is the structured logger for the HTTP layer. Nil means the zerolog
// global logger.
var zlog *zerolog.Logger

// SetLogger installs a structured logger used by the HTTP layer.
func SetLogger(l zerolog.Logger) { zlog = &l }

func logger() *zerolog.Logger {
	if zlog != nil {
		return zlog
	}
	return &zl.Logger
}

// LogLevel controls per-request logging behavior.
type LogLevel int

const (
	LevelOff LogLevel = iota
	LevelError
	LevelInfo
	LevelDebug
)

func parseLevel(s string) LogLevel {
	switch s {
	case "off", "":
		return LevelOff
	case "error":
		return LevelError
	case "info":
		return LevelInfo
	case "debug":
		return LevelDebug
	default:
		return LevelInfo
	}
}

// LogLevelEnv names the variable holding the default per-request log level.
const LogLevelEnv = "STREAMD_LOG_LEVEL"

var defaultLogLevel = parseLevel(os.Getenv(LogLevelEnv))

// requestLogLevel honors ?log= first, then X-Log-Level, then the default.
func requestLogLevel(r *http.Request) LogLevel {
	if v := r.URL.Query().Get("log"); v != "" {
		if v == "1" {
			return LevelDebug
		}
		return parseLevel(v)
	}
	if v := r.Header.Get("X-Log-Level"); v != "" {
		return parseLevel(v)
	}
	return defaultLogLevel
}

// frameLogger logs every complete non-empty line written to it. It is
// attached next to the response at debug level to trace SSE frames.
type frameLogger struct {
	log *zerolog.Logger
	rid string
	buf []byte
}

func (fl *frameLogger) Write(p []byte) (int, error) {
	fl.buf = append(fl.buf, p...)
	for {
		idx := bytes.IndexByte(fl.buf, '\n')
		if idx < 0 {
			break
		}
		if line := fl.buf[:idx]; len(line) > 0 {
			fl.log.Debug().Str("request_id", fl.rid).Bytes("frame", line).Msg("stream")
		}
		fl.buf = fl.buf[idx+1:]
	}
	return len(p), nil
}

// requestLog emits start/end lines for a streaming request at the level the
// caller asked for.
type requestLog struct {
	lvl   LogLevel
	path  string
	rid   string
	start time.Time
}

func newRequestLog(r *http.Request) *requestLog {
	return &requestLog{
		lvl:   requestLogLevel(r),
		path:  r.URL.Path,
		rid:   middleware.GetReqID(r.Context()),
		start: time.Now(),
	}
}

func (rl *requestLog) begin() {
	if rl.lvl < LevelInfo {
		return
	}
	logger().Info().Str("path", rl.path).Str("request_id", rl.rid).Msg("stream start")
}

func (rl *requestLog) end(status int, err error) {
	switch {
	case err != nil && rl.lvl >= LevelError:
		logger().Error().Str("path", rl.path).Str("request_id", rl.rid).Int("status", status).
			Dur("dur", time.Since(rl.start)).Err(err).Msg("stream end")
	case err == nil && rl.lvl >= LevelInfo:
		logger().Info().Str("path", rl.path).Str("request_id", rl.rid).Int("status", status).
			Dur("dur", time.Since(rl.start)).Msg("stream end")
	}
}
