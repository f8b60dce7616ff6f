package log

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/weaveworks/common/logging"
)

var (
	Logger = log.NewNopLogger()
)

type Config struct {
	LogFormat logging.Format    `yaml:"log_format"`
	LogLevel  logging.Level     `yaml:"log_level"`
	Log       logging.Interface `yaml:"-"`
}

func (c *Config) RegisterFlags(f *flag.FlagSet) {
	c.LogFormat.RegisterFlags(f)
	c.LogLevel.RegisterFlags(f)
}

// InitLogger replaces the global Logger and fills cfg.Log, which the HTTP
// request logging middleware writes to.
func InitLogger(cfg *Config) {
	l := newBasicLogger(cfg.LogFormat, os.Stderr)

	Logger = level.NewFilter(log.With(l, "caller", log.DefaultCaller), cfg.LogLevel.Gokit)
	cfg.Log = logging.GoKit(level.NewFilter(log.With(l, "caller", log.Caller(6)), cfg.LogLevel.Gokit))
}

func newBasicLogger(format logging.Format, w io.Writer) log.Logger {
	var logger log.Logger
	if format.String() == "json" {
		logger = log.NewJSONLogger(log.NewSyncWriter(w))
	} else {
		logger = log.NewLogfmtLogger(log.NewSyncWriter(w))
	}

	return log.With(logger, "ts", log.DefaultTimestampUTC)
}

func CheckFatal(location string, err error) {
	if err != nil {
		logger := level.Error(Logger)
		if location != "" {
			logger = log.With(logger, "msg", "error "+location)
		}

		_ = logger.Log("err", fmt.Sprintf("%+v", err))
		os.Exit(1)
	}
}

// RetryableLogger adapts a go-kit logger to retryablehttp.LeveledLogger.
type RetryableLogger struct {
	log log.Logger
}

func NewRetryableLogger(l log.Logger) *RetryableLogger {
	return &RetryableLogger{log: log.With(l, "component", "http_client")}
}

func (r *RetryableLogger) Error(msg string, keysAndValues ...interface{}) {
	_ = level.Error(r.log).Log(append([]interface{}{"msg", msg}, keysAndValues...)...)
}

func (r *RetryableLogger) Info(msg string, keysAndValues ...interface{}) {
	_ = level.Info(r.log).Log(append([]interface{}{"msg", msg}, keysAndValues...)...)
}

func (r *RetryableLogger) Debug(msg string, keysAndValues ...interface{}) {
	_ = level.Debug(r.log).Log(append([]interface{}{"msg", msg}, keysAndValues...)...)
}

func (r *RetryableLogger) Warn(msg string, keysAndValues ...interface{}) {
	_ = level.Warn(r.log).Log(append([]interface{}{"msg", msg}, keysAndValues...)...)
}
