package logger

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	defaultLogger zerolog.Logger
	once          sync.Once
	mu            sync.RWMutex
)

// Options controls how the process logger is built.
type Options struct {
	Level  string    // debug, info, warn, error
	Format string    // json or console
	Output io.Writer // defaults to os.Stdout
}

// Init initializes the default logger. Only the first call has any effect.
func Init(opts Options) {
	once.Do(func() {
		set(New(opts))
	})
}

// New builds a logger without touching the process default.
func New(opts Options) zerolog.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	if strings.EqualFold(opts.Format, "console") || strings.EqualFold(opts.Format, "text") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	level, err := zerolog.ParseLevel(strings.ToLower(opts.Level))
	if err != nil || opts.Level == "" {
		level = zerolog.InfoLevel
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

func set(l zerolog.Logger) {
	mu.Lock()
	defaultLogger = l
	mu.Unlock()
}

// Get returns the initialized default logger.
// It calls Init() with defaults to ensure the logger is ready before returning it.
func Get() *zerolog.Logger {
	Init(Options{})
	mu.RLock()
	defer mu.RUnlock()
	l := defaultLogger
	return &l
}

// Component returns a child logger tagged with the component name.
func Component(name string) zerolog.Logger {
	return Get().With().Str("component", name).Logger()
}

// Nop returns a disabled logger for tests.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}

// Info logs an informational message using the default logger.
func Info(msg string, kv ...any) {
	Get().Info().Fields(kv).Msg(msg)
}

// Warn logs a warning message using the default logger.
func Warn(msg string, kv ...any) {
	Get().Warn().Fields(kv).Msg(msg)
}

// Error logs an error message using the default logger.
func Error(msg string, err error, kv ...any) {
	Get().Error().Err(err).Fields(kv).Msg(msg)
}

// Debug logs a debug message using the default logger.
func Debug(msg string, kv ...any) {
	Get().Debug().Fields(kv).Msg(msg)
}
