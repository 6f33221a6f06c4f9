package logging

import (
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

var (
	defaultLogger     zerolog.Logger
	defaultLoggerOnce sync.Once

	subsystemLoggers = make(map[string]*zerolog.Logger)
	subsystemMutex   sync.Mutex
)

// GetDefaultLogger returns the process-wide root logger. The log level is
// taken from the LOG_LEVEL environment variable (default: info).
func GetDefaultLogger() *zerolog.Logger {
	defaultLoggerOnce.Do(initDefaultLogger)
	return &defaultLogger
}

// GetSubsystemLogger returns a cached logger tagged with the given subsystem
// name. Subsequent calls with the same name return the same instance.
func GetSubsystemLogger(name string) *zerolog.Logger {
	subsystemMutex.Lock()
	defer subsystemMutex.Unlock()

	if l, ok := subsystemLoggers[name]; ok {
		return l
	}

	l := GetDefaultLogger().With().Str("subsystem", name).Logger()
	subsystemLoggers[name] = &l
	return &l
}

func initDefaultLogger() {
	level := zerolog.InfoLevel
	if env := os.Getenv("LOG_LEVEL"); env != "" {
		if parsed, err := zerolog.ParseLevel(strings.ToLower(env)); err == nil {
			level = parsed
		}
	}

	var out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05.000"}

	defaultLogger = zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Logger()
}
