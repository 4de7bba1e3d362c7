package debug

import (
	"fmt"
	"io"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Debug levels
const (
	LevelOff     = 0 // No output
	LevelInfo    = 1 // Important info (sessions, final pictures)
	LevelLive    = 2 // Live info (state changes, pictures taken)
	LevelVerbose = 3 // Verbose (settings, commands, steps)
	LevelTrace   = 4 // Trace (GPIO, very low level)
)

var (
	mu      sync.RWMutex
	level   int
	logger  = zap.NewNop()
	outputs []io.Writer
)

// Init initializes the debug system with a level (0-4).
// 0 = no output
// 1 = important info (session start/end, final picture)
// 2 = live info (state changes, pictures taken)
// 3 = verbose (camera arguments, commands, steps)
// 4 = trace (GPIO, very low level)
func Init(debugLevel int) {
	mu.Lock()
	defer mu.Unlock()
	level = debugLevel
	outputs = []io.Writer{os.Stdout}
	logger = build(level, outputs)
}

// SetOutput replaces the log destinations, e.g. to tee into the web panel.
func SetOutput(w ...io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	outputs = w
	logger = build(level, outputs)
}

// SetLogger installs a ready-made zap logger (tests use an observer core).
func SetLogger(l *zap.Logger, debugLevel int) {
	mu.Lock()
	defer mu.Unlock()
	level = debugLevel
	logger = l
}

func build(lvl int, w []io.Writer) *zap.Logger {
	if lvl <= LevelOff || len(w) == 0 {
		return zap.NewNop()
	}

	enc := zap.NewDevelopmentEncoderConfig()
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	enc.EncodeLevel = zapcore.CapitalLevelEncoder
	enc.NameKey = "logger"

	syncers := make([]zapcore.WriteSyncer, 0, len(w))
	for _, out := range w {
		syncers = append(syncers, zapcore.AddSync(out))
	}

	minLevel := zapcore.InfoLevel
	if lvl >= LevelVerbose {
		minLevel = zapcore.DebugLevel
	}
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(enc),
		zapcore.NewMultiWriteSyncer(syncers...),
		zap.NewAtomicLevelAt(minLevel),
	)
	return zap.New(core).Named("pimaton")
}

func current() (*zap.Logger, int) {
	mu.RLock()
	defer mu.RUnlock()
	return logger, level
}

// Logger returns the underlying zap logger.
func Logger() *zap.Logger {
	l, _ := current()
	return l
}

// Level returns the current debug level.
func Level() int {
	_, lvl := current()
	return lvl
}

// IsEnabled returns true if debug level is >= the requested level.
func IsEnabled(minLevel int) bool {
	return Level() >= minLevel
}

// Sync flushes buffered entries.
func Sync() {
	l, _ := current()
	_ = l.Sync()
}

// --- Level 1 functions (Info): important info ---

// Info prints a level 1 message (important info).
func Info(format string, args ...interface{}) {
	if l, lvl := current(); lvl >= LevelInfo {
		l.Info(fmt.Sprintf(format, args...))
	}
}

// Summary prints an important summary (level 1).
func Summary(title string) {
	if l, lvl := current(); lvl >= LevelInfo {
		l.Info("═══════════════════════════════════════")
		l.Info("  " + title)
		l.Info("═══════════════════════════════════════")
	}
}

// Session prints the start of a capture session (level 1).
func Session(key string, pictures int) {
	if l, lvl := current(); lvl >= LevelInfo {
		l.Info("session started", zap.String("key", key), zap.Int("pictures", pictures))
	}
}

// Value prints a named value in formatted form (level 1).
func Value(name string, value interface{}) {
	if l, lvl := current(); lvl >= LevelInfo {
		l.Info("value", zap.String("name", name), zap.Any("value", value))
	}
}

// --- Level 2 functions (Live): real-time info ---

// Live prints a level 2 message (live info).
func Live(format string, args ...interface{}) {
	if l, lvl := current(); lvl >= LevelLive {
		l.Info(fmt.Sprintf(format, args...), zap.String("stage", "live"))
	}
}

// State prints a controller state change (level 2).
func State(state string) {
	if l, lvl := current(); lvl >= LevelLive {
		l.Info("state", zap.String("state", state))
	}
}

// Shot prints a photo capture (level 2).
func Shot(index, total int, filename string) {
	if l, lvl := current(); lvl >= LevelLive {
		l.Info("picture taken",
			zap.Int("index", index),
			zap.Int("total", total),
			zap.String("file", filename),
		)
	}
}

// --- Level 3 functions (Verbose): everything ---

// Verbose prints a level 3 message (verbose).
func Verbose(format string, args ...interface{}) {
	if l, lvl := current(); lvl >= LevelVerbose {
		l.Debug(fmt.Sprintf(format, args...))
	}
}

// Printf is an alias for Verbose.
func Printf(format string, args ...interface{}) {
	Verbose(format, args...)
}

// PrintStruct prints a struct in formatted form (level 3).
func PrintStruct(name string, v interface{}) {
	if l, lvl := current(); lvl >= LevelVerbose {
		l.Debug(name, zap.String("value", fmt.Sprintf("%+v", v)))
	}
}

// Section prints a section separator (level 3).
func Section(name string) {
	if l, lvl := current(); lvl >= LevelVerbose {
		l.Debug("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		l.Debug("  " + name)
		l.Debug("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	}
}

// Step prints a numbered step (level 3).
func Step(num int, description string) {
	if l, lvl := current(); lvl >= LevelVerbose {
		l.Debug(description, zap.Int("step", num))
	}
}

// Command prints an external command about to run (level 3).
func Command(name string, args []string) {
	if l, lvl := current(); lvl >= LevelVerbose {
		l.Debug("exec", zap.String("command", name), zap.Strings("args", args))
	}
}

// --- Level 4 functions (Trace): very low level ---

// Trace prints a level 4 message (trace).
func Trace(format string, args ...interface{}) {
	if l, lvl := current(); lvl >= LevelTrace {
		l.Debug(fmt.Sprintf(format, args...), zap.String("stage", "trace"))
	}
}

// GPIO prints a GPIO operation (level 4).
func GPIO(operation string, pin int, value interface{}) {
	if l, lvl := current(); lvl >= LevelTrace {
		l.Debug("gpio",
			zap.String("op", operation),
			zap.Int("pin", pin),
			zap.Any("value", value),
		)
	}
}

// --- General functions ---

// Warn prints a warning (level 1+).
func Warn(format string, args ...interface{}) {
	if l, lvl := current(); lvl >= LevelInfo {
		l.Warn(fmt.Sprintf(format, args...))
	}
}

// Error prints a debug error (level 1+).
func Error(err error) {
	if l, lvl := current(); lvl >= LevelInfo {
		l.Error("error", zap.Error(err))
	}
}
