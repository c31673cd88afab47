package logger

import "sync"

// Backend is a destination for log records. The engine ships with a console
// backend; additional backends can be registered through Init.
type Backend interface {
	Debug(message string, keyvals ...any)
	Info(message string, keyvals ...any)
	Warn(message string, keyvals ...any)
	Error(message string, keyvals ...any)
	Fatal(message string, keyvals ...any)
}

var (
	mu       sync.RWMutex
	backends []Backend
)

// Init replaces the set of active backends. It must be called before any
// logging functions take effect; calls on an uninitialized logger are no-ops.
func Init(bs ...Backend) {
	mu.Lock()
	defer mu.Unlock()
	backends = bs
}

func dispatch(fn func(Backend)) {
	mu.RLock()
	defer mu.RUnlock()
	for _, b := range backends {
		fn(b)
	}
}

// Debug writes a message at DEBUG level to all active backends.
func Debug(message string, keyvals ...any) {
	dispatch(func(b Backend) { b.Debug(message, keyvals...) })
}

// Info writes a message at INFO level to all active backends.
func Info(message string, keyvals ...any) {
	dispatch(func(b Backend) { b.Info(message, keyvals...) })
}

// Warn writes a message at WARN level to all active backends.
func Warn(message string, keyvals ...any) {
	dispatch(func(b Backend) { b.Warn(message, keyvals...) })
}

// Error writes a message at ERROR level to all active backends.
func Error(message string, keyvals ...any) {
	dispatch(func(b Backend) { b.Error(message, keyvals...) })
}

// Fatal writes a message at FATAL level and terminates the program.
func Fatal(message string, keyvals ...any) {
	dispatch(func(b Backend) { b.Fatal(message, keyvals...) })
}
