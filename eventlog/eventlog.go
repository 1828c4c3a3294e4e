package eventlog

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
)

// Logger is the console side of the run: leveled, with Debug gated behind
// the verbose flag. All workers share one instance.
type Logger struct {
	mu      sync.Mutex
	out     *log.Logger
	verbose bool
}

func New(w io.Writer, verbose bool) *Logger {
	return &Logger{
		out:     log.New(w, "", log.LstdFlags),
		verbose: verbose,
	}
}

// NewStderr is the usual constructor for the CLI.
func NewStderr(verbose bool) *Logger {
	return New(os.Stderr, verbose)
}

func (l *Logger) Infof(format string, args ...any) {
	l.printf("INFO", format, args...)
}

func (l *Logger) Warnf(format string, args ...any) {
	l.printf("WARN", format, args...)
}

func (l *Logger) Errorf(format string, args ...any) {
	l.printf("ERROR", format, args...)
}

func (l *Logger) Debugf(format string, args ...any) {
	if !l.verbose {
		return
	}
	l.printf("DEBUG", format, args...)
}

func (l *Logger) printf(level, format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.out.Printf("[%s] %s", level, fmt.Sprintf(format, args...))
}
