// Package log is chainstorectl's human-facing terminal logger: leveled,
// colored, readline-aware. Only the four levels the CLI emits exist here;
// machine-readable engine telemetry goes through zap instead (see
// internal/telemetry).
package log

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/chzyer/readline"
	"github.com/fatih/color"
)

const (
	INFO = iota
	WARNING
	ERROR
	FATAL
)

var labels = map[int]string{
	INFO:    "inf",
	WARNING: "war",
	ERROR:   "err",
	FATAL:   "!!!",
}

var (
	mtx    sync.Mutex
	stdout io.Writer = color.Output
	g_rl   *readline.Instance
	mirror *os.File
)

// SetOutput redirects terminal output.
func SetOutput(o io.Writer) {
	mtx.Lock()
	defer mtx.Unlock()
	stdout = o
}

// SetReadline registers the REPL instance so its prompt is redrawn after a
// log line lands from another goroutine.
func SetReadline(rl *readline.Instance) {
	mtx.Lock()
	defer mtx.Unlock()
	g_rl = rl
}

// MirrorToFile appends an uncolored copy of every subsequent log line to
// path.
func MirrorToFile(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	mtx.Lock()
	defer mtx.Unlock()
	if mirror != nil {
		mirror.Close()
	}
	mirror = f
	return nil
}

func Info(format string, args ...interface{}) {
	write(INFO, format, args...)
}

func Warning(format string, args ...interface{}) {
	write(WARNING, format, args...)
}

func Error(format string, args ...interface{}) {
	write(ERROR, format, args...)
}

func Fatal(format string, args ...interface{}) {
	write(FATAL, format, args...)
}

func write(lvl int, format string, args ...interface{}) {
	mtx.Lock()
	defer mtx.Unlock()

	t := time.Now()
	stamp := fmt.Sprintf("%02d:%02d:%02d", t.Hour(), t.Minute(), t.Second())
	msg := fmt.Sprintf(format, args...)

	fmt.Fprintf(stdout, "\r[%s] [%s] %s\n", stamp, sign(lvl).Sprint(labels[lvl]), body(lvl).Sprint(msg))
	if mirror != nil {
		fmt.Fprintf(mirror, "[%s] [%s] %s\n", stamp, labels[lvl], msg)
	}
	if g_rl != nil {
		g_rl.Refresh()
	}
}

func sign(lvl int) *color.Color {
	switch lvl {
	case WARNING:
		return color.New(color.FgBlack, color.BgYellow)
	case ERROR:
		return color.New(color.FgWhite, color.BgRed)
	case FATAL:
		return color.New(color.FgBlack, color.BgRed)
	}
	return color.New(color.FgGreen, color.BgBlack)
}

func body(lvl int) *color.Color {
	switch lvl {
	case ERROR:
		return color.New(color.Reset, color.FgRed)
	case FATAL:
		return color.New(color.Reset, color.FgRed, color.Bold)
	}
	return color.New(color.Reset)
}
