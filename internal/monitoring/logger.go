// Package monitoring holds the coronafit binary's process-level logger.
package monitoring

import (
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// FileOptions configures the rotating log file.
type FileOptions struct {
	Filename   string
	MaxSizeMB  int
	MaxBackups int
	// Console receives every line as well; nil means os.Stderr.
	Console io.Writer
}

// Open returns the writer for log output: the console alone when no file
// is configured, otherwise the console plus a size-rotated file. The
// closer releases the file.
func Open(opts FileOptions) (io.Writer, io.Closer) {
	console := opts.Console
	if console == nil {
		console = os.Stderr
	}
	if opts.Filename == "" {
		return console, io.NopCloser(nil)
	}
	lj := &lumberjack.Logger{
		Filename:   opts.Filename,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
	}
	return io.MultiWriter(console, lj), lj
}

// UseWriter routes Logf to w with the standard timestamp prefix.
func UseWriter(w io.Writer) {
	l := log.New(w, "", log.LstdFlags|log.Lmicroseconds)
	SetLogger(l.Printf)
}
