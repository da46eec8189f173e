package config

import (
	"io"
	"log"
	"os"
	"path/filepath"
)

// LogWriter is shared by the std logger, gin and gorm.
var LogWriter io.Writer = os.Stdout

// LogPath is the file InitLogging opened, or empty when logging only to stdout.
var LogPath string

const logFileName = "admissions-api.log"

// InitLogging tees the standard logger into dir/admissions-api.log. The returned
// func closes the file; it is safe to call when the file could not be opened.
func InitLogging(dir string) func() {
	if dir == "" {
		dir = "logs"
	}
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		log.Printf("warning: failed to create log directory %s: %v", dir, err)
		return func() {}
	}

	path := filepath.Join(dir, logFileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		log.Printf("warning: failed to open log file %s: %v", path, err)
		return func() {}
	}

	LogWriter = io.MultiWriter(os.Stdout, f)
	LogPath = path
	log.SetOutput(LogWriter)
	return func() {
		log.SetOutput(os.Stdout)
		LogWriter = os.Stdout
		LogPath = ""
		_ = f.Close()
	}
}
