package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options come straight from config; zero values fall back to sane defaults.
type Options struct {
	Level  string // debug, info, warn, error
	Format string // "json" or "console"

	// File enables a rotating log file in addition to stderr.
	File       string
	MaxSizeMB  int
	MaxBackups int
}

var Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()

func Init(opts Options) {
	InitWithWriter(opts, os.Stderr)
}

func InitWithWriter(opts Options, w io.Writer) {
	level, err := zerolog.ParseLevel(strings.TrimSpace(opts.Level))
	if err != nil || opts.Level == "" {
		level = zerolog.InfoLevel
	}

	format := strings.TrimSpace(opts.Format)
	if format == "" {
		format = "json"
	}

	if opts.File != "" {
		rotated := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
		}
		w = io.MultiWriter(w, rotated)
	}

	var base zerolog.Logger
	if format == "console" {
		base = zerolog.New(zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.RFC3339,
		})
	} else {
		base = zerolog.New(w)
	}

	Logger = base.With().Timestamp().Logger().Level(level)
	zlog.Logger = Logger
}

// Component returns a child logger tagged with the subsystem name.
func Component(name string) zerolog.Logger {
	return Logger.With().Str("component", name).Logger()
}
