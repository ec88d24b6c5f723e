package observ

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Config selects level, format, and output for the process logger.
type Config struct {
	Level   string `yaml:"level"`    // debug, info, warn, error
	Format  string `yaml:"format"`   // json or text
	Output  string `yaml:"output"`   // stdout, stderr, or a file path
	MaxSize int    `yaml:"max_size"` // MB before rotation when Output is a file
	MaxAge  int    `yaml:"max_age"`  // days to keep rotated files
}

// NewLogger builds the process-wide logrus logger. LOG_LEVEL in the
// environment overrides cfg.Level. File outputs rotate via lumberjack.
func NewLogger(cfg Config) (*logrus.Logger, error) {
	log := logrus.New()

	level := cfg.Level
	if env := os.Getenv("LOG_LEVEL"); env != "" {
		level = env
	}
	if level == "" {
		level = "info"
	}
	lvl, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	log.SetLevel(lvl)

	switch cfg.Format {
	case "text":
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339,
		})
	case "json", "":
		log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	default:
		return nil, fmt.Errorf("invalid log format %q", cfg.Format)
	}

	switch cfg.Output {
	case "stdout", "":
		log.SetOutput(os.Stdout)
	case "stderr":
		log.SetOutput(os.Stderr)
	default:
		maxSize := cfg.MaxSize
		if maxSize == 0 {
			maxSize = 100
		}
		log.SetOutput(&lumberjack.Logger{
			Filename: cfg.Output,
			MaxSize:  maxSize,
			MaxAge:   cfg.MaxAge,
			Compress: true,
		})
	}

	return log, nil
}

// Component returns an entry tagged for one subsystem; every package logs
// through one of these so lines are filterable by component.
func Component(log *logrus.Logger, name string) *logrus.Entry {
	return log.WithField("component", name)
}
