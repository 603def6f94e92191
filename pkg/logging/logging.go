package logging

import (
	"os"

	"github.com/phuslu/log"

	"github.com/carbonix/aploghandler/pkg/config"
)

// Init configures the global logger from the logging config. Console output
// goes to stderr so CSV dumps on stdout stay clean.
func Init(cfg config.LoggingConfig) {
	level := log.ParseLevel(cfg.Level)

	var console, file bool
	for _, out := range cfg.Output {
		switch out {
		case "stdout", "console":
			console = true
		case "file":
			file = true
		}
	}
	if !console && !file {
		console = true
	}

	var writers log.MultiEntryWriter
	if console {
		writers = append(writers, &log.ConsoleWriter{
			ColorOutput: log.IsTerminal(os.Stderr.Fd()),
			Writer:      os.Stderr,
		})
	}
	if file {
		name := cfg.File
		if name == "" {
			name = "aploghandler.log"
		}
		writers = append(writers, &log.FileWriter{
			Filename:   name,
			MaxSize:    100 << 20,
			MaxBackups: 3,
			LocalTime:  true,
		})
	}

	log.DefaultLogger = log.Logger{
		Level:      level,
		TimeFormat: "15:04:05",
		Writer:     &writers,
	}
}
