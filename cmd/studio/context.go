package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"

	"genstudio/internal/clientcfg"
	"genstudio/internal/studio"
)

type commandContext struct {
	configFlag *string
	verbose    *bool

	configOnce sync.Once
	config     *clientcfg.Config
	configErr  error
}

func newCommandContext(configFlag *string, verbose *bool) *commandContext {
	return &commandContext{configFlag: configFlag, verbose: verbose}
}

func (c *commandContext) ensureConfig() (*clientcfg.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		c.config, c.configErr = clientcfg.Load(path)
	})
	return c.config, c.configErr
}

func (c *commandContext) logger() zerolog.Logger {
	cfg, _ := c.ensureConfig()
	format, level := "auto", "info"
	if cfg != nil {
		format, level = cfg.Logging.Format, cfg.Logging.Level
	}
	if c.verbose != nil && *c.verbose {
		level = "debug"
	}
	return newLogger(os.Stderr, format, level)
}

// withStudio opens a session bound to SIGINT/SIGTERM and closes it afterwards.
func (c *commandContext) withStudio(fn func(context.Context, *studio.Studio) error, opts ...studio.Option) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := studio.New(cfg, c.logger(), opts...)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(ctx, s)
}

func newLogger(out io.Writer, format, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	useConsole := format == "console"
	if format == "" || format == "auto" {
		useConsole = isTerminal(out)
	}
	if useConsole {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger()
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
