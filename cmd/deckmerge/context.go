package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"strings"
	"sync"

	"github.com/joho/godotenv"

	"github.com/brunobiangulo/deckmerge"
)

type globalFlags struct {
	config  string
	variant string
	envFile string
	verbose bool
}

type commandContext struct {
	flags *globalFlags

	configOnce sync.Once
	config     deckmerge.Config
	configErr  error
}

func newCommandContext(flags *globalFlags) *commandContext {
	return &commandContext{flags: flags}
}

func (c *commandContext) setupLogging(w io.Writer) {
	level := slog.LevelWarn
	if c.flags.verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}

// ensureConfig loads the .env file, then the config file or preset, then
// DECKMERGE_* overrides. The result is cached for the command's lifetime.
func (c *commandContext) ensureConfig() (deckmerge.Config, error) {
	c.configOnce.Do(func() {
		if env := strings.TrimSpace(c.flags.envFile); env != "" {
			if err := godotenv.Load(env); err != nil && !errors.Is(err, fs.ErrNotExist) {
				c.configErr = fmt.Errorf("loading %s: %w", env, err)
				return
			}
		}

		var cfg deckmerge.Config
		var err error
		switch {
		case strings.TrimSpace(c.flags.config) != "":
			cfg, err = deckmerge.LoadConfig(strings.TrimSpace(c.flags.config))
		case c.flags.variant != "":
			cfg, err = deckmerge.ConfigForVariant(c.flags.variant)
		default:
			cfg = deckmerge.DefaultConfig()
		}
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.ApplyEnv(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// engine builds an engine from the loaded configuration. An explicit
// template on the command line stands in for the bundled one.
func (c *commandContext) engine(explicitTemplate bool) (deckmerge.Engine, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	if explicitTemplate {
		cfg.AllowTemplateUpload = true
	}
	return deckmerge.New(cfg)
}
