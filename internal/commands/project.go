package commands

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/finbot-dev/finbot/internal/app"
	"github.com/finbot-dev/finbot/internal/config"
)

const envFileName = ".env"

// openProject loads the config and secrets in dir and wires the bot.
func openProject(ctx context.Context, dir string, adjust func(*config.Config)) (*app.App, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}
	cfg, err := config.Load(filepath.Join(absDir, config.FileName))
	if err != nil {
		return nil, fmt.Errorf("%w (run finbot init first)", err)
	}
	if adjust != nil {
		adjust(cfg)
	}
	env, err := config.LoadEnv(filepath.Join(absDir, envFileName))
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", envFileName, err)
	}
	return app.New(ctx, cfg, env, app.Options{Dir: absDir})
}
