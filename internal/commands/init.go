package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/finbot-dev/finbot/internal/config"
	"github.com/finbot-dev/finbot/internal/dates"
)

const phrasesFileName = "phrases.yaml"

func newInitCommand() *cobra.Command {
	var storage string
	var transportKind string
	var onCommand string

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new finbot project",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			absDir, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}

			return runInit(cmd, absDir, storage, transportKind, onCommand)
		},
	}

	cmd.Flags().StringVar(&storage, "storage", "sqlite", "ledger storage: memory, sqlite or postgres")
	cmd.Flags().StringVar(&transportKind, "transport", "console", "chat transport: console, telegram or discord")
	cmd.Flags().StringVar(&onCommand, "on-command", "cancel", "what a command does to an open conversation: cancel or reject")

	return cmd
}

func runInit(cmd *cobra.Command, dir, storage, transportKind, onCommand string) error {
	cfgPath := filepath.Join(dir, config.FileName)
	if _, err := os.Stat(cfgPath); err == nil {
		return fmt.Errorf("%s already exists", cfgPath)
	}

	cfg := config.Default()
	cfg.Storage.Driver = storage
	if storage != "sqlite" {
		cfg.Storage.Path = ""
	}
	cfg.Transport.Kind = transportKind
	cfg.Conversation.OnCommand = onCommand
	cfg.Locale.Phrases = phrasesFileName
	if err := cfg.Validate(); err != nil {
		return err
	}

	// Create directory structure.
	for _, d := range []string{"logs", "exports"} {
		if err := os.MkdirAll(filepath.Join(dir, d), 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", d, err)
		}
	}

	// Write finbot.yaml.
	if err := config.Save(cfgPath, cfg); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	// Write the phrase table so it can be edited in place.
	if err := dates.SaveLexicon(filepath.Join(dir, phrasesFileName), dates.DefaultLexicon()); err != nil {
		return err
	}

	// Write .env.example.
	if err := os.WriteFile(filepath.Join(dir, envFileName+".example"), []byte(config.EnvExample), 0o644); err != nil {
		return fmt.Errorf("writing %s.example: %w", envFileName, err)
	}

	// Write .gitignore.
	gitignore := envFileName + "\nfinbot.db\nlogs/\nexports/\n"
	if err := os.WriteFile(filepath.Join(dir, ".gitignore"), []byte(gitignore), 0o644); err != nil {
		return fmt.Errorf("writing .gitignore: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Initialized finbot project at %s (storage: %s, transport: %s)\n", dir, storage, transportKind)
	return nil
}
