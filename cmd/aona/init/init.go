// Package initcmder provides the init command for initializing a local .aona
// directory in the current working directory.
package initcmder

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aona-labs/aona/pkg/config"
	"github.com/aona-labs/aona/pkg/dotdir"
)

const (
	dirName = ".aona"
)

const initLongDesc string = `Initialize a new .aona/ directory in the current working directory.

Creates a local .aona/ directory that takes precedence over ~/.aona/ for
configuration and the agent key. A config.toml is written from the chosen
preset; an existing config.toml is left untouched.

Presets:
  memory    In-process ledger, nothing to install (default)
  localnet  EVM node at http://localhost:8545 (chain 31337)
  sepolia   Sepolia testnet

With --reset-key the saved agent key (.aona/agent.key) is removed, so the
next agent run generates and saves a new identity.

Examples:
  aona init
  aona init --preset localnet
  aona init --reset-key`

const initShortDesc string = "Initialize a local .aona/ directory"

func NewInitCmd() *cobra.Command {
	var (
		preset   string
		resetKey bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: initShortDesc,
		Long:  initLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInit(cmd.OutOrStdout(), preset, resetKey)
		},
	}

	cmd.Flags().StringVar(&preset, "preset", "",
		fmt.Sprintf("Config preset (%s)", strings.Join(config.ValidPresetNames(), ", ")))
	cmd.Flags().BoolVar(&resetKey, "reset-key", false, "Remove the saved agent key")

	return cmd
}

func runInit(w io.Writer, preset string, resetKey bool) error {
	if preset == "" {
		preset = "memory"
	}
	cfg, err := config.PresetConfig(preset)
	if err != nil {
		return err
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	dir := filepath.Join(cwd, dirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating .aona directory: %w", err)
	}

	if err := writeConfig(w, dir, preset, cfg); err != nil {
		return err
	}

	if resetKey {
		if err := dotdir.NewManager().ClearAgentKey(dir); err != nil {
			return err
		}
		fmt.Fprintf(w, "Removed saved agent key from %s\n", dir)
	}
	return nil
}

func writeConfig(w io.Writer, dir, preset string, cfg *config.Config) error {
	path := filepath.Join(dir, "config.toml")
	if _, err := os.Stat(path); err == nil {
		fmt.Fprintf(w, "Already initialized: %s\n", dir)
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("checking config: %w", err)
	}

	cfger, err := config.NewConfiger(dir)
	if err != nil {
		return err
	}
	if err := cfger.SaveConfig(cfg); err != nil {
		return err
	}

	fmt.Fprintf(w, "Initialized .aona directory with the %s preset: %s\n", preset, dir)
	return nil
}
