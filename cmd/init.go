package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/samaelod/paesim/config"
	"github.com/samaelod/paesim/lua"
	"github.com/samaelod/paesim/types"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init <path>",
	Short: "Write the default two-session scenario",
	Long: `Init writes a scenario with the two observed PAE behaviors: a short
burst session and a long burst session aimed at the default AFFCAR.
The format follows the extension: .toml writes TOML, anything else Lua.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		if _, err := os.Stat(path); err == nil && !initForce {
			return fmt.Errorf("%s already exists, use --force to overwrite", path)
		} else if err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return err
			}
		}

		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()

		cfg := types.DefaultConfig()
		if strings.EqualFold(filepath.Ext(path), ".toml") {
			err = config.WriteTOMLScenario(f, cfg)
		} else {
			err = lua.WriteConfig(f, cfg)
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "overwrite an existing file")
}
