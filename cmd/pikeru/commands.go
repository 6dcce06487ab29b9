package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/justyntemme/pikeru/internal/config"
	"github.com/justyntemme/pikeru/internal/fs"
	"github.com/justyntemme/pikeru/internal/logging"
	"github.com/justyntemme/pikeru/internal/store"
	"github.com/justyntemme/pikeru/internal/thumb"
)

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write a default config, backing up any existing one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configPath
			if path == "" {
				path = config.ConfigPath()
			}
			backup, err := config.GenerateConfig(path)
			if err != nil {
				return err
			}
			if backup != "" {
				fmt.Printf("Backed up previous config to %s\n", backup)
			}
			fmt.Printf("Wrote default config to %s\n", path)
			return nil
		},
	})
	return cmd
}

func openStore(cfg config.Config) (*store.DB, error) {
	path := cfg.Descriptions.Database
	if path == "" {
		p, err := store.DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	db := store.NewDB()
	if err := db.Open(path); err != nil {
		return nil, err
	}
	return db, nil
}

func describeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "describe",
		Short: "Manage file descriptions used by search",
	}

	var base string
	importCmd := &cobra.Command{
		Use:   "import <csv>",
		Short: "Import a path,description CSV with a header row",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			defer logging.Sync()

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			if base == "" {
				base = filepath.Dir(args[0])
			}
			db, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			n, err := db.ImportCSV(f, base)
			if err != nil {
				return fmt.Errorf("import %s: %w", args[0], err)
			}
			fmt.Printf("Imported %d descriptions\n", n)
			return nil
		},
	}
	importCmd.Flags().StringVar(&base, "base", "", "Directory relative paths are resolved against (default: the CSV's directory)")

	setCmd := &cobra.Command{
		Use:   "set <path> <text>",
		Short: "Attach a description to one file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			defer logging.Sync()

			path, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			desc := store.Description{Path: path, Text: args[1]}
			if info, err := os.Stat(path); err == nil {
				desc.MTime = info.ModTime().Unix()
			}

			db, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer db.Close()
			return db.Put(desc)
		},
	}

	cmd.AddCommand(importCmd, setCmd)
	return cmd
}

func helpersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "helpers",
		Short: "Show which external thumbnail helpers are installed",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			for _, h := range thumb.DetectHelpers() {
				status := "missing"
				if h.Available {
					status = h.Version
				}
				fmt.Printf("%-24s %-40s %s\n", h.Helper, h.Command, status)
			}
		},
	}
}

func drivesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "drives",
		Short: "List mounted volumes that can be used as roots",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			for _, d := range fs.ListDrives() {
				fmt.Printf("%-24s %s\n", d.Name, d.Path)
			}
		},
	}
}
