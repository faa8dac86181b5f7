package main

import (
	"encoding/json"
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/loykin/ajiasud/internal/selftest"
)

// GlobalFlags holds persistent flags shared by all commands.
type GlobalFlags struct {
	ConfigPath string
}

func buildRoot() *cobra.Command {
	var gf GlobalFlags

	root := &cobra.Command{
		Use:           "ajiasud",
		Short:         "ajiasu connection supervisor",
		Long:          "ajiasud keeps exactly one ajiasu VPN connection alive and exposes a small HTTP control panel.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&gf.ConfigPath, "config", "", "path to TOML config file")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the supervisor daemon and HTTP panel",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(gf.ConfigPath)
		},
	}

	selftestCmd := &cobra.Command{
		Use:   "selftest",
		Short: "Run built-in checks and print the JSON report",
		RunE: func(cmd *cobra.Command, args []string) error {
			rep := selftest.Run()
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(rep); err != nil {
				return err
			}
			if !rep.Passed {
				return errors.New("selftest failed")
			}
			return nil
		},
	}

	root.AddCommand(serveCmd, selftestCmd)
	return root
}
