package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"CatalogPoster/internal/settings"
)

const masked = "***"

func newSettingsCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Inspect and manage the settings file",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the effective settings with credentials masked",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				doc, err := c.app.Settings().Load()
				if err != nil {
					return err
				}
				out, err := json.MarshalIndent(maskCredentials(doc), "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(out))
				return nil
			},
		},
		&cobra.Command{
			Use:   "path",
			Short: "Print the settings file location",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				fmt.Fprintln(cmd.OutOrStdout(), c.app.Settings().Path())
				return nil
			},
		},
		&cobra.Command{
			Use:   "backups",
			Short: "List settings backups, newest first",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				p := c.printer(cmd)
				backups, err := c.app.Settings().ListBackups()
				if err != nil {
					return err
				}
				if len(backups) == 0 {
					p.Warning("no backups")
					return nil
				}
				rows := make([][]string, 0, len(backups))
				for _, b := range backups {
					rows = append(rows, []string{b.Name, b.ModTime.Local().Format("2006-01-02 15:04:05"), strconv.FormatInt(b.Size, 10)})
				}
				p.Table([]string{"name", "modified", "bytes"}, rows)
				return nil
			},
		},
		&cobra.Command{
			Use:   "restore <name>",
			Short: "Restore a backup as the current settings",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if _, err := c.app.Settings().RestoreBackup(args[0]); err != nil {
					return err
				}
				c.printer(cmd).Success("restored %s", args[0])
				return nil
			},
		},
		&cobra.Command{
			Use:   "reset",
			Short: "Replace settings with defaults, keeping credentials",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				if _, err := c.app.Settings().ResetDefaults(); err != nil {
					return err
				}
				c.printer(cmd).Success("settings reset to defaults")
				return nil
			},
		},
	)
	return cmd
}

func maskCredentials(doc settings.Document) settings.Document {
	mask := func(v *string) {
		if *v != "" {
			*v = masked
		}
	}
	mask(&doc.Credentials.CatalogAPIID)
	mask(&doc.Credentials.CatalogAffiliateID)
	mask(&doc.Credentials.BlogAppPassword)
	return doc
}
