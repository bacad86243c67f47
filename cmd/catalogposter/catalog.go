package main

import (
	"github.com/spf13/cobra"
)

func newFloorsCmd(c *cli) *cobra.Command {
	var refresh bool
	cmd := &cobra.Command{
		Use:   "floors",
		Short: "List catalog site, service and floor codes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			floors, err := c.app.Floors(cmd.Context(), !refresh)
			if err != nil {
				return err
			}
			c.printer(cmd).Table([]string{"site", "service", "service name", "floor", "floor name"}, floorRows(floors))
			return nil
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "ignore the cached floor list")
	return cmd
}

func newActressCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "actress <id>",
		Short: "Look up an actress by catalog id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := c.printer(cmd)
			found, err := c.app.Actress(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if len(found) == 0 {
				p.Warning("no actress with id %s", args[0])
				return nil
			}
			rows := make([][]string, 0, len(found))
			for _, a := range found {
				rows = append(rows, []string{a.ID, a.Name, a.Ruby, a.ListURL})
			}
			p.Table([]string{"id", "name", "ruby", "list url"}, rows)
			return nil
		},
	}
}
