package cli

import (
	"github.com/spf13/cobra"
)

func newLayoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "layout",
		Short: "Show the record layout the server allocates",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result LayoutResult

			if err := client.Get("/api/v1/layout", &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}
}
