package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"carecount/internal/ipc"
)

func newImpactCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "impact [day]",
		Short: "Summarize one local day of donations (defaults to today)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var day string
			if len(args) == 1 {
				day = args[0]
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Impact(ipc.ImpactRequest{Day: day})
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp.Summary)
				}
				stdout := cmd.OutOrStdout()
				s := resp.Summary
				fmt.Fprintf(stdout, "Impact for %s\n", s.Day)
				fmt.Fprintf(stdout, "  Visits:     %d\n", s.Visits)
				fmt.Fprintf(stdout, "  Volunteers: %d\n", s.Volunteers)
				fmt.Fprintf(stdout, "  Items:      %d (total quantity %d)\n", s.Items, s.TotalQuantity)
				if len(s.TopItems) == 0 {
					return nil
				}
				rows := make([][]string, 0, len(s.TopItems))
				for _, top := range s.TopItems {
					rows = append(rows, []string{top.Name, strconv.Itoa(top.Quantity)})
				}
				fmt.Fprintln(stdout, renderTable(
					[]string{"Item", "Quantity"},
					rows,
					[]columnAlignment{alignLeft, alignRight},
				))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON output")
	return cmd
}
