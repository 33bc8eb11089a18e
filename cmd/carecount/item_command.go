package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"carecount/internal/ipc"
)

func newItemCommand(ctx *commandContext) *cobra.Command {
	itemCmd := &cobra.Command{
		Use:   "item",
		Short: "Log confirmed donation items",
	}
	itemCmd.AddCommand(newItemLogCommand(ctx))
	return itemCmd
}

func newItemLogCommand(ctx *commandContext) *cobra.Command {
	var req ipc.ItemLogRequest

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Attach an item to a visit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.ItemLog(req)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Logged %q on visit %s\n", req.Name, resp.Visit.Code)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&req.VisitID, "visit", "", "Visit identifier")
	cmd.Flags().StringVar(&req.Name, "name", "", "Item name")
	cmd.Flags().IntVar(&req.Quantity, "quantity", 1, "Item quantity")
	cmd.Flags().StringVar(&req.Category, "category", "", "Item category")
	cmd.Flags().StringVar(&req.Unit, "unit", "", "Unit of measure")
	cmd.Flags().StringVar(&req.Barcode, "barcode", "", "Scanned barcode, if any")
	cmd.Flags().StringVar(&req.Source, "source", "manual", "Identification source")
	cmd.Flags().StringVar(&req.ClientRef, "ref", "", "Client reference for idempotent retries")
	_ = cmd.MarkFlagRequired("visit")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}
