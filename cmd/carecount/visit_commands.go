package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"carecount/internal/ipc"
)

func newVisitCommand(ctx *commandContext) *cobra.Command {
	visitCmd := &cobra.Command{
		Use:   "visit",
		Short: "Manage drop-off visit sessions",
	}

	visitCmd.AddCommand(newVisitStartCommand(ctx))
	visitCmd.AddCommand(newVisitStatusCommand(ctx))
	visitCmd.AddCommand(newVisitHeartbeatCommand(ctx))
	visitCmd.AddCommand(newVisitCloseCommand(ctx))
	visitCmd.AddCommand(newVisitItemsCommand(ctx))

	return visitCmd
}

func newVisitStartCommand(ctx *commandContext) *cobra.Command {
	var volunteer string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Open a visit for a volunteer",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.VisitStart(ipc.VisitStartRequest{Volunteer: volunteer})
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp.Visit)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Visit %s opened (%s)\n", resp.Visit.Code, resp.Visit.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&volunteer, "volunteer", "", "Volunteer identifier")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON output")
	_ = cmd.MarkFlagRequired("volunteer")
	return cmd
}

func newVisitStatusCommand(ctx *commandContext) *cobra.Command {
	var visitID string
	var volunteer string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show a visit by id, or a volunteer's active visit",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(visitID) == "" && strings.TrimSpace(volunteer) == "" {
				return fmt.Errorf("either --id or --volunteer is required")
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.VisitStatus(ipc.VisitStatusRequest{VisitID: visitID, Volunteer: volunteer})
				if err != nil {
					return err
				}
				if !resp.Found {
					fmt.Fprintln(cmd.OutOrStdout(), "No matching visit")
					return nil
				}
				if asJSON {
					return writeJSON(cmd, resp.Visit)
				}
				printVisit(cmd, resp.Visit)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&visitID, "id", "", "Visit identifier")
	cmd.Flags().StringVar(&volunteer, "volunteer", "", "Volunteer identifier")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON output")
	return cmd
}

func newVisitHeartbeatCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "heartbeat <visit-id>",
		Short: "Refresh a visit's activity clock",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.VisitHeartbeat(ipc.VisitHeartbeatRequest{VisitID: args[0]})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Visit %s is %s\n", resp.Visit.Code, resp.Visit.Status)
				return nil
			})
		},
	}
}

func newVisitCloseCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "close <visit-id>",
		Short: "Close a visit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.VisitClose(ipc.VisitCloseRequest{VisitID: args[0]})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Visit %s closed\n", resp.Visit.Code)
				return nil
			})
		},
	}
}

func newVisitItemsCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "items <visit-id>",
		Short: "List the items logged during a visit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.VisitItems(ipc.VisitItemsRequest{VisitID: args[0]})
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp.Items)
				}
				stdout := cmd.OutOrStdout()
				if len(resp.Items) == 0 {
					fmt.Fprintln(stdout, "No items logged")
					return nil
				}
				rows := make([][]string, 0, len(resp.Items))
				for _, item := range resp.Items {
					rows = append(rows, []string{
						item.Name,
						strconv.Itoa(item.Quantity),
						item.Category,
						item.Source,
						item.LoggedAt.Local().Format("15:04:05"),
					})
				}
				fmt.Fprintln(stdout, renderTable(
					[]string{"Item", "Qty", "Category", "Source", "Logged"},
					rows,
					[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON output")
	return cmd
}

func printVisit(cmd *cobra.Command, v ipc.VisitSummary) {
	stdout := cmd.OutOrStdout()
	fmt.Fprintf(stdout, "Visit:     %s (%s)\n", v.Code, v.ID)
	fmt.Fprintf(stdout, "Volunteer: %s\n", v.Volunteer)
	fmt.Fprintf(stdout, "Status:    %s\n", v.Status)
	fmt.Fprintf(stdout, "Started:   %s\n", v.StartedAt.Local().Format(time.RFC1123))
	fmt.Fprintf(stdout, "Activity:  %s\n", v.LastActivityAt.Local().Format(time.RFC1123))
	if v.ClosedAt != nil {
		fmt.Fprintf(stdout, "Closed:    %s\n", v.ClosedAt.Local().Format(time.RFC1123))
	}
}
