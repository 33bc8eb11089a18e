package main

import (
	"encoding/base64"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"carecount/internal/arbitrate"
	"carecount/internal/ipc"
)

func newIdentifyCommand(ctx *commandContext) *cobra.Command {
	var visitID string
	var volunteer string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "identify <image-path>",
		Short: "Identify a donated item from a photo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read image: %w", err)
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Identify(ipc.IdentifyRequest{
					ImageBase64: base64.StdEncoding.EncodeToString(data),
					VisitID:     visitID,
					Volunteer:   volunteer,
				})
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp.Resolution)
				}
				printResolution(cmd, resp.Resolution)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&visitID, "visit", "", "Visit to associate with the attempt")
	cmd.Flags().StringVar(&volunteer, "volunteer", "", "Volunteer running the attempt")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON output")
	return cmd
}

func printResolution(cmd *cobra.Command, res ipc.ResolutionSummary) {
	stdout := cmd.OutOrStdout()
	status, known := arbitrate.ParseStatus(res.Status)
	if !known {
		status = arbitrate.StatusUnresolved
	}
	switch status {
	case arbitrate.StatusResolved:
		fmt.Fprintf(stdout, "Resolved: %s (%.2f via %s)\n", res.Chosen.Name, res.Chosen.Confidence, res.Chosen.Source)
	case arbitrate.StatusAmbiguous:
		fmt.Fprintln(stdout, "Ambiguous; pick one of:")
	default:
		fmt.Fprintln(stdout, "Unresolved; enter the item manually")
	}
	if len(res.Alternates) == 0 {
		return
	}
	rows := make([][]string, 0, len(res.Alternates))
	for _, alt := range res.Alternates {
		rows = append(rows, []string{alt.Name, fmt.Sprintf("%.2f", alt.Confidence), alt.Source})
	}
	fmt.Fprintln(stdout, renderTable(
		[]string{"Candidate", "Confidence", "Source"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignLeft},
	))
}
