package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"fieldcam/internal/ipc"
)

func newUploadsCommand(ctx *commandContext) *cobra.Command {
	var (
		status  string
		session string
		limit   int
		failed  bool
		asJSON  bool
	)
	cmd := &cobra.Command{
		Use:   "uploads",
		Short: "List resolved uploads from the ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			if failed {
				status = "failed"
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Uploads(ipc.UploadsRequest{Status: status, SessionID: session, Limit: limit})
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp.Uploads)
				}
				out := cmd.OutOrStdout()
				if len(resp.Uploads) == 0 {
					fmt.Fprintln(out, "No uploads recorded")
					return nil
				}
				rows := make([][]string, 0, len(resp.Uploads))
				for _, rec := range resp.Uploads {
					fix := "none"
					switch {
					case rec.HasFix && rec.Stale:
						fix = "stale"
					case rec.HasFix:
						fix = "fresh"
					}
					rows = append(rows, []string{
						strconv.FormatUint(rec.Seq, 10),
						rec.Status,
						strconv.Itoa(rec.Attempts),
						fix,
						rec.CapturedAt,
						rec.Error,
					})
				}
				fmt.Fprint(out, renderTable(
					[]string{"Seq", "Status", "Attempts", "Fix", "Captured", "Error"}, rows,
					[]columnAlignment{alignRight, alignLeft, alignRight, alignLeft, alignLeft, alignLeft}))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Filter by status (sent, failed)")
	cmd.Flags().StringVar(&session, "session", "", "Filter by session id")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum records to show")
	cmd.Flags().BoolVar(&failed, "failed", false, "Shorthand for --status failed")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print records as JSON")

	cmd.AddCommand(newUploadsClearCommand(ctx))
	return cmd
}

func newUploadsClearCommand(ctx *commandContext) *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove ledger records",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.UploadsClear(status)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d ledger records\n", resp.Removed)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Only remove records with this status")
	return cmd
}
