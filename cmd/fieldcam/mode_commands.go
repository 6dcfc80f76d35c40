package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"fieldcam/internal/ipc"
)

func newModesCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "modes",
		Short: "List capture modes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Modes()
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp.Modes)
				}
				rows := make([][]string, 0, len(resp.Modes))
				for _, m := range resp.Modes {
					rows = append(rows, []string{
						m.Name,
						fmt.Sprintf("%dx%d", m.Width, m.Height),
						strconv.Itoa(m.FPS),
						m.Format,
						yesNo(m.Active),
						m.Description,
					})
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]string{"Mode", "Resolution", "FPS", "Format", "Active", "Description"}, rows,
					[]columnAlignment{alignLeft, alignRight, alignRight, alignLeft, alignLeft, alignLeft}))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print modes as JSON")
	return cmd
}

func newModeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "mode <name>",
		Short: "Switch the capture mode, restarting capture if a session is running",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.SelectMode(args[0])
				if err != nil {
					return err
				}
				m := resp.Mode
				fmt.Fprintf(cmd.OutOrStdout(), "Capture mode set to %s (%dx%d @ %d fps)\n", m.Name, m.Width, m.Height, m.FPS)
				return nil
			})
		},
	}
}

func newConfigureCommand(ctx *commandContext) *cobra.Command {
	var stalenessMS int
	var capacity int
	cmd := &cobra.Command{
		Use:   "configure",
		Short: "Adjust the staleness threshold or upload queue capacity",
		RunE: func(cmd *cobra.Command, args []string) error {
			if stalenessMS == 0 && capacity == 0 {
				return errors.New("nothing to change: pass --staleness-ms or --queue-capacity")
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Configure(ipc.ConfigureRequest{
					StalenessThresholdMS: stalenessMS,
					QueueCapacity:        capacity,
				})
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Staleness threshold: %d ms\n", resp.StalenessThresholdMS)
				fmt.Fprintf(out, "Queue capacity: %d (applies to the next session)\n", resp.QueueCapacity)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&stalenessMS, "staleness-ms", 0, "Fix age in milliseconds beyond which frames are tagged stale")
	cmd.Flags().IntVar(&capacity, "queue-capacity", 0, "Upload queue capacity for the next session")
	return cmd
}
