package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"fieldcam/internal/api"
	"fieldcam/internal/ipc"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var (
		follow    bool
		limit     int
		component string
	)
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show recent daemon log events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				out := cmd.OutOrStdout()
				resp, err := client.LogTail(ipc.LogTailRequest{Limit: limit, Component: component})
				if err != nil {
					return err
				}
				printLogEvents(out, resp.Events)
				if !follow {
					return nil
				}
				next := resp.Next
				for {
					if err := cmd.Context().Err(); err != nil {
						return nil
					}
					resp, err := client.LogTail(ipc.LogTailRequest{
						Since:      next,
						Limit:      limit,
						Follow:     true,
						WaitMillis: 2000,
						Component:  component,
					})
					if err != nil {
						return err
					}
					printLogEvents(out, resp.Events)
					next = resp.Next
				}
			})
		},
	}
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep streaming new events")
	cmd.Flags().IntVarP(&limit, "lines", "n", 50, "Number of events to show")
	cmd.Flags().StringVar(&component, "component", "", "Only show events from this component")
	return cmd
}

func printLogEvents(w io.Writer, events []api.LogEvent) {
	for _, evt := range events {
		fmt.Fprintln(w, formatLogEvent(evt))
	}
}

func formatLogEvent(evt api.LogEvent) string {
	var b strings.Builder
	b.WriteString(evt.Timestamp)
	b.WriteString(" ")
	b.WriteString(strings.ToUpper(evt.Level))
	if evt.Component != "" {
		fmt.Fprintf(&b, " [%s]", evt.Component)
	}
	b.WriteString(" ")
	b.WriteString(evt.Message)
	if evt.FrameSeq != 0 {
		fmt.Fprintf(&b, " frame=%d", evt.FrameSeq)
	}
	keys := make([]string, 0, len(evt.Fields))
	for k := range evt.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%s", k, evt.Fields[k])
	}
	return b.String()
}
