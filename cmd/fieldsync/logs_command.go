package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"fieldsync/internal/ipc"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var lines int
	var follow bool

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the daemon log",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				out := cmd.OutOrStdout()
				req := ipc.LogTailRequest{Offset: -1, Limit: lines}
				for {
					resp, err := client.LogTail(req)
					if err != nil {
						return err
					}
					for _, line := range resp.Lines {
						fmt.Fprintln(out, line)
					}
					if !follow {
						return nil
					}
					if err := cmd.Context().Err(); err != nil {
						return err
					}
					req = ipc.LogTailRequest{Offset: resp.Offset, Follow: true, WaitMillis: 5000}
				}
			})
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new lines")
	return cmd
}
