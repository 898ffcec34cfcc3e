package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var psCmd = &cobra.Command{
	Use:   "ps",
	Short: "List deployed modules and their status",
	RunE:  runPs,
}

type statusRow struct {
	Name            string `json:"name"`
	PID             int    `json:"pid"`
	Status          string `json:"status"`
	ExitCode        *int   `json:"exit_code,omitempty"`
	TimeSinceStatus int64  `json:"time_since_status"`
}

func runPs(cmd *cobra.Command, args []string) error {
	client, err := newClient(cmd)
	if err != nil {
		return err
	}

	var resp struct {
		Status []statusRow `json:"status"`
	}
	if err := client.GetJSON("/api/v1/status", &resp); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tPID\tSTATUS\tEXIT\tSINCE(s)")
	for _, s := range resp.Status {
		exit := "-"
		if s.ExitCode != nil {
			exit = fmt.Sprintf("%d", *s.ExitCode)
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%d\n", s.Name, s.PID, s.Status, exit, s.TimeSinceStatus)
	}
	return tw.Flush()
}
