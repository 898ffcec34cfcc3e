package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var stopCmd = &cobra.Command{
	Use:   "stop NAME",
	Short: "Stop a running module",
	Args:  cobra.ExactArgs(1),
	RunE:  operationRunner("STOP"),
}

var restartCmd = &cobra.Command{
	Use:   "restart NAME",
	Short: "Restart a previously deployed module",
	Args:  cobra.ExactArgs(1),
	RunE:  operationRunner("RESTART"),
}

var downCmd = &cobra.Command{
	Use:   "down",
	Short: "Stop every deployed module",
	RunE:  runDown,
}

func operationRunner(op string) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		client, err := newClient(cmd)
		if err != nil {
			return err
		}

		body := map[string]string{"module_name": args[0], "operation": op}
		var resp struct {
			Success bool `json:"success"`
		}
		if err := client.PostJSON("/api/v1/operation", body, &resp); err != nil {
			return err
		}
		if !resp.Success {
			return fmt.Errorf("%s failed for %s", op, args[0])
		}
		return nil
	}
}

func runDown(cmd *cobra.Command, args []string) error {
	client, err := newClient(cmd)
	if err != nil {
		return err
	}
	var resp struct {
		Success bool `json:"success"`
	}
	return client.PostJSON("/api/v1/stop_all", nil, &resp)
}
