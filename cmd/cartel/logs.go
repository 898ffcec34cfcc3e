package main

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/xdrop/cartel/pkg/client/config"
)

var logsCmd = &cobra.Command{
	Use:   "logs NAME",
	Short: "View a deployed module's log file",
	Args:  cobra.ExactArgs(1),
	RunE:  runLogs,
}

func runLogs(cmd *cobra.Command, args []string) error {
	client, err := newClient(cmd)
	if err != nil {
		return err
	}

	var resp struct {
		LogFilePath string `json:"log_file_path"`
	}
	if err := client.GetJSON("/api/v1/log/"+args[0], &resp); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	pagerArgs := cfg.PagerArgs()
	if len(pagerArgs) == 0 {
		fmt.Println(resp.LogFilePath)
		return nil
	}

	pager := exec.Command(pagerArgs[0], append(pagerArgs[1:], resp.LogFilePath)...)
	pager.Stdin = os.Stdin
	pager.Stdout = os.Stdout
	pager.Stderr = os.Stderr
	return pager.Run()
}
