package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Force a durable snapshot to the state directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := eng.Snapshot(); err != nil {
			return err
		}
		fmt.Println("snapshot written")
		return nil
	},
}
