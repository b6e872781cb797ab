package main

import (
	"context"
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var recallLimit int

var (
	styleScore = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	styleID    = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Faint(true)
	styleTag   = lipgloss.NewStyle().Foreground(lipgloss.Color("69"))
)

var recallCmd = &cobra.Command{
	Use:   "recall [query]",
	Short: "Recall items via spreading activation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		results, err := eng.Recall(ctx, args[0], recallLimit)
		if err != nil {
			return err
		}
		if len(results) == 0 {
			fmt.Println("(no matches)")
			return nil
		}
		for _, r := range results {
			fmt.Printf("%s  %s  %s\n",
				styleScore.Render(fmt.Sprintf("%.3f", r.Score)),
				styleID.Render(r.ID),
				r.Preview)
			if len(r.Tags) > 0 {
				fmt.Printf("    %s\n", styleTag.Render(fmt.Sprintf("%v", r.Tags)))
			}
		}
		return nil
	},
}

func init() {
	recallCmd.Flags().IntVar(&recallLimit, "limit", 10, "Maximum items to return")
}
