package main

import (
	"context"
	"fmt"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
)

var statsShowManifest bool

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show item/edge/session counts and, optionally, the memory manifest",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := eng.Stats()
		if err != nil {
			return err
		}
		fmt.Printf("Items:           %d\n", s.ItemCount)
		for t, n := range s.ItemsByType {
			fmt.Printf("  %-12s %d\n", t, n)
		}
		fmt.Printf("Edges:           %d (avg weight %.3f)\n", s.EdgeCount, s.AvgEdgeWeight)
		fmt.Printf("Sessions:        %d\n", s.SessionCount)
		fmt.Printf("History entries: %d\n", s.HistoryCount)
		fmt.Printf("Policy versions: %d\n", s.PolicyVersionCount)

		if !statsShowManifest {
			return nil
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()
		m, err := eng.Manifest(ctx)
		if err != nil {
			return err
		}

		renderer, rerr := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(100),
		)
		if rerr != nil {
			fmt.Println(m.Markdown)
			return nil
		}
		rendered, rerr := renderer.Render(m.Markdown)
		if rerr != nil {
			fmt.Println(m.Markdown)
			return nil
		}
		fmt.Println(rendered)
		return nil
	},
}

func init() {
	statsCmd.Flags().BoolVar(&statsShowManifest, "manifest", false, "Also render the current memory manifest")
}
