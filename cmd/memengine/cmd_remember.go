package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"memengine/internal/graph"
)

var (
	rememberType       string
	rememberTags       []string
	rememberImportance float64
	rememberTTL        string
	rememberScope      string
)

var rememberCmd = &cobra.Command{
	Use:   "remember [text]",
	Short: "Store a new memory item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ttl, err := parseTTL(rememberTTL)
		if err != nil {
			return err
		}
		id, err := eng.Remember(rememberType, args[0], rememberTags, rememberImportance, ttl, rememberScope)
		if err != nil {
			return err
		}
		fmt.Println(id)
		return nil
	},
}

func init() {
	rememberCmd.Flags().StringVar(&rememberType, "type", "fact", "Item type (fact, event, preference, ...)")
	rememberCmd.Flags().StringSliceVar(&rememberTags, "tags", nil, "Comma-separated tags")
	rememberCmd.Flags().Float64Var(&rememberImportance, "importance", 0.5, "Importance in [0,1]")
	rememberCmd.Flags().StringVar(&rememberTTL, "ttl", "30d", "TTL: 7d, 30d, 90d, 365d, or perpetual")
	rememberCmd.Flags().StringVar(&rememberScope, "scope", "", "Optional scope/namespace")
}

func parseTTL(s string) (graph.TTL, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "7d", "7":
		return graph.TTL7Days, nil
	case "30d", "30", "":
		return graph.TTL30Days, nil
	case "90d", "90":
		return graph.TTL90Days, nil
	case "365d", "365":
		return graph.TTL365Days, nil
	case "perpetual", "none":
		return graph.TTLPerpetual, nil
	default:
		return 0, userErrf("unknown --ttl %q (want 7d, 30d, 90d, 365d, or perpetual)", s)
	}
}
