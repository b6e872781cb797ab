package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var policyFnFilter string

var (
	styleActive = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	styleDead   = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Strikethrough(true)
)

var listPolicyVersionsCmd = &cobra.Command{
	Use:   "list-policy-versions",
	Short: "List every recorded version of the decay/recallScore/exploration policy functions",
	RunE: func(cmd *cobra.Command, args []string) error {
		versions, err := eng.ListPolicyVersions()
		if err != nil {
			return err
		}
		_, active, _ := eng.GetPolicy()

		for _, v := range versions {
			if policyFnFilter != "" && string(v.Name) != policyFnFilter {
				continue
			}
			label := fmt.Sprintf("%-12s %s  success=%d fail=%d", v.Name, v.VersionID, v.Success, v.Fail)
			if active[v.Name] == v.VersionID {
				fmt.Println(styleActive.Render(label + "  [active]"))
			} else if v.SupersededBy != "" {
				fmt.Println(styleDead.Render(label))
			} else {
				fmt.Println(label)
			}
		}
		return nil
	},
}

func init() {
	listPolicyVersionsCmd.Flags().StringVar(&policyFnFilter, "function", "", "Filter to one function: decay, recallScore, or exploration")
}
