package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/martinemde/codeloop/agent"
	"github.com/martinemde/codeloop/tools"
)

var prefixCmd = &cobra.Command{
	Use:   "prefix",
	Short: "Print the bootstrap prompt prefix",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprint(cmd.OutOrStdout(), agent.Prefix())
	},
}

var toolsCmd = &cobra.Command{
	Use:   "tools <file>",
	Short: "Validate a tools file and print the functions it defines",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := tools.LoadProcessTools(args[0])
		if err != nil {
			return err
		}
		registry := tools.NewRegistry()
		for _, t := range loaded {
			registry.Register(t)
		}
		if registry.Count() == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no tools defined")
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), registry.Describe())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(prefixCmd)
	rootCmd.AddCommand(toolsCmd)
}
