package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/skillflow/internal/cli"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [dir]",
	Short: "Check the skill definition for consistency",
	Long: `Parses skill.yaml and reports every problem at once: unknown target states,
conflicting transitions and response keys that resolve to nothing.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		project, err := cli.LoadProject(projectDir(cmd, args), cli.ProjectOptions{})
		if err != nil {
			return fmt.Errorf("validation failed:\n%w", err)
		}

		states := project.Skill.Seal().Names()
		fmt.Fprintf(cmd.OutOrStdout(), "Skill %q is valid: %d states (%s)\n",
			project.Definition.Name, len(states), strings.Join(states, ", "))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
