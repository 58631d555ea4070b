package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "List projects and their folders",
	RunE:  runProjects,
}

func init() {
	rootCmd.AddCommand(projectsCmd)
}

func runProjects(cmd *cobra.Command, args []string) error {
	out := newOutput(cmd.OutOrStdout())
	env, err := newEnvironment(cmd.Context(), out)
	if err != nil {
		return err
	}
	if err := env.ReloadAll(cmd.Context(), nil); err != nil {
		return fmt.Errorf("loading projects: %w", err)
	}

	for _, project := range env.Projects().All() {
		out.header(fmt.Sprintf("%s (#%d)", project.Name, project.ID))
		folders := project.Folders.All()
		if len(folders) == 0 {
			out.println("  (no folders)")
			continue
		}
		rows := make([][]string, 0, len(folders))
		for _, folder := range folders {
			rows = append(rows, []string{
				strconv.Itoa(folder.ID),
				folder.Name,
				folder.Type.Name,
			})
		}
		out.table([]string{"ID", "Folder", "Type"}, rows)
		out.println()
	}
	return nil
}
