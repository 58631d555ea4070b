package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	domain "github.com/praveencs87/mylyn-webissues-sub001/internal/webissues/domain"
)

var viewsCmd = &cobra.Command{
	Use:   "views <type>",
	Short: "List the saved views of an issue type",
	Args:  cobra.ExactArgs(1),
	RunE:  runViews,
}

var queryCmd = &cobra.Command{
	Use:   "query <type> <view>",
	Short: "Evaluate a saved view across its folders",
	Long: `Evaluate a saved view's filter against every folder of its issue
type and print the matching issues.`,
	Args: cobra.ExactArgs(2),
	RunE: runQuery,
}

var querySince int

func init() {
	queryCmd.Flags().IntVar(&querySince, "since", 0, "only match issues changed after this stamp")
	rootCmd.AddCommand(viewsCmd)
	rootCmd.AddCommand(queryCmd)
}

func findType(types []*domain.IssueType, ref string) (*domain.IssueType, error) {
	if id, err := strconv.Atoi(ref); err == nil {
		for _, t := range types {
			if t.ID == id {
				return t, nil
			}
		}
	}
	for _, t := range types {
		if strings.EqualFold(t.Name, ref) {
			return t, nil
		}
	}
	return nil, fmt.Errorf("no issue type matches %q", ref)
}

func runViews(cmd *cobra.Command, args []string) error {
	out := newOutput(cmd.OutOrStdout())
	env, err := newEnvironment(cmd.Context(), out)
	if err != nil {
		return err
	}
	if err := env.ReloadAll(cmd.Context(), nil); err != nil {
		return fmt.Errorf("loading entity model: %w", err)
	}
	issueType, err := findType(env.Types().All(), args[0])
	if err != nil {
		return err
	}

	out.header(fmt.Sprintf("Views of %s", issueType.Name))
	views := issueType.Views.All()
	if len(views) == 0 {
		out.println("  (no views)")
		return nil
	}
	rows := make([][]string, 0, len(views))
	for _, view := range views {
		visibility := "private"
		if view.Public {
			visibility = "public"
		}
		rows = append(rows, []string{
			strconv.Itoa(view.ID),
			view.Name,
			visibility,
			strconv.Itoa(len(view.Definition.Conditions)),
		})
	}
	out.table([]string{"ID", "Name", "Visibility", "Conditions"}, rows)
	return nil
}

func runQuery(cmd *cobra.Command, args []string) error {
	out := newOutput(cmd.OutOrStdout())
	env, err := newEnvironment(cmd.Context(), out)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if err := env.ReloadAll(ctx, nil); err != nil {
		return fmt.Errorf("loading entity model: %w", err)
	}
	issueType, err := findType(env.Types().All(), args[0])
	if err != nil {
		return err
	}
	view, ok := issueType.Views.ByName(args[1])
	if !ok {
		if id, convErr := strconv.Atoi(args[1]); convErr == nil {
			view, ok = issueType.Views.Get(id)
		}
		if !ok {
			return fmt.Errorf("no view matches %q on type %s", args[1], issueType.Name)
		}
	}

	// The view filters across every folder of its type, so all of them
	// are fetched first.
	var folders []*domain.Folder
	for _, folder := range env.Folders() {
		if folder.Type != issueType {
			continue
		}
		if err := env.ReloadFolder(ctx, folder, nil); err != nil {
			return fmt.Errorf("loading folder %q: %w", folder.Name, err)
		}
		folders = append(folders, folder)
	}

	matches := view.Query(folders, querySince)
	out.header(fmt.Sprintf("%s: %d matching issues", view.Name, len(matches)))
	if len(matches) == 0 {
		return nil
	}
	rows := make([][]string, 0, len(matches))
	for _, issue := range matches {
		rows = append(rows, []string{
			strconv.Itoa(issue.ID),
			issue.Name,
			issue.Folder.Name,
			issue.ModifiedDate.Format("2006-01-02 15:04"),
		})
	}
	out.table([]string{"ID", "Name", "Folder", "Modified"}, rows)
	return nil
}
