package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/praveencs87/mylyn-webissues-sub001/internal/webissues/application"
	domain "github.com/praveencs87/mylyn-webissues-sub001/internal/webissues/domain"
)

var issuesCmd = &cobra.Command{
	Use:   "issues <folder>",
	Short: "List the issues in a folder",
	Long: `List the issues in a folder, identified by name or id. Unread
issues are shown in bold.`,
	Args: cobra.ExactArgs(1),
	RunE: runIssues,
}

var showCmd = &cobra.Command{
	Use:   "show <folder> <issue-id>",
	Short: "Show an issue with its comments, attachments and history",
	Args:  cobra.ExactArgs(2),
	RunE:  runShow,
}

func init() {
	rootCmd.AddCommand(issuesCmd)
	rootCmd.AddCommand(showCmd)
}

// loadFolder connects, loads the entity model and fetches the issues
// of the named folder.
func loadFolder(ctx context.Context, out *output, ref string) (*application.Environment, *domain.Folder, error) {
	env, err := newEnvironment(ctx, out)
	if err != nil {
		return nil, nil, err
	}
	if err := env.ReloadAll(ctx, nil); err != nil {
		return nil, nil, fmt.Errorf("loading entity model: %w", err)
	}
	folder, err := findFolder(env, ref)
	if err != nil {
		return nil, nil, err
	}
	if err := env.ReloadFolder(ctx, folder, nil); err != nil {
		return nil, nil, fmt.Errorf("loading folder %q: %w", folder.Name, err)
	}
	if err := env.ReloadStates(ctx, nil); err != nil {
		return nil, nil, fmt.Errorf("loading read states: %w", err)
	}
	return env, folder, nil
}

func findFolder(env *application.Environment, ref string) (*domain.Folder, error) {
	if id, err := strconv.Atoi(ref); err == nil {
		for _, folder := range env.Folders() {
			if folder.ID == id {
				return folder, nil
			}
		}
	}
	for _, folder := range env.Folders() {
		if strings.EqualFold(folder.Name, ref) {
			return folder, nil
		}
	}
	return nil, fmt.Errorf("no folder matches %q", ref)
}

func runIssues(cmd *cobra.Command, args []string) error {
	out := newOutput(cmd.OutOrStdout())
	_, folder, err := loadFolder(cmd.Context(), out, args[0])
	if err != nil {
		return err
	}

	out.header(fmt.Sprintf("%s / %s", folder.Project.Name, folder.Name))
	issues := folder.Issues.All()
	if len(issues) == 0 {
		out.println("  (no issues)")
		return nil
	}
	rows := make([][]string, 0, len(issues))
	for _, issue := range issues {
		name := issue.Name
		if issue.Unread() {
			name = out.emphasize(name)
		}
		rows = append(rows, []string{
			strconv.Itoa(issue.ID),
			name,
			formatUser(issue.ModifiedUser),
			issue.ModifiedDate.Format("2006-01-02 15:04"),
		})
	}
	out.table([]string{"ID", "Name", "Modified By", "Modified"}, rows)
	return nil
}

func runShow(cmd *cobra.Command, args []string) error {
	out := newOutput(cmd.OutOrStdout())
	env, folder, err := loadFolder(cmd.Context(), out, args[0])
	if err != nil {
		return err
	}
	id, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("issue id must be a number, got %q", args[1])
	}
	issue, ok := folder.Issues.Get(id)
	if !ok {
		return fmt.Errorf("no issue %d in folder %q", id, folder.Name)
	}
	if err := env.ReloadDetails(cmd.Context(), issue, nil); err != nil {
		return fmt.Errorf("loading details: %w", err)
	}

	out.header(fmt.Sprintf("#%d %s", issue.ID, issue.Name))
	out.printf("Created:  %s by %s\n", issue.CreatedDate.Format(time.RFC1123), formatUser(issue.CreatedUser))
	out.printf("Modified: %s by %s\n", issue.ModifiedDate.Format(time.RFC1123), formatUser(issue.ModifiedUser))
	out.println()

	for _, attr := range folder.Type.Attributes.All() {
		if value, ok := issue.Values[attr.ID]; ok {
			out.printf("%s: %s\n", attr.Name, value)
		}
	}

	if len(issue.Comments) > 0 {
		out.println()
		out.header("Comments")
		for _, comment := range issue.Comments {
			out.printf("[%s] %s:\n%s\n", comment.CreatedDate.Format("2006-01-02 15:04"),
				formatUser(comment.CreatedUser), comment.Text)
		}
	}

	if len(issue.Attachments) > 0 {
		out.println()
		out.header("Attachments")
		rows := make([][]string, 0, len(issue.Attachments))
		for _, a := range issue.Attachments {
			rows = append(rows, []string{
				a.Name,
				fmt.Sprintf("%d bytes", a.Size),
				formatUser(a.CreatedUser),
				a.Description,
			})
		}
		out.table([]string{"File", "Size", "By", "Description"}, rows)
	}

	if len(issue.Changes) > 0 {
		out.println()
		out.header("History")
		for _, change := range issue.Changes {
			attrName := strconv.Itoa(change.AttributeID)
			if attr, ok := folder.Type.Attributes.Get(change.AttributeID); ok {
				attrName = attr.Name
			}
			out.printf("[%s] %s changed %s: %s\n",
				change.CreatedDate.Format("2006-01-02 15:04"),
				formatUser(change.CreatedUser), attrName, out.diffText(change.Diff()))
		}
	}
	return nil
}

func formatUser(user *domain.User) string {
	if user == nil {
		return "unknown"
	}
	return user.Name
}
