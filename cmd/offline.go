package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/praveencs87/mylyn-webissues-sub001/internal/infrastructure/sqlite"
	"github.com/praveencs87/mylyn-webissues-sub001/internal/webissues/application"
)

var offlineCmd = &cobra.Command{
	Use:   "offline <session> [folder]",
	Short: "Browse a session's snapshot without connecting",
	Long: `Read the session's stored snapshot and print its contents. With a
folder argument the folder's cached issues are listed; without one, a
summary of the cached projects is shown.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runOffline,
}

func init() {
	rootCmd.AddCommand(offlineCmd)
}

func runOffline(cmd *cobra.Command, args []string) error {
	out := newOutput(cmd.OutOrStdout())

	store, err := sessionStore()
	if err != nil {
		return err
	}
	session, err := store.FindByName(args[0])
	if err != nil {
		return err
	}

	db, err := sqlite.NewDB(session.SnapshotPath)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	snapshot, err := db.SnapshotStore().Load()
	if err != nil {
		return fmt.Errorf("loading snapshot of %q: %w", session.Name, err)
	}

	env := application.NewEnvironment(nil)
	env.RestoreSnapshot(snapshot)

	if len(args) == 2 {
		folder, err := findFolder(env, args[1])
		if err != nil {
			return err
		}
		out.header(fmt.Sprintf("%s / %s (cached)", folder.Project.Name, folder.Name))
		issues := folder.Issues.All()
		if len(issues) == 0 {
			out.println("  (no cached issues)")
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
				issue.ModifiedDate.Format("2006-01-02 15:04"),
			})
		}
		out.table([]string{"ID", "Name", "Modified"}, rows)
		return nil
	}

	out.header(fmt.Sprintf("%s (%s, server %q %s)",
		session.Name, session.URL, snapshot.ServerName, snapshot.ServerVersion))
	for _, project := range env.Projects().All() {
		out.printf("%s:\n", project.Name)
		for _, folder := range project.Folders.All() {
			out.printf("  %-30s %d issues\n", folder.Name, folder.Issues.Len())
		}
	}
	return nil
}
