package cmd

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/praveencs87/mylyn-webissues-sub001/internal/config"
	"github.com/praveencs87/mylyn-webissues-sub001/internal/infrastructure/sqlite"
	"github.com/praveencs87/mylyn-webissues-sub001/internal/log"
	"github.com/praveencs87/mylyn-webissues-sub001/internal/sessions"
)

var syncWatch bool

var syncCmd = &cobra.Command{
	Use:   "sync <session>",
	Short: "Synchronize a session's snapshot with the server",
	Long: `Fetch the full entity model, every folder's issues and the read
states from the server, and store them in the session's snapshot
database for offline use. The session is created on first sync.

With --watch or sync.auto_sync the command keeps running and re-syncs
every sync.auto_sync_interval; changes to the config file take effect
without restarting.`,
	Args: cobra.ExactArgs(1),
	RunE: runSync,
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List stored sessions",
	RunE:  runSessions,
}

func init() {
	syncCmd.Flags().BoolVar(&syncWatch, "watch", false, "keep running and re-sync on sync.auto_sync_interval")
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(sessionsCmd)
}

func sessionStore() (*sessions.Store, error) {
	dir := cfg.DataDir
	if dir == "" {
		dir = ".webissues"
	}
	return sessions.NewStore(filepath.Join(dir, "sessions"))
}

func runSync(cmd *cobra.Command, args []string) error {
	out := newOutput(cmd.OutOrStdout())
	ctx := cmd.Context()

	store, err := sessionStore()
	if err != nil {
		return err
	}
	session, err := store.FindByName(args[0])
	var notFound *sessions.SessionNotFoundError
	if errors.As(err, &notFound) {
		if cfg.Server.URL == "" {
			return fmt.Errorf("no server configured; set server.url or pass --url")
		}
		session, err = store.Create(args[0], cfg.Server.URL, cfg.Server.Login)
	}
	if err != nil {
		return err
	}
	if cfg.Server.URL == "" {
		cfg.Server.URL = session.URL
	}
	if cfg.Server.Login == "" {
		cfg.Server.Login = session.Login
	}

	syncFn := func(ctx context.Context) error {
		return syncSession(ctx, out, store, session)
	}
	if err := syncFn(ctx); err != nil {
		return err
	}
	if !syncWatch && !cfg.Sync.AutoSync {
		return nil
	}
	return autoSyncLoop(ctx, out, viper.ConfigFileUsed(), syncFn)
}

// syncSession fetches the full entity model, every folder and the read
// states, and saves them to the session's snapshot database.
func syncSession(ctx context.Context, out *output, store *sessions.Store, session *sessions.Session) error {
	env, err := newEnvironment(ctx, out)
	if err != nil {
		return err
	}
	if err := env.ReloadAll(ctx, nil); err != nil {
		return fmt.Errorf("loading entity model: %w", err)
	}
	folders := env.Folders()
	for _, folder := range folders {
		if err := env.ReloadFolder(ctx, folder, nil); err != nil {
			return fmt.Errorf("loading folder %q: %w", folder.Name, err)
		}
	}
	if err := env.ReloadStates(ctx, nil); err != nil {
		return fmt.Errorf("loading read states: %w", err)
	}

	db, err := sqlite.NewDB(session.SnapshotPath)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	if err := db.SnapshotStore().Save(env.Snapshot()); err != nil {
		return fmt.Errorf("saving snapshot: %w", err)
	}

	session.LastSync = time.Now().UTC()
	if err := store.Save(session); err != nil {
		return err
	}

	issueCount := 0
	for _, folder := range folders {
		issueCount += folder.Issues.Len()
	}
	out.printf("Synchronized %q: %d projects, %d folders, %d issues\n",
		session.Name, env.Projects().Len(), len(folders), issueCount)
	return nil
}

// autoSyncLoop re-syncs until the context is cancelled, waking every
// sync.auto_sync_interval. When a config file is in use it is watched,
// so an interval change applies on the next reset.
func autoSyncLoop(ctx context.Context, out *output, configPath string, syncFn func(context.Context) error) error {
	interval := cfg.Sync.AutoSyncInterval
	if interval <= 0 {
		interval = config.Defaults().Sync.AutoSyncInterval
	}

	// The watcher callback is the only writer of cfg once the loop
	// runs; the loop itself takes interval changes from the channel.
	intervals := make(chan time.Duration, 1)
	if configPath != "" {
		watcher, err := config.Watch(configPath, func() {
			if err := reloadConfig(); err != nil {
				log.ErrorErr(log.CatConfig, "config reload failed", err)
				return
			}
			select {
			case intervals <- cfg.Sync.AutoSyncInterval:
			default:
			}
		})
		if err != nil {
			return err
		}
		defer func() { _ = watcher.Close() }()
	}

	out.printf("Auto-sync every %s; interrupt to stop\n", interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case next := <-intervals:
			if next > 0 && next != interval {
				interval = next
				ticker.Reset(interval)
				out.printf("Auto-sync interval now %s\n", interval)
			}
		case <-ticker.C:
			if err := syncFn(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				log.ErrorErr(log.CatNet, "auto-sync failed", err, "retry_in", interval)
			}
		}
	}
}

func runSessions(cmd *cobra.Command, args []string) error {
	out := newOutput(cmd.OutOrStdout())
	store, err := sessionStore()
	if err != nil {
		return err
	}
	list, err := store.List()
	if err != nil {
		return err
	}
	if len(list) == 0 {
		out.println("(no sessions; run 'webissues sync <name>' to create one)")
		return nil
	}
	rows := make([][]string, 0, len(list))
	for _, session := range list {
		lastSync := "never"
		if !session.LastSync.IsZero() {
			lastSync = session.LastSync.Local().Format("2006-01-02 15:04")
		}
		rows = append(rows, []string{session.Name, session.URL, session.Login, lastSync})
	}
	out.table([]string{"Name", "URL", "Login", "Last Sync"}, rows)
	return nil
}
