package commands

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"english_lab_go_backend/internal/models"
	"english_lab_go_backend/internal/services"
	"english_lab_go_backend/internal/utils/kvstore"

	"github.com/spf13/cobra"
)

type sessionsOptions struct {
	authID    string
	localPath string
	yes       bool
}

func newSessionsCmd(root *rootOptions) *cobra.Command {
	opts := &sessionsOptions{}

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect or clear stored sessions",
	}
	cmd.PersistentFlags().StringVar(&opts.authID, "user", "", "Identity provider subject of the owning user")
	cmd.PersistentFlags().StringVar(&opts.localPath, "local", "", "Read a local sessions file instead of the remote store")

	list := &cobra.Command{
		Use:   "list",
		Short: "List sessions, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSessionsList(cmd, root, opts)
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every session of a user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSessionsClear(cmd, root, opts)
		},
	}
	clearCmd.Flags().BoolVar(&opts.yes, "yes", false, "Confirm the deletion")

	cmd.AddCommand(list, clearCmd)
	return cmd
}

// openStore returns the local store when --local is given, otherwise the
// remote store scoped to --user.
func (o *sessionsOptions) openStore(cmd *cobra.Command, root *rootOptions) (services.SessionStore, func(), error) {
	if o.localPath != "" {
		kv, err := kvstore.NewSQLiteStore(o.localPath, 0)
		if err != nil {
			return nil, nil, fmt.Errorf("opening local store: %w", err)
		}
		return services.NewLocalSessionStore(kv, root.logger(cmd)), func() { kv.Close() }, nil
	}

	if o.authID == "" {
		return nil, nil, errors.New("--user is required for the remote store")
	}
	db, err := root.connect()
	if err != nil {
		return nil, nil, err
	}
	user, err := services.NewUserService(db).GetUserByAuthID(cmd.Context(), o.authID)
	if err != nil {
		return nil, nil, fmt.Errorf("user %s: %w", o.authID, err)
	}
	return services.ForUser(services.NewSessionServiceDB(db), user.ID), func() {}, nil
}

func runSessionsList(cmd *cobra.Command, root *rootOptions, opts *sessionsOptions) error {
	store, closeStore, err := opts.openStore(cmd, root)
	if err != nil {
		return err
	}
	defer closeStore()

	sessions, err := store.ListSessions(cmd.Context())
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No sessions found")
		return nil
	}
	printSessions(cmd, sessions)
	return nil
}

func printSessions(cmd *cobra.Command, sessions []models.Session) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCREATED\tLEVEL\tMESSAGES\tTOPIC")
	for _, s := range sessions {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
			s.ID,
			time.UnixMilli(s.Timestamp).UTC().Format("2006-01-02 15:04"),
			s.Level,
			len(s.ChatMessages),
			s.Topic,
		)
	}
	w.Flush()
}

func runSessionsClear(cmd *cobra.Command, root *rootOptions, opts *sessionsOptions) error {
	if !opts.yes {
		return errors.New("refusing to clear sessions without --yes")
	}
	store, closeStore, err := opts.openStore(cmd, root)
	if err != nil {
		return err
	}
	defer closeStore()

	if err := store.ClearSessions(cmd.Context()); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Sessions cleared")
	return nil
}
