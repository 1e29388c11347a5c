package commands

import (
	"fmt"

	"english_lab_go_backend/internal/services"
	"english_lab_go_backend/internal/utils/kvstore"

	"github.com/spf13/cobra"
)

type migrateOptions struct {
	localPath string
	authID    string
	email     string
}

func newMigrateCmd(root *rootOptions) *cobra.Command {
	opts := &migrateOptions{}

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Copy local sessions into the remote store once",
		Long: `Upload every session in a local key-value file to the remote store for one user.
The run is recorded in the same file; later runs do nothing. A failed run
leaves no record and is repeated in full next time.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrate(cmd, root, opts)
		},
	}

	cmd.Flags().StringVar(&opts.localPath, "local", "", "Path to the local sessions file")
	cmd.Flags().StringVar(&opts.authID, "user", "", "Identity provider subject of the owning user")
	cmd.Flags().StringVar(&opts.email, "email", "", "Email recorded when the user does not exist yet")
	_ = cmd.MarkFlagRequired("local")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func runMigrate(cmd *cobra.Command, root *rootOptions, opts *migrateOptions) error {
	ctx := cmd.Context()
	log := root.logger(cmd)

	kv, err := kvstore.NewSQLiteStore(opts.localPath, 0)
	if err != nil {
		return fmt.Errorf("opening local store: %w", err)
	}
	defer kv.Close()

	db, err := root.connect()
	if err != nil {
		return err
	}

	user, err := services.NewUserService(db).CreateOrUpdateUser(ctx, opts.authID, opts.email, "")
	if err != nil {
		return fmt.Errorf("resolving user: %w", err)
	}

	local := services.NewLocalSessionStore(kv, log)
	remote := services.ForUser(services.NewSessionServiceDB(db), user.ID)
	migration := services.NewMigrationService(local, kv, remote, log)

	migrated, err := migration.Migrate(ctx)
	if err != nil {
		return err
	}
	if !migrated {
		fmt.Fprintln(cmd.OutOrStdout(), "Already migrated, nothing to do")
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Migrated local sessions for %s\n", opts.authID)
	return nil
}
