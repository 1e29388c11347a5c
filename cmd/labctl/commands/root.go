package commands

import (
	"fmt"
	"os"

	"english_lab_go_backend/internal/database"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

// openDB connects to the remote store; tests swap it out.
var openDB = database.Open

type rootOptions struct {
	dsn     string
	verbose bool
}

// NewRootCommand creates the labctl command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "labctl",
		Short:         "Operate the English lab session stores",
		Long:          `labctl moves sessions from a local key-value file into the remote store and inspects or clears a user's remote sessions.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.dsn, "dsn", "", "Postgres connection string (defaults to DATABASE_URL or DB_* variables)")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(newMigrateCmd(opts))
	rootCmd.AddCommand(newSessionsCmd(opts))
	return rootCmd
}

// Execute runs the root command.
func Execute() {
	_ = godotenv.Load()
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func (o *rootOptions) logger(cmd *cobra.Command) zerolog.Logger {
	level := zerolog.InfoLevel
	if o.verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr(), NoColor: true}).
		Level(level).With().Timestamp().Logger()
}

func (o *rootOptions) connect() (*gorm.DB, error) {
	dsn := o.dsn
	if dsn == "" {
		dsn = os.Getenv("DATABASE_URL")
	}
	if dsn == "" {
		dsn = database.DSN(
			envOr("DB_HOST", "localhost"),
			envOr("DB_USER", "postgres"),
			os.Getenv("DB_PASSWORD"),
			envOr("DB_NAME", "english_lab"),
			envOr("DB_PORT", "5432"),
		)
	}
	db, err := openDB(dsn)
	if err != nil {
		return nil, fmt.Errorf("opening remote store: %w", err)
	}
	return db, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
