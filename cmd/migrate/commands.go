package main

import (
	"database/sql"
	"fmt"
	"io"
	"strconv"

	"github.com/healthbudget/backend/internal/infrastructure/config"
	"github.com/healthbudget/backend/internal/infrastructure/migration"
	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Schema is the migration surface the commands drive
type Schema interface {
	Up() error
	Down() error
	Steps(n int) error
	GoTo(version uint) error
	Version() (uint, bool, error)
	Force(version int) error
	Drop() error
	Close() error
}

// cli carries the state shared by every subcommand
type cli struct {
	log  *zap.Logger
	open func(path string, log *zap.Logger) (Schema, error)
	path string
	out  io.Writer
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:   "migrate",
		Short: "Health budget database migration tool",
		Long: `Applies the plan, execution and reference schema to PostgreSQL.

Connection settings come from HB_DATABASE_HOST, HB_DATABASE_PORT,
HB_DATABASE_USER, HB_DATABASE_PASSWORD, HB_DATABASE_DBNAME and
HB_DATABASE_SSLMODE. Without --path the schema embedded in the binary is used.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			if c.out == nil {
				c.out = cmd.OutOrStdout()
			}
		},
	}
	root.PersistentFlags().StringVar(&c.path, "path", "", "migrations directory (default: embedded schema)")

	root.AddCommand(
		c.schemaCmd("up", "Apply all pending migrations", cobra.NoArgs, func(s Schema, _ []string) error {
			return s.Up()
		}),
		c.schemaCmd("down", "Roll back all migrations", cobra.NoArgs, func(s Schema, _ []string) error {
			return s.Down()
		}),
		c.schemaCmd("step <n>", "Apply n migrations, negative n rolls back", cobra.ExactArgs(1), func(s Schema, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid step count %q", args[0])
			}
			return s.Steps(n)
		}),
		c.schemaCmd("goto <version>", "Migrate to a specific version", cobra.ExactArgs(1), func(s Schema, args []string) error {
			version, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				return fmt.Errorf("invalid version %q", args[0])
			}
			return s.GoTo(uint(version))
		}),
		c.schemaCmd("version", "Show the applied migration version", cobra.NoArgs, func(s Schema, _ []string) error {
			version, dirty, err := s.Version()
			if err != nil {
				return err
			}
			if version == 0 {
				fmt.Fprintln(c.out, "no migrations applied")
				return nil
			}
			fmt.Fprintf(c.out, "version=%d dirty=%t\n", version, dirty)
			return nil
		}),
		c.schemaCmd("force <version>", "Set the version without running migrations", cobra.ExactArgs(1), func(s Schema, args []string) error {
			version, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid version %q", args[0])
			}
			c.log.Warn("Forcing migration version", zap.Int("version", version))
			return s.Force(version)
		}),
		c.dropCmd(),
		c.createCmd(),
		c.listCmd(),
	)
	return root
}

// schemaCmd builds a subcommand that opens the database before running fn
func (c *cli) schemaCmd(use, short string, args cobra.PositionalArgs, fn func(Schema, []string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.open(c.path, c.log)
			if err != nil {
				return err
			}
			defer func() {
				if err := s.Close(); err != nil {
					c.log.Warn("Closing migrator failed", zap.Error(err))
				}
			}()
			if err := fn(s, args); err != nil {
				return fmt.Errorf("%s: %w", cmd.Name(), err)
			}
			return nil
		},
	}
}

func (c *cli) dropCmd() *cobra.Command {
	var confirm bool
	cmd := c.schemaCmd("drop", "Drop every plan, execution and reference table", cobra.NoArgs, func(s Schema, _ []string) error {
		return s.Drop()
	})
	run := cmd.RunE
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		if !confirm {
			return fmt.Errorf("drop needs --confirm")
		}
		return run(cmd, args)
	}
	cmd.Flags().BoolVar(&confirm, "confirm", false, "confirm dropping all data")
	return cmd
}

func (c *cli) createCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create <name> [description]",
		Short: "Create an up/down migration file pair",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(_ *cobra.Command, args []string) error {
			dir := c.path
			if dir == "" {
				dir = "migrations"
			}
			description := ""
			if len(args) > 1 {
				description = args[1]
			}
			mf, err := migration.CreateMigration(dir, args[0], description)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.out, "%s\n%s\n", mf.UpPath, mf.DownPath)
			return nil
		},
	}
}

func (c *cli) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List available migrations",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			names, err := migration.ListMigrations(c.path)
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Fprintln(c.out, name)
			}
			return nil
		},
	}
}

// migrator closes the database along with the golang-migrate instance
type migrator struct {
	*migration.Migrator
	db *sql.DB
}

func (m migrator) Close() error {
	err := m.Migrator.Close()
	if dbErr := m.db.Close(); err == nil {
		err = dbErr
	}
	return err
}

func openPostgres(path string, log *zap.Logger) (Schema, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	if cfg.Database.Driver != config.DriverPostgres {
		return nil, fmt.Errorf("migrations require the postgres driver, got %q", cfg.Database.Driver)
	}

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	m, err := migration.New(db, path, log)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return migrator{Migrator: m, db: db}, nil
}
