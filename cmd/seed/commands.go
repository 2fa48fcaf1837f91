package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	budgetapp "github.com/healthbudget/backend/internal/application/budget"
	referenceapp "github.com/healthbudget/backend/internal/application/reference"
	"github.com/healthbudget/backend/internal/domain/budget"
	"github.com/healthbudget/backend/internal/domain/reference"
	"github.com/spf13/cobra"
)

// DatasetSeeder loads reference rows
type DatasetSeeder interface {
	Seed(ctx context.Context, ds referenceapp.Dataset) (referenceapp.SeedSummary, error)
}

// ProgramFinder resolves a program code
type ProgramFinder interface {
	FindProgramByCode(ctx context.Context, code string) (*reference.Program, error)
}

// TemplateStore stores a program's execution template
type TemplateStore interface {
	Put(ctx context.Context, programID uuid.UUID, nodes []budget.TemplateNode) (*budgetapp.TemplateResponse, error)
}

// App holds the services the seed commands run against.
// Fields are filled by the root command's connect hook.
type App struct {
	Seeder    DatasetSeeder
	Programs  ProgramFinder
	Templates TemplateStore
	Out       io.Writer
}

// newRootCmd builds the seed command tree. connect, when non-nil, runs
// before any subcommand and wires app.
func newRootCmd(app *App, connect func(ctx context.Context) error) *cobra.Command {
	root := &cobra.Command{
		Use:           "seed",
		Short:         "Load reference data and execution templates",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	if connect != nil {
		root.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
			return connect(cmd.Context())
		}
	}

	root.AddCommand(
		newReferenceCmd(app),
		newTemplateCmd(app),
		newDefaultTemplateCmd(app),
	)
	return root
}

func newReferenceCmd(app *App) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "reference",
		Short: "Upsert provinces, districts, programs, fiscal years and facilities from a JSON file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var ds referenceapp.Dataset
			if err := readJSON(file, &ds); err != nil {
				return err
			}
			sum, err := app.Seeder.Seed(cmd.Context(), ds)
			if err != nil {
				return fmt.Errorf("seeding reference data: %w", err)
			}
			fmt.Fprintf(app.Out, "provinces=%d districts=%d programs=%d fiscal_years=%d facilities=%d\n",
				sum.Provinces, sum.Districts, sum.Programs, sum.FiscalYears, sum.Facilities)
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "dataset JSON file")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// templateFile is the on-disk template layout; it matches the API request body
type templateFile struct {
	Nodes []budget.TemplateNode `json:"nodes"`
}

func newTemplateCmd(app *App) *cobra.Command {
	var program, file string
	cmd := &cobra.Command{
		Use:   "template",
		Short: "Store a program's execution template from a JSON file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var tpl templateFile
			if err := readJSON(file, &tpl); err != nil {
				return err
			}
			return putTemplate(cmd.Context(), app, program, tpl.Nodes)
		},
	}
	cmd.Flags().StringVar(&program, "program", "", "program code")
	cmd.Flags().StringVar(&file, "file", "", "template JSON file")
	_ = cmd.MarkFlagRequired("program")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newDefaultTemplateCmd(app *App) *cobra.Command {
	var program string
	cmd := &cobra.Command{
		Use:   "default-template",
		Short: "Store the built-in ledger as a program's execution template",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return putTemplate(cmd.Context(), app, program, budget.DefaultExecutionTemplate())
		},
	}
	cmd.Flags().StringVar(&program, "program", "", "program code")
	_ = cmd.MarkFlagRequired("program")
	return cmd
}

func putTemplate(ctx context.Context, app *App, code string, nodes []budget.TemplateNode) error {
	program, err := app.Programs.FindProgramByCode(ctx, code)
	if err != nil {
		return fmt.Errorf("program %q: %w", code, err)
	}
	tpl, err := app.Templates.Put(ctx, program.ID, nodes)
	if err != nil {
		return fmt.Errorf("storing template for %q: %w", code, err)
	}
	fmt.Fprintf(app.Out, "program=%s nodes=%d\n", program.Code, len(tpl.Nodes))
	return nil
}

func readJSON(path string, out any) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}
