package main

import (
	"context"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/openapc/openapc-cli/internal/config"
	"github.com/openapc/openapc-cli/internal/cubes"
)

var cubesTablesInput string

var cubesCmd = &cobra.Command{
	Use:   "cubes",
	Short: "Build OLAP cube tables and assets from the Open APC data",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := rootCmd.PersistentPreRunE(cmd, args); err != nil {
			return err
		}
		return cfg.Validate("cubes")
	},
}

var cubesTablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "Recreate the openapc table and one table per institution",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		institutions, err := cubes.LoadInstitutions(cfg.Cubes.InstitutionsFile)
		if err != nil {
			return err
		}
		in, err := os.Open(cubesTablesInput)
		if err != nil {
			return eris.Wrap(err, "open apc data")
		}
		defer in.Close() //nolint:errcheck

		store, err := openTableStore(ctx, cfg.Cubes)
		if err != nil {
			return err
		}
		defer store.Close() //nolint:errcheck

		counts, err := cubes.BuildTables(ctx, store, in, institutions)
		if err != nil {
			return err
		}
		zap.L().Info("cube tables built",
			zap.String("driver", cfg.Cubes.Driver),
			zap.Int("tables", len(counts)),
			zap.Int64("rows", counts[cubes.AllTable]),
		)
		return nil
	},
}

var cubesModelCmd = &cobra.Command{
	Use:   "model",
	Short: "Write model.json from the templates",
	RunE: func(cmd *cobra.Command, _ []string) error {
		institutions, err := cubes.LoadInstitutions(cfg.Cubes.InstitutionsFile)
		if err != nil {
			return err
		}
		path, err := cubes.WriteModel(cfg.Cubes.TemplatesDir, cfg.Cubes.OutputDir, institutions)
		if err != nil {
			return err
		}
		zap.L().Info("cubes model written", zap.String("path", path), zap.Int("cubes", len(institutions)))
		return nil
	},
}

var cubesYAMLsCmd = &cobra.Command{
	Use:   "yamls",
	Short: "Write one YAML descriptor per institution",
	RunE: func(cmd *cobra.Command, _ []string) error {
		institutions, err := cubes.LoadInstitutions(cfg.Cubes.InstitutionsFile)
		if err != nil {
			return err
		}
		paths, err := cubes.WriteYAMLs(cfg.Cubes.TemplatesDir, cfg.Cubes.OutputDir, institutions)
		if err != nil {
			return err
		}
		zap.L().Info("institution yamls written", zap.Int("files", len(paths)), zap.String("dir", cfg.Cubes.OutputDir))
		return nil
	},
}

func openTableStore(ctx context.Context, c config.CubesConfig) (cubes.TableStore, error) {
	switch c.Driver {
	case "postgres":
		store, err := cubes.NewPostgres(ctx, c.DatabaseURL, c.Schema)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "sqlite":
		store, err := cubes.NewSQLite(c.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, eris.Errorf("unknown cubes driver %q", c.Driver)
	}
}

func init() {
	cubesTablesCmd.Flags().StringVar(&cubesTablesInput, "input", "apc_de.csv", "Open APC data file")

	cubesCmd.AddCommand(cubesTablesCmd, cubesModelCmd, cubesYAMLsCmd)
	rootCmd.AddCommand(cubesCmd)
}
