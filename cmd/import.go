package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/proprio-data/cadastre-api/internal/fetcher"
	"github.com/proprio-data/cadastre-api/internal/importer"
)

var (
	importDepartment  string
	importDepartments []string
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Load source datasets into the store",
}

var importMajicCmd = &cobra.Command{
	Use:   "majic <file>",
	Short: "Import a departmental MAJIC owner file (semicolon CSV)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("import"); err != nil {
			return err
		}

		ctx := cmd.Context()
		env, err := initApp(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		f, err := os.Open(args[0])
		if err != nil {
			return eris.Wrapf(err, "open majic file %s", args[0])
		}
		defer f.Close()

		r, err := fetcher.MaybeGunzip(args[0], f)
		if err != nil {
			return err
		}

		im := newImporter(env)
		n, err := im.ImportMAJIC(ctx, r, importDepartment)
		if err != nil {
			return err
		}
		zap.L().Info("majic rows loaded", zap.Int64("rows", n))
		return nil
	},
}

var importBanCmd = &cobra.Command{
	Use:   "ban",
	Short: "Import BAN address files and geocode properties",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("import"); err != nil {
			return err
		}
		if len(importDepartments) == 0 {
			return eris.New("at least one --department is required")
		}

		ctx := cmd.Context()
		env, err := initApp(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		im := newImporter(env)
		geocoded, err := im.ImportBAN(ctx, importDepartments)
		if err != nil {
			return err
		}
		zap.L().Info("properties geocoded", zap.Int64("geocoded", geocoded))
		return nil
	},
}

var importParcelsCmd = &cobra.Command{
	Use:   "parcels <shapefile>",
	Short: "Import a departmental parcel shapefile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("import"); err != nil {
			return err
		}

		ctx := cmd.Context()
		env, err := initApp(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		im := newImporter(env)
		n, err := im.ImportParcels(ctx, args[0], importDepartment)
		if err != nil {
			return err
		}
		zap.L().Info("parcels loaded", zap.Int64("parcels", n))
		return nil
	},
}

func newImporter(env *appEnv) *importer.Importer {
	return importer.New(env.store, fetcher.NewHTTPFetcher(fetcher.HTTPOptions{}), importer.Options{
		BANBaseURL:  cfg.Import.BANBaseURL,
		Parallelism: cfg.Import.Parallelism,
	})
}

func init() {
	importMajicCmd.Flags().StringVar(&importDepartment, "department", "", "department code (e.g. 75)")
	importMajicCmd.MarkFlagRequired("department") //nolint:errcheck
	importParcelsCmd.Flags().StringVar(&importDepartment, "department", "", "department code (e.g. 75)")
	importParcelsCmd.MarkFlagRequired("department") //nolint:errcheck
	importBanCmd.Flags().StringSliceVar(&importDepartments, "department", nil, "department codes to load (repeatable)")

	importCmd.AddCommand(importMajicCmd, importBanCmd, importParcelsCmd)
	rootCmd.AddCommand(importCmd)
}
