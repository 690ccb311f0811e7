package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"nursinghomes/internal/domain/facility"
	"nursinghomes/internal/domain/owner"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "admin",
		Short:         "Management commands for the nursing home dataset",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newSyncFacilitiesCmd(),
		newSyncOwnersCmd(),
		newImportOwnersCmd(),
		newCheckUpdateCmd(),
		newRateCmd(),
		newMigrateCmd(),
	)
	return root
}

func newSyncFacilitiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync-facilities",
		Short: "Refresh facilities from the datastore and rate them",
		RunE: withApp(func(cmd *cobra.Command, a *app) error {
			result, err := a.sync.SyncFacilities(cmd.Context())
			if result != nil {
				writeResult(cmd.OutOrStdout(), result)
			}
			return err
		}),
	}
}

func newSyncOwnersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync-owners",
		Short: "Merge the owner snapshot from the datastore",
		RunE: withApp(func(cmd *cobra.Command, a *app) error {
			result, err := a.sync.SyncOwners(cmd.Context())
			if result != nil {
				writeResult(cmd.OutOrStdout(), result)
			}
			return err
		}),
	}
}

func newImportOwnersCmd() *cobra.Command {
	var file, modeFlag string

	cmd := &cobra.Command{
		Use:   "import-owners",
		Short: "Reconcile an owner CSV export and refresh facilities",
		Example: `  admin import-owners --file owners.csv
  admin import-owners --file owners.csv --mode merge`,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := owner.ParseMode(modeFlag, owner.ModeReplace)
			return err
		},
		RunE: withApp(func(cmd *cobra.Command, a *app) error {
			mode, _ := owner.ParseMode(modeFlag, owner.ModeReplace)

			records, err := readOwnerCSV(file)
			if err != nil {
				return err
			}
			a.logger.Info("importing owners", zap.String("file", file), zap.Int("rows", len(records)), zap.String("mode", string(mode)))

			result, err := a.sync.ImportOwners(cmd.Context(), records, mode)
			if result != nil {
				writeResult(cmd.OutOrStdout(), result)
			}
			return err
		}),
	}

	cmd.Flags().StringVar(&file, "file", "", "owner CSV export")
	cmd.Flags().StringVar(&modeFlag, "mode", string(owner.ModeReplace), "reconciliation mode: merge or replace")
	cmd.MarkFlagRequired("file")
	return cmd
}

func newCheckUpdateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check-update",
		Short: "Refresh the dataset unless it was already refreshed today",
		RunE: withApp(func(cmd *cobra.Command, a *app) error {
			result, err := a.gate.CheckAndRunUpdate(cmd.Context())
			if result != nil {
				writeResult(cmd.OutOrStdout(), result)
			}
			return err
		}),
	}
}

func newRateCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "rate",
		Short: "Score a facility attribute bag without storing it",
		RunE: func(cmd *cobra.Command, args []string) error {
			var src io.Reader = cmd.InOrStdin()
			if file != "" && file != "-" {
				f, err := os.Open(file)
				if err != nil {
					return fmt.Errorf("failed to open %s: %w", file, err)
				}
				defer f.Close()
				src = f
			}

			var attrs facility.Attributes
			if err := json.NewDecoder(src).Decode(&attrs); err != nil {
				return fmt.Errorf("failed to decode attributes: %w", err)
			}
			writeResult(cmd.OutOrStdout(), facility.Rate(attrs))
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "JSON attribute bag (stdin when empty or -)")
	return cmd
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create tables and indexes if they do not exist",
		RunE: withApp(func(cmd *cobra.Command, a *app) error {
			if err := a.db.EnsureSchema(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "database schema ensured")
			return nil
		}),
	}
}

func readOwnerCSV(path string) ([]owner.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	return owner.ParseCSV(f)
}

func writeResult(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}
