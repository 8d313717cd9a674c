package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"agrifood.ai/internal/persistence/indexdb"
	"agrifood.ai/internal/persistence/snapshot"
	"agrifood.ai/internal/sim/baseline"
	"agrifood.ai/internal/sim/catalogs"
	"agrifood.ai/internal/sim/digest"
)

func newBaselineCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "baseline",
		Short: "Manage baseline datasets",
	}
	cmd.AddCommand(
		newBaselineDemoCmd(a),
		newBaselineImportCmd(a),
		newBaselineListCmd(a),
		newBaselineSnapshotCmd(a),
		newBaselineDigestCmd(a),
	)
	return cmd
}

func newBaselineDemoCmd(a *app) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Write the bundled demo dataset as yaml",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ds := baseline.Demo()
			if out == "" {
				b, err := baseline.Marshal(ds)
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(b)
				return err
			}
			if err := baseline.WriteFile(out, ds); err != nil {
				return err
			}
			a.log.Info("demo dataset written", zap.String("path", out))
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")
	return cmd
}

func newBaselineImportCmd(a *app) *cobra.Command {
	var db, name string
	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Check a yaml dataset against the catalogs and store it in the sqlite index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cats, err := catalogs.Load(a.configDir)
			if err != nil {
				return err
			}
			tune, err := a.tuning()
			if err != nil {
				return err
			}
			path := args[0]
			load := checked(cats, func(context.Context) (*baseline.Dataset, error) { return baseline.ReadFile(path) })
			ds, err := load(cmd.Context())
			if err != nil {
				return err
			}
			if name != "" {
				ds.Name = name
			}
			if ds.Name == "" {
				ds.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
			}

			store, err := indexdb.OpenSQLite(db)
			if err != nil {
				return err
			}
			defer store.Close()
			if err := store.UpsertCatalogs(a.configDir, cats, tune); err != nil {
				return err
			}
			sum, err := store.ImportDataset(cmd.Context(), ds)
			if err != nil {
				return err
			}
			a.log.Info("dataset imported", zap.String("name", ds.Name), zap.String("digest", sum))
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", ds.Name, sum)
			return err
		},
	}
	cmd.Flags().StringVar(&db, "db", "data/index.db", "sqlite index path")
	cmd.Flags().StringVar(&name, "name", "", "dataset name (default: name in the file, then the file name)")
	return cmd
}

func newBaselineListCmd(a *app) *cobra.Command {
	var db string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List datasets in the sqlite index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := indexdb.OpenSQLite(db)
			if err != nil {
				return err
			}
			defer store.Close()
			infos, err := store.Datasets(cmd.Context())
			if err != nil {
				return err
			}
			t := newTable("name", "items", "years", "digest", "imported")
			for _, d := range infos {
				t.Row(d.Name, strconv.Itoa(d.Items), fmt.Sprintf("%d-%d", d.FirstYear, d.LastYear), short(d.Digest), d.ImportedAt)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), t.Render())
			return err
		},
	}
	cmd.Flags().StringVar(&db, "db", "data/index.db", "sqlite index path")
	return cmd
}

func newBaselineSnapshotCmd(a *app) *cobra.Command {
	var src source
	var out string
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Write a baseline snapshot (.snap.zst) for fast startup",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if out == "" {
				return fmt.Errorf("--out is required")
			}
			load, store, err := src.open(a.log)
			if err != nil {
				return err
			}
			if store != nil {
				defer store.Close()
			}
			ds, err := load(cmd.Context())
			if err != nil {
				return err
			}
			snap, err := snapshot.New(ds)
			if err != nil {
				return err
			}
			if err := snapshot.WriteSnapshot(out, snap); err != nil {
				return err
			}
			a.log.Info("snapshot written", zap.String("path", out), zap.String("digest", snap.Header.Digest))
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", out, snap.Header.Digest)
			return err
		},
	}
	src.bind(cmd)
	cmd.Flags().StringVarP(&out, "out", "o", "", "snapshot file to write")
	return cmd
}

func newBaselineDigestCmd(a *app) *cobra.Command {
	var src source
	cmd := &cobra.Command{
		Use:   "digest",
		Short: "Print the digest of the assembled baseline",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			load, store, err := src.open(a.log)
			if err != nil {
				return err
			}
			if store != nil {
				defer store.Close()
			}
			ds, err := load(cmd.Context())
			if err != nil {
				return err
			}
			block, err := baseline.Assemble(ds)
			if err != nil {
				return err
			}
			sum, err := digest.DataBlock(block)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), sum)
			return err
		},
	}
	src.bind(cmd)
	return cmd
}
