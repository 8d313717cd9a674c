package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"agrifood.ai/internal/persistence/indexdb"
	"agrifood.ai/internal/persistence/snapshot"
	"agrifood.ai/internal/sim/baseline"
	"agrifood.ai/internal/sim/catalogs"
)

// source selects where the baseline dataset comes from: a snapshot file, a
// yaml dataset, the sqlite store or the bundled demo, in that order.
type source struct {
	snapshot string
	file     string
	db       string
	dataset  string
}

func (s *source) bind(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&s.snapshot, "snapshot", "", "baseline snapshot file (.snap.zst)")
	f.StringVar(&s.file, "dataset-file", "", "baseline dataset yaml")
	f.StringVar(&s.db, "db", "", "sqlite index path")
	f.StringVar(&s.dataset, "dataset", "demo", "dataset name in the sqlite index")
}

// open returns the baseline loader and the sqlite store when --db is set.
// The caller closes the store.
func (s *source) open(log *zap.Logger) (baseline.Loader, *indexdb.SQLiteStore, error) {
	var store *indexdb.SQLiteStore
	if p := strings.TrimSpace(s.db); p != "" {
		st, err := indexdb.OpenSQLite(p)
		if err != nil {
			return nil, nil, fmt.Errorf("open index: %w", err)
		}
		store = st
	}

	switch {
	case strings.TrimSpace(s.snapshot) != "":
		log.Info("baseline from snapshot", zap.String("path", s.snapshot))
		return snapshot.Loader(s.snapshot), store, nil
	case strings.TrimSpace(s.file) != "":
		log.Info("baseline from file", zap.String("path", s.file))
		path := s.file
		return func(context.Context) (*baseline.Dataset, error) { return baseline.ReadFile(path) }, store, nil
	case store != nil && s.dataset != "demo":
		log.Info("baseline from index", zap.String("db", s.db), zap.String("dataset", s.dataset))
		return store.Loader(s.dataset), store, nil
	case store != nil:
		// The demo can still be imported under its own name.
		st := store
		return func(ctx context.Context) (*baseline.Dataset, error) {
			ds, err := st.LoadDataset(ctx, "demo")
			if errors.Is(err, indexdb.ErrNotFound) {
				log.Info("demo dataset not imported; using bundled demo")
				return baseline.Demo(), nil
			}
			return ds, err
		}, store, nil
	default:
		log.Info("baseline from bundled demo")
		return func(context.Context) (*baseline.Dataset, error) { return baseline.Demo(), nil }, nil, nil
	}
}

// checked rejects datasets whose items or land classes disagree with the
// catalogs.
func checked(cats *catalogs.Catalogs, load baseline.Loader) baseline.Loader {
	return func(ctx context.Context) (*baseline.Dataset, error) {
		ds, err := load(ctx)
		if err != nil {
			return nil, err
		}
		if err := cats.CheckItems(ds.Items); err != nil {
			return nil, err
		}
		if err := cats.CheckClasses(ds.Land.Classes); err != nil {
			return nil, err
		}
		return ds, nil
	}
}
