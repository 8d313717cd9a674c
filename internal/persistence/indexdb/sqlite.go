package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"agrifood.ai/internal/sim/baseline"
	"agrifood.ai/internal/sim/catalogs"
	"agrifood.ai/internal/sim/digest"
	"agrifood.ai/internal/sim/fbs"
	"agrifood.ai/internal/sim/pipeline"
	"agrifood.ai/internal/sim/scenario"
	"agrifood.ai/internal/sim/tuning"
)

var ErrNotFound = errors.New("dataset not found")

const schemaVersion = "1"

// SQLiteStore keeps imported baseline datasets and an index of scenario
// runs. Datasets are written synchronously; run and step rows go through a
// buffered writer goroutine and are dropped when it falls behind.
type SQLiteStore struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropRun  atomic.Uint64
	dropStep atomic.Uint64
}

type reqKind int

const (
	reqRun reqKind = iota + 1
	reqStep
)

type req struct {
	kind reqKind

	run  runRow
	step pipeline.StepRecord
}

type runRow struct {
	RunID      string
	Source     string
	Preset     string
	Digest     string
	Levers     []byte
	Summary    []byte
	Warnings   int
	RecordedAt string
}

type QueueStats struct {
	DropRunTotal  uint64 `json:"drop_run_total"`
	DropStepTotal uint64 `json:"drop_step_total"`
	QueueDepth    int    `json:"queue_depth"`
	QueueCapacity int    `json:"queue_capacity"`
}

type DatasetInfo struct {
	Name       string `json:"name"`
	Digest     string `json:"digest"`
	Items      int    `json:"items"`
	FirstYear  int    `json:"first_year"`
	LastYear   int    `json:"last_year"`
	ImportedAt string `json:"imported_at"`
}

type RunInfo struct {
	RunID      string          `json:"run_id"`
	Source     string          `json:"source"`
	Preset     string          `json:"preset,omitempty"`
	Digest     string          `json:"digest"`
	Warnings   int             `json:"warnings"`
	Steps      int             `json:"steps"`
	Summary    json.RawMessage `json:"summary,omitempty"`
	RecordedAt string          `json:"recorded_at"`
}

func OpenSQLite(path string) (*SQLiteStore, error) {
	return openSQLite(path, 4096)
}

func openSQLite(path string, queue int) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteStore{
		db: db,
		ch: make(chan req, queue),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS catalogs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS datasets (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			years_json TEXT NOT NULL,
			width INTEGER NOT NULL,
			height INTEGER NOT NULL,
			classes_json TEXT NOT NULL,
			imported_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS items (
			dataset TEXT NOT NULL REFERENCES datasets(name) ON DELETE CASCADE,
			pos INTEGER NOT NULL,
			code INTEGER NOT NULL,
			name TEXT NOT NULL,
			grp TEXT NOT NULL,
			origin TEXT NOT NULL,
			PRIMARY KEY (dataset, code)
		);`,
		`CREATE TABLE IF NOT EXISTS flows (
			dataset TEXT NOT NULL REFERENCES datasets(name) ON DELETE CASCADE,
			code INTEGER NOT NULL,
			element TEXT NOT NULL,
			year INTEGER NOT NULL,
			tonnes REAL NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_flows_dataset_code ON flows(dataset, code, element, year);`,
		`CREATE TABLE IF NOT EXISTS population (
			dataset TEXT NOT NULL REFERENCES datasets(name) ON DELETE CASCADE,
			year INTEGER NOT NULL,
			people REAL NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS nutrients (
			dataset TEXT NOT NULL REFERENCES datasets(name) ON DELETE CASCADE,
			code INTEGER NOT NULL,
			kcal REAL NOT NULL,
			protein REAL NOT NULL,
			fat REAL NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS emission_factors (
			dataset TEXT NOT NULL REFERENCES datasets(name) ON DELETE CASCADE,
			code INTEGER NOT NULL,
			factor REAL NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS land_cover (
			dataset TEXT NOT NULL REFERENCES datasets(name) ON DELETE CASCADE,
			cell INTEGER NOT NULL,
			class TEXT NOT NULL,
			pct REAL NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS grades (
			dataset TEXT NOT NULL REFERENCES datasets(name) ON DELETE CASCADE,
			cell INTEGER NOT NULL,
			grade REAL,
			PRIMARY KEY (dataset, cell)
		);`,
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			preset TEXT NOT NULL,
			digest TEXT NOT NULL,
			levers_json TEXT NOT NULL,
			summary_json TEXT NOT NULL,
			warnings INTEGER NOT NULL,
			recorded_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS steps (
			run_id TEXT NOT NULL,
			idx INTEGER NOT NULL,
			step TEXT NOT NULL,
			took_ms REAL NOT NULL,
			warnings INTEGER NOT NULL,
			digest TEXT NOT NULL,
			PRIMARY KEY (run_id, idx)
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteStore) Stats() QueueStats {
	return QueueStats{
		DropRunTotal:  s.dropRun.Load(),
		DropStepTotal: s.dropStep.Load(),
		QueueDepth:    len(s.ch),
		QueueCapacity: cap(s.ch),
	}
}

var _ pipeline.Tracer = (*SQLiteStore)(nil)

// StepDone queues a step row. It never fails the run.
func (s *SQLiteStore) StepDone(rec pipeline.StepRecord) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqStep, step: rec}:
	default:
		s.dropStep.Add(1)
	}
	return nil
}

func (s *SQLiteStore) RecordRun(source string, out *scenario.Outcome) {
	if s == nil || s.closed.Load() || out == nil {
		return
	}
	levers, _ := json.Marshal(out.Levers)
	summary, _ := json.Marshal(out.Summary)
	r := runRow{
		RunID:      out.RunID,
		Source:     source,
		Preset:     out.Preset,
		Digest:     out.Digest,
		Levers:     levers,
		Summary:    summary,
		Warnings:   len(out.Warnings),
		RecordedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	select {
	case s.ch <- req{kind: reqRun, run: r}:
	default:
		s.dropRun.Add(1)
	}
}

func (s *SQLiteStore) UpsertCatalogs(configDir string, cats *catalogs.Catalogs, tune tuning.Tuning) error {
	if s == nil {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	type kv struct {
		name   string
		digest string
		json   []byte
	}
	var rows []kv
	if b, err := os.ReadFile(filepath.Join(configDir, "items.json")); err == nil {
		rows = append(rows, kv{name: "items", digest: cats.Items.Digest, json: b})
	}
	if b, _ := json.Marshal(cats.Items.Codes); len(b) > 0 {
		rows = append(rows, kv{name: "item_codes", digest: cats.Items.CodesDigest, json: b})
	}
	if b, err := os.ReadFile(filepath.Join(configDir, "land_classes.json")); err == nil {
		rows = append(rows, kv{name: "land_classes", digest: cats.LandClasses.Digest, json: b})
	}
	{
		b, _ := json.Marshal(tune)
		sum := sha256.Sum256(b)
		rows = append(rows, kv{name: "tuning", digest: hex.EncodeToString(sum[:]), json: b})
	}

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version',?)`, schemaVersion); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO catalogs(name,digest,json,updated_at) VALUES(?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range rows {
		if r.digest == "" || len(r.json) == 0 {
			continue
		}
		if _, err := stmt.Exec(r.name, r.digest, string(r.json), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// CatalogDigests returns the stored digest per catalog name.
func (s *SQLiteStore) CatalogDigests(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, digest FROM catalogs`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]string{}
	for rows.Next() {
		var name, d string
		if err := rows.Scan(&name, &d); err != nil {
			return nil, err
		}
		out[name] = d
	}
	return out, rows.Err()
}

// ImportDataset replaces any dataset of the same name and returns the digest
// of the baseline block it assembles to.
func (s *SQLiteStore) ImportDataset(ctx context.Context, ds *baseline.Dataset) (string, error) {
	if ds.Name == "" {
		return "", fmt.Errorf("dataset has no name")
	}
	block, err := baseline.Assemble(ds)
	if err != nil {
		return "", err
	}
	sum, err := digest.DataBlock(block)
	if err != nil {
		return "", err
	}
	years, _ := json.Marshal(ds.Years)
	classes, _ := json.Marshal(ds.Land.Classes)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM datasets WHERE name=?`, ds.Name); err != nil {
		return "", err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO datasets(name,digest,years_json,width,height,classes_json,imported_at) VALUES(?,?,?,?,?,?,?)`,
		ds.Name, sum, string(years), ds.Land.Width, ds.Land.Height, string(classes),
		time.Now().UTC().Format(time.RFC3339Nano),
	); err != nil {
		return "", err
	}

	if err := insertAll(ctx, tx, `INSERT INTO items(dataset,pos,code,name,grp,origin) VALUES(?,?,?,?,?,?)`, len(ds.Items), func(i int) []any {
		it := ds.Items[i]
		return []any{ds.Name, i, it.Code, it.Name, it.Group, it.Origin}
	}); err != nil {
		return "", fmt.Errorf("items: %w", err)
	}
	if err := insertAll(ctx, tx, `INSERT INTO flows(dataset,code,element,year,tonnes) VALUES(?,?,?,?,?)`, len(ds.Flows), func(i int) []any {
		f := ds.Flows[i]
		return []any{ds.Name, f.Code, string(f.Element), f.Year, f.Tonnes}
	}); err != nil {
		return "", fmt.Errorf("flows: %w", err)
	}
	if err := insertAll(ctx, tx, `INSERT INTO population(dataset,year,people) VALUES(?,?,?)`, len(ds.Population), func(i int) []any {
		p := ds.Population[i]
		return []any{ds.Name, p.Year, p.People}
	}); err != nil {
		return "", fmt.Errorf("population: %w", err)
	}
	if err := insertAll(ctx, tx, `INSERT INTO nutrients(dataset,code,kcal,protein,fat) VALUES(?,?,?,?,?)`, len(ds.Nutrients), func(i int) []any {
		n := ds.Nutrients[i]
		return []any{ds.Name, n.Code, n.Kcal, n.Protein, n.Fat}
	}); err != nil {
		return "", fmt.Errorf("nutrients: %w", err)
	}
	if err := insertAll(ctx, tx, `INSERT INTO emission_factors(dataset,code,factor) VALUES(?,?,?)`, len(ds.Emissions), func(i int) []any {
		e := ds.Emissions[i]
		return []any{ds.Name, e.Code, e.Factor}
	}); err != nil {
		return "", fmt.Errorf("emission factors: %w", err)
	}
	if err := insertAll(ctx, tx, `INSERT INTO land_cover(dataset,cell,class,pct) VALUES(?,?,?,?)`, len(ds.Land.Cover), func(i int) []any {
		c := ds.Land.Cover[i]
		return []any{ds.Name, c.Cell, c.Class, c.Pct}
	}); err != nil {
		return "", fmt.Errorf("land cover: %w", err)
	}
	if err := insertAll(ctx, tx, `INSERT INTO grades(dataset,cell,grade) VALUES(?,?,?)`, len(ds.Land.Grades), func(i int) []any {
		g := sql.NullFloat64{Float64: ds.Land.Grades[i], Valid: !math.IsNaN(ds.Land.Grades[i])}
		return []any{ds.Name, i, g}
	}); err != nil {
		return "", fmt.Errorf("grades: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}
	return sum, nil
}

func insertAll(ctx context.Context, tx *sql.Tx, query string, n int, args func(i int) []any) error {
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i := 0; i < n; i++ {
		if _, err := stmt.ExecContext(ctx, args(i)...); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) LoadDataset(ctx context.Context, name string) (*baseline.Dataset, error) {
	ds := &baseline.Dataset{Name: name}
	var years, classes string
	err := s.db.QueryRowContext(ctx,
		`SELECT years_json, width, height, classes_json FROM datasets WHERE name=?`, name,
	).Scan(&years, &ds.Land.Width, &ds.Land.Height, &classes)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(years), &ds.Years); err != nil {
		return nil, fmt.Errorf("years: %w", err)
	}
	if err := json.Unmarshal([]byte(classes), &ds.Land.Classes); err != nil {
		return nil, fmt.Errorf("classes: %w", err)
	}

	if err := queryEach(ctx, s.db, `SELECT code,name,grp,origin FROM items WHERE dataset=? ORDER BY pos`, name, func(rows *sql.Rows) error {
		var it fbs.Item
		if err := rows.Scan(&it.Code, &it.Name, &it.Group, &it.Origin); err != nil {
			return err
		}
		ds.Items = append(ds.Items, it)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("items: %w", err)
	}
	if err := queryEach(ctx, s.db, `SELECT code,element,year,tonnes FROM flows WHERE dataset=? ORDER BY rowid`, name, func(rows *sql.Rows) error {
		var f baseline.Flow
		var el string
		if err := rows.Scan(&f.Code, &el, &f.Year, &f.Tonnes); err != nil {
			return err
		}
		f.Element = fbs.Element(el)
		ds.Flows = append(ds.Flows, f)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("flows: %w", err)
	}
	if err := queryEach(ctx, s.db, `SELECT year,people FROM population WHERE dataset=? ORDER BY rowid`, name, func(rows *sql.Rows) error {
		var p baseline.Population
		if err := rows.Scan(&p.Year, &p.People); err != nil {
			return err
		}
		ds.Population = append(ds.Population, p)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("population: %w", err)
	}
	if err := queryEach(ctx, s.db, `SELECT code,kcal,protein,fat FROM nutrients WHERE dataset=? ORDER BY rowid`, name, func(rows *sql.Rows) error {
		var n baseline.Nutrient
		if err := rows.Scan(&n.Code, &n.Kcal, &n.Protein, &n.Fat); err != nil {
			return err
		}
		ds.Nutrients = append(ds.Nutrients, n)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("nutrients: %w", err)
	}
	if err := queryEach(ctx, s.db, `SELECT code,factor FROM emission_factors WHERE dataset=? ORDER BY rowid`, name, func(rows *sql.Rows) error {
		var e baseline.EmissionFactor
		if err := rows.Scan(&e.Code, &e.Factor); err != nil {
			return err
		}
		ds.Emissions = append(ds.Emissions, e)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("emission factors: %w", err)
	}
	if err := queryEach(ctx, s.db, `SELECT cell,class,pct FROM land_cover WHERE dataset=? ORDER BY rowid`, name, func(rows *sql.Rows) error {
		var c baseline.Cover
		if err := rows.Scan(&c.Cell, &c.Class, &c.Pct); err != nil {
			return err
		}
		ds.Land.Cover = append(ds.Land.Cover, c)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("land cover: %w", err)
	}

	ds.Land.Grades = make([]float64, ds.Land.Width*ds.Land.Height)
	for i := range ds.Land.Grades {
		ds.Land.Grades[i] = math.NaN()
	}
	if err := queryEach(ctx, s.db, `SELECT cell,grade FROM grades WHERE dataset=?`, name, func(rows *sql.Rows) error {
		var cell int
		var g sql.NullFloat64
		if err := rows.Scan(&cell, &g); err != nil {
			return err
		}
		if cell < 0 || cell >= len(ds.Land.Grades) {
			return fmt.Errorf("grade for cell %d outside the raster", cell)
		}
		if g.Valid {
			ds.Land.Grades[cell] = g.Float64
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("grades: %w", err)
	}
	return ds, nil
}

func queryEach(ctx context.Context, db *sql.DB, query, name string, scan func(*sql.Rows) error) error {
	rows, err := db.QueryContext(ctx, query, name)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Loader reads the named dataset on every call.
func (s *SQLiteStore) Loader(name string) baseline.Loader {
	return func(ctx context.Context) (*baseline.Dataset, error) {
		return s.LoadDataset(ctx, name)
	}
}

func (s *SQLiteStore) Datasets(ctx context.Context) ([]DatasetInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT d.name, d.digest, d.years_json, d.imported_at,
			(SELECT COUNT(*) FROM items i WHERE i.dataset = d.name)
		FROM datasets d ORDER BY d.name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []DatasetInfo
	for rows.Next() {
		var info DatasetInfo
		var years string
		if err := rows.Scan(&info.Name, &info.Digest, &years, &info.ImportedAt, &info.Items); err != nil {
			return nil, err
		}
		var ys []int
		if err := json.Unmarshal([]byte(years), &ys); err == nil && len(ys) > 0 {
			info.FirstYear, info.LastYear = ys[0], ys[len(ys)-1]
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

// Runs lists the most recent runs first.
func (s *SQLiteStore) Runs(ctx context.Context, limit int) ([]RunInfo, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.run_id, r.source, r.preset, r.digest, r.warnings, r.summary_json, r.recorded_at,
			(SELECT COUNT(*) FROM steps s WHERE s.run_id = r.run_id)
		FROM runs r ORDER BY r.recorded_at DESC, r.run_id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []RunInfo
	for rows.Next() {
		var ri RunInfo
		var summary string
		if err := rows.Scan(&ri.RunID, &ri.Source, &ri.Preset, &ri.Digest, &ri.Warnings, &summary, &ri.RecordedAt, &ri.Steps); err != nil {
			return nil, err
		}
		ri.Summary = json.RawMessage(summary)
		out = append(out, ri)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) loop() {
	ctx := context.Background()

	insertRun, _ := s.db.Prepare(`INSERT OR REPLACE INTO runs(run_id,source,preset,digest,levers_json,summary_json,warnings,recorded_at) VALUES(?,?,?,?,?,?,?,?)`)
	insertStep, _ := s.db.Prepare(`INSERT OR REPLACE INTO steps(run_id,idx,step,took_ms,warnings,digest) VALUES(?,?,?,?,?,?)`)
	defer func() {
		if insertRun != nil {
			_ = insertRun.Close()
		}
		if insertStep != nil {
			_ = insertStep.Close()
		}
	}()

	// Batch while a backlog exists; commit once the queue drains.
	var (
		tx          *sql.Tx
		opCount     int
		commitEvery = 500
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqRun:
			ru := r.run
			if insertRun == nil {
				continue
			}
			if _, err := tx.Stmt(insertRun).Exec(
				ru.RunID, ru.Source, ru.Preset, ru.Digest,
				string(ru.Levers), string(ru.Summary), ru.Warnings, ru.RecordedAt,
			); err != nil {
				rollback()
				continue
			}
			opCount++

		case reqStep:
			st := r.step
			if insertStep == nil {
				continue
			}
			if _, err := tx.Stmt(insertStep).Exec(
				st.RunID, st.Index, st.Step, st.TookMS, len(st.Warnings), st.Digest,
			); err != nil {
				rollback()
				continue
			}
			opCount++
		}
		if opCount >= commitEvery || len(s.ch) == 0 {
			commit()
		}
	}
	commit()
}
