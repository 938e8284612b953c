package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"bullbear/internal/domain"
	"bullbear/internal/ports"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Repository implements the ports.RunRepository interface using SQLite.
type Repository struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite repository.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewRepository creates a new SQLite repository instance.
func NewRepository(cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite repository")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/bullbear.db" // Default path
	}

	dsn := dbPath + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"
	if dbPath == ":memory:" {
		dsn = "file::memory:?cache=shared&_foreign_keys=on"
	} else {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
			cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
			return nil, err
		}
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w: %w", dbPath, ports.ErrDBConnection, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("failed to ping database at '%s': %w: %w", dbPath, ports.ErrDBConnection, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// A single connection keeps SQLite writes serialized.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cfg.Logger.Info(context.Background(), "SQLite database connection established", map[string]interface{}{"path": dbPath})

	repo := &Repository{db: db, logger: cfg.Logger}
	if err := repo.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	cfg.Logger.Debug(context.Background(), "Database schema initialized/verified")

	return repo, nil
}

// initializeSchema creates tables if they don't exist.
func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS analysis_runs (
		id TEXT PRIMARY KEY,
		symbol TEXT NOT NULL,
		source TEXT NOT NULL,
		threshold REAL NOT NULL,
		observations INTEGER NOT NULL,
		created_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS market_segments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES analysis_runs(id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		kind TEXT NOT NULL CHECK (kind IN ('Bull', 'Bear')),
		start_time TIMESTAMP NOT NULL,
		start_price REAL NOT NULL,
		end_time TIMESTAMP NOT NULL,
		end_price REAL NOT NULL,
		crossing_time TIMESTAMP NULL,
		crossing_price REAL NULL,
		UNIQUE (run_id, seq)
	);
	CREATE INDEX IF NOT EXISTS idx_analysis_runs_symbol_created ON analysis_runs (symbol, created_at);
	`
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r.db != nil {
		r.logger.Debug(context.Background(), "Closing SQLite database connection")
		return r.db.Close()
	}
	return nil
}

// SaveRun persists the run and its segments in one transaction.
func (r *Repository) SaveRun(ctx context.Context, run *domain.AnalysisRun) error {
	if run == nil || run.ID == "" {
		return fmt.Errorf("%w: run without ID", ports.ErrInvalidInput)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for run %s: %w: %w", run.ID, ports.ErrQueryFailed, err)
	}
	defer tx.Rollback() // No-op after commit

	const runQuery = `
	INSERT INTO analysis_runs (id, symbol, source, threshold, observations, created_at)
	VALUES (?, ?, ?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, runQuery,
		run.ID, run.Symbol, run.Source, run.Threshold, run.Observations, run.CreatedAt.UTC()); err != nil {
		return fmt.Errorf("failed to insert run %s: %w: %w", run.ID, ports.ErrQueryFailed, err)
	}

	const segmentQuery = `
	INSERT INTO market_segments (run_id, seq, kind, start_time, start_price, end_time, end_price,
	                             crossing_time, crossing_price)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	stmt, err := tx.PrepareContext(ctx, segmentQuery)
	if err != nil {
		return fmt.Errorf("failed to prepare segment insert: %w: %w", ports.ErrQueryFailed, err)
	}
	defer stmt.Close()

	for i, seg := range run.Segments {
		var crossingTime sql.NullTime
		var crossingPrice sql.NullFloat64
		if seg.Crossing != nil {
			crossingTime = sql.NullTime{Time: seg.Crossing.Time.UTC(), Valid: true}
			crossingPrice = sql.NullFloat64{Float64: seg.Crossing.Price, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, run.ID, i+1, string(seg.Kind),
			seg.Start.Time.UTC(), seg.Start.Price, seg.End.Time.UTC(), seg.End.Price,
			crossingTime, crossingPrice); err != nil {
			return fmt.Errorf("failed to insert segment %d of run %s: %w: %w", i+1, run.ID, ports.ErrQueryFailed, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run %s: %w: %w", run.ID, ports.ErrQueryFailed, err)
	}
	r.logger.Debug(ctx, "Analysis run saved", map[string]interface{}{"runID": run.ID, "symbol": run.Symbol, "segments": len(run.Segments)})
	return nil
}

// FindRun retrieves a run and its segments by ID.
func (r *Repository) FindRun(ctx context.Context, id string) (*domain.AnalysisRun, error) {
	const query = `
	SELECT id, symbol, source, threshold, observations, created_at
	FROM analysis_runs
	WHERE id = ?`

	run, err := scanRun(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.logger.Debug(ctx, "Run not found by ID", map[string]interface{}{"runID": id})
			return nil, nil // Not an error, just not found
		}
		return nil, fmt.Errorf("failed to query run %s: %w", id, err)
	}

	segments, err := r.findSegments(ctx, id)
	if err != nil {
		return nil, err
	}
	run.Segments = segments
	return run, nil
}

// ListRuns retrieves the most recent runs, optionally filtered by symbol.
func (r *Repository) ListRuns(ctx context.Context, symbol string, limit int) ([]*domain.AnalysisRun, error) {
	if limit <= 0 {
		limit = 20
	}
	const query = `
	SELECT id, symbol, source, threshold, observations, created_at
	FROM analysis_runs
	WHERE (? = '' OR symbol = ?)
	ORDER BY created_at DESC, id
	LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, symbol, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs for symbol %q: %w", symbol, err)
	}
	defer rows.Close()

	runs := make([]*domain.AnalysisRun, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run during ListRuns: %w", err)
		}
		runs = append(runs, run)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating run rows: %w", err)
	}
	return runs, nil
}

func (r *Repository) findSegments(ctx context.Context, runID string) ([]domain.Segment, error) {
	const query = `
	SELECT kind, start_time, start_price, end_time, end_price, crossing_time, crossing_price
	FROM market_segments
	WHERE run_id = ?
	ORDER BY seq`

	rows, err := r.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query segments of run %s: %w", runID, err)
	}
	defer rows.Close()

	segments := make([]domain.Segment, 0)
	for rows.Next() {
		seg, err := scanSegment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan segment of run %s: %w", runID, err)
		}
		segments = append(segments, seg)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating segment rows: %w", err)
	}
	return segments, nil
}

// --- Helper Scan Functions ---

// scanner defines an interface compatible with *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(s scanner) (*domain.AnalysisRun, error) {
	run := &domain.AnalysisRun{}
	err := s.Scan(&run.ID, &run.Symbol, &run.Source, &run.Threshold, &run.Observations, &run.CreatedAt)
	if err != nil {
		return nil, err // Handle sql.ErrNoRows in the caller
	}
	return run, nil
}

func scanSegment(s scanner) (domain.Segment, error) {
	var seg domain.Segment
	var kind string
	var crossingTime sql.NullTime
	var crossingPrice sql.NullFloat64
	err := s.Scan(&kind, &seg.Start.Time, &seg.Start.Price, &seg.End.Time, &seg.End.Price, &crossingTime, &crossingPrice)
	if err != nil {
		return seg, err
	}
	seg.Kind = domain.MarketKind(kind)
	if crossingTime.Valid && crossingPrice.Valid {
		seg.Crossing = &domain.PricePoint{Time: crossingTime.Time, Price: crossingPrice.Float64}
	}
	return seg, nil
}
