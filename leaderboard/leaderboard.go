// Package leaderboard persists the ranked candidates of completed jobs in an
// embedded SQLite database so experiments can be compared across runs.
package leaderboard

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/YuminosukeSato/intelliml/pkg/errors"
	"github.com/YuminosukeSato/intelliml/pkg/log"
	"github.com/YuminosukeSato/intelliml/registry"
)

// Entry is one candidate of one recorded job.
type Entry struct {
	JobID     string
	Rank      int
	Target    string
	Task      string
	ModelID   string
	Family    string
	ModelName string
	Metric    string
	Score     float64
	CVMean    float64
	CVStd     float64
	Params    map[string]interface{}
	CreatedAt time.Time
}

// Store is the SQLite-backed leaderboard.
type Store struct {
	db     *sql.DB
	logger log.Logger
}

const schema = `
CREATE TABLE IF NOT EXISTS candidates (
	job_id     TEXT NOT NULL,
	rank       INTEGER NOT NULL,
	target     TEXT NOT NULL,
	task       TEXT NOT NULL,
	model_id   TEXT NOT NULL,
	family     TEXT NOT NULL,
	model_name TEXT NOT NULL,
	metric     TEXT NOT NULL,
	score      REAL NOT NULL,
	cv_mean    REAL NOT NULL,
	cv_std     REAL NOT NULL,
	params     TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	PRIMARY KEY (job_id, rank)
);
CREATE INDEX IF NOT EXISTS idx_candidates_score ON candidates(score DESC);
`

// Open opens or creates the database at path. ":memory:" gives a private
// in-memory leaderboard.
func Open(path string) (*Store, error) {
	const op = "leaderboard.Open"
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(10000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, op)
	}
	// sqlite serialises writers; one connection also keeps :memory: shared.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(time.Hour)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, op)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, op)
	}
	return &Store{db: db, logger: log.GetLoggerWithName("leaderboard")}, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// Record stores every candidate of job in rank order.
func (s *Store) Record(ctx context.Context, job *registry.Job) error {
	const op = "leaderboard.Record"
	if job == nil || job.Result == nil {
		return errors.NewStateError(op, "job", "", errors.ErrNoTrainedModel)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, op)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO candidates
		(job_id, rank, target, task, model_id, family, model_name, metric, score, cv_mean, cv_std, params, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return errors.Wrap(err, op)
	}
	defer stmt.Close()

	for i, c := range job.Result.Results {
		params, err := json.Marshal(c.Params)
		if err != nil {
			return errors.Wrap(err, op)
		}
		if _, err := stmt.ExecContext(ctx,
			job.ID, i+1, job.Target, string(job.Task), string(c.ModelID), c.Family.String(), c.ModelName,
			c.MetricName, c.Score, c.CVMean, c.CVStd, string(params), job.CreatedAt.UTC(),
		); err != nil {
			return errors.Wrapf(err, "%s: candidate %s", op, c.ModelID)
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, op)
	}
	s.logger.Debug("job recorded", log.JobIDKey, job.ID, log.CandidatesKey, len(job.Result.Results))
	return nil
}

const selectEntries = `SELECT job_id, rank, target, task, model_id, family, model_name, metric,
	score, cv_mean, cv_std, params, created_at FROM candidates`

// Top returns the n best candidates across all jobs, by score. Equal scores
// list the earlier job first.
func (s *Store) Top(ctx context.Context, n int) ([]Entry, error) {
	return s.query(ctx, "leaderboard.Top",
		selectEntries+` ORDER BY score DESC, created_at ASC, rank ASC LIMIT ?`, n)
}

// ForJob returns the candidates of one job in rank order.
func (s *Store) ForJob(ctx context.Context, jobID string) ([]Entry, error) {
	return s.query(ctx, "leaderboard.ForJob",
		selectEntries+` WHERE job_id = ? ORDER BY rank ASC`, jobID)
}

func (s *Store) query(ctx context.Context, op, q string, args ...any) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errors.Wrap(err, op)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var params string
		if err := rows.Scan(&e.JobID, &e.Rank, &e.Target, &e.Task, &e.ModelID, &e.Family, &e.ModelName,
			&e.Metric, &e.Score, &e.CVMean, &e.CVStd, &params, &e.CreatedAt); err != nil {
			return nil, errors.Wrap(err, op)
		}
		if err := json.Unmarshal([]byte(params), &e.Params); err != nil {
			return nil, errors.Wrap(err, op)
		}
		out = append(out, e)
	}
	return out, errors.Wrap(rows.Err(), op)
}
