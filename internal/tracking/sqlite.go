package tracking

import (
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

//go:embed schema.sql
var schemaSQL string

// SQLite stores runs in a local sqlite database.
type SQLite struct {
	db *sql.DB
	id string
}

// OpenSQLite opens (creating if needed) the database at path and starts a
// new run in it.
func OpenSQLite(path string, run Run) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", path)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "failed to create schema in %s", path)
	}

	s := &SQLite{db: db, id: uuid.NewString()}
	_, err = db.Exec(
		`INSERT INTO runs (id, entity, project, grp, name, started_at) VALUES (?, ?, ?, ?, ?, ?)`,
		s.id, run.Entity, run.Project, run.Group, run.Name, time.Now().UTC(),
	)
	if err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "failed to start run")
	}
	return s, nil
}

// RunID returns the id of the run.
func (s *SQLite) RunID() string {
	return s.id
}

func (s *SQLite) Config(values map[string]interface{}) error {
	tx, err := s.db.Begin()
	if err != nil {
		return errors.Wrapf(err, "failed to begin transaction")
	}
	for _, k := range sortedKeys(values) {
		_, err := tx.Exec(`INSERT OR REPLACE INTO config (run_id, key, value) VALUES (?, ?, ?)`,
			s.id, k, fmt.Sprint(values[k]))
		if err != nil {
			tx.Rollback()
			return errors.Wrapf(err, "failed to record %s", k)
		}
	}
	return tx.Commit()
}

func (s *SQLite) Log(step int, values map[string]interface{}) error {
	tx, err := s.db.Begin()
	if err != nil {
		return errors.Wrapf(err, "failed to begin transaction")
	}
	for _, k := range sortedKeys(values) {
		var num sql.NullFloat64
		var text sql.NullString
		switch v := values[k].(type) {
		case float64:
			num = sql.NullFloat64{Float64: v, Valid: true}
		case float32:
			num = sql.NullFloat64{Float64: float64(v), Valid: true}
		case int:
			num = sql.NullFloat64{Float64: float64(v), Valid: true}
		case int64:
			num = sql.NullFloat64{Float64: float64(v), Valid: true}
		default:
			text = sql.NullString{String: fmt.Sprint(v), Valid: true}
		}
		_, err := tx.Exec(`INSERT INTO metrics (run_id, step, key, num, text) VALUES (?, ?, ?, ?, ?)`,
			s.id, step, k, num, text)
		if err != nil {
			tx.Rollback()
			return errors.Wrapf(err, "failed to record %s", k)
		}
	}
	return tx.Commit()
}

// Point is one numeric metric value.
type Point struct {
	Step  int
	Value float64
}

// History returns the numeric values of key logged by this run, by step.
func (s *SQLite) History(key string) ([]Point, error) {
	rows, err := s.db.Query(
		`SELECT step, num FROM metrics WHERE run_id = ? AND key = ? AND num IS NOT NULL ORDER BY step`,
		s.id, key)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to query %s", key)
	}
	defer rows.Close()

	var points []Point
	for rows.Next() {
		var p Point
		if err := rows.Scan(&p.Step, &p.Value); err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
