package audit

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/palisade-ai/palisade/pkg/models"
)

// SQLiteStore persists the audit trail in a dedicated SQLite database so
// the forensic record survives process restarts.
type SQLiteStore struct {
	db  *sql.DB
	max int
}

// NewSQLiteStore opens (or creates) the audit database at path, retaining
// at most max records.
func NewSQLiteStore(path string, max int) (*SQLiteStore, error) {
	if max <= 0 {
		max = DefaultMaxEntries
	}

	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate audit db: %w", err)
	}
	return &SQLiteStore{db: db, max: max}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS audit_log (
		seq              INTEGER PRIMARY KEY AUTOINCREMENT,
		correlation_id   TEXT NOT NULL,
		ts               DATETIME NOT NULL,
		operation        TEXT NOT NULL,
		arguments        TEXT,
		outcome          TEXT NOT NULL,
		rejection_reason TEXT,
		error_detail     TEXT,
		duration_ms      INTEGER,
		external_ref     TEXT,
		cost             TEXT
	)`)
	if err != nil {
		return err
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_audit_corr ON audit_log(correlation_id)`)
	return err
}

// Append inserts rec and evicts the oldest rows beyond the retention bound.
func (s *SQLiteStore) Append(rec models.AuditRecord) error {
	var argsJSON string
	if rec.Arguments != nil {
		b, err := json.Marshal(rec.Arguments)
		if err != nil {
			return fmt.Errorf("marshal audit arguments: %w", err)
		}
		argsJSON = string(b)
	}

	_, err := s.db.Exec(
		`INSERT INTO audit_log
		 (correlation_id, ts, operation, arguments, outcome,
		  rejection_reason, error_detail, duration_ms, external_ref, cost)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.CorrelationID, rec.Timestamp, rec.Operation, argsJSON, string(rec.Outcome),
		rec.RejectionReason, rec.ErrorDetail, rec.DurationMs, rec.ExternalRef, rec.Cost,
	)
	if err != nil {
		return fmt.Errorf("append audit record: %w", err)
	}

	_, err = s.db.Exec(
		`DELETE FROM audit_log WHERE seq NOT IN
		 (SELECT seq FROM audit_log ORDER BY seq DESC LIMIT ?)`, s.max)
	if err != nil {
		return fmt.Errorf("audit retention: %w", err)
	}
	return nil
}

// Recent returns up to n records, most recent first.
func (s *SQLiteStore) Recent(n int) ([]models.AuditRecord, error) {
	if n <= 0 {
		return nil, nil
	}
	rows, err := s.db.Query(selectCols+` ORDER BY seq DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("query recent audit records: %w", err)
	}
	return scanRecords(rows)
}

// ByCorrelationID returns all records for id in append order.
func (s *SQLiteStore) ByCorrelationID(id string) ([]models.AuditRecord, error) {
	rows, err := s.db.Query(selectCols+` WHERE correlation_id = ? ORDER BY seq ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("query audit records by correlation id: %w", err)
	}
	return scanRecords(rows)
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const selectCols = `SELECT correlation_id, ts, operation, arguments, outcome,
	rejection_reason, error_detail, duration_ms, external_ref, cost FROM audit_log`

func scanRecords(rows *sql.Rows) ([]models.AuditRecord, error) {
	defer rows.Close()

	var out []models.AuditRecord
	for rows.Next() {
		var r models.AuditRecord
		var args, rejection, detail, ref, cost sql.NullString
		var durationMs sql.NullInt64
		if err := rows.Scan(
			&r.CorrelationID, &r.Timestamp, &r.Operation, &args, &r.Outcome,
			&rejection, &detail, &durationMs, &ref, &cost,
		); err != nil {
			return nil, fmt.Errorf("scan audit row: %w", err)
		}
		if args.Valid && args.String != "" {
			_ = json.Unmarshal([]byte(args.String), &r.Arguments)
		}
		r.RejectionReason = rejection.String
		r.ErrorDetail = detail.String
		r.DurationMs = durationMs.Int64
		r.ExternalRef = ref.String
		r.Cost = cost.String
		out = append(out, r)
	}
	return out, rows.Err()
}
