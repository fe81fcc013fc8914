// Package tuition implements the upstream tuition service the gateway
// fronts: a small gin HTTP API over a SQLite ledger of per-term
// tuition records.
package tuition

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// ErrRecordNotFound indicates that no tuition record matched.
var ErrRecordNotFound = errors.New("tuition record not found")

const schema = `
CREATE TABLE IF NOT EXISTS tuitions (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	student_no    TEXT NOT NULL,
	term          TEXT NOT NULL,
	tuition_total REAL NOT NULL,
	amount_paid   REAL NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_tuitions_student_no ON tuitions(student_no);
CREATE INDEX IF NOT EXISTS idx_tuitions_term ON tuitions(term);
`

// Record is a single tuition ledger row.
type Record struct {
	ID           int64   `json:"id"`
	StudentNo    string  `json:"studentNo"`
	Term         string  `json:"term"`
	TuitionTotal float64 `json:"tuitionTotal"`
	AmountPaid   float64 `json:"amountPaid"`
}

// Balance returns the amount still owed on the record.
func (r Record) Balance() float64 {
	return r.TuitionTotal - r.AmountPaid
}

// Store persists tuition records in SQLite.
type Store struct {
	db *sql.DB
}

// OpenStore opens (or creates) the SQLite database at path and
// initializes the schema. Use ":memory:" for an ephemeral store.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite allows a single writer; serializing through one
	// connection avoids SQLITE_BUSY under concurrent requests.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Insert creates a new tuition record with nothing paid and returns it.
func (s *Store) Insert(ctx context.Context, studentNo, term string, tuitionTotal float64) (*Record, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO tuitions (student_no, term, tuition_total, amount_paid)
		 VALUES (?, ?, ?, 0)`,
		studentNo, term, tuitionTotal,
	)
	if err != nil {
		return nil, fmt.Errorf("insert tuition record: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("insert tuition record: %w", err)
	}

	return &Record{
		ID:           id,
		StudentNo:    studentNo,
		Term:         term,
		TuitionTotal: tuitionTotal,
		AmountPaid:   0,
	}, nil
}

// CountUnpaid returns the number of records for the term with an
// outstanding balance.
func (s *Store) CountUnpaid(ctx context.Context, term string) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tuitions WHERE term = ? AND tuition_total > amount_paid`,
		term,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unpaid: %w", err)
	}
	return count, nil
}

// ListUnpaid returns the unpaid records for the term ordered by
// student number, honoring limit and offset for pagination.
func (s *Store) ListUnpaid(ctx context.Context, term string, limit, offset int64) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, student_no, term, tuition_total, amount_paid
		 FROM tuitions
		 WHERE term = ? AND tuition_total > amount_paid
		 ORDER BY student_no
		 LIMIT ? OFFSET ?`,
		term, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list unpaid: %w", err)
	}
	defer rows.Close()

	records := make([]Record, 0, limit)
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.StudentNo, &r.Term, &r.TuitionTotal, &r.AmountPaid); err != nil {
			return nil, fmt.Errorf("scan unpaid row: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list unpaid: %w", err)
	}

	return records, nil
}

// LatestByStudent returns the student's record for their most recent
// term.
func (s *Store) LatestByStudent(ctx context.Context, studentNo string) (*Record, error) {
	var r Record
	err := s.db.QueryRowContext(ctx,
		`SELECT id, student_no, term, tuition_total, amount_paid
		 FROM tuitions
		 WHERE student_no = ?
		 ORDER BY term DESC
		 LIMIT 1`,
		studentNo,
	).Scan(&r.ID, &r.StudentNo, &r.Term, &r.TuitionTotal, &r.AmountPaid)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find latest record: %w", err)
	}
	return &r, nil
}

// FindByStudentTerm returns the record for the student and term.
func (s *Store) FindByStudentTerm(ctx context.Context, studentNo, term string) (*Record, error) {
	var r Record
	err := s.db.QueryRowContext(ctx,
		`SELECT id, student_no, term, tuition_total, amount_paid
		 FROM tuitions
		 WHERE student_no = ? AND term = ?
		 LIMIT 1`,
		studentNo, term,
	).Scan(&r.ID, &r.StudentNo, &r.Term, &r.TuitionTotal, &r.AmountPaid)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find record: %w", err)
	}
	return &r, nil
}

// Pay applies a payment to the student's record for the term. The paid
// amount is capped at the tuition total, so overpayment never produces
// a negative balance. The increment and the cap happen in one UPDATE,
// so concurrent payments cannot lose each other's amounts. Returns the
// updated record.
func (s *Store) Pay(ctx context.Context, studentNo, term string, amount float64) (*Record, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tuitions
		 SET amount_paid = MIN(amount_paid + ?, tuition_total)
		 WHERE id = (
			SELECT id FROM tuitions WHERE student_no = ? AND term = ? LIMIT 1
		 )`,
		amount, studentNo, term,
	)
	if err != nil {
		return nil, fmt.Errorf("apply payment: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("apply payment: %w", err)
	}
	if affected == 0 {
		return nil, ErrRecordNotFound
	}

	return s.FindByStudentTerm(ctx, studentNo, term)
}
