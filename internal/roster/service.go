package roster

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"
)

// The roster is fixed: seat numbers 1..64, assigned before the session.
const (
	MinSID = 1
	MaxSID = 64
)

// Offsets stay within 0..89 so offset + option index (index <= 10) never
// leaves the cipher's two-digit suffix.
const maxOffset = 89

var (
	ErrSIDOutOfRange = errors.New("student id out of roster range")
	ErrUnknownSeed   = errors.New("no seed generated for student id")
)

type Seed struct {
	SID    int `json:"sid"`
	Offset int `json:"offset"`
}

type Student struct {
	SID       int       `json:"sid"`
	Score     float64   `json:"score"`
	CreatedAt time.Time `json:"created_at"`
}

// DBTX is satisfied by both *sql.DB and *sql.Tx, so student materialization
// can run inside a caller's transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Rand is the uniform source for seed draws; *math/rand.Rand satisfies it.
type Rand interface {
	Intn(n int) int
}

type Service struct {
	db *sql.DB

	mu  sync.Mutex
	rng Rand
}

func NewService(db *sql.DB, rng Rand) *Service {
	return &Service{db: db, rng: rng}
}

// EnsureSeeds draws an offset for every roster sid that does not have one
// yet. Each insert is independent and idempotent; a concurrent run cannot
// assign a second offset to the same sid because the first committed row
// wins the conflict. Returns how many seeds were created.
func (s *Service) EnsureSeeds(ctx context.Context) (int, error) {
	existing := make(map[int]bool, MaxSID)
	rows, err := s.db.QueryContext(ctx, `SELECT sid FROM seeds`)
	if err != nil {
		return 0, fmt.Errorf("query seeds: %w", err)
	}
	for rows.Next() {
		var sid int
		if err := rows.Scan(&sid); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan seed sid: %w", err)
		}
		existing[sid] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("iterate seeds: %w", err)
	}

	created := 0
	for sid := MinSID; sid <= MaxSID; sid++ {
		if existing[sid] {
			continue
		}
		s.mu.Lock()
		r := s.rng.Intn(maxOffset + 1)
		s.mu.Unlock()

		res, err := s.db.ExecContext(ctx, `
			INSERT INTO seeds (sid, r) VALUES ($1, $2)
			ON CONFLICT (sid) DO NOTHING
		`, sid, r)
		if err != nil {
			return created, fmt.Errorf("insert seed %d: %w", sid, err)
		}
		if n, err := res.RowsAffected(); err == nil && n > 0 {
			created++
		}
	}
	return created, nil
}

// SeedFor returns the offset assigned to sid. Offsets are never regenerated:
// a cipher issued under an offset must still decode later.
func (s *Service) SeedFor(ctx context.Context, sid int) (int, error) {
	if sid < MinSID || sid > MaxSID {
		return 0, ErrSIDOutOfRange
	}
	var r int
	err := s.db.QueryRowContext(ctx, `SELECT r FROM seeds WHERE sid = $1`, sid).Scan(&r)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrUnknownSeed
	}
	if err != nil {
		return 0, fmt.Errorf("load seed: %w", err)
	}
	return r, nil
}

func (s *Service) ListSeeds(ctx context.Context) ([]Seed, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT sid, r FROM seeds ORDER BY sid ASC`)
	if err != nil {
		return nil, fmt.Errorf("query seeds: %w", err)
	}
	defer rows.Close()

	out := make([]Seed, 0, MaxSID)
	for rows.Next() {
		var sd Seed
		if err := rows.Scan(&sd.SID, &sd.Offset); err != nil {
			return nil, fmt.Errorf("scan seed: %w", err)
		}
		out = append(out, sd)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate seeds: %w", err)
	}
	return out, nil
}

// ListStudents returns the scoreboard: highest score first, sid breaking ties.
func (s *Service) ListStudents(ctx context.Context) ([]Student, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sid, score, created_at
		FROM students
		ORDER BY score DESC, sid ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query students: %w", err)
	}
	defer rows.Close()

	out := make([]Student, 0)
	for rows.Next() {
		st, err := scanStudent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate students: %w", err)
	}
	return out, nil
}

// EnsureStudent materializes the student row for sid if absent. A late
// joiner starts at the current minimum score (0 when the board is empty) so
// they are neither ahead of nor behind the group. Runs against a db or tx.
func EnsureStudent(ctx context.Context, q DBTX, sid int) (Student, error) {
	if sid < MinSID || sid > MaxSID {
		return Student{}, ErrSIDOutOfRange
	}

	st, err := getStudent(ctx, q, sid)
	if err == nil {
		return st, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Student{}, fmt.Errorf("load student: %w", err)
	}

	var minScore sql.NullFloat64
	if err := q.QueryRowContext(ctx, `SELECT MIN(score) FROM students`).Scan(&minScore); err != nil {
		return Student{}, fmt.Errorf("query min score: %w", err)
	}
	initial := 0.0
	if minScore.Valid {
		initial = minScore.Float64
	}

	if _, err := q.ExecContext(ctx, `
		INSERT INTO students (sid, score, created_at) VALUES ($1, $2, $3)
		ON CONFLICT (sid) DO NOTHING
	`, sid, initial, time.Now().Unix()); err != nil {
		return Student{}, fmt.Errorf("insert student: %w", err)
	}

	st, err = getStudent(ctx, q, sid)
	if err != nil {
		return Student{}, fmt.Errorf("reload student: %w", err)
	}
	return st, nil
}

func getStudent(ctx context.Context, q DBTX, sid int) (Student, error) {
	var (
		st        Student
		createdAt int64
	)
	err := q.QueryRowContext(ctx, `
		SELECT sid, score, created_at FROM students WHERE sid = $1
	`, sid).Scan(&st.SID, &st.Score, &createdAt)
	if err != nil {
		return Student{}, err
	}
	st.CreatedAt = time.Unix(createdAt, 0)
	return st, nil
}

func scanStudent(rows *sql.Rows) (Student, error) {
	var (
		st        Student
		createdAt int64
	)
	if err := rows.Scan(&st.SID, &st.Score, &createdAt); err != nil {
		return Student{}, fmt.Errorf("scan student: %w", err)
	}
	st.CreatedAt = time.Unix(createdAt, 0)
	return st, nil
}
