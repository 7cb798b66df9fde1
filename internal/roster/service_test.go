package roster

import (
	"context"
	"database/sql"
	"errors"
	"math/rand"
	"path/filepath"
	"testing"

	internaldb "github.com/YLF-Cat/man-eating-tree-offline/internal/db"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "roster_test.db") + "?_pragma=busy_timeout(5000)"
	conn, err := internaldb.Open(context.Background(), internaldb.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestEnsureSeedsCoversRoster(t *testing.T) {
	conn := newTestDB(t)
	svc := NewService(conn, rand.New(rand.NewSource(42)))

	created, err := svc.EnsureSeeds(context.Background())
	if err != nil {
		t.Fatalf("ensure seeds: %v", err)
	}
	if created != MaxSID {
		t.Fatalf("created = %d, want %d", created, MaxSID)
	}

	seeds, err := svc.ListSeeds(context.Background())
	if err != nil {
		t.Fatalf("list seeds: %v", err)
	}
	if len(seeds) != MaxSID {
		t.Fatalf("listed %d seeds, want %d", len(seeds), MaxSID)
	}
	for i, sd := range seeds {
		if sd.SID != MinSID+i {
			t.Fatalf("seed %d has sid %d, want %d", i, sd.SID, MinSID+i)
		}
		if sd.Offset < 0 || sd.Offset > maxOffset {
			t.Fatalf("sid %d offset %d outside 0..%d", sd.SID, sd.Offset, maxOffset)
		}
	}
}

// A second run must not redraw: ciphers issued under the first offsets still
// have to decode.
func TestEnsureSeedsIdempotent(t *testing.T) {
	conn := newTestDB(t)
	svc := NewService(conn, rand.New(rand.NewSource(42)))

	if _, err := svc.EnsureSeeds(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	before, err := svc.ListSeeds(context.Background())
	if err != nil {
		t.Fatalf("list seeds: %v", err)
	}

	created, err := svc.EnsureSeeds(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if created != 0 {
		t.Fatalf("second run created %d seeds, want 0", created)
	}

	after, err := svc.ListSeeds(context.Background())
	if err != nil {
		t.Fatalf("list seeds again: %v", err)
	}
	for i := range before {
		if after[i] != before[i] {
			t.Fatalf("seed for sid %d changed: %+v -> %+v", before[i].SID, before[i], after[i])
		}
	}
}

func TestEnsureSeedsFillsGapsOnly(t *testing.T) {
	conn := newTestDB(t)
	svc := NewService(conn, rand.New(rand.NewSource(42)))

	if _, err := conn.Exec(`INSERT INTO seeds (sid, r) VALUES (7, 33)`); err != nil {
		t.Fatalf("preseed sid 7: %v", err)
	}

	created, err := svc.EnsureSeeds(context.Background())
	if err != nil {
		t.Fatalf("ensure seeds: %v", err)
	}
	if created != MaxSID-1 {
		t.Fatalf("created = %d, want %d", created, MaxSID-1)
	}
	got, err := svc.SeedFor(context.Background(), 7)
	if err != nil {
		t.Fatalf("seed for 7: %v", err)
	}
	if got != 33 {
		t.Fatalf("sid 7 offset = %d, want the preseeded 33", got)
	}
}

func TestSeedForErrors(t *testing.T) {
	conn := newTestDB(t)
	svc := NewService(conn, rand.New(rand.NewSource(1)))

	for _, sid := range []int{0, -3, MaxSID + 1} {
		if _, err := svc.SeedFor(context.Background(), sid); !errors.Is(err, ErrSIDOutOfRange) {
			t.Errorf("sid %d err = %v, want ErrSIDOutOfRange", sid, err)
		}
	}
	if _, err := svc.SeedFor(context.Background(), 5); !errors.Is(err, ErrUnknownSeed) {
		t.Fatalf("ungenerated sid err = %v, want ErrUnknownSeed", err)
	}
}

func TestEnsureStudentMinScoreJoin(t *testing.T) {
	conn := newTestDB(t)
	ctx := context.Background()

	// Empty board: first student starts at zero.
	st, err := EnsureStudent(ctx, conn, 1)
	if err != nil {
		t.Fatalf("ensure student 1: %v", err)
	}
	if st.Score != 0 {
		t.Fatalf("first student score = %v, want 0", st.Score)
	}

	if _, err := conn.Exec(`UPDATE students SET score = -4 WHERE sid = 1`); err != nil {
		t.Fatalf("set score: %v", err)
	}

	// Late joiner lands on the current minimum.
	st, err = EnsureStudent(ctx, conn, 2)
	if err != nil {
		t.Fatalf("ensure student 2: %v", err)
	}
	if st.Score != -4 {
		t.Fatalf("late joiner score = %v, want -4", st.Score)
	}

	// Existing rows are returned untouched.
	st, err = EnsureStudent(ctx, conn, 1)
	if err != nil {
		t.Fatalf("re-ensure student 1: %v", err)
	}
	if st.Score != -4 {
		t.Fatalf("existing student score = %v, want -4", st.Score)
	}

	if _, err := EnsureStudent(ctx, conn, 0); !errors.Is(err, ErrSIDOutOfRange) {
		t.Fatalf("sid 0 err = %v, want ErrSIDOutOfRange", err)
	}
	if _, err := EnsureStudent(ctx, conn, MaxSID+1); !errors.Is(err, ErrSIDOutOfRange) {
		t.Fatalf("sid %d err = %v, want ErrSIDOutOfRange", MaxSID+1, err)
	}
}

func TestListStudentsOrdering(t *testing.T) {
	conn := newTestDB(t)
	svc := NewService(conn, rand.New(rand.NewSource(1)))
	ctx := context.Background()

	for _, sid := range []int{3, 1, 2} {
		if _, err := EnsureStudent(ctx, conn, sid); err != nil {
			t.Fatalf("ensure student %d: %v", sid, err)
		}
	}
	if _, err := conn.Exec(`UPDATE students SET score = 5 WHERE sid = 2`); err != nil {
		t.Fatalf("set score: %v", err)
	}

	students, err := svc.ListStudents(ctx)
	if err != nil {
		t.Fatalf("list students: %v", err)
	}
	if len(students) != 3 {
		t.Fatalf("listed %d students, want 3", len(students))
	}
	// Highest score first, then sid for the tie.
	wantOrder := []int{2, 1, 3}
	for i, want := range wantOrder {
		if students[i].SID != want {
			t.Fatalf("position %d has sid %d, want %d", i, students[i].SID, want)
		}
	}
}
