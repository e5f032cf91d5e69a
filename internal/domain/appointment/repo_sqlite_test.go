package appointment

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/carenest/carenest/internal/platform/db"
	"github.com/carenest/carenest/migrations"
	"github.com/carenest/carenest/pkg/pregnancy"
)

func newSQLiteRepo(t *testing.T) (Repository, *sql.DB) {
	t.Helper()
	conn, err := db.OpenSQLite(context.Background(), ":memory:", migrations.SQLiteSchema)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return NewRepoSQLite(conn), conn
}

// insertMother satisfies the foreign key without going through the mother package.
func insertMother(t *testing.T, conn *sql.DB, phone string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	now := db.FormatStamp(testNow)
	_, err := conn.Exec(`INSERT INTO mothers (id, full_name, phone_number, created_at, updated_at) VALUES (?, 'M', ?, ?, ?)`,
		id.String(), phone, now, now)
	if err != nil {
		t.Fatalf("insert mother: %v", err)
	}
	return id
}

func newAppt(t *testing.T, motherID uuid.UUID, date, clock, status string) *Appointment {
	t.Helper()
	d, err := pregnancy.ParseDate(date)
	if err != nil {
		t.Fatal(err)
	}
	return &Appointment{MotherID: motherID, Type: "Check-up", Date: d, Time: clock, Location: "CHUK", Status: status}
}

func TestRepoSQLite_CRUD(t *testing.T) {
	repo, conn := newSQLiteRepo(t)
	ctx := context.Background()
	motherID := insertMother(t, conn, "+1")

	a := newAppt(t, motherID, "2025-04-20", "09:30", StatusUpcoming)
	doctor := "Dr. Mukamana"
	a.Doctor = &doctor
	if err := repo.Create(ctx, a); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := repo.GetByID(ctx, a.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.MotherID != motherID || pregnancy.FormatDate(got.Date) != "2025-04-20" || got.Time != "09:30" {
		t.Errorf("unexpected appointment %+v", got)
	}
	if got.Doctor == nil || *got.Doctor != doctor || got.Notes != nil {
		t.Errorf("unexpected optional fields doctor=%v notes=%v", got.Doctor, got.Notes)
	}

	got.Status = StatusCompleted
	if err := repo.Update(ctx, got); err != nil {
		t.Fatalf("update: %v", err)
	}
	again, _ := repo.GetByID(ctx, a.ID)
	if again.Status != StatusCompleted {
		t.Errorf("expected completed, got %s", again.Status)
	}

	if err := repo.Delete(ctx, a.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.GetByID(ctx, a.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := repo.Delete(ctx, a.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
	if err := repo.Update(ctx, a); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on update, got %v", err)
	}
}

func TestRepoSQLite_ListUpcoming(t *testing.T) {
	repo, conn := newSQLiteRepo(t)
	ctx := context.Background()
	motherID := insertMother(t, conn, "+1")
	otherID := insertMother(t, conn, "+2")

	for _, a := range []*Appointment{
		newAppt(t, motherID, "2025-04-14", "10:00", StatusUpcoming),
		newAppt(t, motherID, "2025-05-01", "08:00", StatusUpcoming),
		newAppt(t, motherID, "2025-04-15", "14:00", StatusUpcoming),
		newAppt(t, motherID, "2025-04-15", "08:30", StatusUpcoming),
		newAppt(t, motherID, "2025-04-16", "09:00", StatusCancelled),
		newAppt(t, otherID, "2025-04-16", "09:00", StatusUpcoming),
	} {
		if err := repo.Create(ctx, a); err != nil {
			t.Fatal(err)
		}
	}

	from, _ := pregnancy.ParseDate("2025-04-15")
	items, err := repo.ListUpcoming(ctx, motherID, from)
	if err != nil {
		t.Fatalf("list upcoming: %v", err)
	}
	want := []string{"2025-04-15 08:30", "2025-04-15 14:00", "2025-05-01 08:00"}
	if len(items) != len(want) {
		t.Fatalf("expected %d items, got %d", len(want), len(items))
	}
	for i, a := range items {
		if got := pregnancy.FormatDate(a.Date) + " " + a.Time; got != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], got)
		}
	}

	all, total, err := repo.ListByMother(ctx, motherID, 2, 0)
	if err != nil {
		t.Fatalf("list by mother: %v", err)
	}
	if total != 5 || len(all) != 2 || pregnancy.FormatDate(all[0].Date) != "2025-05-01" {
		t.Errorf("unexpected page: total=%d len=%d", total, len(all))
	}
}

func TestRepoSQLite_CascadeOnMotherDelete(t *testing.T) {
	repo, conn := newSQLiteRepo(t)
	ctx := context.Background()
	motherID := insertMother(t, conn, "+1")
	a := newAppt(t, motherID, "2025-04-20", "09:30", StatusUpcoming)
	if err := repo.Create(ctx, a); err != nil {
		t.Fatal(err)
	}
	if _, err := conn.Exec(`DELETE FROM mothers WHERE id = ?`, motherID.String()); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.GetByID(ctx, a.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected appointment removed with mother, got %v", err)
	}
}

func TestRepoSQLite_RejectsUnknownMother(t *testing.T) {
	repo, _ := newSQLiteRepo(t)
	err := repo.Create(context.Background(), newAppt(t, uuid.New(), "2025-04-20", "09:30", StatusUpcoming))
	if err == nil {
		t.Error("expected foreign key failure")
	}
}
