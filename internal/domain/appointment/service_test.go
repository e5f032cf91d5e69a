package appointment

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/carenest/carenest/internal/domain/mother"
	"github.com/carenest/carenest/pkg/pregnancy"
)

// -- Mock Repository --

type mockRepo struct {
	store map[uuid.UUID]*Appointment
}

func newMockRepo() *mockRepo {
	return &mockRepo{store: make(map[uuid.UUID]*Appointment)}
}

func (r *mockRepo) Create(_ context.Context, a *Appointment) error {
	a.ID = uuid.New()
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	cp := *a
	r.store[a.ID] = &cp
	return nil
}

func (r *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	a, ok := r.store[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *mockRepo) Update(_ context.Context, a *Appointment) error {
	if _, ok := r.store[a.ID]; !ok {
		return ErrNotFound
	}
	cp := *a
	r.store[a.ID] = &cp
	return nil
}

func (r *mockRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := r.store[id]; !ok {
		return ErrNotFound
	}
	delete(r.store, id)
	return nil
}

func (r *mockRepo) ListByMother(_ context.Context, motherID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	var all []*Appointment
	for _, a := range r.store {
		if a.MotherID == motherID {
			all = append(all, a)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Date.After(all[j].Date) })
	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (r *mockRepo) ListUpcoming(_ context.Context, motherID uuid.UUID, from time.Time) ([]*Appointment, error) {
	var out []*Appointment
	for _, a := range r.store {
		if a.MotherID == motherID && a.Status == StatusUpcoming && !a.Date.Before(from) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].Time < out[j].Time
	})
	return out, nil
}

// fakeMothers dates each mother from a fixed LMP table.
type fakeMothers struct {
	lmps map[uuid.UUID]string
	now  time.Time
}

func (f *fakeMothers) CurrentDating(_ context.Context, id uuid.UUID) (pregnancy.Dating, error) {
	lmp, ok := f.lmps[id]
	if !ok {
		return pregnancy.Dating{}, mother.ErrNotFound
	}
	return pregnancy.ComputeDatingString(lmp, f.now)
}

var testNow = time.Date(2025, 4, 15, 9, 0, 0, 0, time.UTC)

func newTestService() (*Service, *mockRepo, *fakeMothers) {
	repo := newMockRepo()
	mothers := &fakeMothers{lmps: make(map[uuid.UUID]string), now: testNow}
	svc := NewService(repo, mothers, nil)
	svc.now = func() time.Time { return testNow }
	return svc, repo, mothers
}

func strPtr(s string) *string { return &s }

func validInput(date, clock string) Input {
	return Input{
		Type:     strPtr("Antenatal check-up"),
		Date:     strPtr(date),
		Time:     strPtr(clock),
		Location: strPtr("Kigali Health Centre"),
		Doctor:   strPtr("Dr. Mukamana"),
	}
}

// -- CRUD --

func TestService_Create(t *testing.T) {
	svc, repo, _ := newTestService()
	motherID := uuid.New()

	a, err := svc.Create(context.Background(), motherID, validInput("2025-04-20", "09:30"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.ID == uuid.Nil || a.MotherID != motherID {
		t.Errorf("unexpected ids %s / %s", a.ID, a.MotherID)
	}
	if a.Status != StatusUpcoming {
		t.Errorf("expected default status upcoming, got %s", a.Status)
	}
	if len(repo.store) != 1 {
		t.Errorf("expected 1 stored, got %d", len(repo.store))
	}
}

func TestService_Create_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Input)
	}{
		{"missing type", func(in *Input) { in.Type = nil }},
		{"blank location", func(in *Input) { in.Location = strPtr("  ") }},
		{"missing date", func(in *Input) { in.Date = nil }},
		{"bad date", func(in *Input) { in.Date = strPtr("20/04/2025") }},
		{"bad time", func(in *Input) { in.Time = strPtr("9:30am") }},
		{"hour out of range", func(in *Input) { in.Time = strPtr("25:00") }},
		{"short time", func(in *Input) { in.Time = strPtr("9:30") }},
		{"bad status", func(in *Input) { in.Status = strPtr("rescheduled") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo, _ := newTestService()
			in := validInput("2025-04-20", "09:30")
			tt.mutate(&in)
			_, err := svc.Create(context.Background(), uuid.New(), in)
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
			if len(repo.store) != 0 {
				t.Error("nothing should be stored")
			}
		})
	}
}

func TestService_Ownership(t *testing.T) {
	svc, _, _ := newTestService()
	owner, other := uuid.New(), uuid.New()
	a, err := svc.Create(context.Background(), owner, validInput("2025-04-20", "09:30"))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := svc.Get(context.Background(), other, a.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("get: expected ErrForbidden, got %v", err)
	}
	if _, err := svc.Update(context.Background(), other, a.ID, Input{Status: strPtr(StatusCancelled)}); !errors.Is(err, ErrForbidden) {
		t.Errorf("update: expected ErrForbidden, got %v", err)
	}
	if err := svc.Delete(context.Background(), other, a.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("delete: expected ErrForbidden, got %v", err)
	}
	if _, err := svc.Get(context.Background(), owner, a.ID); err != nil {
		t.Errorf("owner get: %v", err)
	}
}

func TestService_Update(t *testing.T) {
	svc, repo, _ := newTestService()
	owner := uuid.New()
	a, _ := svc.Create(context.Background(), owner, validInput("2025-04-20", "09:30"))

	updated, err := svc.Update(context.Background(), owner, a.ID, Input{
		Status: strPtr(StatusCompleted),
		Notes:  strPtr("BP normal"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Status != StatusCompleted || updated.Type != "Antenatal check-up" {
		t.Errorf("unexpected update result %+v", updated)
	}
	if stored := repo.store[a.ID]; stored.Notes == nil || *stored.Notes != "BP normal" {
		t.Error("expected notes stored")
	}

	if _, err := svc.Update(context.Background(), owner, a.ID, Input{Time: strPtr("noon")}); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

func TestService_Delete(t *testing.T) {
	svc, repo, _ := newTestService()
	owner := uuid.New()
	a, _ := svc.Create(context.Background(), owner, validInput("2025-04-20", "09:30"))
	if err := svc.Delete(context.Background(), owner, a.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repo.store) != 0 {
		t.Error("expected deleted")
	}
	if err := svc.Delete(context.Background(), owner, a.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestService_List(t *testing.T) {
	svc, _, _ := newTestService()
	owner := uuid.New()
	for _, d := range []string{"2025-03-01", "2025-04-20", "2025-05-18"} {
		if _, err := svc.Create(context.Background(), owner, validInput(d, "10:00")); err != nil {
			t.Fatal(err)
		}
	}
	svc.Create(context.Background(), uuid.New(), validInput("2025-04-21", "10:00"))

	items, total, err := svc.List(context.Background(), owner, 2, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 3 || len(items) != 2 {
		t.Fatalf("expected 2 of 3, got %d of %d", len(items), total)
	}
	if pregnancy.FormatDate(items[0].Date) != "2025-05-18" {
		t.Errorf("expected newest first, got %s", pregnancy.FormatDate(items[0].Date))
	}
}

func TestService_Upcoming(t *testing.T) {
	svc, _, _ := newTestService()
	owner := uuid.New()
	ctx := context.Background()
	svc.Create(ctx, owner, validInput("2025-04-14", "10:00")) // yesterday
	svc.Create(ctx, owner, validInput("2025-05-01", "08:00"))
	svc.Create(ctx, owner, validInput("2025-04-15", "14:00")) // today, later
	svc.Create(ctx, owner, validInput("2025-04-15", "08:30")) // today, earlier
	cancelled := validInput("2025-04-16", "09:00")
	cancelled.Status = strPtr(StatusCancelled)
	svc.Create(ctx, owner, cancelled)

	items, err := svc.Upcoming(ctx, owner)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got []string
	for _, a := range items {
		got = append(got, pregnancy.FormatDate(a.Date)+" "+a.Time)
	}
	want := []string{"2025-04-15 08:30", "2025-04-15 14:00", "2025-05-01 08:00"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestService_Upcoming_EmptyIsNotNil(t *testing.T) {
	svc, _, _ := newTestService()
	items, err := svc.Upcoming(context.Background(), uuid.New())
	if err != nil {
		t.Fatal(err)
	}
	if items == nil {
		t.Error("expected empty slice, not nil")
	}
}

// -- Recommendation --

func TestService_Recommend(t *testing.T) {
	tests := []struct {
		lmp         string
		week        int
		interval    int
		until       int
		date        string
		trimester   pregnancy.Trimester
		weeksToTerm int
	}{
		{"2024-10-29", 24, 4, 4, "2025-05-13", pregnancy.TrimesterSecond, 16},
		{"2024-09-17", 30, 2, 2, "2025-04-29", pregnancy.TrimesterThird, 10},
		{"2024-07-23", 38, 1, 1, "2025-04-22", pregnancy.TrimesterThird, 2},
		{"2025-01-07", 14, 4, 2, "2025-04-29", pregnancy.TrimesterSecond, 26},
	}
	for _, tt := range tests {
		t.Run(tt.lmp, func(t *testing.T) {
			svc, _, mothers := newTestService()
			id := uuid.New()
			mothers.lmps[id] = tt.lmp

			rec, err := svc.Recommend(context.Background(), id)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if rec.CurrentWeek != tt.week || rec.IntervalWeeks != tt.interval || rec.WeeksUntil != tt.until {
				t.Errorf("expected week %d interval %d until %d, got %+v", tt.week, tt.interval, tt.until, rec)
			}
			if rec.Date != tt.date {
				t.Errorf("expected date %s, got %s", tt.date, rec.Date)
			}
			if rec.Trimester != tt.trimester || rec.WeeksRemaining != tt.weeksToTerm {
				t.Errorf("unexpected trimester/remaining %q/%d", rec.Trimester, rec.WeeksRemaining)
			}
		})
	}
}

func TestService_Recommend_NotDated(t *testing.T) {
	svc, _, mothers := newTestService()
	id := uuid.New()
	mothers.lmps[id] = ""
	if _, err := svc.Recommend(context.Background(), id); !errors.Is(err, ErrNotDated) {
		t.Errorf("expected ErrNotDated, got %v", err)
	}
	if _, err := svc.Recommend(context.Background(), uuid.New()); !errors.Is(err, mother.ErrNotFound) {
		t.Errorf("expected mother.ErrNotFound, got %v", err)
	}
}

func TestAppointment_StartAndJSON(t *testing.T) {
	a := Appointment{Date: time.Date(2025, 4, 20, 0, 0, 0, 0, time.UTC), Time: "09:30"}
	start := a.Start(time.UTC)
	if start.Hour() != 9 || start.Minute() != 30 || start.Day() != 20 {
		t.Errorf("unexpected start %v", start)
	}
	b, err := a.MarshalJSON()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), `"date":"2025-04-20"`) {
		t.Errorf("expected plain date in %s", b)
	}
}
