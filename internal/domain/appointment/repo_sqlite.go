package appointment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/carenest/carenest/internal/platform/db"
	"github.com/carenest/carenest/pkg/pregnancy"
)

type sqlQueryable interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

type repoSQLite struct{ db *sql.DB }

func NewRepoSQLite(conn *sql.DB) Repository {
	return &repoSQLite{db: conn}
}

func (r *repoSQLite) conn(ctx context.Context) sqlQueryable {
	if tx := db.SQLTxFromContext(ctx); tx != nil {
		return tx
	}
	return r.db
}

func (r *repoSQLite) scanAppt(row rowScanner) (*Appointment, error) {
	var (
		a                    Appointment
		id, motherID, date   string
		createdAt, updatedAt string
	)
	err := row.Scan(&id, &motherID, &a.Type, &date, &a.Time, &a.Location,
		&a.Doctor, &a.Status, &a.Notes, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if a.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parse id: %w", err)
	}
	if a.MotherID, err = uuid.Parse(motherID); err != nil {
		return nil, fmt.Errorf("parse mother_id: %w", err)
	}
	if a.Date, err = pregnancy.ParseDate(date); err != nil {
		return nil, err
	}
	a.CreatedAt = db.ParseStamp(createdAt)
	a.UpdatedAt = db.ParseStamp(updatedAt)
	return &a, nil
}

func (r *repoSQLite) Create(ctx context.Context, a *Appointment) error {
	a.ID = uuid.New()
	now := time.Now().UTC()
	_, err := r.conn(ctx).ExecContext(ctx, `
		INSERT INTO appointments (id, mother_id, type, date, time, location, doctor, status, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID.String(), a.MotherID.String(), a.Type, pregnancy.FormatDate(a.Date), a.Time, a.Location,
		a.Doctor, a.Status, a.Notes, db.FormatStamp(now), db.FormatStamp(now))
	if err != nil {
		return err
	}
	a.CreatedAt, a.UpdatedAt = now, now
	return nil
}

func (r *repoSQLite) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return r.scanAppt(r.conn(ctx).QueryRowContext(ctx, `SELECT `+apptCols+` FROM appointments WHERE id = ?`, id.String()))
}

func (r *repoSQLite) Update(ctx context.Context, a *Appointment) error {
	now := time.Now().UTC()
	res, err := r.conn(ctx).ExecContext(ctx, `
		UPDATE appointments SET type=?, date=?, time=?, location=?, doctor=?, status=?, notes=?, updated_at=?
		WHERE id = ?`,
		a.Type, pregnancy.FormatDate(a.Date), a.Time, a.Location, a.Doctor, a.Status, a.Notes,
		db.FormatStamp(now), a.ID.String())
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return ErrNotFound
	}
	a.UpdatedAt = now
	return nil
}

func (r *repoSQLite) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.conn(ctx).ExecContext(ctx, `DELETE FROM appointments WHERE id = ?`, id.String())
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoSQLite) collect(rows *sql.Rows) ([]*Appointment, error) {
	defer rows.Close()
	var items []*Appointment
	for rows.Next() {
		a, err := r.scanAppt(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

func (r *repoSQLite) ListByMother(ctx context.Context, motherID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	var total int
	if err := r.conn(ctx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM appointments WHERE mother_id = ?`, motherID.String()).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).QueryContext(ctx, `SELECT `+apptCols+` FROM appointments
		WHERE mother_id = ? ORDER BY date DESC, time DESC LIMIT ? OFFSET ?`, motherID.String(), limit, offset)
	if err != nil {
		return nil, 0, err
	}
	items, err := r.collect(rows)
	return items, total, err
}

// ListUpcoming compares dates as YYYY-MM-DD text, which orders correctly.
func (r *repoSQLite) ListUpcoming(ctx context.Context, motherID uuid.UUID, from time.Time) ([]*Appointment, error) {
	rows, err := r.conn(ctx).QueryContext(ctx, `SELECT `+apptCols+` FROM appointments
		WHERE mother_id = ? AND status = ? AND date >= ? ORDER BY date, time`,
		motherID.String(), StatusUpcoming, pregnancy.FormatDate(from))
	if err != nil {
		return nil, err
	}
	return r.collect(rows)
}
