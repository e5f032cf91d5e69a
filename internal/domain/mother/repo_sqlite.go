package mother

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/carenest/carenest/internal/platform/db"
	"github.com/carenest/carenest/pkg/pregnancy"
)

// sqlQueryable is satisfied by *sql.DB and *sql.Tx.
type sqlQueryable interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// repoSQLite stores dates as YYYY-MM-DD text and timestamps as RFC 3339.
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

func dateArg(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return pregnancy.FormatDate(*t)
}

func parseDateCol(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := pregnancy.ParseDate(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *repoSQLite) scanMother(row rowScanner) (*Mother, error) {
	var (
		m                    Mother
		id                   string
		dob, lmp, due        sql.NullString
		conditions           string
		createdAt, updatedAt string
	)
	err := row.Scan(&id, &m.FullName, &dob, &m.PhoneNumber, &m.BloodType, &m.PreferredHospital, &m.Language,
		&lmp, &m.PregnancyWeek, &due, &m.Trimester,
		&m.IsFirstPregnancy, &m.PreviousPregnancies, &m.PreviousDeliveryType, &conditions,
		&m.Allergies, &m.CurrentMedications, &m.KinName, &m.KinRelationship, &m.KinPhone, &m.KinAddress,
		&m.EmergencyContact, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if m.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parse id: %w", err)
	}
	if m.DateOfBirth, err = parseDateCol(dob); err != nil {
		return nil, err
	}
	if m.LastMenstrualPeriod, err = parseDateCol(lmp); err != nil {
		return nil, err
	}
	if m.DueDate, err = parseDateCol(due); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(conditions), &m.MedicalConditions); err != nil {
		return nil, fmt.Errorf("decode medical_conditions: %w", err)
	}
	m.CreatedAt = db.ParseStamp(createdAt)
	m.UpdatedAt = db.ParseStamp(updatedAt)
	return &m, nil
}

func (r *repoSQLite) Create(ctx context.Context, m *Mother) error {
	m.ID = uuid.New()
	if m.MedicalConditions == nil {
		m.MedicalConditions = []string{}
	}
	conditions, err := json.Marshal(m.MedicalConditions)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	_, err = r.conn(ctx).ExecContext(ctx, `
		INSERT INTO mothers (id, full_name, date_of_birth, phone_number, blood_type, preferred_hospital, language,
			last_menstrual_period, pregnancy_week, due_date, trimester,
			is_first_pregnancy, previous_pregnancies, previous_delivery_type, medical_conditions,
			allergies, current_medications, kin_name, kin_relationship, kin_phone, kin_address, emergency_contact,
			created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		m.ID.String(), m.FullName, dateArg(m.DateOfBirth), m.PhoneNumber, m.BloodType, m.PreferredHospital, m.Language,
		dateArg(m.LastMenstrualPeriod), m.PregnancyWeek, dateArg(m.DueDate), m.Trimester,
		m.IsFirstPregnancy, m.PreviousPregnancies, m.PreviousDeliveryType, string(conditions),
		m.Allergies, m.CurrentMedications, m.KinName, m.KinRelationship, m.KinPhone, m.KinAddress, m.EmergencyContact,
		db.FormatStamp(now), db.FormatStamp(now))
	if db.IsUniqueViolation(err) {
		return ErrPhoneTaken
	}
	if err != nil {
		return err
	}
	m.CreatedAt, m.UpdatedAt = now, now
	return nil
}

func (r *repoSQLite) GetByID(ctx context.Context, id uuid.UUID) (*Mother, error) {
	return r.scanMother(r.conn(ctx).QueryRowContext(ctx, `SELECT `+motherCols+` FROM mothers WHERE id = ?`, id.String()))
}

func (r *repoSQLite) GetByPhone(ctx context.Context, phone string) (*Mother, error) {
	return r.scanMother(r.conn(ctx).QueryRowContext(ctx, `SELECT `+motherCols+` FROM mothers WHERE phone_number = ?`, phone))
}

func affectedOrNotFound(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoSQLite) Update(ctx context.Context, m *Mother) error {
	conditions, err := json.Marshal(m.MedicalConditions)
	if err != nil {
		return err
	}
	if m.MedicalConditions == nil {
		conditions = []byte("[]")
	}
	res, err := r.conn(ctx).ExecContext(ctx, `
		UPDATE mothers SET full_name=?, date_of_birth=?, blood_type=?, preferred_hospital=?, language=?,
			is_first_pregnancy=?, previous_pregnancies=?, previous_delivery_type=?, medical_conditions=?,
			allergies=?, current_medications=?, kin_name=?, kin_relationship=?, kin_phone=?,
			kin_address=?, emergency_contact=?, updated_at=?
		WHERE id = ?`,
		m.FullName, dateArg(m.DateOfBirth), m.BloodType, m.PreferredHospital, m.Language,
		m.IsFirstPregnancy, m.PreviousPregnancies, m.PreviousDeliveryType, string(conditions),
		m.Allergies, m.CurrentMedications, m.KinName, m.KinRelationship, m.KinPhone,
		m.KinAddress, m.EmergencyContact, db.FormatStamp(time.Now()), m.ID.String())
	if err != nil {
		return err
	}
	return affectedOrNotFound(res)
}

func (r *repoSQLite) UpdateDating(ctx context.Context, id uuid.UUID, d pregnancy.Dating) error {
	var trimester interface{}
	if d.Trimester != pregnancy.TrimesterNone {
		trimester = string(d.Trimester)
	}
	res, err := r.conn(ctx).ExecContext(ctx, `
		UPDATE mothers SET last_menstrual_period=?, pregnancy_week=?, due_date=?, trimester=?, updated_at=?
		WHERE id = ?`,
		dateArg(d.LastMenstrualPeriod), d.Week, dateArg(d.DueDate), trimester, db.FormatStamp(time.Now()), id.String())
	if err != nil {
		return fmt.Errorf("update dating: %w", err)
	}
	return affectedOrNotFound(res)
}

func (r *repoSQLite) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.conn(ctx).ExecContext(ctx, `DELETE FROM mothers WHERE id = ?`, id.String())
	if err != nil {
		return err
	}
	return affectedOrNotFound(res)
}

func (r *repoSQLite) ListDated(ctx context.Context, limit, offset int) ([]*Mother, int, error) {
	var total int
	if err := r.conn(ctx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM mothers WHERE last_menstrual_period IS NOT NULL`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).QueryContext(ctx, `SELECT `+motherCols+` FROM mothers
		WHERE last_menstrual_period IS NOT NULL ORDER BY created_at, id LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Mother
	for rows.Next() {
		m, err := r.scanMother(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, m)
	}
	return items, total, rows.Err()
}
