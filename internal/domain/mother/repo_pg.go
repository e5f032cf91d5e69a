package mother

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carenest/carenest/internal/platform/db"
	"github.com/carenest/carenest/pkg/pregnancy"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const motherCols = `id, full_name, date_of_birth, phone_number, blood_type, preferred_hospital, language,
	last_menstrual_period, pregnancy_week, due_date, trimester,
	is_first_pregnancy, previous_pregnancies, previous_delivery_type, medical_conditions,
	allergies, current_medications, kin_name, kin_relationship, kin_phone, kin_address,
	emergency_contact, created_at, updated_at`

func (r *repoPG) scanMother(row pgx.Row) (*Mother, error) {
	var m Mother
	err := row.Scan(&m.ID, &m.FullName, &m.DateOfBirth, &m.PhoneNumber, &m.BloodType, &m.PreferredHospital, &m.Language,
		&m.LastMenstrualPeriod, &m.PregnancyWeek, &m.DueDate, &m.Trimester,
		&m.IsFirstPregnancy, &m.PreviousPregnancies, &m.PreviousDeliveryType, &m.MedicalConditions,
		&m.Allergies, &m.CurrentMedications, &m.KinName, &m.KinRelationship, &m.KinPhone, &m.KinAddress,
		&m.EmergencyContact, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *repoPG) Create(ctx context.Context, m *Mother) error {
	m.ID = uuid.New()
	if m.MedicalConditions == nil {
		m.MedicalConditions = []string{}
	}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO mothers (id, full_name, date_of_birth, phone_number, blood_type, preferred_hospital, language,
			last_menstrual_period, pregnancy_week, due_date, trimester,
			is_first_pregnancy, previous_pregnancies, previous_delivery_type, medical_conditions,
			allergies, current_medications, kin_name, kin_relationship, kin_phone, kin_address, emergency_contact)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22)
		RETURNING created_at, updated_at`,
		m.ID, m.FullName, m.DateOfBirth, m.PhoneNumber, m.BloodType, m.PreferredHospital, m.Language,
		m.LastMenstrualPeriod, m.PregnancyWeek, m.DueDate, m.Trimester,
		m.IsFirstPregnancy, m.PreviousPregnancies, m.PreviousDeliveryType, m.MedicalConditions,
		m.Allergies, m.CurrentMedications, m.KinName, m.KinRelationship, m.KinPhone, m.KinAddress, m.EmergencyContact,
	).Scan(&m.CreatedAt, &m.UpdatedAt)
	if db.IsUniqueViolation(err) {
		return ErrPhoneTaken
	}
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Mother, error) {
	return r.scanMother(r.conn(ctx).QueryRow(ctx, `SELECT `+motherCols+` FROM mothers WHERE id = $1`, id))
}

func (r *repoPG) GetByPhone(ctx context.Context, phone string) (*Mother, error) {
	return r.scanMother(r.conn(ctx).QueryRow(ctx, `SELECT `+motherCols+` FROM mothers WHERE phone_number = $1`, phone))
}

func (r *repoPG) Update(ctx context.Context, m *Mother) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE mothers SET full_name=$2, date_of_birth=$3, blood_type=$4, preferred_hospital=$5, language=$6,
			is_first_pregnancy=$7, previous_pregnancies=$8, previous_delivery_type=$9, medical_conditions=$10,
			allergies=$11, current_medications=$12, kin_name=$13, kin_relationship=$14, kin_phone=$15,
			kin_address=$16, emergency_contact=$17, updated_at=NOW()
		WHERE id = $1`,
		m.ID, m.FullName, m.DateOfBirth, m.BloodType, m.PreferredHospital, m.Language,
		m.IsFirstPregnancy, m.PreviousPregnancies, m.PreviousDeliveryType, m.MedicalConditions,
		m.Allergies, m.CurrentMedications, m.KinName, m.KinRelationship, m.KinPhone,
		m.KinAddress, m.EmergencyContact)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) UpdateDating(ctx context.Context, id uuid.UUID, d pregnancy.Dating) error {
	var trimester *string
	if d.Trimester != pregnancy.TrimesterNone {
		t := string(d.Trimester)
		trimester = &t
	}
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE mothers SET last_menstrual_period=$2, pregnancy_week=$3, due_date=$4, trimester=$5, updated_at=NOW()
		WHERE id = $1`,
		id, d.LastMenstrualPeriod, d.Week, d.DueDate, trimester)
	if err != nil {
		return fmt.Errorf("update dating: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM mothers WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) ListDated(ctx context.Context, limit, offset int) ([]*Mother, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM mothers WHERE last_menstrual_period IS NOT NULL`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+motherCols+` FROM mothers
		WHERE last_menstrual_period IS NOT NULL ORDER BY created_at, id LIMIT $1 OFFSET $2`, limit, offset)
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
