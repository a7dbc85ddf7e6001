package growth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pedcare/clinic/internal/platform/db"
	"github.com/pedcare/clinic/pkg/apperror"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// uniqueViolation is the Postgres error code for unique constraint breaches.
const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// =========== Standard Repository ===========

type standardRepoPG struct{ pool *pgxpool.Pool }

func NewStandardRepoPG(pool *pgxpool.Pool) StandardRepository {
	return &standardRepoPG{pool: pool}
}

func (r *standardRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const stdCols = `id, gender, chart_type, age_days, l, m, s`

func scanStandard(row pgx.Row) (*GrowthStandard, error) {
	var s GrowthStandard
	err := row.Scan(&s.ID, &s.Gender, &s.ChartType, &s.AgeDays, &s.L, &s.M, &s.S)
	return &s, err
}

func (r *standardRepoPG) FindBounding(ctx context.Context, gender Gender, chart ChartType, ageDays int) (*GrowthStandard, *GrowthStandard, error) {
	lower, err := scanStandard(r.conn(ctx).QueryRow(ctx, `
		SELECT `+stdCols+` FROM growth_standards
		WHERE gender = $1 AND chart_type = $2 AND age_days <= $3
		ORDER BY age_days DESC LIMIT 1`,
		gender, chart, ageDays))
	if errors.Is(err, pgx.ErrNoRows) {
		lower = nil
	} else if err != nil {
		return nil, nil, err
	}

	upper, err := scanStandard(r.conn(ctx).QueryRow(ctx, `
		SELECT `+stdCols+` FROM growth_standards
		WHERE gender = $1 AND chart_type = $2 AND age_days >= $3
		ORDER BY age_days ASC LIMIT 1`,
		gender, chart, ageDays))
	if errors.Is(err, pgx.ErrNoRows) {
		upper = nil
	} else if err != nil {
		return nil, nil, err
	}

	return lower, upper, nil
}

func (r *standardRepoPG) BulkInsert(ctx context.Context, rows []*GrowthStandard) error {
	for _, s := range rows {
		if s.ID == uuid.Nil {
			s.ID = uuid.New()
		}
		_, err := r.conn(ctx).Exec(ctx, `
			INSERT INTO growth_standards (id, gender, chart_type, age_days, l, m, s)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
			ON CONFLICT (gender, chart_type, age_days) DO UPDATE
			SET l = EXCLUDED.l, m = EXCLUDED.m, s = EXCLUDED.s`,
			s.ID, s.Gender, s.ChartType, s.AgeDays, s.L, s.M, s.S)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *standardRepoPG) Count(ctx context.Context) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM growth_standards`).Scan(&n)
	return n, err
}

// =========== Record Repository ===========

type recordRepoPG struct{ pool *pgxpool.Pool }

func NewRecordRepoPG(pool *pgxpool.Pool) RecordRepository {
	return &recordRepoPG{pool: pool}
}

func (r *recordRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const recCols = `id, patient_id, date, weight, height, head_circumference,
	age_days, age_months, weight_for_age_z, weight_percentile,
	height_for_age_z, height_percentile, bmi, bmi_z, bmi_percentile,
	growth_status, notes, recorded_by_id, created_at, updated_at, deleted_at`

func scanRecord(row pgx.Row) (*GrowthRecord, error) {
	var rec GrowthRecord
	err := row.Scan(&rec.ID, &rec.PatientID, &rec.Date, &rec.Weight, &rec.Height,
		&rec.HeadCircumference, &rec.AgeDays, &rec.AgeMonths,
		&rec.WeightForAgeZ, &rec.WeightPercentile,
		&rec.HeightForAgeZ, &rec.HeightPercentile,
		&rec.BMI, &rec.BMIZ, &rec.BMIPercentile,
		&rec.GrowthStatus, &rec.Notes, &rec.RecordedByID,
		&rec.CreatedAt, &rec.UpdatedAt, &rec.DeletedAt)
	return &rec, err
}

func (r *recordRepoPG) Create(ctx context.Context, rec *GrowthRecord) error {
	rec.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO growth_records (id, patient_id, date, weight, height,
			head_circumference, age_days, age_months,
			weight_for_age_z, weight_percentile,
			height_for_age_z, height_percentile,
			bmi, bmi_z, bmi_percentile,
			growth_status, notes, recorded_by_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)`,
		rec.ID, rec.PatientID, rec.Date, rec.Weight, rec.Height,
		rec.HeadCircumference, rec.AgeDays, rec.AgeMonths,
		rec.WeightForAgeZ, rec.WeightPercentile,
		rec.HeightForAgeZ, rec.HeightPercentile,
		rec.BMI, rec.BMIZ, rec.BMIPercentile,
		rec.GrowthStatus, rec.Notes, rec.RecordedByID)
	if isUniqueViolation(err) {
		return apperror.Conflict("a measurement already exists for patient %s on %s", rec.PatientID, rec.Date.Format("2006-01-02"))
	}
	return err
}

func (r *recordRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*GrowthRecord, error) {
	rec, err := scanRecord(r.conn(ctx).QueryRow(ctx, `
		SELECT `+recCols+` FROM growth_records
		WHERE id = $1 AND deleted_at IS NULL`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NotFound("growth record %s not found", id)
	}
	return rec, err
}

func (r *recordRepoPG) Update(ctx context.Context, rec *GrowthRecord) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE growth_records SET weight=$2, height=$3, head_circumference=$4,
			weight_for_age_z=$5, weight_percentile=$6,
			height_for_age_z=$7, height_percentile=$8,
			bmi=$9, bmi_z=$10, bmi_percentile=$11,
			growth_status=$12, notes=$13, updated_at=NOW()
		WHERE id = $1 AND deleted_at IS NULL`,
		rec.ID, rec.Weight, rec.Height, rec.HeadCircumference,
		rec.WeightForAgeZ, rec.WeightPercentile,
		rec.HeightForAgeZ, rec.HeightPercentile,
		rec.BMI, rec.BMIZ, rec.BMIPercentile,
		rec.GrowthStatus, rec.Notes)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("growth record %s not found", rec.ID)
	}
	return nil
}

func (r *recordRepoPG) SoftDelete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE growth_records SET deleted_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("growth record %s not found", id)
	}
	return nil
}

func (r *recordRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*GrowthRecord, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*) FROM growth_records
		WHERE patient_id = $1 AND deleted_at IS NULL`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+recCols+` FROM growth_records
		WHERE patient_id = $1 AND deleted_at IS NULL
		ORDER BY date DESC LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*GrowthRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, rec)
	}
	return items, total, rows.Err()
}

func (r *recordRepoPG) HistoryByPatient(ctx context.Context, patientID uuid.UUID) ([]*GrowthRecord, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+recCols+` FROM growth_records
		WHERE patient_id = $1 AND deleted_at IS NULL
		ORDER BY date ASC`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*GrowthRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, rec)
	}
	return items, rows.Err()
}

func (r *recordRepoPG) CountAbnormalSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*) FROM growth_records
		WHERE deleted_at IS NULL AND growth_status != $1 AND date >= $2`,
		StatusNormal, since).Scan(&n)
	return n, err
}

func (r *recordRepoPG) ExistsForDate(ctx context.Context, patientID uuid.UUID, dateISO string) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM growth_records
			WHERE patient_id = $1 AND date = $2 AND deleted_at IS NULL
		)`, patientID, dateISO).Scan(&exists)
	return exists, err
}
