package immunization

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

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

type scheduleRepoPG struct{ pool *pgxpool.Pool }

func NewScheduleRepoPG(pool *pgxpool.Pool) ScheduleRepository {
	return &scheduleRepoPG{pool: pool}
}

func (r *scheduleRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

func (r *scheduleRepoPG) List(ctx context.Context) ([]*ScheduleEntry, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, vaccine_code, vaccine_name, dose_number, due_age_days, overdue_age_days
		FROM vaccine_schedule
		ORDER BY due_age_days, vaccine_code, dose_number`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []*ScheduleEntry
	for rows.Next() {
		var e ScheduleEntry
		if err := rows.Scan(&e.ID, &e.VaccineCode, &e.VaccineName, &e.DoseNumber,
			&e.DueAgeDays, &e.OverdueAgeDays); err != nil {
			return nil, err
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

func (r *scheduleRepoPG) BulkInsert(ctx context.Context, entries []*ScheduleEntry) (int, error) {
	inserted := 0
	for _, e := range entries {
		tag, err := r.conn(ctx).Exec(ctx, `
			INSERT INTO vaccine_schedule (id, vaccine_code, vaccine_name, dose_number, due_age_days, overdue_age_days)
			VALUES ($1,$2,$3,$4,$5,$6)
			ON CONFLICT (vaccine_code, dose_number) DO UPDATE SET
				vaccine_name = EXCLUDED.vaccine_name,
				due_age_days = EXCLUDED.due_age_days,
				overdue_age_days = EXCLUDED.overdue_age_days`,
			uuid.New(), e.VaccineCode, e.VaccineName, e.DoseNumber, e.DueAgeDays, e.OverdueAgeDays)
		if err != nil {
			return inserted, err
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

func (r *scheduleRepoPG) Count(ctx context.Context) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM vaccine_schedule`).Scan(&n)
	return n, err
}

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

const recordCols = `id, patient_id, vaccine_code, vaccine_name, dose_number,
	administered_at, lot_number, site_code, administered_by_id, notes, created_at`

func scanRecord(row pgx.Row) (*Record, error) {
	var rec Record
	err := row.Scan(&rec.ID, &rec.PatientID, &rec.VaccineCode, &rec.VaccineName,
		&rec.DoseNumber, &rec.AdministeredAt, &rec.LotNumber, &rec.SiteCode,
		&rec.AdministeredByID, &rec.Notes, &rec.CreatedAt)
	return &rec, err
}

func (r *recordRepoPG) Create(ctx context.Context, rec *Record) error {
	rec.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO vaccination_records
			(id, patient_id, vaccine_code, vaccine_name, dose_number,
			 administered_at, lot_number, site_code, administered_by_id, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		rec.ID, rec.PatientID, rec.VaccineCode, rec.VaccineName, rec.DoseNumber,
		rec.AdministeredAt, rec.LotNumber, rec.SiteCode, rec.AdministeredByID, rec.Notes)
	if isUniqueViolation(err) {
		return apperror.Conflict("dose %d of %s is already recorded for this patient",
			rec.DoseNumber, rec.VaccineCode)
	}
	return err
}

func (r *recordRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Record, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*) FROM vaccination_records WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+recordCols+` FROM vaccination_records
		WHERE patient_id = $1
		ORDER BY administered_at DESC LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, rec)
	}
	return items, total, rows.Err()
}

func (r *recordRepoPG) ExistsDose(ctx context.Context, patientID uuid.UUID, vaccineCode string, doseNumber int) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM vaccination_records
			WHERE patient_id = $1 AND vaccine_code = $2 AND dose_number = $3)`,
		patientID, vaccineCode, doseNumber).Scan(&exists)
	return exists, err
}

func (r *recordRepoPG) CountSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*) FROM vaccination_records WHERE administered_at >= $1`, since).Scan(&n)
	return n, err
}
