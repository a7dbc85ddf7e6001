package staff

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

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const staffCols = `id, first_name, last_name, role, specialty, email, phone,
	active, created_at, updated_at, deleted_at`

func scanStaff(row pgx.Row) (*Staff, error) {
	var s Staff
	err := row.Scan(&s.ID, &s.FirstName, &s.LastName, &s.Role, &s.Specialty,
		&s.Email, &s.Phone, &s.Active, &s.CreatedAt, &s.UpdatedAt, &s.DeletedAt)
	return &s, err
}

func (r *repoPG) Create(ctx context.Context, s *Staff) error {
	s.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO staff (id, first_name, last_name, role, specialty, email, phone, active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		s.ID, s.FirstName, s.LastName, s.Role, s.Specialty, s.Email, s.Phone, s.Active)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Staff, error) {
	s, err := scanStaff(r.conn(ctx).QueryRow(ctx, `
		SELECT `+staffCols+` FROM staff
		WHERE id = $1 AND deleted_at IS NULL`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NotFound("staff member %s not found", id)
	}
	return s, err
}

func (r *repoPG) Update(ctx context.Context, s *Staff) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE staff SET first_name=$2, last_name=$3, role=$4, specialty=$5,
			email=$6, phone=$7, active=$8, updated_at=NOW()
		WHERE id = $1 AND deleted_at IS NULL`,
		s.ID, s.FirstName, s.LastName, s.Role, s.Specialty, s.Email, s.Phone, s.Active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("staff member %s not found", s.ID)
	}
	return nil
}

func (r *repoPG) SoftDelete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE staff SET deleted_at = NOW(), active = FALSE
		WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("staff member %s not found", id)
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, role Role, limit, offset int) ([]*Staff, int, error) {
	where := `deleted_at IS NULL`
	args := []interface{}{}
	if role != "" {
		where += ` AND role = $1`
		args = append(args, role)
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM staff WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + staffCols + ` FROM staff WHERE ` + where + ` ORDER BY last_name, first_name`
	if role != "" {
		query += ` LIMIT $2 OFFSET $3`
	} else {
		query += ` LIMIT $1 OFFSET $2`
	}
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Staff
	for rows.Next() {
		s, err := scanStaff(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, s)
	}
	return items, total, rows.Err()
}

func (r *repoPG) ReplaceAvailability(ctx context.Context, staffID uuid.UUID, windows []*AvailabilityWindow) error {
	if _, err := r.conn(ctx).Exec(ctx, `DELETE FROM availability_windows WHERE staff_id = $1`, staffID); err != nil {
		return err
	}
	for _, w := range windows {
		w.ID = uuid.New()
		w.StaffID = staffID
		if _, err := r.conn(ctx).Exec(ctx, `
			INSERT INTO availability_windows (id, staff_id, weekday, start_min, end_min)
			VALUES ($1,$2,$3,$4,$5)`,
			w.ID, w.StaffID, int(w.Weekday), w.StartMin, w.EndMin); err != nil {
			return err
		}
	}
	return nil
}

func (r *repoPG) AvailabilityFor(ctx context.Context, staffID uuid.UUID) ([]*AvailabilityWindow, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, staff_id, weekday, start_min, end_min
		FROM availability_windows
		WHERE staff_id = $1
		ORDER BY weekday, start_min`, staffID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var windows []*AvailabilityWindow
	for rows.Next() {
		var w AvailabilityWindow
		var weekday int
		if err := rows.Scan(&w.ID, &w.StaffID, &weekday, &w.StartMin, &w.EndMin); err != nil {
			return nil, err
		}
		w.Weekday = time.Weekday(weekday)
		windows = append(windows, &w)
	}
	return windows, rows.Err()
}
