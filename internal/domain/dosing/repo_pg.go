package dosing

import (
	"context"
	"errors"

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

const ruleCols = `id, drug_code, drug_name, route, min_age_days, max_age_days,
	mg_per_kg, max_single_dose_mg, max_daily_dose_mg, frequency_per_day, notes, created_at`

func scanRule(row pgx.Row) (*DoseRule, error) {
	var rule DoseRule
	err := row.Scan(&rule.ID, &rule.DrugCode, &rule.DrugName, &rule.Route,
		&rule.MinAgeDays, &rule.MaxAgeDays, &rule.MgPerKg, &rule.MaxSingleDoseMg,
		&rule.MaxDailyDoseMg, &rule.FrequencyPerDay, &rule.Notes, &rule.CreatedAt)
	return &rule, err
}

func (r *repoPG) Create(ctx context.Context, rule *DoseRule) error {
	rule.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO dose_rules
			(id, drug_code, drug_name, route, min_age_days, max_age_days,
			 mg_per_kg, max_single_dose_mg, max_daily_dose_mg, frequency_per_day, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		rule.ID, rule.DrugCode, rule.DrugName, rule.Route, rule.MinAgeDays, rule.MaxAgeDays,
		rule.MgPerKg, rule.MaxSingleDoseMg, rule.MaxDailyDoseMg, rule.FrequencyPerDay, rule.Notes)
	return err
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM dose_rules WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("dose rule %s not found", id)
	}
	return nil
}

func (r *repoPG) List(ctx context.Context) ([]*DoseRule, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+ruleCols+` FROM dose_rules
		ORDER BY drug_code, route, min_age_days NULLS FIRST`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRules(rows)
}

func (r *repoPG) FindByDrugAndRoute(ctx context.Context, drugCode, route string) ([]*DoseRule, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+ruleCols+` FROM dose_rules
		WHERE drug_code = $1 AND route = $2
		ORDER BY min_age_days NULLS LAST`, drugCode, route)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRules(rows)
}

func collectRules(rows pgx.Rows) ([]*DoseRule, error) {
	var rules []*DoseRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	if errors.Is(rows.Err(), pgx.ErrNoRows) {
		return nil, nil
	}
	return rules, rows.Err()
}
