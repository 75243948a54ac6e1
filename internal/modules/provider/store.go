// README: Provider and plan store backed by PostgreSQL.
package provider

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"homeserve/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// Criteria narrows the candidate population. Empty Skills means any skill; an empty
// Locality disables the locality filter.
type Criteria struct {
	Skills   []string
	Locality string
}

const providerColumns = `
	id, role, skills, lat, lng, locality, availability_status,
	subscription_tier, subscription_status, subscription_start_date, current_booking_count`

// SelectCandidates returns active providers. Coordinates are never required here;
// distance decides inclusion later.
func (s *Store) SelectCandidates(ctx context.Context, c Criteria) ([]*Provider, error) {
	skills := make([]string, 0, len(c.Skills))
	for _, sk := range c.Skills {
		if v := strings.ToLower(strings.TrimSpace(sk)); v != "" {
			skills = append(skills, v)
		}
	}
	rows, err := s.db.Query(ctx, `
		SELECT `+providerColumns+`
		FROM users
		WHERE role = 'provider'
		  AND availability_status = 'active'
		  AND (cardinality($1::text[]) = 0
		       OR EXISTS (SELECT 1 FROM unnest(skills) sk WHERE lower(btrim(sk)) = ANY($1::text[])))
		  AND ($2 = '' OR lower(btrim(locality)) = $2)
		ORDER BY id`,
		skills,
		strings.ToLower(strings.TrimSpace(c.Locality)),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Provider
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Provider, error) {
	row := s.db.QueryRow(ctx, `SELECT `+providerColumns+` FROM users WHERE id = $1`, string(id))
	p, err := scanProvider(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

// ListRenewalDue returns paid, active subscriptions whose renewal falls within the next
// window.
func (s *Store) ListRenewalDue(ctx context.Context, now time.Time, window time.Duration) ([]*Provider, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+providerColumns+`
		FROM users
		WHERE role = 'provider'
		  AND subscription_tier <> 'free'
		  AND subscription_status = 'active'
		  AND subscription_start_date IS NOT NULL
		  AND subscription_start_date + interval '1 month' > $1
		  AND subscription_start_date + interval '1 month' <= $2
		ORDER BY id`,
		now, now.Add(window),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Provider
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) Plans(ctx context.Context) (PlanTable, error) {
	rows, err := s.db.Query(ctx, `SELECT tier, monthly_booking_limit FROM plans`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var plans []Plan
	for rows.Next() {
		var p Plan
		if err := rows.Scan(&p.Tier, &p.MonthlyBookingLimit); err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return NewPlanTable(plans), nil
}

func (s *Store) UpsertPlan(ctx context.Context, p Plan) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO plans (tier, monthly_booking_limit, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (tier) DO UPDATE
		SET monthly_booking_limit = EXCLUDED.monthly_booking_limit,
		    updated_at = NOW()`,
		string(p.Tier), p.MonthlyBookingLimit,
	)
	return err
}

// Renew starts a new billing month and resets the booking counter.
func (s *Store) Renew(ctx context.Context, id types.ID, tier Tier, start time.Time) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE users
		SET subscription_tier = $2,
		    subscription_status = 'active',
		    subscription_start_date = $3,
		    current_booking_count = 0
		WHERE id = $1 AND role = 'provider'`,
		string(id), string(tier), start,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() != 1 {
		return ErrNotFound
	}
	return nil
}

// Cancel downgrades to the free tier and resets the booking counter.
func (s *Store) Cancel(ctx context.Context, id types.ID) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE users
		SET subscription_tier = 'free',
		    subscription_status = 'canceled',
		    current_booking_count = 0
		WHERE id = $1 AND role = 'provider'`,
		string(id),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() != 1 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) MarkPastDue(ctx context.Context, id types.ID) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE users SET subscription_status = 'past_due'
		WHERE id = $1 AND role = 'provider'`,
		string(id),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() != 1 {
		return ErrNotFound
	}
	return nil
}

// Create inserts a provider row. Used by seeding and tests; the counter always starts at 0.
func (s *Store) Create(ctx context.Context, p *Provider) error {
	var lat, lng *float64
	if p.Coordinates != nil {
		lat, lng = &p.Coordinates.Lat, &p.Coordinates.Lng
	}
	role := p.Role
	if role == "" {
		role = RoleProvider
	}
	skills := p.Skills
	if skills == nil {
		skills = []string{}
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO users (
			id, role, skills, lat, lng, locality, availability_status,
			subscription_tier, subscription_status, subscription_start_date, current_booking_count
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 0)`,
		string(p.ID), role, skills, lat, lng, p.Locality, string(p.Availability),
		string(p.Tier), string(p.SubscriptionStatus), p.SubscriptionStartDate,
	)
	return err
}

func scanProvider(row pgx.Row) (*Provider, error) {
	var p Provider
	var id string
	var lat, lng *float64
	err := row.Scan(
		&id, &p.Role, &p.Skills, &lat, &lng, &p.Locality, &p.Availability,
		&p.Tier, &p.SubscriptionStatus, &p.SubscriptionStartDate, &p.CurrentBookingCount,
	)
	if err != nil {
		return nil, err
	}
	p.ID = types.ID(id)
	if lat != nil && lng != nil {
		pt := types.Point{Lat: *lat, Lng: *lng}
		if pt.Valid() {
			p.Coordinates = &pt
		}
	}
	return &p, nil
}
