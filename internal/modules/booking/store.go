// README: Booking store backed by PostgreSQL, including the atomic assignment commit.
package booking

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"homeserve/internal/modules/provider"
	"homeserve/internal/types"
)

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Create(ctx context.Context, b *Booking) error {
	var lat, lng *float64
	if b.Coordinates != nil {
		lat, lng = &b.Coordinates.Lat, &b.Coordinates.Lng
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO bookings (
			id, customer_id, provider_id, location, lat, lng, locality,
			required_skill, scheduled_time, status, status_version, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		string(b.ID),
		string(b.CustomerID),
		toStringPtr(b.ProviderID),
		b.Location,
		lat, lng,
		b.Locality,
		b.RequiredSkill,
		b.ScheduledTime,
		string(b.Status),
		b.StatusVersion,
		b.CreatedAt,
	)
	return err
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Booking, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, customer_id, provider_id, location, lat, lng, locality,
		       required_skill, scheduled_time, status, status_version,
		       created_at, assigned_at, started_at, completed_at, cancelled_at
		FROM bookings
		WHERE id = $1`, string(id),
	)

	var b Booking
	var bid, customerID string
	var providerID *string
	var lat, lng *float64
	err := row.Scan(
		&bid, &customerID, &providerID, &b.Location, &lat, &lng, &b.Locality,
		&b.RequiredSkill, &b.ScheduledTime, &b.Status, &b.StatusVersion,
		&b.CreatedAt, &b.AssignedAt, &b.StartedAt, &b.CompletedAt, &b.CancelledAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	b.ID = types.ID(bid)
	b.CustomerID = types.ID(customerID)
	if providerID != nil {
		p := types.ID(*providerID)
		b.ProviderID = &p
	}
	if lat != nil && lng != nil {
		pt := types.Point{Lat: *lat, Lng: *lng}
		if pt.Valid() {
			b.Coordinates = &pt
		}
	}
	return &b, nil
}

// SetCoordinates caches a geocode result on the booking. Coordinates already present
// are never overwritten.
func (s *Store) SetCoordinates(ctx context.Context, id types.ID, pt types.Point, locality string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE bookings
		SET lat = $2, lng = $3,
		    locality = CASE WHEN $4 = '' THEN locality ELSE $4 END
		WHERE id = $1 AND lat IS NULL`,
		string(id), pt.Lat, pt.Lng, locality,
	)
	return err
}

// HasScheduleConflict reports whether the provider holds another assigned or in-progress
// booking scheduled within [dayStart, dayEnd).
func (s *Store) HasScheduleConflict(ctx context.Context, providerID, excludeID types.ID, dayStart, dayEnd time.Time) (bool, error) {
	return hasScheduleConflict(ctx, s.db, providerID, excludeID, dayStart, dayEnd)
}

func hasScheduleConflict(ctx context.Context, q querier, providerID, excludeID types.ID, dayStart, dayEnd time.Time) (bool, error) {
	row := q.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM bookings
			WHERE provider_id = $1
			  AND id <> $2
			  AND status IN ('assigned', 'in-progress')
			  AND scheduled_time >= $3
			  AND scheduled_time < $4
		)`,
		string(providerID), string(excludeID), dayStart, dayEnd,
	)
	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// UpdateStatus applies a transition only if the row still has the expected status and
// version. clearProvider unsets provider_id.
func (s *Store) UpdateStatus(ctx context.Context, id types.ID, from, to Status, version int, clearProvider bool) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE bookings
		SET status = $1,
		    status_version = status_version + 1,
		    provider_id = CASE WHEN $5 THEN NULL ELSE provider_id END,
		    started_at = CASE WHEN $1 = 'in-progress' THEN NOW() ELSE started_at END,
		    completed_at = CASE WHEN $1 = 'completed' THEN NOW() ELSE completed_at END,
		    cancelled_at = CASE WHEN $1 = 'cancelled' THEN NOW() ELSE cancelled_at END
		WHERE id = $2 AND status = $3 AND status_version = $4`,
		string(to),
		string(id),
		string(from),
		version,
		clearProvider,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) AppendEvent(ctx context.Context, e *Event) error {
	return appendEvent(ctx, s.db, e)
}

func appendEvent(ctx context.Context, q querier, e *Event) error {
	_, err := q.Exec(ctx, `
		INSERT INTO booking_state_events (
			booking_id, from_status, to_status, actor_type, actor_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6)`,
		string(e.BookingID),
		string(e.FromStatus),
		string(e.ToStatus),
		e.ActorType,
		toStringPtr(e.ActorID),
		e.CreatedAt,
	)
	return err
}

func (s *Store) Events(ctx context.Context, bookingID types.ID) ([]Event, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, booking_id, from_status, to_status, actor_type, actor_id, created_at
		FROM booking_state_events
		WHERE booking_id = $1
		ORDER BY id`, string(bookingID),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		var bid string
		var actorID *string
		if err := rows.Scan(&e.ID, &bid, &e.FromStatus, &e.ToStatus, &e.ActorType, &actorID, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.BookingID = types.ID(bid)
		if actorID != nil {
			a := types.ID(*actorID)
			e.ActorID = &a
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// AssignmentCommit carries what the commit transaction re-checks.
type AssignmentCommit struct {
	BookingID  types.ID
	ProviderID types.ID
	ActorID    *types.ID
	// DayStart and DayEnd bound the booking's calendar day.
	DayStart time.Time
	DayEnd   time.Time
}

// CommitAssignment moves a pending booking to assigned and increments the provider's
// booking counter in one transaction. The provider row is locked first, so concurrent
// assignments to the same provider serialize while different providers do not contend.
func (s *Store) CommitAssignment(ctx context.Context, c AssignmentCommit) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var locked string
	err = tx.QueryRow(ctx, `SELECT id FROM users WHERE id = $1 AND role = 'provider' FOR UPDATE`,
		string(c.ProviderID)).Scan(&locked)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrProviderNotFound
	}
	if err != nil {
		return err
	}

	conflict, err := hasScheduleConflict(ctx, tx, c.ProviderID, c.BookingID, c.DayStart, c.DayEnd)
	if err != nil {
		return err
	}
	if conflict {
		return ErrScheduleConflict
	}

	tag, err := tx.Exec(ctx, `
		UPDATE bookings
		SET provider_id = $2,
		    status = 'assigned',
		    status_version = status_version + 1,
		    assigned_at = NOW()
		WHERE id = $1 AND status = 'pending'`,
		string(c.BookingID), string(c.ProviderID),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() != 1 {
		return ErrInvalidState
	}

	// The limit is read from plans inside the same statement: tier row, then free row,
	// then the built-in free default.
	tag, err = tx.Exec(ctx, `
		UPDATE users u
		SET current_booking_count = u.current_booking_count + 1
		WHERE u.id = $1
		  AND u.availability_status = 'active'
		  AND u.subscription_status <> 'past_due'
		  AND (
		      COALESCE(
		          (SELECT monthly_booking_limit FROM plans WHERE tier = u.subscription_tier),
		          (SELECT monthly_booking_limit FROM plans WHERE tier = 'free'),
		          $2
		      ) = 0
		      OR u.current_booking_count < COALESCE(
		          (SELECT monthly_booking_limit FROM plans WHERE tier = u.subscription_tier),
		          (SELECT monthly_booking_limit FROM plans WHERE tier = 'free'),
		          $2
		      )
		  )`,
		string(c.ProviderID), provider.DefaultFreeLimit,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() != 1 {
		return ErrProviderIneligible
	}

	if err := appendEvent(ctx, tx, &Event{
		BookingID:  c.BookingID,
		FromStatus: StatusPending,
		ToStatus:   StatusAssigned,
		ActorType:  ActorAdmin,
		ActorID:    c.ActorID,
		CreatedAt:  time.Now(),
	}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func toStringPtr(v *types.ID) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}
