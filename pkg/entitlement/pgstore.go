package entitlement

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgUserStore is the PostgreSQL-backed UserStore.
type PgUserStore struct {
	pool *pgxpool.Pool
}

func NewPgUserStore(pool *pgxpool.Pool) *PgUserStore {
	return &PgUserStore{pool: pool}
}

const userColumns = `id, email, is_admin, disabled, customer_id, subscription_status, created_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	var status *string
	err := row.Scan(&u.ID, &u.Email, &u.IsAdmin, &u.Disabled, &u.CustomerID, &status, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	if status != nil {
		st := SubscriptionStatus(*status)
		u.SubscriptionStatus = &st
	}
	return &u, nil
}

func (s *PgUserStore) Get(ctx context.Context, id uuid.UUID) (*User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (s *PgUserStore) GetByCustomerID(ctx context.Context, customerID string) (*User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE customer_id = $1`, customerID)
	return scanUser(row)
}

func (s *PgUserStore) SetCustomerID(ctx context.Context, id uuid.UUID, customerID string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE users SET customer_id = $2 WHERE id = $1`, id, customerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (s *PgUserStore) SetSubscriptionStatus(ctx context.Context, id uuid.UUID, status SubscriptionStatus) error {
	tag, err := s.pool.Exec(ctx, `UPDATE users SET subscription_status = $2 WHERE id = $1`, id, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// PgProductStore is the PostgreSQL-backed ProductStore.
type PgProductStore struct {
	pool *pgxpool.Pool
}

func NewPgProductStore(pool *pgxpool.Pool) *PgProductStore {
	return &PgProductStore{pool: pool}
}

func (s *PgProductStore) Get(ctx context.Context, id uuid.UUID) (*Product, error) {
	var p Product
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, space, type, price_id, price, active, created_at FROM products WHERE id = $1`, id,
	).Scan(&p.ID, &p.Name, &p.Space, &p.Type, &p.PriceID, &p.Price, &p.Active, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// PgPurchaseStore is the PostgreSQL-backed PurchaseStore. Idempotency comes
// from the unique index on (user_id, product_id, provider_ref) together with
// ON CONFLICT DO NOTHING, so a redelivered event inserts nothing.
type PgPurchaseStore struct {
	pool *pgxpool.Pool
}

func NewPgPurchaseStore(pool *pgxpool.Pool) *PgPurchaseStore {
	return &PgPurchaseStore{pool: pool}
}

func (s *PgPurchaseStore) Record(ctx context.Context, purchase Purchase) (bool, error) {
	createdAt := purchase.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	tag, err := s.pool.Exec(ctx, `
		INSERT INTO purchases (id, user_id, product_id, status, provider_ref, space, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, product_id, provider_ref) DO NOTHING`,
		purchase.ID, purchase.UserID, purchase.ProductID, string(purchase.Status),
		purchase.ProviderRef, string(purchase.Space), createdAt,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PgPurchaseStore) HasPaid(ctx context.Context, userID, productID uuid.UUID) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM purchases
			WHERE user_id = $1 AND product_id = $2 AND status = $3
		)`,
		userID, productID, string(PurchasePaid),
	).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

func (s *PgPurchaseStore) SetStatusByProviderRef(ctx context.Context, providerRef string, status PurchaseStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE purchases SET status = $2 WHERE provider_ref = $1`,
		providerRef, string(status),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPurchaseNotFound
	}
	return nil
}

// PgSubscriptionStore is the PostgreSQL-backed SubscriptionStore. The upsert
// is a single-row compare-and-set on event_at: an event older than the stored
// state updates nothing, so out-of-order delivery cannot roll status back.
type PgSubscriptionStore struct {
	pool *pgxpool.Pool
}

func NewPgSubscriptionStore(pool *pgxpool.Pool) *PgSubscriptionStore {
	return &PgSubscriptionStore{pool: pool}
}

func (s *PgSubscriptionStore) Upsert(ctx context.Context, sub Subscription) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO subscriptions (
			id, user_id, status, price_id, quantity, cancel_at_period_end,
			period_start, period_end, space, event_at, metadata, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now(), now())
		ON CONFLICT (id) DO UPDATE SET
			user_id = excluded.user_id,
			status = excluded.status,
			price_id = excluded.price_id,
			quantity = excluded.quantity,
			cancel_at_period_end = excluded.cancel_at_period_end,
			period_start = excluded.period_start,
			period_end = excluded.period_end,
			space = excluded.space,
			event_at = excluded.event_at,
			metadata = excluded.metadata,
			updated_at = now()
		WHERE subscriptions.event_at <= excluded.event_at`,
		sub.ID, sub.UserID, string(sub.Status), sub.PriceID, sub.Quantity, sub.CancelAtPeriodEnd,
		sub.PeriodStart, sub.PeriodEnd, string(sub.Space), sub.EventAt, sub.Metadata,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

const subscriptionColumns = `id, user_id, status, price_id, quantity, cancel_at_period_end,
	period_start, period_end, space, event_at, metadata, created_at, updated_at`

func scanSubscription(row pgx.Row) (*Subscription, error) {
	var sub Subscription
	err := row.Scan(
		&sub.ID, &sub.UserID, &sub.Status, &sub.PriceID, &sub.Quantity, &sub.CancelAtPeriodEnd,
		&sub.PeriodStart, &sub.PeriodEnd, &sub.Space, &sub.EventAt, &sub.Metadata,
		&sub.CreatedAt, &sub.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (s *PgSubscriptionStore) Get(ctx context.Context, id string) (*Subscription, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = $1`, id)
	return scanSubscription(row)
}

func (s *PgSubscriptionStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]Subscription, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE user_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, *sub)
	}
	return subs, rows.Err()
}
