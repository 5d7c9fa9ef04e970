//go:build postgres

package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"tripplanner/internal/domain"
	"tripplanner/internal/storage"
)

const profileColumns = `id, email, display_name, plan, customer_id, password_hash, oidc_issuer, oidc_subject, created_at, updated_at`

func scanProfile(row pgx.Row) (domain.Profile, error) {
	var p domain.Profile
	var plan string
	var customer *string
	if err := row.Scan(&p.ID, &p.Email, &p.DisplayName, &plan, &customer, &p.PasswordHash, &p.OIDCIssuer, &p.OIDCSubject, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return domain.Profile{}, err
	}
	p.Plan = domain.Plan(plan)
	if customer != nil {
		p.CustomerID = *customer
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return p, nil
}

func (s *Store) CreateProfile(ctx context.Context, p domain.Profile) (domain.Profile, error) {
	p, err := storage.NormalizeProfile(p)
	if err != nil {
		return domain.Profile{}, err
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := s.now()
	p.CreatedAt, p.UpdatedAt = now, now
	_, err = s.pool.Exec(ctx,
		`INSERT INTO profiles (`+profileColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		p.ID, p.Email, p.DisplayName, string(p.Plan), nullString(p.CustomerID), p.PasswordHash, p.OIDCIssuer, p.OIDCSubject, now, now,
	)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("insert profile: %w", storage.WrapIfConflict(err))
	}
	return p, nil
}

func profileWhere(ctx context.Context, q querier, cond string, args ...any) (domain.Profile, error) {
	p, err := scanProfile(q.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE `+cond, args...))
	if err != nil {
		return domain.Profile{}, notFound(err, "profile")
	}
	return p, nil
}

func (s *Store) GetProfile(ctx context.Context, id string) (domain.Profile, error) {
	return profileWhere(ctx, s.pool, `id = $1`, id)
}

func (s *Store) GetProfileByEmail(ctx context.Context, email string) (domain.Profile, error) {
	return profileWhere(ctx, s.pool, `email = $1`, storage.NormalizeEmail(email))
}

func (s *Store) GetProfileByCustomerID(ctx context.Context, customerID string) (domain.Profile, error) {
	if customerID == "" {
		return domain.Profile{}, storage.ErrNotFound
	}
	return profileWhere(ctx, s.pool, `customer_id = $1`, customerID)
}

func (s *Store) GetProfileByOIDC(ctx context.Context, issuer, subject string) (domain.Profile, error) {
	if subject == "" {
		return domain.Profile{}, storage.ErrNotFound
	}
	return profileWhere(ctx, s.pool, `oidc_issuer = $1 AND oidc_subject = $2`, issuer, subject)
}

func (s *Store) UpdateProfile(ctx context.Context, id string, patch domain.ProfilePatch) (domain.Profile, error) {
	if patch.Plan != nil && !domain.IsValidPlan(*patch.Plan) {
		return domain.Profile{}, fmt.Errorf("unknown plan %q: %w", *patch.Plan, storage.ErrValidation)
	}
	var out domain.Profile
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		p, err := profileWhere(ctx, tx, `id = $1 FOR UPDATE`, id)
		if err != nil {
			return err
		}
		if patch.DisplayName != nil {
			p.DisplayName = *patch.DisplayName
		}
		if patch.Plan != nil {
			p.Plan = *patch.Plan
		}
		if patch.CustomerID != nil {
			p.CustomerID = *patch.CustomerID
		}
		p.UpdatedAt = s.now()
		_, err = tx.Exec(ctx,
			`UPDATE profiles SET display_name = $1, plan = $2, customer_id = $3, updated_at = $4 WHERE id = $5`,
			p.DisplayName, string(p.Plan), nullString(p.CustomerID), p.UpdatedAt, p.ID,
		)
		if err != nil {
			return fmt.Errorf("update profile: %w", storage.WrapIfConflict(err))
		}
		out = p
		return nil
	})
	return out, err
}
