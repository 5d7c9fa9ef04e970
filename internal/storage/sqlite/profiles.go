//go:build sqlite

package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"tripplanner/internal/domain"
	"tripplanner/internal/storage"
)

const profileColumns = `id, email, display_name, plan, customer_id, password_hash, oidc_issuer, oidc_subject, created_at, updated_at`

func scanProfile(row scanner) (domain.Profile, error) {
	var p domain.Profile
	var customer sql.NullString
	var createdAt, updatedAt string
	if err := row.Scan(&p.ID, &p.Email, &p.DisplayName, &p.Plan, &customer, &p.PasswordHash, &p.OIDCIssuer, &p.OIDCSubject, &createdAt, &updatedAt); err != nil {
		return domain.Profile{}, err
	}
	p.CustomerID = customer.String
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
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
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO profiles (`+profileColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Email, p.DisplayName, p.Plan, nullString(p.CustomerID), p.PasswordHash, p.OIDCIssuer, p.OIDCSubject,
		formatTime(now), formatTime(now),
	)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("insert profile: %w", storage.WrapIfConflict(err))
	}
	return p, nil
}

func (s *Store) profileWhere(ctx context.Context, q querier, cond string, args ...any) (domain.Profile, error) {
	p, err := scanProfile(q.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM profiles WHERE `+cond, args...))
	if err != nil {
		return domain.Profile{}, notFound(err, "profile")
	}
	return p, nil
}

func (s *Store) GetProfile(ctx context.Context, id string) (domain.Profile, error) {
	return s.profileWhere(ctx, s.db, `id = ?`, id)
}

func (s *Store) GetProfileByEmail(ctx context.Context, email string) (domain.Profile, error) {
	return s.profileWhere(ctx, s.db, `email = ?`, storage.NormalizeEmail(email))
}

func (s *Store) GetProfileByCustomerID(ctx context.Context, customerID string) (domain.Profile, error) {
	if customerID == "" {
		return domain.Profile{}, storage.ErrNotFound
	}
	return s.profileWhere(ctx, s.db, `customer_id = ?`, customerID)
}

func (s *Store) GetProfileByOIDC(ctx context.Context, issuer, subject string) (domain.Profile, error) {
	if subject == "" {
		return domain.Profile{}, storage.ErrNotFound
	}
	return s.profileWhere(ctx, s.db, `oidc_issuer = ? AND oidc_subject = ?`, issuer, subject)
}

func (s *Store) UpdateProfile(ctx context.Context, id string, patch domain.ProfilePatch) (domain.Profile, error) {
	if patch.Plan != nil && !domain.IsValidPlan(*patch.Plan) {
		return domain.Profile{}, fmt.Errorf("unknown plan %q: %w", *patch.Plan, storage.ErrValidation)
	}
	var out domain.Profile
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		p, err := s.profileWhere(ctx, tx, `id = ?`, id)
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
		_, err = tx.ExecContext(ctx,
			`UPDATE profiles SET display_name = ?, plan = ?, customer_id = ?, updated_at = ? WHERE id = ?`,
			p.DisplayName, p.Plan, nullString(p.CustomerID), formatTime(p.UpdatedAt), p.ID,
		)
		if err != nil {
			return fmt.Errorf("update profile: %w", storage.WrapIfConflict(err))
		}
		out = p
		return nil
	})
	return out, err
}
