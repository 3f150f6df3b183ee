package repositories

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/palompy/gatekeeper/internal/database"
	"github.com/palompy/gatekeeper/internal/models"
)

// rowScanner is satisfied by pgx.Row and pgx.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// TwoFactorRepository stores two-factor state in user_security_settings
type TwoFactorRepository struct {
	pool *pgxpool.Pool
}

// NewTwoFactorRepository creates a new two-factor repository
func NewTwoFactorRepository(db *database.DB) *TwoFactorRepository {
	return &TwoFactorRepository{pool: db.Pool}
}

// scanTwoFactorRow handles the nullable secret column
func scanTwoFactorRow(row rowScanner) (*models.TwoFactorSettings, error) {
	var (
		settings models.TwoFactorSettings
		secret   pgtype.Text
	)

	err := row.Scan(
		&settings.UserID,
		&secret,
		&settings.Enabled,
		&settings.RecoveryCodes,
		&settings.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	if secret.Valid {
		settings.EncryptedSecret = secret.String
	}
	if settings.RecoveryCodes == nil {
		settings.RecoveryCodes = []string{}
	}
	return &settings, nil
}

// Get returns the settings row for userID or models.ErrNotFound
func (r *TwoFactorRepository) Get(ctx context.Context, userID int64) (*models.TwoFactorSettings, error) {
	query := `
		SELECT user_id, two_factor_secret, two_factor_enabled, recovery_codes, updated_at
		FROM user_security_settings
		WHERE user_id = $1
	`

	settings, err := scanTwoFactorRow(r.pool.QueryRow(ctx, query, userID))
	if err != nil {
		return nil, fmt.Errorf("failed to get two-factor settings: %w", err)
	}
	return settings, nil
}

// Upsert writes the full settings row
func (r *TwoFactorRepository) Upsert(ctx context.Context, settings *models.TwoFactorSettings) error {
	query := `
		INSERT INTO user_security_settings (user_id, two_factor_secret, two_factor_enabled, recovery_codes, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			two_factor_secret  = EXCLUDED.two_factor_secret,
			two_factor_enabled = EXCLUDED.two_factor_enabled,
			recovery_codes     = EXCLUDED.recovery_codes,
			updated_at         = NOW()
		RETURNING updated_at
	`

	codes := settings.RecoveryCodes
	if codes == nil {
		codes = []string{}
	}

	secret := pgtype.Text{String: settings.EncryptedSecret, Valid: settings.EncryptedSecret != ""}

	err := r.pool.QueryRow(ctx, query,
		settings.UserID,
		secret,
		settings.Enabled,
		codes,
	).Scan(&settings.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert two-factor settings: %w", database.MapPostgresError(err))
	}
	return nil
}

// RemoveRecoveryCode deletes one recovery code in a single statement so two
// concurrent requests cannot both spend it
func (r *TwoFactorRepository) RemoveRecoveryCode(ctx context.Context, userID int64, code string) (bool, error) {
	query := `
		UPDATE user_security_settings
		SET recovery_codes = array_remove(recovery_codes, $2), updated_at = NOW()
		WHERE user_id = $1 AND $2 = ANY(recovery_codes)
	`

	tag, err := r.pool.Exec(ctx, query, userID, code)
	if err != nil {
		return false, fmt.Errorf("failed to remove recovery code: %w", database.MapPostgresError(err))
	}
	return tag.RowsAffected() == 1, nil
}
