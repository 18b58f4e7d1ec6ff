package auth

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/uptrace/bun"

	"github.com/redmonkez12/go-todo-api/internal/database"
)

// otpLength is the number of decimal digits in a reset code
const otpLength = 6

// OneTimeCode is a password reset code issued for an email address
type OneTimeCode struct {
	ID        int64
	Email     string
	Code      string
	CreatedAt time.Time
	ExpiresAt time.Time
	Used      bool
}

// OTPRepository stores password reset codes. Codes are keyed by the email
// string the client supplied and are not linked to the users table.
type OTPRepository struct {
	db  *bun.DB
	ttl time.Duration
	now func() time.Time
}

func NewOTPRepository(db *bun.DB, ttl time.Duration) *OTPRepository {
	return &OTPRepository{
		db:  db,
		ttl: ttl,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Issue replaces every code held for email with a fresh one and returns it.
func (r *OTPRepository) Issue(ctx context.Context, email string) (string, error) {
	code, err := generateOTP()
	if err != nil {
		return "", fmt.Errorf("failed to generate otp: %w", err)
	}

	err = database.WithTx(ctx, r.db, func(ctx context.Context) error {
		q := database.QuerierFrom(ctx, r.db)

		_, err := q.NewDelete().
			Model((*database.OneTimeCode)(nil)).
			Where("email = ?", email).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to delete previous otps: %w", err)
		}

		now := r.now()
		_, err = q.NewInsert().
			Model(&database.OneTimeCode{
				Email:     email,
				Code:      code,
				CreatedAt: now,
				ExpiresAt: now.Add(r.ttl),
			}).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to store otp: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	return code, nil
}

// Check reports whether code is currently valid for email without using it up.
func (r *OTPRepository) Check(ctx context.Context, email, code string) (bool, error) {
	exists, err := database.QuerierFrom(ctx, r.db).NewSelect().
		Model((*database.OneTimeCode)(nil)).
		Where("email = ?", email).
		Where("code = ?", code).
		Where("used = ?", false).
		Where("expires_at > ?", r.now()).
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to check otp: %w", err)
	}
	return exists, nil
}

// Consume marks a valid code as used. It returns false when no valid code
// matched; of several concurrent consumers at most one gets true.
func (r *OTPRepository) Consume(ctx context.Context, email, code string) (bool, error) {
	result, err := database.QuerierFrom(ctx, r.db).NewUpdate().
		Model((*database.OneTimeCode)(nil)).
		Set("used = ?", true).
		Where("email = ?", email).
		Where("code = ?", code).
		Where("used = ?", false).
		Where("expires_at > ?", r.now()).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to consume otp: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// DeleteExpired removes codes that expired before cutoff and returns how many
// were deleted.
func (r *OTPRepository) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := database.QuerierFrom(ctx, r.db).NewDelete().
		Model((*database.OneTimeCode)(nil)).
		Where("expires_at < ?", cutoff.UTC()).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired otps: %w", err)
	}
	return result.RowsAffected()
}

// latest returns the most recent code stored for email.
func (r *OTPRepository) latest(ctx context.Context, email string) (*OneTimeCode, error) {
	row := new(database.OneTimeCode)
	err := database.QuerierFrom(ctx, r.db).NewSelect().
		Model(row).
		Where("email = ?", email).
		OrderExpr("id DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &OneTimeCode{
		ID:        row.ID,
		Email:     row.Email,
		Code:      row.Code,
		CreatedAt: row.CreatedAt,
		ExpiresAt: row.ExpiresAt,
		Used:      row.Used,
	}, nil
}

// generateOTP draws each digit independently and uniformly from crypto/rand.
func generateOTP() (string, error) {
	digits := make([]byte, otpLength)
	ten := big.NewInt(10)
	for i := range digits {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", err
		}
		digits[i] = byte('0' + n.Int64())
	}
	return string(digits), nil
}
