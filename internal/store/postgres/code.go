package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/moneytrail/apiserver/internal/store"
	"github.com/moneytrail/apiserver/types"
)

// CodeRepository handles persistence for one-time codes.
type CodeRepository struct {
	db *sql.DB
}

func NewCodeRepository(db *sql.DB) *CodeRepository {
	return &CodeRepository{db: db}
}

func (r *CodeRepository) Get(ctx context.Context, email string) (types.OneTimeCode, error) {
	const query = `
		SELECT email, code, expires_at, last_sent_at
		FROM one_time_codes
		WHERE email = $1`
	var code types.OneTimeCode
	err := r.db.QueryRowContext(ctx, query, strings.ToLower(email)).Scan(
		&code.Email,
		&code.Code,
		&code.ExpiresAt,
		&code.LastSentAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.OneTimeCode{}, store.ErrNotFound
		}
		return types.OneTimeCode{}, err
	}
	return code, nil
}

// Upsert writes the code in a single statement; concurrent writers for the
// same email resolve to whichever commits last.
func (r *CodeRepository) Upsert(ctx context.Context, code types.OneTimeCode) error {
	const query = `
		INSERT INTO one_time_codes (email, code, expires_at, last_sent_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (email) DO UPDATE
		SET code = EXCLUDED.code,
			expires_at = EXCLUDED.expires_at,
			last_sent_at = EXCLUDED.last_sent_at`
	_, err := r.db.ExecContext(ctx, query, strings.ToLower(code.Email), code.Code, code.ExpiresAt, code.LastSentAt)
	return err
}

func (r *CodeRepository) Delete(ctx context.Context, email string) error {
	const query = `DELETE FROM one_time_codes WHERE email = $1`
	result, err := r.db.ExecContext(ctx, query, strings.ToLower(email))
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}
