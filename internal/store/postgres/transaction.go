package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/moneytrail/apiserver/internal/store"
	"github.com/moneytrail/apiserver/types"
)

// TransactionRepository handles persistence for one kind of transaction.
// Incomes and expenses share a schema and live in separate tables.
type TransactionRepository struct {
	db    *sql.DB
	kind  types.Kind
	table string
}

func NewTransactionRepository(db *sql.DB, kind types.Kind) *TransactionRepository {
	table := "expenses"
	if kind == types.KindIncome {
		table = "incomes"
	}
	return &TransactionRepository{db: db, kind: kind, table: table}
}

const transactionColumns = `id, user_id, label, icon, amount, date, created_at, updated_at`

func (r *TransactionRepository) ValidID(id string) bool {
	return validID(id)
}

func (r *TransactionRepository) Create(ctx context.Context, tx types.Transaction) (types.Transaction, error) {
	if !validID(tx.UserID) {
		return types.Transaction{}, store.ErrInvalidID
	}
	now := time.Now()
	tx.ID = uuid.NewString()
	tx.Kind = r.kind
	tx.CreatedAt = now
	tx.UpdatedAt = now

	query := fmt.Sprintf(`
		INSERT INTO %s (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`, r.table, transactionColumns)
	if _, err := r.db.ExecContext(
		ctx,
		query,
		tx.ID,
		tx.UserID,
		tx.Label,
		tx.Icon,
		tx.Amount,
		tx.Date,
		tx.CreatedAt,
		tx.UpdatedAt,
	); err != nil {
		return types.Transaction{}, err
	}
	return tx, nil
}

func (r *TransactionRepository) ListByUser(ctx context.Context, userID string) ([]types.Transaction, error) {
	if !validID(userID) {
		return nil, store.ErrInvalidID
	}
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE user_id = $1
		ORDER BY date DESC, created_at DESC`, transactionColumns, r.table)
	return r.query(ctx, query, userID)
}

func (r *TransactionRepository) ListSince(ctx context.Context, userID string, since time.Time) ([]types.Transaction, error) {
	if !validID(userID) {
		return nil, store.ErrInvalidID
	}
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE user_id = $1 AND date >= $2
		ORDER BY date DESC, created_at DESC`, transactionColumns, r.table)
	return r.query(ctx, query, userID, since)
}

func (r *TransactionRepository) ListRecent(ctx context.Context, userID string, limit int) ([]types.Transaction, error) {
	if !validID(userID) {
		return nil, store.ErrInvalidID
	}
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE user_id = $1
		ORDER BY date DESC, created_at DESC
		LIMIT $2`, transactionColumns, r.table)
	return r.query(ctx, query, userID, limit)
}

func (r *TransactionRepository) SumByUser(ctx context.Context, userID string) (float64, error) {
	if !validID(userID) {
		return 0, store.ErrInvalidID
	}
	query := fmt.Sprintf(`SELECT COALESCE(SUM(amount), 0) FROM %s WHERE user_id = $1`, r.table)
	var total float64
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (r *TransactionRepository) DeleteOwned(ctx context.Context, userID, id string) error {
	if !validID(id) || !validID(userID) {
		return store.ErrInvalidID
	}
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1 AND user_id = $2`, r.table)
	result, err := r.db.ExecContext(ctx, query, id, userID)
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

func (r *TransactionRepository) query(ctx context.Context, query string, args ...any) ([]types.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]types.Transaction, 0)
	for rows.Next() {
		tx := types.Transaction{Kind: r.kind}
		if err := rows.Scan(
			&tx.ID,
			&tx.UserID,
			&tx.Label,
			&tx.Icon,
			&tx.Amount,
			&tx.Date,
			&tx.CreatedAt,
			&tx.UpdatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
