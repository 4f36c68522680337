package services

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/moneytrail/apiserver/internal/log"
	"github.com/moneytrail/apiserver/internal/store/memory"
	"github.com/moneytrail/apiserver/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func amount(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func newExpenseService(t *testing.T) (*TransactionService, *recordingCache) {
	t.Helper()
	c := newRecordingCache()
	return NewTransactionService(types.KindExpense, memory.New().Transactions(types.KindExpense), c, log.Discard()), c
}

func TestTransactionService_CreateValidation(t *testing.T) {
	svc, _ := newExpenseService(t)
	ctx := context.Background()
	user := uuid.NewString()

	tests := []struct {
		name    string
		in      TransactionInput
		message string
	}{
		{"missing label", TransactionInput{Amount: amount("10"), Date: "2026-01-02"}, "all fields are required"},
		{"missing amount", TransactionInput{Label: "Rent", Date: "2026-01-02"}, "all fields are required"},
		{"missing date", TransactionInput{Label: "Rent", Amount: amount("10")}, "all fields are required"},
		{"negative amount", TransactionInput{Label: "Rent", Amount: amount("-1"), Date: "2026-01-02"}, "amount must be a non-negative number"},
		{"overflowing amount", TransactionInput{Label: "Rent", Amount: amount("1e400"), Date: "2026-01-02"}, "amount must be a finite number"},
		{"bad date", TransactionInput{Label: "Rent", Amount: amount("1"), Date: "yesterday"}, `invalid date "yesterday"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, user, tt.in)
			require.Error(t, err)
			assert.True(t, IsValidation(err))
			assert.Contains(t, err.Error(), tt.message)
		})
	}

	_, err := svc.Create(ctx, "", TransactionInput{Label: "Rent", Amount: amount("1"), Date: "2026-01-02"})
	assert.ErrorIs(t, err, ErrInvalidIdentity)

	items, err := svc.List(ctx, user)
	require.NoError(t, err)
	assert.Empty(t, items, "rejected input must not be stored")
}

func TestTransactionService_CreateListDelete(t *testing.T) {
	svc, c := newExpenseService(t)
	ctx := context.Background()
	user := uuid.NewString()

	rent, err := svc.Create(ctx, user, TransactionInput{Label: " Rent ", Icon: "🏠", Amount: amount("400.50"), Date: "2026-01-02"})
	require.NoError(t, err)
	assert.Equal(t, "Rent", rent.Label)
	assert.Equal(t, types.KindExpense, rent.Kind)
	assert.Equal(t, 400.5, rent.Amount)

	food, err := svc.Create(ctx, user, TransactionInput{Label: "Food", Amount: amount("0"), Date: "2026-01-05T10:00:00+02:00"})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC), food.Date)

	items, err := svc.List(ctx, user)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, food.ID, items[0].ID)
	assert.Equal(t, rent.ID, items[1].ID)

	require.NoError(t, svc.Delete(ctx, user, rent.ID))
	items, err = svc.List(ctx, user)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, food.ID, items[0].ID)

	assert.Equal(t, []string{user, user, user}, c.invalidated)
}

func TestTransactionService_DeleteEnforcesOwnership(t *testing.T) {
	svc, _ := newExpenseService(t)
	ctx := context.Background()
	owner, intruder := uuid.NewString(), uuid.NewString()

	tx, err := svc.Create(ctx, owner, TransactionInput{Label: "Rent", Amount: amount("400"), Date: "2026-01-02"})
	require.NoError(t, err)

	err = svc.Delete(ctx, intruder, tx.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.EqualError(t, err, "expense not found")

	assert.True(t, IsValidation(svc.Delete(ctx, owner, "not-an-id")))

	items, err := svc.List(ctx, owner)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestTransactionService_ListEmptyIsNotNil(t *testing.T) {
	svc, _ := newExpenseService(t)

	items, err := svc.List(context.Background(), uuid.NewString())
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)
}

func TestTransactionService_Export(t *testing.T) {
	svc := NewTransactionService(types.KindIncome, memory.New().Transactions(types.KindIncome), nil, log.Discard())
	ctx := context.Background()
	user := uuid.NewString()

	_, err := svc.Create(ctx, user, TransactionInput{Label: "Salary", Amount: amount("1000"), Date: "2026-02-01"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, user, TransactionInput{Label: "Freelance", Amount: amount("250.25"), Date: "2026-02-10"})
	require.NoError(t, err)

	export, err := svc.Export(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, "income_details.xlsx", export.Filename)
	assert.Equal(t, XLSXContentType, export.ContentType)

	f, err := excelize.OpenReader(bytes.NewReader(export.Data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Income")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Source", "Amount", "Date"}, rows[0])
	assert.Equal(t, []string{"Freelance", "250.25", "2026-02-10"}, rows[1])
	assert.Equal(t, []string{"Salary", "1000", "2026-02-01"}, rows[2])
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2026-07-04")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 7, 4, 0, 0, 0, 0, time.UTC), d)

	_, err = ParseDate("07/04/2026")
	assert.True(t, IsValidation(err))
}
