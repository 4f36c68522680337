package mongodb

import (
	"testing"
	"time"

	"github.com/moneytrail/apiserver/types"
	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestParseID(t *testing.T) {
	oid := bson.NewObjectID()

	got, ok := parseID(oid.Hex())
	assert.True(t, ok)
	assert.Equal(t, oid, got)

	for _, bad := range []string{"", "123", "zzzzzzzzzzzzzzzzzzzzzzzz", "6f1c6e1d-6f0c-4b7e-9a3d-0d8e2f1b2c3a"} {
		_, ok := parseID(bad)
		assert.False(t, ok, bad)
	}
}

func TestToTransaction_LabelFollowsKind(t *testing.T) {
	doc := transactionDocument{
		ID:       bson.NewObjectID(),
		UserID:   bson.NewObjectID(),
		Source:   "Salary",
		Category: "Rent",
		Amount:   12.5,
		Date:     time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC),
	}

	income := (&TransactionRepository{kind: types.KindIncome}).toTransaction(doc)
	assert.Equal(t, "Salary", income.Label)
	assert.Equal(t, types.KindIncome, income.Kind)
	assert.Equal(t, doc.ID.Hex(), income.ID)

	expense := (&TransactionRepository{kind: types.KindExpense}).toTransaction(doc)
	assert.Equal(t, "Rent", expense.Label)
	assert.Equal(t, doc.UserID.Hex(), expense.UserID)
}
