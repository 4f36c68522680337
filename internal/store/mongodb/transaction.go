package mongodb

import (
	"context"
	"time"

	"github.com/moneytrail/apiserver/internal/store"
	"github.com/moneytrail/apiserver/types"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// transactionDocument stores the label as "source" on incomes and as
// "category" on expenses.
type transactionDocument struct {
	ID        bson.ObjectID `bson:"_id,omitempty"`
	UserID    bson.ObjectID `bson:"userId"`
	Source    string        `bson:"source,omitempty"`
	Category  string        `bson:"category,omitempty"`
	Icon      string        `bson:"icon,omitempty"`
	Amount    float64       `bson:"amount"`
	Date      time.Time     `bson:"date"`
	CreatedAt time.Time     `bson:"createdAt"`
	UpdatedAt time.Time     `bson:"updatedAt"`
}

// TransactionRepository handles persistence for one kind of transaction.
type TransactionRepository struct {
	coll *mongo.Collection
	kind types.Kind
}

func NewTransactionRepository(db *mongo.Database, kind types.Kind) *TransactionRepository {
	name := expensesCollection
	if kind == types.KindIncome {
		name = incomesCollection
	}
	return &TransactionRepository{coll: db.Collection(name), kind: kind}
}

var newestFirst = bson.D{{Key: "date", Value: -1}, {Key: "createdAt", Value: -1}}

func (r *TransactionRepository) ValidID(id string) bool {
	_, ok := parseID(id)
	return ok
}

func (r *TransactionRepository) Create(ctx context.Context, tx types.Transaction) (types.Transaction, error) {
	owner, ok := parseID(tx.UserID)
	if !ok {
		return types.Transaction{}, store.ErrInvalidID
	}
	now := time.Now().UTC()
	doc := transactionDocument{
		ID:        bson.NewObjectID(),
		UserID:    owner,
		Icon:      tx.Icon,
		Amount:    tx.Amount,
		Date:      tx.Date.UTC(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if r.kind == types.KindIncome {
		doc.Source = tx.Label
	} else {
		doc.Category = tx.Label
	}

	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return types.Transaction{}, err
	}
	return r.toTransaction(doc), nil
}

func (r *TransactionRepository) ListByUser(ctx context.Context, userID string) ([]types.Transaction, error) {
	owner, ok := parseID(userID)
	if !ok {
		return nil, store.ErrInvalidID
	}
	return r.find(ctx, bson.D{{Key: "userId", Value: owner}}, options.Find().SetSort(newestFirst))
}

func (r *TransactionRepository) ListSince(ctx context.Context, userID string, since time.Time) ([]types.Transaction, error) {
	owner, ok := parseID(userID)
	if !ok {
		return nil, store.ErrInvalidID
	}
	filter := bson.D{
		{Key: "userId", Value: owner},
		{Key: "date", Value: bson.D{{Key: "$gte", Value: since.UTC()}}},
	}
	return r.find(ctx, filter, options.Find().SetSort(newestFirst))
}

func (r *TransactionRepository) ListRecent(ctx context.Context, userID string, limit int) ([]types.Transaction, error) {
	owner, ok := parseID(userID)
	if !ok {
		return nil, store.ErrInvalidID
	}
	opts := options.Find().SetSort(newestFirst).SetLimit(int64(limit))
	return r.find(ctx, bson.D{{Key: "userId", Value: owner}}, opts)
}

func (r *TransactionRepository) SumByUser(ctx context.Context, userID string) (float64, error) {
	owner, ok := parseID(userID)
	if !ok {
		return 0, store.ErrInvalidID
	}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "userId", Value: owner}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "total", Value: bson.D{{Key: "$sum", Value: "$amount"}}},
		}}},
	}
	cursor, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return 0, err
	}
	defer cursor.Close(ctx)

	var results []struct {
		Total float64 `bson:"total"`
	}
	if err := cursor.All(ctx, &results); err != nil {
		return 0, err
	}
	if len(results) == 0 {
		return 0, nil
	}
	return results[0].Total, nil
}

func (r *TransactionRepository) DeleteOwned(ctx context.Context, userID, id string) error {
	owner, ok := parseID(userID)
	if !ok {
		return store.ErrInvalidID
	}
	oid, ok := parseID(id)
	if !ok {
		return store.ErrInvalidID
	}
	result, err := r.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: oid}, {Key: "userId", Value: owner}})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *TransactionRepository) find(ctx context.Context, filter bson.D, opts *options.FindOptionsBuilder) ([]types.Transaction, error) {
	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []transactionDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	items := make([]types.Transaction, 0, len(docs))
	for _, doc := range docs {
		items = append(items, r.toTransaction(doc))
	}
	return items, nil
}

func (r *TransactionRepository) toTransaction(doc transactionDocument) types.Transaction {
	label := doc.Category
	if r.kind == types.KindIncome {
		label = doc.Source
	}
	return types.Transaction{
		ID:        doc.ID.Hex(),
		UserID:    doc.UserID.Hex(),
		Kind:      r.kind,
		Label:     label,
		Icon:      doc.Icon,
		Amount:    doc.Amount,
		Date:      doc.Date,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
}
