package mongodb

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/moneytrail/apiserver/internal/store"
	"github.com/moneytrail/apiserver/types"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type codeDocument struct {
	Email      string    `bson:"email"`
	Code       string    `bson:"otp"`
	ExpiresAt  time.Time `bson:"expiresAt"`
	LastSentAt time.Time `bson:"lastSentAt"`
}

// CodeRepository handles persistence for one-time codes.
type CodeRepository struct {
	coll *mongo.Collection
}

func NewCodeRepository(db *mongo.Database) *CodeRepository {
	return &CodeRepository{coll: db.Collection(codesCollection)}
}

func (r *CodeRepository) Get(ctx context.Context, email string) (types.OneTimeCode, error) {
	var doc codeDocument
	err := r.coll.FindOne(ctx, bson.D{{Key: "email", Value: strings.ToLower(email)}}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return types.OneTimeCode{}, store.ErrNotFound
		}
		return types.OneTimeCode{}, err
	}
	return types.OneTimeCode{
		Email:      doc.Email,
		Code:       doc.Code,
		ExpiresAt:  doc.ExpiresAt,
		LastSentAt: doc.LastSentAt,
	}, nil
}

// Upsert is a single-document update, so concurrent writers for one email
// resolve to whichever lands last.
func (r *CodeRepository) Upsert(ctx context.Context, code types.OneTimeCode) error {
	email := strings.ToLower(code.Email)
	update := bson.D{{Key: "$set", Value: codeDocument{
		Email:      email,
		Code:       code.Code,
		ExpiresAt:  code.ExpiresAt.UTC(),
		LastSentAt: code.LastSentAt.UTC(),
	}}}
	_, err := r.coll.UpdateOne(ctx, bson.D{{Key: "email", Value: email}}, update, options.UpdateOne().SetUpsert(true))
	return err
}

func (r *CodeRepository) Delete(ctx context.Context, email string) error {
	result, err := r.coll.DeleteOne(ctx, bson.D{{Key: "email", Value: strings.ToLower(email)}})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}
