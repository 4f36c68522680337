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
)

type userDocument struct {
	ID              bson.ObjectID `bson:"_id,omitempty"`
	FullName        string        `bson:"fullName"`
	Email           string        `bson:"email"`
	Password        string        `bson:"password"`
	ProfileImageURL string        `bson:"profileImageUrl,omitempty"`
	CreatedAt       time.Time     `bson:"createdAt"`
	UpdatedAt       time.Time     `bson:"updatedAt"`
}

func (d userDocument) toUser() types.User {
	return types.User{
		ID:              d.ID.Hex(),
		FullName:        d.FullName,
		Email:           d.Email,
		PasswordHash:    d.Password,
		ProfileImageURL: d.ProfileImageURL,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
}

// UserRepository handles persistence for users.
type UserRepository struct {
	coll *mongo.Collection
}

func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{coll: db.Collection(usersCollection)}
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (types.User, error) {
	oid, ok := parseID(id)
	if !ok {
		return types.User{}, store.ErrInvalidID
	}
	return r.findOne(ctx, bson.D{{Key: "_id", Value: oid}})
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	return r.findOne(ctx, bson.D{{Key: "email", Value: strings.ToLower(email)}})
}

func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	now := time.Now().UTC()
	doc := userDocument{
		ID:              bson.NewObjectID(),
		FullName:        user.FullName,
		Email:           strings.ToLower(user.Email),
		Password:        user.PasswordHash,
		ProfileImageURL: user.ProfileImageURL,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return types.User{}, store.ErrDuplicate
		}
		return types.User{}, err
	}
	return doc.toUser(), nil
}

func (r *UserRepository) Update(ctx context.Context, user types.User) (types.User, error) {
	oid, ok := parseID(user.ID)
	if !ok {
		return types.User{}, store.ErrInvalidID
	}
	user.UpdatedAt = time.Now().UTC()

	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "fullName", Value: user.FullName},
		{Key: "password", Value: user.PasswordHash},
		{Key: "profileImageUrl", Value: user.ProfileImageURL},
		{Key: "updatedAt", Value: user.UpdatedAt},
	}}}
	result, err := r.coll.UpdateOne(ctx, bson.D{{Key: "_id", Value: oid}}, update)
	if err != nil {
		return types.User{}, err
	}
	if result.MatchedCount == 0 {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.D) (types.User, error) {
	var doc userDocument
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return types.User{}, store.ErrNotFound
		}
		return types.User{}, err
	}
	return doc.toUser(), nil
}
