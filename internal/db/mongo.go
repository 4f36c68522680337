package db

import (
	"context"
	"fmt"
	"time"

	"github.com/moneytrail/apiserver/config"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

const (
	defaultMongoConnectTimeout = 10 * time.Second
	defaultMongoMaxPoolSize    = 50
)

// OpenMongo connects to MongoDB and returns a handle to the configured database.
func OpenMongo(ctx context.Context, cfg config.Config) (*mongo.Client, *mongo.Database, error) {
	opts := options.Client().
		ApplyURI(cfg.Database.MongoURI).
		SetConnectTimeout(defaultMongoConnectTimeout).
		SetMaxPoolSize(defaultMongoMaxPoolSize)

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, nil, fmt.Errorf("connect mongo: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("ping mongo: %w", err)
	}

	return client, client.Database(cfg.Database.MongoDatabase), nil
}
