package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/moneytrail/apiserver/config"
	"github.com/moneytrail/apiserver/internal/cache"
	"github.com/moneytrail/apiserver/internal/db"
	"github.com/moneytrail/apiserver/internal/handlers"
	"github.com/moneytrail/apiserver/internal/log"
	"github.com/moneytrail/apiserver/internal/mail"
	"github.com/moneytrail/apiserver/internal/mq"
	"github.com/moneytrail/apiserver/internal/services"
	"github.com/moneytrail/apiserver/internal/store/memory"
	"github.com/moneytrail/apiserver/internal/store/mongodb"
	"github.com/moneytrail/apiserver/internal/store/postgres"
	"github.com/moneytrail/apiserver/types"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

// Stores bundles the repositories of one database backend.
type Stores struct {
	Users    services.UserRepository
	Codes    services.CodeRepository
	Incomes  services.TransactionRepository
	Expenses services.TransactionRepository
	Pinger   handlers.Pinger
	Close    func() error
}

// MemoryStores returns stores backed by process memory.
func MemoryStores() Stores {
	st := memory.New()
	return Stores{
		Users:    st.Users(),
		Codes:    st.Codes(),
		Incomes:  st.Transactions(types.KindIncome),
		Expenses: st.Transactions(types.KindExpense),
		Close:    func() error { return nil },
	}
}

// OpenStores connects to the database selected by cfg.Database.Backend.
func OpenStores(ctx context.Context, cfg config.Config) (Stores, error) {
	switch cfg.Database.Backend {
	case config.DBBackendMongo:
		client, database, err := db.OpenMongo(ctx, cfg)
		if err != nil {
			return Stores{}, fmt.Errorf("connect mongo: %w", err)
		}
		if err := mongodb.EnsureIndexes(ctx, database); err != nil {
			_ = client.Disconnect(context.Background())
			return Stores{}, fmt.Errorf("ensure mongo indexes: %w", err)
		}
		return Stores{
			Users:    mongodb.NewUserRepository(database),
			Codes:    mongodb.NewCodeRepository(database),
			Incomes:  mongodb.NewTransactionRepository(database, types.KindIncome),
			Expenses: mongodb.NewTransactionRepository(database, types.KindExpense),
			Pinger: handlers.PingFunc(func(ctx context.Context) error {
				return client.Ping(ctx, readpref.Primary())
			}),
			Close: func() error { return client.Disconnect(context.Background()) },
		}, nil
	case config.DBBackendPostgres:
		conn, err := db.Open(ctx, cfg)
		if err != nil {
			return Stores{}, fmt.Errorf("connect postgres: %w", err)
		}
		return Stores{
			Users:    postgres.NewUserRepository(conn),
			Codes:    postgres.NewCodeRepository(conn),
			Incomes:  postgres.NewTransactionRepository(conn, types.KindIncome),
			Expenses: postgres.NewTransactionRepository(conn, types.KindExpense),
			Pinger:   handlers.PingFunc(conn.PingContext),
			Close:    conn.Close,
		}, nil
	case config.DBBackendMemory:
		return MemoryStores(), nil
	default:
		return Stores{}, fmt.Errorf("unknown database backend %q", cfg.Database.Backend)
	}
}

// OpenMailer picks how verification codes leave the process: through the
// broker when one is configured, straight over SMTP when a relay is set, or
// into the log otherwise. The returned close function releases the broker.
func OpenMailer(ctx context.Context, cfg config.Config, logger *log.Logger) (mail.Sender, func() error, error) {
	queue, err := mq.Open(ctx, cfg.MQ, logger)
	switch {
	case err == nil:
		logger.Info("mail delivery queued", log.FieldBackend, cfg.MQ.Backend)
		return mail.NewQueueSender(queue), queue.Close, nil
	case !errors.Is(err, mq.ErrDisabled):
		return nil, nil, err
	}

	if cfg.Mail.SMTPHost != "" {
		sender, err := mail.NewSMTPSender(cfg.Mail)
		if err != nil {
			return nil, nil, err
		}
		return sender, func() error { return nil }, nil
	}

	logger.Warn("no smtp host configured, verification codes will be logged")
	return mail.NewLogSender(logger), func() error { return nil }, nil
}

// OpenDashboardCache connects to redis when REDIS_URL is set. An unreachable
// redis is logged and the server continues without a cache.
func OpenDashboardCache(ctx context.Context, cfg config.RedisConfig, logger *log.Logger) (cache.DashboardCache, func() error) {
	noop := func() error { return nil }
	if cfg.URL == "" {
		return cache.Noop{}, noop
	}
	redisCache, err := cache.NewRedis(ctx, cfg.URL, cfg.DashboardTTL)
	if err != nil {
		logger.WithComponent(log.ComponentCache).Warn("continuing without dashboard cache", log.FieldError, err)
		return cache.Noop{}, noop
	}
	return redisCache, redisCache.Close
}
