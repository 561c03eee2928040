package database

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"balance-api/internal/config"
	"balance-api/internal/repository"
)

type Database struct {
	MongoClient  *mongo.Client
	MongoDB      *mongo.Database
	RedisDB      *redis.Client
	Repositories *Repositories
}

type Repositories struct {
	Account repository.AccountRepository
	Session repository.SessionRepository
}

func Initialize(ctx context.Context, cfg *config.Config) (*Database, error) {
	mongoClient, mongoDB, err := initializeMongoDB(ctx, cfg.Mongo)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize MongoDB: %w", err)
	}

	redisDB, err := initializeRedis(ctx, cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Redis: %w", err)
	}

	repos := &Repositories{
		Account: repository.NewAccountRepository(mongoDB),
		Session: repository.NewSessionRepository(redisDB, cfg.Wizard.SessionTTL),
	}

	if err := repository.CreateAccountIndexes(ctx, mongoDB); err != nil {
		return nil, fmt.Errorf("failed to create database indexes: %w", err)
	}

	return &Database{
		MongoClient:  mongoClient,
		MongoDB:      mongoDB,
		RedisDB:      redisDB,
		Repositories: repos,
	}, nil
}

func initializeMongoDB(ctx context.Context, cfg config.MongoConfig) (*mongo.Client, *mongo.Database, error) {
	clientOptions := options.Client().
		ApplyURI(cfg.URI).
		SetMaxPoolSize(uint64(cfg.MaxPoolSize)).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetSocketTimeout(cfg.SocketTimeout)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return client, client.Database(cfg.Database), nil
}

func initializeRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:    cfg.Password,
		DB:          cfg.DB,
		PoolSize:    cfg.PoolSize,
		DialTimeout: cfg.DialTimeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return client, nil
}

// Close closes both database connections.
func (d *Database) Close(ctx context.Context) error {
	var firstErr error
	if err := d.MongoClient.Disconnect(ctx); err != nil {
		firstErr = fmt.Errorf("failed to disconnect MongoDB: %w", err)
	}
	if err := d.RedisDB.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("failed to close Redis: %w", err)
	}
	return firstErr
}
