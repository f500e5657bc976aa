package mgo

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

type Config struct {
	URI         string
	Database    string
	Username    string
	Password    string
	MaxPoolSize uint64
	ConnectWait time.Duration
}

type MongoManager struct {
	mu sync.RWMutex
	db *mongo.Database
}

var globalMgr MongoManager

// Init connects and pings; call once from main before serving.
func Init(ctx context.Context, cfg Config) error {
	if cfg.ConnectWait <= 0 {
		cfg.ConnectWait = 10 * time.Second
	}
	opts := options.Client().ApplyURI(cfg.URI)
	if cfg.MaxPoolSize > 0 {
		opts.SetMaxPoolSize(cfg.MaxPoolSize)
	}
	if cfg.Username != "" {
		opts.SetAuth(options.Credential{Username: cfg.Username, Password: cfg.Password})
	}

	cctx, cancel := context.WithTimeout(ctx, cfg.ConnectWait)
	defer cancel()

	cli, err := mongo.Connect(cctx, opts)
	if err != nil {
		return err
	}
	if err := cli.Ping(cctx, readpref.Primary()); err != nil {
		return err
	}

	globalMgr.mu.Lock()
	globalMgr.db = cli.Database(cfg.Database)
	globalMgr.mu.Unlock()
	return nil
}

func GetDB() *mongo.Database {
	globalMgr.mu.RLock()
	defer globalMgr.mu.RUnlock()
	if globalMgr.db == nil {
		panic("Mongo not ready: call Init first")
	}
	return globalMgr.db
}

func Close(ctx context.Context) error {
	globalMgr.mu.Lock()
	defer globalMgr.mu.Unlock()
	if globalMgr.db == nil {
		return nil
	}
	err := globalMgr.db.Client().Disconnect(ctx)
	globalMgr.db = nil
	return err
}
