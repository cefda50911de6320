package cmd

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/moviedex/internal/config"
	"github.com/kailas-cloud/moviedex/internal/db/elastic"
	"github.com/kailas-cloud/moviedex/internal/db/redis"
	"github.com/kailas-cloud/moviedex/internal/repository/checkpoint"
)

// connectElastic builds the engine adapter and waits until the cluster answers.
func connectElastic(ctx context.Context, cfg config.Config, logger *zap.Logger) (*elastic.Store, error) {
	store, err := elastic.NewStore(elastic.Config{
		Addresses:              cfg.Elastic.Addresses,
		Username:               cfg.Elastic.Username,
		Password:               cfg.Elastic.Password,
		APIKey:                 cfg.Elastic.APIKey,
		CACertPath:             cfg.Elastic.CACert,
		CertificateFingerprint: cfg.Elastic.Fingerprint,
	})
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch store: %w", err)
	}

	timeout := time.Duration(cfg.Elastic.ReadinessTimeout) * time.Second
	if err := store.WaitForReady(ctx, timeout); err != nil {
		return nil, err
	}
	logger.Info("Connected to elasticsearch", zap.Strings("addresses", cfg.Elastic.Addresses))
	return store, nil
}

// checkpoints is the selected cursor store. kv is set only for the redis
// driver and must be closed by the caller.
type checkpoints struct {
	store checkpoint.Store
	kv    *redis.Store
}

func (c checkpoints) Close() {
	if c.kv != nil {
		c.kv.Close()
	}
}

func openCheckpoints(ctx context.Context, cfg config.Config, logger *zap.Logger) (checkpoints, error) {
	cp := cfg.Checkpoint
	switch cp.Driver {
	case config.CheckpointFile:
		logger.Info("Checkpoints in files", zap.String("dir", cp.Dir))
		return checkpoints{store: checkpoint.NewFileStore(cp.Dir)}, nil
	case config.CheckpointRedis:
		kv, err := redis.NewStore(redis.Config{
			Addrs:    cfg.Redis.Addrs,
			Username: cfg.Redis.Username,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return checkpoints{}, fmt.Errorf("create redis store: %w", err)
		}
		if err := kv.WaitForReady(ctx, 10*time.Second); err != nil {
			kv.Close()
			return checkpoints{}, fmt.Errorf("redis not ready: %w", err)
		}
		logger.Info("Checkpoints in redis", zap.Strings("addrs", cfg.Redis.Addrs))
		ttl := time.Duration(cp.TTLSec) * time.Second
		return checkpoints{store: checkpoint.NewKVStore(kv, cp.KeyPrefix, ttl), kv: kv}, nil
	default:
		return checkpoints{store: checkpoint.Nop{}}, nil
	}
}
