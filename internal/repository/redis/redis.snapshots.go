// FilePath: internal/repository/redis/redis.snapshots.go
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/hydrozen/leakwatch/internal/config"
	"github.com/hydrozen/leakwatch/internal/errors"
	"github.com/hydrozen/leakwatch/internal/models"
	"github.com/hydrozen/leakwatch/internal/repository"
	goredis "github.com/redis/go-redis/v9"
	nuts "github.com/vaudience/go-nuts"
)

const updatesSuffix = ":updates"

// SnapshotStore keeps the latest snapshot of every node under
// <prefix><nodeID> and announces each write on <prefix><nodeID>:updates.
type SnapshotStore struct {
	client *goredis.Client
	prefix string
	now    func() time.Time
}

var (
	_ repository.SnapshotStore  = (*SnapshotStore)(nil)
	_ repository.SnapshotWriter = (*SnapshotStore)(nil)
)

func NewClient(cfg config.RedisConfig) *goredis.Client {
	return goredis.NewClient(&goredis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

func NewSnapshotStore(client *goredis.Client, prefix string) *SnapshotStore {
	return &SnapshotStore{client: client, prefix: prefix, now: time.Now}
}

func (s *SnapshotStore) Key(nodeID string) string {
	return s.prefix + nodeID
}

func (s *SnapshotStore) Channel(nodeID string) string {
	return s.prefix + nodeID + updatesSuffix
}

func (s *SnapshotStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return errors.NewUnavailableError("redis unavailable", err)
	}
	return nil
}

func (s *SnapshotStore) Latest(ctx context.Context, nodeID string) (*models.SensorSnapshot, error) {
	data, err := s.client.Get(ctx, s.Key(nodeID)).Bytes()
	if err != nil {
		if err == goredis.Nil {
			return nil, nil
		}
		return nil, errors.NewDatabaseError("failed to read node snapshot", err)
	}
	return decodeSnapshot(nodeID, data)
}

// Put parses the raw node payload, stores the normalized snapshot and
// publishes it to subscribers.
func (s *SnapshotStore) Put(ctx context.Context, nodeID string, raw []byte) error {
	snap, err := models.ParseTelemetry(nodeID, raw, s.now())
	if err != nil {
		return errors.NewValidationError("invalid telemetry payload", err)
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return errors.NewInternalError("failed to encode node snapshot", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.Key(nodeID), data, 0)
	pipe.Publish(ctx, s.Channel(nodeID), data)
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.NewDatabaseError("failed to store node snapshot", err)
	}
	return nil
}

// Subscribe delivers every published snapshot of nodeID to fn from a single
// goroutine, in publish order. Undecodable messages are logged and skipped.
func (s *SnapshotStore) Subscribe(ctx context.Context, nodeID string, fn func(*models.SensorSnapshot)) (func(), error) {
	pubsub := s.client.Subscribe(ctx, s.Channel(nodeID))
	// Wait for the subscription confirmation so no update is lost between
	// Subscribe returning and the first Latest call.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, errors.NewUnavailableError("failed to subscribe to node updates", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range pubsub.Channel() {
			snap, err := decodeSnapshot(nodeID, []byte(msg.Payload))
			if err != nil {
				nuts.L.Warnf("[SnapshotStore] Dropping undecodable update for node %s: %v", nodeID, err)
				continue
			}
			fn(snap)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			if err := pubsub.Close(); err != nil {
				nuts.L.Warnf("[SnapshotStore] Failed to close subscription for node %s: %v", nodeID, err)
			}
			<-done
		})
	}, nil
}

func decodeSnapshot(nodeID string, data []byte) (*models.SensorSnapshot, error) {
	snap := &models.SensorSnapshot{}
	if err := json.Unmarshal(data, snap); err != nil {
		return nil, errors.NewInternalError("failed to decode node snapshot", err)
	}
	if snap.NodeID == "" {
		snap.NodeID = nodeID
	}
	return snap, nil
}
