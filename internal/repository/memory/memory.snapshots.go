// FilePath: internal/repository/memory/memory.snapshots.go
package memory

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/hydrozen/leakwatch/internal/models"
	"github.com/hydrozen/leakwatch/internal/repository"
	nuts "github.com/vaudience/go-nuts"
)

// SnapshotStore keeps the latest snapshot per node and fans updates out to
// subscribers synchronously.
type SnapshotStore struct {
	Failures
	mu     sync.RWMutex
	latest map[string]*models.SensorSnapshot
	subs   map[string]map[string]func(*models.SensorSnapshot)
	now    func() time.Time
}

func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{
		latest: make(map[string]*models.SensorSnapshot),
		subs:   make(map[string]map[string]func(*models.SensorSnapshot)),
		now:    time.Now,
	}
}

var (
	_ repository.SnapshotStore  = (*SnapshotStore)(nil)
	_ repository.SnapshotWriter = (*SnapshotStore)(nil)
)

func (s *SnapshotStore) Latest(ctx context.Context, nodeID string) (*models.SensorSnapshot, error) {
	if err := s.check("Latest"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.latest[nodeID]
	if !ok {
		return nil, nil
	}
	cp := *snap
	return &cp, nil
}

func (s *SnapshotStore) Subscribe(ctx context.Context, nodeID string, fn func(*models.SensorSnapshot)) (func(), error) {
	if err := s.check("Subscribe"); err != nil {
		return nil, err
	}
	id := nuts.NID("sub", 8)
	s.mu.Lock()
	if s.subs[nodeID] == nil {
		s.subs[nodeID] = make(map[string]func(*models.SensorSnapshot))
	}
	s.subs[nodeID][id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs[nodeID], id)
			s.mu.Unlock()
		})
	}, nil
}

// Put parses raw and stores it as the node's latest snapshot.
func (s *SnapshotStore) Put(ctx context.Context, nodeID string, raw []byte) error {
	if err := s.check("Put"); err != nil {
		return err
	}
	snap, err := models.ParseTelemetry(nodeID, raw, s.now())
	if err != nil {
		return err
	}
	s.Set(snap)
	return nil
}

// Set stores snap and notifies the node's subscribers.
func (s *SnapshotStore) Set(snap *models.SensorSnapshot) {
	s.mu.Lock()
	cp := *snap
	s.latest[snap.NodeID] = &cp
	fns := make([]func(*models.SensorSnapshot), 0, len(s.subs[snap.NodeID]))
	for _, fn := range s.subs[snap.NodeID] {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		delivered := cp
		fn(&delivered)
	}
}

// ImageStore keeps uploaded images in memory and returns memory:// URLs.
type ImageStore struct {
	Failures
	mu      sync.Mutex
	objects map[string][]byte
}

func NewImageStore() *ImageStore {
	return &ImageStore{objects: make(map[string][]byte)}
}

var _ repository.ImageStore = (*ImageStore)(nil)

func (s *ImageStore) Upload(ctx context.Context, name, contentType string, content io.Reader) (string, error) {
	if err := s.check("Upload"); err != nil {
		return "", err
	}
	data, err := io.ReadAll(content)
	if err != nil {
		return "", err
	}
	key := nuts.NID("img", 12) + "_" + strings.ReplaceAll(name, "/", "_")
	s.mu.Lock()
	s.objects[key] = data
	s.mu.Unlock()
	return "memory://images/" + key, nil
}

// Count returns the number of stored objects.
func (s *ImageStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}
