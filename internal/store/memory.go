package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mediagrab/api/internal/model"
)

// MemoryStore keeps records in process memory
type MemoryStore struct {
	mu        sync.RWMutex
	downloads map[string]*model.Download
	now       func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		downloads: make(map[string]*model.Download),
		now:       time.Now,
	}
}

func (s *MemoryStore) Insert(ctx context.Context, d *model.Download) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.downloads[d.ID]; ok {
		return model.NewError(model.KindRecordStoreFailed, "insert", fmt.Errorf("download %s already exists", d.ID))
	}
	cp := *d
	s.downloads[d.ID] = &cp
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*model.Download, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.downloads[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (s *MemoryStore) Update(ctx context.Context, id string, u model.DownloadUpdate) (*model.Download, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.downloads[id]
	if !ok {
		return nil, model.ErrNotFound
	}

	next := *d
	if err := next.Apply(u, s.now()); err != nil {
		return nil, err
	}
	s.downloads[id] = &next

	cp := next
	return &cp, nil
}
