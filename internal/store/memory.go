// internal/store/memory.go
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/sua-org/titan-nvr/internal/core"
)

// MemoryStore guarda as câmeras em memória. Usado em teste e como
// fallback quando não há banco configurado.
type MemoryStore struct {
	mu      sync.Mutex
	cameras map[int64]core.CameraRecord
	nextID  int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{cameras: make(map[int64]core.CameraRecord), nextID: 1}
}

func (s *MemoryStore) ListCameras(ctx context.Context) ([]core.CameraRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]core.CameraRecord, 0, len(s.cameras))
	for _, cam := range s.cameras {
		out = append(out, cam)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) ListActive(ctx context.Context) ([]core.CameraRecord, error) {
	all, _ := s.ListCameras(ctx)
	out := all[:0]
	for _, cam := range all {
		if cam.IsActive {
			out = append(out, cam)
		}
	}
	return out, nil
}

func (s *MemoryStore) GetCamera(ctx context.Context, id int64) (core.CameraRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cam, ok := s.cameras[id]
	if !ok {
		return core.CameraRecord{}, ErrNotFound
	}
	return cam, nil
}

func (s *MemoryStore) CreateCamera(ctx context.Context, cam core.CameraRecord) (core.CameraRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cam.ID = s.nextID
	s.nextID++
	if cam.RecordingMode == "" {
		cam.RecordingMode = core.ModeContinuous
	}
	s.cameras[cam.ID] = cam
	return cam, nil
}

func (s *MemoryStore) UpdateCamera(ctx context.Context, cam core.CameraRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.cameras[cam.ID]; !ok {
		return ErrNotFound
	}
	s.cameras[cam.ID] = cam
	return nil
}

func (s *MemoryStore) DeleteCamera(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.cameras[id]; !ok {
		return ErrNotFound
	}
	delete(s.cameras, id)
	return nil
}

func (s *MemoryStore) SetRecordingMode(ctx context.Context, id int64, mode core.RecordingMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cam, ok := s.cameras[id]
	if !ok {
		return ErrNotFound
	}
	cam.RecordingMode = mode
	s.cameras[id] = cam
	return nil
}
