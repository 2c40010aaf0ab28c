package orchestrator

import (
	"sync"

	coreerrors "github.com/aivisrun/study-core/pkg/errors"
)

// Store persists studies. The core ships MemoryStore; a deployment supplies
// a durable implementation (spec §6: "persistence is a collaborator
// concern").
type Store interface {
	Create(study *Study) error
	Get(studyID string) (*Study, error)
	Update(study *Study) error
	List() ([]*Study, error)
}

// MemoryStore is an in-memory Store, sufficient for tests and for a single
// runner process.
type MemoryStore struct {
	mu      sync.RWMutex
	studies map[string]*Study
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{studies: make(map[string]*Study)}
}

func (m *MemoryStore) Create(study *Study) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.studies[study.ID] = study
	return nil
}

func (m *MemoryStore) Get(studyID string) (*Study, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	study, ok := m.studies[studyID]
	if !ok {
		return nil, coreerrors.StudyNotFound(studyID)
	}
	return study, nil
}

func (m *MemoryStore) Update(study *Study) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.studies[study.ID]; !ok {
		return coreerrors.StudyNotFound(study.ID)
	}
	m.studies[study.ID] = study
	return nil
}

func (m *MemoryStore) List() ([]*Study, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Study, 0, len(m.studies))
	for _, s := range m.studies {
		out = append(out, s)
	}
	return out, nil
}
