package orchestrator

import (
	"sync"
	"time"
)

// Checkpoint — последний сохранённый результат узла в рамках run.
type Checkpoint struct {
	NodeID         string
	Outputs        map[string]any
	ExecutedAt     time.Time
	IdempotencyKey string
}

// CheckpointStore — хранилище чекпоинтов одного run.
//
// Живёт только в памяти и создаётся заново для каждого run:
// после рестарта процесса run не возобновляется.
type CheckpointStore struct {
	mu          sync.RWMutex
	checkpoints map[string]Checkpoint
}

// NewCheckpointStore создаёт пустое хранилище.
func NewCheckpointStore() *CheckpointStore {
	return &CheckpointStore{checkpoints: make(map[string]Checkpoint)}
}

// Get возвращает чекпоинт узла.
func (s *CheckpointStore) Get(nodeID string) (Checkpoint, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp, ok := s.checkpoints[nodeID]
	return cp, ok
}

// Save сохраняет (перезаписывает) чекпоинт узла.
func (s *CheckpointStore) Save(cp Checkpoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkpoints[cp.NodeID] = cp
}

// Has проверяет наличие чекпоинта.
func (s *CheckpointStore) Has(nodeID string) bool {
	_, ok := s.Get(nodeID)
	return ok
}

// Len возвращает количество чекпоинтов.
func (s *CheckpointStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.checkpoints)
}
