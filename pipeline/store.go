package pipeline

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	// ErrJobNotFound is returned when the given job id is unknown.
	ErrJobNotFound = errors.New("job not found")
	// ErrJobExists is returned when creating a job whose id is taken.
	ErrJobExists = errors.New("job already exists")
)

// Store persists job records. Implementations enforce two invariants:
// status never moves backward, and terminal records are immutable.
type Store interface {
	Create(job *Job) error
	Get(id string) (*Job, error)
	Update(job *Job) error
}

// checkTransition applies the shared invariants given the stored record.
func checkTransition(stored, update *Job) error {
	if stored.Status.Terminal() {
		return fmt.Errorf("job %s is %s and can no longer change", stored.ID, stored.Status)
	}
	if update.Status == StatusFailed {
		return nil
	}
	if statusRank[update.Status] < statusRank[stored.Status] {
		return fmt.Errorf("job %s cannot move from %s back to %s",
			stored.ID, stored.Status, update.Status)
	}
	return nil
}

// MemoryStore keeps job records in process memory, the default for
// single-node deployments.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]Job
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: map[string]Job{}}
}

func (s *MemoryStore) Create(job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[job.ID]; ok {
		return ErrJobExists
	}
	s.jobs[job.ID] = snapshot(job)
	return nil
}

func (s *MemoryStore) Get(id string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored, ok := s.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	out := stored
	return &out, nil
}

func (s *MemoryStore) Update(job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.jobs[job.ID]
	if !ok {
		return ErrJobNotFound
	}
	if err := checkTransition(&stored, job); err != nil {
		return err
	}
	job.UpdatedAt = time.Now().UTC()
	s.jobs[job.ID] = snapshot(job)
	return nil
}

// snapshot copies the persistable record, dropping upload payloads so the
// store never pins multi-megabyte buffers past their stage.
func snapshot(job *Job) Job {
	out := *job
	out.FaceImage = nil
	out.VoiceSample = nil
	if job.Research != nil {
		research := make(map[string]interface{}, len(job.Research))
		for k, v := range job.Research {
			research[k] = v
		}
		out.Research = research
	}
	return out
}
