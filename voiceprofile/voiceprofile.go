// Package voiceprofile persists cloned-voice profiles in a local JSON file.
// A single mutex covers every read-modify-write; this store sees a handful
// of writes per day, not per second.
package voiceprofile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Profile is one cloned voice usable in later speech requests.
type Profile struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	VoiceID   string    `json:"voice_id"`
	Provider  string    `json:"provider"`
	CreatedAt time.Time `json:"created_at"`
}

// Store is the JSON-file-backed profile collection.
type Store struct {
	path string

	mu       sync.Mutex
	profiles map[string]Profile
}

// Open loads the store at path, creating parent directories as needed. A
// missing or corrupt file starts the store fresh rather than failing.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating profile dir: %w", err)
	}
	s := &Store{path: path, profiles: map[string]Profile{}}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading profiles: %w", err)
	}
	var list []Profile
	if err := json.Unmarshal(data, &list); err != nil {
		// Corrupt file: start fresh, keep the old bytes out of the way.
		return s, nil
	}
	for _, p := range list {
		s.profiles[p.ID] = p
	}
	return s, nil
}

// Add stores a new profile. Profile names are unique; a duplicate is
// rejected so users cannot shadow an existing clone.
func (s *Store) Add(name, voiceID, provider string) (Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.profiles {
		if p.Name == name {
			return Profile{}, fmt.Errorf("voice profile %q already exists", name)
		}
	}

	p := Profile{
		ID:        uuid.NewString(),
		Name:      name,
		VoiceID:   voiceID,
		Provider:  provider,
		CreatedAt: time.Now().UTC(),
	}
	s.profiles[p.ID] = p
	if err := s.flush(); err != nil {
		delete(s.profiles, p.ID)
		return Profile{}, err
	}
	return p, nil
}

// Get returns the profile with the given id.
func (s *Store) Get(id string) (Profile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[id]
	return p, ok
}

// GetByName returns the profile with the given name.
func (s *Store) GetByName(name string) (Profile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.profiles {
		if p.Name == name {
			return p, true
		}
	}
	return Profile{}, false
}

// List returns every profile, newest first.
func (s *Store) List() []Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Profile, 0, len(s.profiles))
	for _, p := range s.profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// Delete removes the profile with the given id.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[id]
	if !ok {
		return fmt.Errorf("voice profile %s not found", id)
	}
	delete(s.profiles, id)
	if err := s.flush(); err != nil {
		s.profiles[id] = p
		return err
	}
	return nil
}

func (s *Store) flush() error {
	list := make([]Profile, 0, len(s.profiles))
	for _, p := range s.profiles {
		list = append(list, p)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.Before(list[j].CreatedAt) })

	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding profiles: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("writing profiles: %w", err)
	}
	return nil
}
