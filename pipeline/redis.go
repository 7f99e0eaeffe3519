package pipeline

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis"
)

const jobKeyPrefix = "pitchjob:"

// jobTTL keeps finished jobs readable for history without growing the
// keyspace forever.
const jobTTL = 7 * 24 * time.Hour

// RedisStore persists job records as JSON values in Redis, for deployments
// where job history must survive restarts.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(addr string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	if err := client.Ping().Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis at %s: %w", addr, err)
	}
	return &RedisStore{client: client}, nil
}

func (s *RedisStore) Create(job *Job) error {
	data, err := encode(job)
	if err != nil {
		return err
	}
	ok, err := s.client.SetNX(jobKeyPrefix+job.ID, data, jobTTL).Result()
	if err != nil {
		return fmt.Errorf("storing job %s: %w", job.ID, err)
	}
	if !ok {
		return ErrJobExists
	}
	return nil
}

func (s *RedisStore) Get(id string) (*Job, error) {
	data, err := s.client.Get(jobKeyPrefix + id).Bytes()
	if err == redis.Nil {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading job %s: %w", id, err)
	}
	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("decoding job %s: %w", id, err)
	}
	return &job, nil
}

func (s *RedisStore) Update(job *Job) error {
	stored, err := s.Get(job.ID)
	if err != nil {
		return err
	}
	if err := checkTransition(stored, job); err != nil {
		return err
	}
	job.UpdatedAt = time.Now().UTC()
	data, err := encode(job)
	if err != nil {
		return err
	}
	if err := s.client.Set(jobKeyPrefix+job.ID, data, jobTTL).Err(); err != nil {
		return fmt.Errorf("storing job %s: %w", job.ID, err)
	}
	return nil
}

func encode(job *Job) ([]byte, error) {
	record := snapshot(job)
	data, err := json.Marshal(&record)
	if err != nil {
		return nil, fmt.Errorf("encoding job %s: %w", job.ID, err)
	}
	return data, nil
}
