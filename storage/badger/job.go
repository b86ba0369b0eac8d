// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/portfolioqa/core"
	"github.com/poiesic/portfolioqa/storage"
)

// JobRepository implements storage.JobRepository for BadgerDB.
type JobRepository struct {
	backend *Backend
}

var _ storage.JobRepository = (*JobRepository)(nil)

// NewJobRepository creates a new JobRepository.
func NewJobRepository(backend *Backend) (*JobRepository, error) {
	if backend == nil {
		return nil, errors.New("backend is required")
	}
	return &JobRepository{
		backend: backend,
	}, nil
}

// Close releases resources. JobRepository has no resources to release.
func (r *JobRepository) Close() error {
	return nil
}

// WithTransaction delegates to the backend.
func (r *JobRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// CreateJob stores a new job.
func (r *JobRepository) CreateJob(ctx context.Context, job *core.IngestJob) error {
	if job == nil || job.ID == "" {
		return fmt.Errorf("%w: job id is required", storage.ErrInvalidArgument)
	}
	if err := core.ValidateJobKind(job.Kind); err != nil {
		return err
	}
	return r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeJobKey(job.ID)
		if _, err := tx.Get(key); err == nil {
			return storage.ErrDuplicateKey
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		now := time.Now().UTC()
		if job.Status == "" {
			job.Status = core.JobPending
		}
		if job.CreatedAt.IsZero() {
			job.CreatedAt = now
		}
		job.UpdatedAt = now

		value := storage.MarshalJob(job)
		if err := tx.Set(key, value); err != nil {
			return err
		}
		if err := tx.Set(makeJobDateKey(job.CreatedAt, job.ID), []byte(job.ID)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// UpdateJob replaces a job's state, enforcing a monotonic lifecycle.
func (r *JobRepository) UpdateJob(ctx context.Context, job *core.IngestJob) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeJobKey(job.ID)
		val, err := getValue(tx, key)
		if err != nil {
			return err
		}
		old, err := storage.UnmarshalJob(val)
		if err != nil {
			return err
		}

		if old.Status.Terminal() {
			return fmt.Errorf("%w: job %s is %s", storage.ErrImmutableRecord, job.ID, old.Status)
		}
		if old.Status != job.Status {
			if err := core.ValidateJobTransition(old.Status, job.Status); err != nil {
				return err
			}
		}

		job.CreatedAt = old.CreatedAt
		job.Kind = old.Kind
		job.UpdatedAt = time.Now().UTC()

		value := storage.MarshalJob(job)
		if err := tx.Set(key, value); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// GetJob retrieves a job by ID.
func (r *JobRepository) GetJob(ctx context.Context, id string) (*core.IngestJob, error) {
	var result *core.IngestJob
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		val, err := getValue(tx, makeJobKey(id))
		if err != nil {
			return err
		}
		result, err = storage.UnmarshalJob(val)
		return err
	}, false)
	return result, err
}

// ListJobs returns jobs, newest first.
func (r *JobRepository) ListJobs(ctx context.Context, limit int) ([]*core.IngestJob, error) {
	var results []*core.IngestJob
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(jobDatePrefix)
		opts.Reverse = true
		iter := tx.NewIterator(opts)
		defer iter.Close()

		// Reverse iteration must seek past the last key under the prefix
		seekKey := append([]byte(jobDatePrefix), 0xFF)
		for iter.Seek(seekKey); iter.Valid(); iter.Next() {
			if limit > 0 && len(results) >= limit {
				break
			}
			id, err := iter.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			val, err := getValue(tx, makeJobKey(string(id)))
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			job, err := storage.UnmarshalJob(val)
			if err != nil {
				return err
			}
			results = append(results, job)
		}
		return nil
	}, false)
	return results, err
}
