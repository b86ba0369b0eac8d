package badger

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/portfolioqa/core"
	"github.com/poiesic/portfolioqa/storage"
)

// EntityRepository implements storage.EntityRepository for BadgerDB.
type EntityRepository struct {
	backend *Backend
}

var _ storage.EntityRepository = (*EntityRepository)(nil)

// NewEntityRepository creates a new EntityRepository.
func NewEntityRepository(backend *Backend) (*EntityRepository, error) {
	if backend == nil {
		return nil, errors.New("backend is required")
	}
	return &EntityRepository{
		backend: backend,
	}, nil
}

// Close releases resources. EntityRepository has no resources to release.
func (r *EntityRepository) Close() error {
	return nil
}

// WithTransaction delegates to the backend.
func (r *EntityRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// PutEntities inserts or replaces entities.
func (r *EntityRepository) PutEntities(ctx context.Context, entities ...*core.Entity) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		now := time.Now().UTC()
		for _, entity := range entities {
			if err := core.ValidateEntity(entity); err != nil {
				return err
			}

			key := makeEntityKey(entity.ID)
			old, err := readEntity(tx, key)
			if err != nil {
				return err
			}

			if old != nil {
				entity.CreatedAt = old.CreatedAt
				if err := deleteEntityIndexes(tx, old); err != nil {
					return err
				}
			} else if entity.CreatedAt.IsZero() {
				entity.CreatedAt = now
			}
			if entity.UpdatedAt.IsZero() {
				entity.UpdatedAt = now
			}

			value := storage.MarshalEntity(entity)
			if err := tx.Set(key, value); err != nil {
				return err
			}
			if err := tx.Set(makeNameKey(entity.Name), []byte(entity.ID)); err != nil {
				return err
			}
			for _, alias := range entity.Aliases {
				if err := tx.Set(makeAliasKey(alias), []byte(entity.ID)); err != nil {
					return err
				}
			}
		}
		return tx.Commit()
	}, true)
}

// GetEntity retrieves a single entity by ID.
func (r *EntityRepository) GetEntity(ctx context.Context, id core.EntityID) (*core.Entity, error) {
	var result *core.Entity
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readEntity(tx, makeEntityKey(id))
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return result, err
}

// GetEntities retrieves multiple entities by their IDs.
func (r *EntityRepository) GetEntities(ctx context.Context, ids ...core.EntityID) ([]*core.Entity, error) {
	var result []*core.Entity
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			entity, err := readEntity(tx, makeEntityKey(id))
			if err != nil {
				return err
			}
			if entity != nil {
				result = append(result, entity)
			}
		}
		return nil
	}, false)
	return result, err
}

// FindByName looks up an entity by exact name, ignoring case.
func (r *EntityRepository) FindByName(ctx context.Context, name string) (*core.Entity, error) {
	return r.findByIndex(makeNameKey(name))
}

// FindByAlias looks up an entity by exact alias, ignoring case.
func (r *EntityRepository) FindByAlias(ctx context.Context, alias string) (*core.Entity, error) {
	return r.findByIndex(makeAliasKey(alias))
}

func (r *EntityRepository) findByIndex(indexKey []byte) (*core.Entity, error) {
	var result *core.Entity
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		id, err := getValue(tx, indexKey)
		if err != nil {
			return err
		}
		result, err = readEntity(tx, makeEntityKey(core.EntityID(id)))
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return result, err
}

// ListEntities returns every entity, optionally restricted to the given types.
func (r *EntityRepository) ListEntities(ctx context.Context, types ...core.EntityType) ([]*core.Entity, error) {
	var results []*core.Entity
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		return scanPrefix(tx, []byte(entityPrefix), true, func(_, val []byte) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			entity, err := storage.UnmarshalEntity(val)
			if err != nil {
				return err
			}
			if len(types) == 0 || slices.Contains(types, entity.Type) {
				results = append(results, entity)
			}
			return nil
		})
	}, false)
	return results, err
}

// DeleteEntities removes entities and their indexes.
func (r *EntityRepository) DeleteEntities(ctx context.Context, ids ...core.EntityID) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			key := makeEntityKey(id)
			entity, err := readEntity(tx, key)
			if err != nil {
				return err
			}
			if entity == nil {
				return storage.ErrNotFound
			}
			if err := deleteEntityIndexes(tx, entity); err != nil {
				return err
			}
			if err := tx.Delete(makeDegreeKey(id)); err != nil {
				return err
			}
			if err := tx.Delete(key); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// deleteEntityIndexes removes name and alias index entries that still point at entity.
func deleteEntityIndexes(tx *badger.Txn, entity *core.Entity) error {
	keys := [][]byte{makeNameKey(entity.Name)}
	for _, alias := range entity.Aliases {
		keys = append(keys, makeAliasKey(alias))
	}
	for _, key := range keys {
		owner, err := getValue(tx, key)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		if core.EntityID(owner) != entity.ID {
			continue
		}
		if err := tx.Delete(key); err != nil {
			return err
		}
	}
	return nil
}

// readEntity reads an entity from the transaction, returning nil when absent.
func readEntity(tx *badger.Txn, key []byte) (*core.Entity, error) {
	val, err := getValue(tx, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return storage.UnmarshalEntity(val)
}
