package badger

import (
	"context"
	"errors"
	"slices"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/portfolioqa/core"
	"github.com/poiesic/portfolioqa/storage"
)

// RelationshipRepository implements storage.RelationshipRepository for BadgerDB.
// Edges are written twice: the outgoing index holds the encoded relationship,
// the incoming index holds the same value keyed from the target.
type RelationshipRepository struct {
	backend *Backend
}

var _ storage.RelationshipRepository = (*RelationshipRepository)(nil)

// NewRelationshipRepository creates a new RelationshipRepository.
func NewRelationshipRepository(backend *Backend) (*RelationshipRepository, error) {
	if backend == nil {
		return nil, errors.New("backend is required")
	}
	return &RelationshipRepository{
		backend: backend,
	}, nil
}

// Close releases resources. RelationshipRepository has no resources to release.
func (r *RelationshipRepository) Close() error {
	return nil
}

// WithTransaction delegates to the backend.
func (r *RelationshipRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// AddRelationships inserts or replaces edges.
func (r *RelationshipRepository) AddRelationships(ctx context.Context, rels ...*core.Relationship) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		for _, rel := range rels {
			if err := core.ValidateRelationship(rel); err != nil {
				return err
			}
			value := storage.MarshalRelationship(rel)
			if err := tx.Set(makeRelOutKey(rel.From, rel.Kind, rel.To), value); err != nil {
				return err
			}
			if err := tx.Set(makeRelInKey(rel.To, rel.Kind, rel.From), value); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// Outgoing returns edges leaving id.
func (r *RelationshipRepository) Outgoing(ctx context.Context, id core.EntityID, kinds ...core.RelationKind) ([]*core.Relationship, error) {
	return r.edges(ctx, relOutPrefix, id, kinds)
}

// Incoming returns edges arriving at id.
func (r *RelationshipRepository) Incoming(ctx context.Context, id core.EntityID, kinds ...core.RelationKind) ([]*core.Relationship, error) {
	return r.edges(ctx, relInPrefix, id, kinds)
}

func (r *RelationshipRepository) edges(ctx context.Context, prefix string, id core.EntityID, kinds []core.RelationKind) ([]*core.Relationship, error) {
	var results []*core.Relationship
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		scan := func(kind core.RelationKind) error {
			return scanPrefix(tx, makePartialRelKey(prefix, id, kind), true, func(_, val []byte) error {
				if err := ctx.Err(); err != nil {
					return err
				}
				rel, err := storage.UnmarshalRelationship(val)
				if err != nil {
					return err
				}
				results = append(results, rel)
				return nil
			})
		}

		if len(kinds) == 0 {
			return scan("")
		}
		sorted := slices.Clone(kinds)
		slices.Sort(sorted)
		for _, kind := range slices.Compact(sorted) {
			if err := scan(kind); err != nil {
				return err
			}
		}
		return nil
	}, false)
	return results, err
}

// DeleteRelationshipsFor removes every edge touching id, on both indexes.
func (r *RelationshipRepository) DeleteRelationshipsFor(ctx context.Context, id core.EntityID) error {
	out, err := r.Outgoing(ctx, id)
	if err != nil {
		return err
	}
	in, err := r.Incoming(ctx, id)
	if err != nil {
		return err
	}

	return r.backend.WithTx(func(tx *badger.Txn) error {
		for _, rel := range append(out, in...) {
			if err := tx.Delete(makeRelOutKey(rel.From, rel.Kind, rel.To)); err != nil {
				return err
			}
			if err := tx.Delete(makeRelInKey(rel.To, rel.Kind, rel.From)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// Degree returns the indexed connection count for id.
func (r *RelationshipRepository) Degree(ctx context.Context, id core.EntityID) (int, error) {
	var degree int
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		val, err := getValue(tx, makeDegreeKey(id))
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		degree = int(decodeUint64(val))
		return nil
	}, false)
	return degree, err
}

// RebuildDegrees recomputes the degree index from the outgoing edge index.
// Each edge counts once for each endpoint.
func (r *RelationshipRepository) RebuildDegrees(ctx context.Context) (int, error) {
	counts := make(map[core.EntityID]uint64)
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		return scanPrefix(tx, []byte(relOutPrefix), true, func(_, val []byte) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rel, err := storage.UnmarshalRelationship(val)
			if err != nil {
				return err
			}
			counts[rel.From]++
			counts[rel.To]++
			return nil
		})
	}, false)
	if err != nil {
		return 0, err
	}

	var stale [][]byte
	err = r.backend.WithTx(func(tx *badger.Txn) error {
		return scanPrefix(tx, []byte(entityDegreePrefix), false, func(suffix, _ []byte) error {
			if _, ok := counts[core.EntityID(suffix)]; !ok {
				stale = append(stale, makeDegreeKey(core.EntityID(suffix)))
			}
			return nil
		})
	}, false)
	if err != nil {
		return 0, err
	}

	// WriteBatch splits large rebuilds across transactions.
	wb := r.backend.db.NewWriteBatch()
	defer wb.Cancel()
	for _, key := range stale {
		if err := wb.Delete(key); err != nil {
			return 0, err
		}
	}
	for id, n := range counts {
		if err := wb.Set(makeDegreeKey(id), encodeUint64(n)); err != nil {
			return 0, err
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, err
	}
	return len(counts), nil
}
