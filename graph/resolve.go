package graph

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/xrash/smetrics"

	"github.com/poiesic/portfolioqa/cache"
	"github.com/poiesic/portfolioqa/core"
	"github.com/poiesic/portfolioqa/storage"
)

const resolveNamespace = "resolve"

// questionWords are capitalised at the start of a question but never name
// an entity.
var questionWords = map[string]bool{
	"what": true, "why": true, "how": true, "when": true, "which": true,
	"who": true, "where": true, "is": true, "are": true, "was": true,
	"were": true, "does": true, "do": true, "did": true, "will": true,
	"can": true, "could": true, "should": true, "show": true, "list": true,
	"tell": true, "give": true, "i": true, "the": true,
}

// Mentions extracts candidate entity names from a question: the "entity"
// context value first, then runs of capitalised words in order of
// appearance.
func Mentions(text string, attrs map[string]any) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(m string) {
		m = strings.TrimSpace(m)
		key := strings.ToLower(m)
		if m != "" && !seen[key] {
			seen[key] = true
			out = append(out, m)
		}
	}

	if v, ok := attrs["entity"].(string); ok {
		add(v)
	}

	var run []string
	flush := func() {
		if len(run) > 0 {
			add(strings.Join(run, " "))
			run = run[:0]
		}
	}
	for _, field := range strings.Fields(text) {
		word := strings.TrimRight(field, ".,!?;:'\")]}")
		word = strings.TrimLeft(word, "'\"([{")
		ended := word != field && strings.ContainsAny(field[len(field)-1:], ".,!?;:")

		if isCapitalised(word) && !(len(run) == 0 && questionWords[strings.ToLower(word)]) {
			run = append(run, word)
		} else {
			flush()
		}
		if ended {
			flush()
		}
	}
	flush()
	return out
}

func isCapitalised(word string) bool {
	r, _ := utf8.DecodeRuneInString(word)
	return unicode.IsUpper(r)
}

// Resolve maps a mention to an entity: exact name, then alias, then the
// closest name or alias by Jaro-Winkler similarity at or above the fuzzy
// threshold. Returns ErrUnresolved when nothing matches.
func (r *Retriever) Resolve(ctx context.Context, mention string) (*core.Entity, error) {
	var entity *core.Entity
	err := r.guard.Read(ctx, func(ctx context.Context, store Store) error {
		var err error
		entity, err = r.resolve(ctx, store, mention)
		return err
	})
	return entity, err
}

func (r *Retriever) resolve(ctx context.Context, store Store, mention string) (*core.Entity, error) {
	mention = strings.TrimSpace(mention)
	if mention == "" {
		return nil, ErrUnresolved
	}

	key := cache.TextKey(resolveNamespace, mention)
	if entity := r.cachedResolution(ctx, store, key); entity != nil {
		return entity, nil
	}

	entity, err := r.lookup(ctx, store, mention)
	if err != nil {
		return nil, err
	}

	if r.resolveCache != nil {
		if err := r.resolveCache.Set(ctx, key, []byte(entity.ID), r.resolveTTL); err != nil {
			r.logger.Warn("resolve cache store failed", "err", err)
		}
	}
	return entity, nil
}

func (r *Retriever) cachedResolution(ctx context.Context, store Store, key string) *core.Entity {
	if r.resolveCache == nil {
		return nil
	}
	buf, err := r.resolveCache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			r.logger.Warn("resolve cache lookup failed", "err", err)
		}
		return nil
	}

	entity, err := store.GetEntity(ctx, core.EntityID(buf))
	if err != nil {
		// The entity was deleted since; forget the mapping.
		_ = r.resolveCache.Delete(ctx, key)
		return nil
	}
	return entity
}

func (r *Retriever) lookup(ctx context.Context, store Store, mention string) (*core.Entity, error) {
	entity, err := store.FindByName(ctx, mention)
	if err == nil {
		return entity, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	entity, err = store.FindByAlias(ctx, mention)
	if err == nil {
		return entity, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	candidates, err := store.ListEntities(ctx)
	if err != nil {
		return nil, err
	}

	folded := strings.ToLower(mention)
	var best *core.Entity
	bestScore := 0.0
	for _, candidate := range candidates {
		for _, name := range append([]string{candidate.Name}, candidate.Aliases...) {
			score := smetrics.JaroWinkler(folded, strings.ToLower(name), 0.7, 4)
			// ListEntities is ordered by ID, so ties keep the lowest ID.
			if score > bestScore {
				best, bestScore = candidate, score
			}
		}
	}
	if best == nil || bestScore < r.fuzzyThreshold {
		return nil, fmt.Errorf("%w: %q", ErrUnresolved, mention)
	}

	r.logger.Debug("fuzzy entity match", "mention", mention, "entity", best.ID, "score", bestScore)
	return best, nil
}
