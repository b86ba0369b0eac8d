package search

import (
	"context"
	"encoding/binary"
	"errors"
	"math"

	"github.com/poiesic/portfolioqa/cache"
)

const embeddingNamespace = "embedding"

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(buf []byte) ([]float32, bool) {
	if len(buf) == 0 || len(buf)%4 != 0 {
		return nil, false
	}
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return v, true
}

// embed returns the query vector and whether it came from the byte cache.
// Cache failures are logged and never fail the query.
func (r *Retriever) embed(ctx context.Context, text string) ([]float32, bool, error) {
	var key string
	if r.embeddingCache != nil {
		key = cache.TextKey(embeddingNamespace, text)
		buf, err := r.embeddingCache.Get(ctx, key)
		switch {
		case err == nil:
			if v, ok := decodeVector(buf); ok {
				return v, true, nil
			}
			r.logger.Warn("discarding malformed cached embedding", "key", key)
		case !errors.Is(err, cache.ErrMiss):
			r.logger.Warn("embedding cache lookup failed", "err", err)
		}
	}

	vector, err := r.embedder.EmbedText(ctx, text)
	if err != nil {
		return nil, false, err
	}

	if r.embeddingCache != nil {
		if err := r.embeddingCache.Set(ctx, key, encodeVector(vector), r.embeddingTTL); err != nil {
			r.logger.Warn("embedding cache store failed", "err", err)
		}
	}
	return vector, false, nil
}
