package cache

import (
	"encoding/hex"
	"fmt"
	"hash"
	"slices"
	"strings"
	"time"

	"github.com/go-crypt/x/blake2b"
	"github.com/poiesic/portfolioqa/core"
)

// Key fingerprints a query. Text is lower-cased and whitespace-collapsed;
// context pairs are folded in sorted key order, so map iteration order and
// cosmetic spacing never produce distinct keys.
func Key(text string, context map[string]any) string {
	h := newKeyHash(text, context)
	return hex.EncodeToString(h.Sum(nil))
}

// QueryKey fingerprints q including the options that change what the
// retrievers return: top_k, the entity filter and the time window. Options
// left at their zero value add nothing, so a bare query keys the same as
// Key(q.Text, q.Context). Deadline and include_partial do not affect the
// answer and are ignored.
func QueryKey(q core.Query) string {
	h := newKeyHash(q.Text, q.Context)
	opts := q.Options
	if opts.TopK > 0 {
		fmt.Fprintf(h, "\x01top_k=%d", opts.TopK)
	}
	if len(opts.EntityFilter) > 0 {
		ids := slices.Clone(opts.EntityFilter)
		slices.Sort(ids)
		for _, id := range slices.Compact(ids) {
			fmt.Fprintf(h, "\x01entity=%s", id)
		}
	}
	if w := opts.TimeWindow; w != nil && (!w.Start.IsZero() || !w.End.IsZero()) {
		fmt.Fprintf(h, "\x01window=%s/%s", windowBound(w.Start), windowBound(w.End))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// TextKey fingerprints bare text, for caches that have no query context.
func TextKey(namespace, text string) string {
	return namespace + ":" + Key(text, nil)
}

func newKeyHash(text string, context map[string]any) hash.Hash {
	h, _ := blake2b.New(32, nil) // 32 bytes = 256 bits
	h.Write([]byte(normalizeText(text)))

	keys := make([]string, 0, len(context))
	for k := range context {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		fmt.Fprintf(h, "\x00%s=%v", k, context[k])
	}
	return h
}

func windowBound(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func normalizeText(text string) string {
	return strings.ToLower(strings.Join(strings.Fields(text), " "))
}
