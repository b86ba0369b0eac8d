package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/poiesic/portfolioqa"
	"github.com/poiesic/portfolioqa/cache"
	"github.com/poiesic/portfolioqa/core"
	"github.com/poiesic/portfolioqa/httpapi"
	"github.com/poiesic/portfolioqa/search"
	"github.com/urfave/cli/v2"
)

const (
	redisPrefix      = "portfolioqa:"
	jobPollInterval  = 100 * time.Millisecond
	localCacheFactor = 4
)

// openEngine opens the database with the AI services and caches configured
// by the global flags.
func openEngine(c *cli.Context, extra ...portfolioqa.EngineOption) (*portfolioqa.Engine, error) {
	aiConfig, err := newAIConfig(c)
	if err != nil {
		return nil, err
	}
	provider, err := newProvider(aiConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create AI provider: %w", err)
	}

	l2, err := openL2(c)
	if err != nil {
		provider.Close()
		return nil, err
	}

	opts := []portfolioqa.EngineOption{
		portfolioqa.WithProvider(provider),
		portfolioqa.WithL2Cache(l2),
		portfolioqa.WithResultCache(c.Int("cache-size"), c.Duration("cache-ttl")),
		portfolioqa.WithQueryDeadline(c.Duration("deadline")),
		portfolioqa.WithDebounceWindow(c.Duration("debounce")),
		portfolioqa.WithTokenEncoding(c.String("token-encoding")),
		portfolioqa.WithProgressWriter(c.App.ErrWriter),
	}
	engine, err := portfolioqa.OpenEngine(c.String("db"), append(opts, extra...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return engine, nil
}

// openL2 connects to redis when configured and otherwise keeps the cache in process.
func openL2(c *cli.Context) (cache.Store, error) {
	if addr := c.String("redis"); addr != "" {
		store, err := cache.DialRedis(c.Context, addr, redisPrefix)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	store, err := cache.NewMemoryStore(c.Int("cache-size")*localCacheFactor, search.DefaultEmbeddingTTL)
	if err != nil {
		return nil, err
	}
	return store, nil
}

func serveCommand(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	srv, err := engine.NewServer(httpapi.WithShutdownTimeout(c.Duration("shutdown-timeout")))
	if err != nil {
		return err
	}
	return srv.Run(ctx, c.String("addr"))
}

func buildQuery(c *cli.Context) (core.Query, error) {
	text := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if text == "" {
		return core.Query{}, errors.New("question is required")
	}
	attrs, err := parseContext(c.StringSlice("context"))
	if err != nil {
		return core.Query{}, err
	}
	q := core.Query{
		Text:    text,
		Context: attrs,
		Options: core.QueryOptions{
			IncludePartial: c.Bool("partial"),
			TopK:           c.Int("top-k"),
		},
	}
	for _, id := range c.StringSlice("entity") {
		q.Options.EntityFilter = append(q.Options.EntityFilter, core.EntityID(id))
	}
	return q, nil
}

// parseContext turns key=value pairs into query context.
func parseContext(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid context %q: want key=value", pair)
		}
		out[key] = strings.TrimSpace(value)
	}
	return out, nil
}

func queryCommand(c *cli.Context) error {
	q, err := buildQuery(c)
	if err != nil {
		return err
	}
	var extra []portfolioqa.EngineOption
	if c.Bool("explain") {
		extra = append(extra, portfolioqa.WithSearchMonitor(&explainMonitor{w: c.App.ErrWriter}))
	}
	engine, err := openEngine(c, extra...)
	if err != nil {
		return err
	}
	defer engine.Close()

	result, err := engine.Orchestrator().Query(c.Context, q)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}
	return printJSON(c.App.Writer, result)
}

func streamCommand(c *cli.Context) error {
	q, err := buildQuery(c)
	if err != nil {
		return err
	}
	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	events, err := engine.Orchestrator().Stream(c.Context, q)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	var failure error
	for ev := range events {
		data, err := json.Marshal(ev.Payload())
		if err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "%s: %s\n", ev.Type, data)
		if ev.Err != nil {
			failure = ev.Err
		}
	}
	if failure != nil {
		return fmt.Errorf("query failed: %w", failure)
	}
	return nil
}

// decodeUpdates accepts a single update object or an array of them.
func decodeUpdates(data []byte) ([]core.EntityUpdate, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var updates []core.EntityUpdate
		if err := json.Unmarshal(trimmed, &updates); err != nil {
			return nil, err
		}
		return updates, nil
	}
	var update core.EntityUpdate
	if err := json.Unmarshal(trimmed, &update); err != nil {
		return nil, err
	}
	return []core.EntityUpdate{update}, nil
}

// apply queues every update and flushes them before returning.
func apply(ctx context.Context, engine *portfolioqa.Engine, updates []core.EntityUpdate) error {
	pipeline := engine.Pipeline()
	for i := range updates {
		if err := pipeline.Notify(updates[i]); err != nil {
			return fmt.Errorf("update %s: %w", updates[i].EntityID, err)
		}
	}
	return pipeline.Flush(ctx)
}

func notifyCommand(c *cli.Context) error {
	data, err := os.ReadFile(c.String("file"))
	if err != nil {
		return fmt.Errorf("failed to read updates: %w", err)
	}
	updates, err := decodeUpdates(data)
	if err != nil {
		return fmt.Errorf("failed to parse updates: %w", err)
	}
	for i := range updates {
		if err := core.ValidateUpdate(&updates[i]); err != nil {
			return fmt.Errorf("update %d: %w", i, err)
		}
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	if err := apply(c.Context, engine, updates); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Applied %d updates\n", len(updates))
	return nil
}

func seedCommand(c *cli.Context) error {
	f, err := loadFixture(c.String("file"))
	if err != nil {
		return err
	}
	updates, err := f.updates()
	if err != nil {
		return err
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	if err := apply(c.Context, engine, updates); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Seeded %d entities and %d relationships\n", len(f.Entities), len(f.Relationships))
	return nil
}

// jobStartCommand starts a job and waits for it, since the process owns the
// worker that runs it.
func jobStartCommand(c *cli.Context) error {
	kind := core.JobKind(c.Args().First())
	if err := core.ValidateJobKind(kind); err != nil {
		return err
	}

	var extra []portfolioqa.EngineOption
	if path := c.String("file"); path != "" {
		extra = append(extra, portfolioqa.WithBackfillSource(fixtureSource(path)))
	}
	engine, err := openEngine(c, extra...)
	if err != nil {
		return err
	}
	defer engine.Close()

	pipeline := engine.Pipeline()
	id, err := pipeline.StartJob(c.Context, kind)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.ErrWriter, "Started %s job %s\n", kind, id)

	ticker := time.NewTicker(jobPollInterval)
	defer ticker.Stop()
	for {
		job, err := pipeline.JobStatus(c.Context, id)
		if err != nil {
			return err
		}
		if job.Status.Terminal() {
			if err := printJSON(c.App.Writer, job); err != nil {
				return err
			}
			if job.Status == core.JobFailed {
				return fmt.Errorf("job %s failed: %s", id, job.Error)
			}
			return nil
		}
		select {
		case <-c.Context.Done():
			return c.Context.Err()
		case <-ticker.C:
		}
	}
}

func jobStatusCommand(c *cli.Context) error {
	id := c.Args().First()
	if id == "" {
		return errors.New("job id is required")
	}
	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	job, err := engine.Pipeline().JobStatus(c.Context, id)
	if err != nil {
		return err
	}
	return printJSON(c.App.Writer, job)
}

func jobListCommand(c *cli.Context) error {
	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	jobs, err := engine.Pipeline().ListJobs(c.Context, c.Int("limit"))
	if err != nil {
		return err
	}
	return printJSON(c.App.Writer, jobs)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
