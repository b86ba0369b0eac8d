package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/poiesic/portfolioqa/ai"
	"github.com/poiesic/portfolioqa/ai/mock"
	"github.com/poiesic/portfolioqa/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

const testFixture = `
entities:
  - id: p1
    type: product
    name: Atlas
    aliases: [atlas-app]
    attributes: {owner: platform, status: amber, stage: beta}
    notes:
      - Atlas launch is blocked by the vendor API delay.
  - id: r1
    type: risk
    name: Vendor API delay
    attributes: {severity: high, status: open}
    notes:
      - The vendor API slipped two sprints.
  - id: a1
    type: action
    name: Escalate to vendor
    attributes: {tier: executive, status: done}
relationships:
  - {from: p1, to: r1, kind: has_risk}
  - {from: r1, to: a1, kind: mitigated_by}
`

func useMockProvider(t *testing.T) {
	t.Helper()
	orig := newProvider
	newProvider = func(*ai.Config) (ai.AIProvider, error) {
		return mock.NewMockProvider(), nil
	}
	t.Cleanup(func() { newProvider = orig })
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// run executes the CLI against db and returns what it printed to stdout.
func run(t *testing.T, db string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = io.Discard
	full := append([]string{"portfolioqa", "--log-level", "error", "--db", db}, args...)
	err := app.Run(full)
	return out.String(), err
}

func findFlag[T cli.Flag](flags []cli.Flag, name string) T {
	var zero T
	for _, flag := range flags {
		if f, ok := flag.(T); ok && flag.Names()[0] == name {
			return f
		}
	}
	return zero
}

func TestGlobalFlags(t *testing.T) {
	app := newApp()

	t.Run("db has a default", func(t *testing.T) {
		f := findFlag[*cli.StringFlag](app.Flags, "db")
		require.NotNil(t, f)
		assert.Equal(t, "./portfolio_db", f.Value)
	})

	t.Run("hosts default to local server", func(t *testing.T) {
		for _, name := range []string{"embedding-host", "generator-host"} {
			f := findFlag[*cli.StringFlag](app.Flags, name)
			require.NotNil(t, f, name)
			assert.Equal(t, "http://localhost:11434/v1", f.Value)
			assert.Empty(t, f.EnvVars)
		}
	})

	t.Run("redis is optional", func(t *testing.T) {
		f := findFlag[*cli.StringFlag](app.Flags, "redis")
		require.NotNil(t, f)
		assert.Empty(t, f.Value)
		assert.False(t, f.Required)
	})
}

func TestSetupLogger_InvalidLevel(t *testing.T) {
	_, err := run(t, t.TempDir(), "--log-level", "verbose", "job", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestFileConfig(t *testing.T) {
	db := filepath.Join(t.TempDir(), "from_config")
	config := writeFile(t, "config.yaml", "db: "+db+
		"\nai:\n  embedding_batch_size: 8\n  embedding_dimensions: 768\n"+
		"query:\n  cache_size: 16\n  deadline: 3s\n")

	var gotDB string
	var gotSize int
	var gotAI *ai.Config
	inspect := func(args ...string) error {
		app := newApp()
		app.Writer = io.Discard
		app.Commands = append(app.Commands, &cli.Command{
			Name: "inspect",
			Action: func(c *cli.Context) error {
				gotDB = c.String("db")
				gotSize = c.Int("cache-size")
				var err error
				gotAI, err = newAIConfig(c)
				return err
			},
		})
		return app.Run(append([]string{"portfolioqa"}, args...))
	}

	require.NoError(t, inspect("--config", config, "inspect"))
	assert.Equal(t, db, gotDB)
	assert.Equal(t, 16, gotSize)
	assert.Equal(t, 8, gotAI.EmbeddingBatchSize)
	assert.Equal(t, 768, gotAI.EmbeddingDimensions)

	require.NoError(t, inspect("--config", config, "--cache-size", "8", "--embedding-dimensions", "384", "inspect"))
	assert.Equal(t, 8, gotSize, "flags win over the file")
	assert.Equal(t, 384, gotAI.EmbeddingDimensions)
}

func TestFileConfig_Missing(t *testing.T) {
	_, err := run(t, t.TempDir(), "--config", filepath.Join(t.TempDir(), "nope.yaml"), "job", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config")
}

func TestFixtureUpdates(t *testing.T) {
	f, err := loadFixture(writeFile(t, "fixture.yaml", testFixture))
	require.NoError(t, err)

	updates, err := f.updates()
	require.NoError(t, err)
	require.Len(t, updates, 3)

	atlas := updates[0]
	assert.Equal(t, core.EntityID("p1"), atlas.EntityID)
	assert.Equal(t, core.EntityProduct, atlas.Entity.Type)
	assert.Equal(t, []string{"atlas-app"}, atlas.Entity.Aliases)
	require.Len(t, atlas.Chunks, 1)
	assert.Equal(t, core.EntityID("p1"), atlas.Chunks[0].EntityID)
	require.Len(t, atlas.Relationships, 1)
	assert.Equal(t, core.RelHasRisk, atlas.Relationships[0].Kind)

	assert.Len(t, updates[1].Relationships, 1)
	assert.Empty(t, updates[2].Chunks)
}

func TestFixtureUpdates_Errors(t *testing.T) {
	tests := []struct {
		name    string
		fixture string
		want    string
	}{
		{
			name:    "undeclared source",
			fixture: "entities:\n  - {id: p1, type: product, name: Atlas}\nrelationships:\n  - {from: x9, to: p1, kind: blocks}\n",
			want:    "undeclared entity",
		},
		{
			name:    "duplicate entity",
			fixture: "entities:\n  - {id: p1, type: product, name: Atlas}\n  - {id: p1, type: product, name: Atlas 2}\n",
			want:    "duplicate entity",
		},
		{
			name:    "missing name",
			fixture: "entities:\n  - {id: p1, type: product}\n",
			want:    "entity name cannot be empty",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := loadFixture(writeFile(t, "fixture.yaml", tt.fixture))
			require.NoError(t, err)
			_, err = f.updates()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseContext(t *testing.T) {
	got, err := parseContext([]string{"product=Atlas", " region = emea "})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"product": "Atlas", "region": "emea"}, got)

	got, err = parseContext(nil)
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = parseContext([]string{"novalue"})
	assert.Error(t, err)
}

func TestDecodeUpdates(t *testing.T) {
	one, err := decodeUpdates([]byte(` {"entity_id":"p1","deleted":true}`))
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.True(t, one[0].Deleted)

	many, err := decodeUpdates([]byte(`[{"entity_id":"p1"},{"entity_id":"p2"}]`))
	require.NoError(t, err)
	assert.Len(t, many, 2)

	_, err = decodeUpdates([]byte(`{`))
	assert.Error(t, err)
}

func TestCommands_SeedQueryAndJobs(t *testing.T) {
	useMockProvider(t)
	db := filepath.Join(t.TempDir(), "db")

	out, err := run(t, db, "seed", "--file", writeFile(t, "fixture.yaml", testFixture))
	require.NoError(t, err)
	assert.Contains(t, out, "Seeded 3 entities and 2 relationships")

	out, err = run(t, db, "query", "--context", "product=Atlas", "What is blocking Atlas?")
	require.NoError(t, err)
	var result core.MergedResult
	require.NoError(t, json.Unmarshal([]byte(out), &result), out)
	assert.Equal(t, core.IntentBlockers, result.Intent.Label)
	assert.NotEmpty(t, result.Answer)

	out, err = run(t, db, "stream", "What is blocking Atlas?")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.NotEmpty(t, lines)
	assert.True(t, strings.HasPrefix(lines[0], "intent: "), lines[0])
	assert.True(t, strings.HasPrefix(lines[len(lines)-1], "complete: "), lines[len(lines)-1])

	out, err = run(t, db, "stream", "--partial", "What is blocking Atlas?")
	require.NoError(t, err)
	assert.Contains(t, out, "\nvector: ")

	out, err = run(t, db, "job", "start", "rebuild")
	require.NoError(t, err)
	var job core.IngestJob
	require.NoError(t, json.Unmarshal([]byte(out), &job), out)
	assert.Equal(t, core.JobCompleted, job.Status)

	out, err = run(t, db, "job", "status", job.ID)
	require.NoError(t, err)
	assert.Contains(t, out, job.ID)

	out, err = run(t, db, "job", "list")
	require.NoError(t, err)
	var jobs []core.IngestJob
	require.NoError(t, json.Unmarshal([]byte(out), &jobs))
	assert.Len(t, jobs, 1)
}

func TestCommands_NotifyAndBackfill(t *testing.T) {
	useMockProvider(t)
	db := filepath.Join(t.TempDir(), "db")

	updates := writeFile(t, "updates.json",
		`[{"entity_id":"p1","entity":{"id":"p1","type":"product","name":"Atlas"},"chunks":[{"entity_id":"p1","text":"Atlas is on track."}]}]`)
	out, err := run(t, db, "notify", "--file", updates)
	require.NoError(t, err)
	assert.Contains(t, out, "Applied 1 updates")

	_, err = run(t, db, "notify", "--file", writeFile(t, "bad.json", `{"entity_id":""}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrInvalidUpdate)

	out, err = run(t, db, "job", "start", "--file", writeFile(t, "fixture.yaml", testFixture), "backfill")
	require.NoError(t, err)
	var job core.IngestJob
	require.NoError(t, json.Unmarshal([]byte(out), &job), out)
	assert.Equal(t, core.JobCompleted, job.Status)
	assert.Equal(t, 3, job.Processed)
}

func TestCommands_Errors(t *testing.T) {
	useMockProvider(t)
	db := filepath.Join(t.TempDir(), "db")

	_, err := run(t, db, "query")
	assert.EqualError(t, err, "question is required")

	_, err = run(t, db, "job", "start", "compact")
	assert.ErrorIs(t, err, core.ErrUnknownJobKind)

	_, err = run(t, db, "job", "start", "backfill")
	assert.Error(t, err, "backfill needs a fixture")

	_, err = run(t, db, "job", "status")
	assert.EqualError(t, err, "job id is required")

	_, err = run(t, db, "seed")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "file")
}

func TestQuery_Explain(t *testing.T) {
	useMockProvider(t)
	db := filepath.Join(t.TempDir(), "db")
	_, err := run(t, db, "seed", "--file", writeFile(t, "fixture.yaml", testFixture))
	require.NoError(t, err)

	var out, steps bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &steps
	err = app.Run([]string{"portfolioqa", "--log-level", "error", "--db", db,
		"query", "--explain", "What is the status of Atlas?"})
	require.NoError(t, err)

	trace := steps.String()
	assert.Contains(t, trace, `vector: "What is the status of Atlas?"`)
	assert.Contains(t, trace, "embedding: computed")
	assert.Contains(t, trace, "candidates")
	assert.Contains(t, trace, "done:")
	assert.NotEmpty(t, out.String())
}
