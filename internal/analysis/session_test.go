package analysis

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionWiresOutputs(t *testing.T) {
	t.Parallel()

	s := newProject(t)
	s.Metrics.Enabled = true
	s.Metrics.Listen = "127.0.0.1:0"
	s.Metrics.Textfile = filepath.Join(s.Paths.Derived, "metrics", "majorvocal.prom")
	s.Output.SQLite.Enabled = true
	s.Output.SQLite.Path = filepath.Join(s.Paths.Derived, "majorvocal.db")

	ctx := context.Background()
	session, err := OpenSession(ctx, s)
	require.NoError(t, err)

	p := session.Pipeline(nil)
	require.NotNil(t, p.Store)
	require.NotNil(t, p.Metrics)
	p.Classifier = fakeBirdNET()
	p.Probe = false

	_, err = p.Infer(ctx)
	require.NoError(t, err)
	processed, err := p.Process(ctx)
	require.NoError(t, err)

	counts, err := p.Store.GetDailyCounts(ctx, processed.RunID)
	require.NoError(t, err)
	assert.Len(t, counts, 2)

	require.NoError(t, session.Close())

	textfile, err := os.ReadFile(s.Metrics.Textfile)
	require.NoError(t, err)
	assert.Contains(t, string(textfile), `majorvocal_files_processed_total{status="success"} 3`)
	assert.Contains(t, string(textfile), `majorvocal_records_total{kind="positive"} 3`)
	assert.Contains(t, string(textfile), "majorvocal_run_info")
}

func TestSessionWithoutOutputs(t *testing.T) {
	t.Parallel()

	s := newProject(t)
	session, err := OpenSession(context.Background(), s)
	require.NoError(t, err)

	p := session.Pipeline(nil)
	assert.Nil(t, p.Store)
	assert.Nil(t, p.Metrics)
	assert.True(t, p.Probe)
	assert.NoError(t, session.Close())
}
