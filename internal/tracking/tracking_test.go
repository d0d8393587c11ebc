package tracking

import (
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	s, err := OpenSQLite(path, NewRun("default"))
	require.NoError(t, err)
	defer s.Close()
	assert.NotEmpty(t, s.RunID())

	require.NoError(t, s.Config(map[string]interface{}{"embed_dim": 50, "learning_rate": 0.001}))
	require.NoError(t, s.Config(map[string]interface{}{"embed_dim": 100}))
	require.NoError(t, s.Log(0, map[string]interface{}{"valid_mrr": 0.1, "valid_mr": 30.0, "train_loss": 4.2}))
	require.NoError(t, s.Log(50, map[string]interface{}{"valid_mrr": 0.2, "note": "ok"}))

	points, err := s.History("valid_mrr")
	require.NoError(t, err)
	assert.Equal(t, []Point{{0, 0.1}, {50, 0.2}}, points)

	var dim string
	require.NoError(t, s.db.QueryRow(`SELECT value FROM config WHERE run_id = ? AND key = 'embed_dim'`, s.RunID()).Scan(&dim))
	assert.Equal(t, "100", dim)

	var note string
	require.NoError(t, s.db.QueryRow(`SELECT text FROM metrics WHERE key = 'note'`).Scan(&note))
	assert.Equal(t, "ok", note)

	var entity, group string
	require.NoError(t, s.db.QueryRow(`SELECT entity, grp FROM runs WHERE id = ?`, s.RunID()).Scan(&entity, &group))
	assert.Equal(t, "zhapacfp_team", entity)
	assert.Equal(t, "ppi", group)
}

func TestSQLiteRunsShareDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	a, err := OpenSQLite(path, NewRun("a"))
	require.NoError(t, err)
	require.NoError(t, a.Close())

	b, err := OpenSQLite(path, NewRun("b"))
	require.NoError(t, err)
	defer b.Close()

	var n int
	require.NoError(t, b.db.QueryRow(`SELECT COUNT(*) FROM runs`).Scan(&n))
	assert.Equal(t, 2, n)
}

func TestLogTracker(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	tr, err := Open("log", "", NewRun("default"), zap.New(core))
	require.NoError(t, err)

	require.NoError(t, tr.Config(map[string]interface{}{"embed_dim": 50}))
	require.NoError(t, tr.Log(100, map[string]interface{}{"valid_mrr": 0.25}))

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "run config", entries[0].Message)
	fields := entries[1].ContextMap()
	assert.EqualValues(t, 100, fields["step"])
	assert.Equal(t, 0.25, fields["valid_mrr"])
	assert.Equal(t, "default", fields["run"])
}

func TestOpen(t *testing.T) {
	tr, err := Open("none", "", NewRun("x"), zap.NewNop())
	require.NoError(t, err)
	assert.NoError(t, tr.Log(0, map[string]interface{}{"a": 1}))
	assert.NoError(t, tr.Close())

	_, err = Open("wandb", "", NewRun("x"), zap.NewNop())
	assert.Equal(t, ErrUnknownTracker, errors.Cause(err))
}
