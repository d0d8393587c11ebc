package checkpoint

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cnclabs/ontoem/internal/nn"
)

func TestPath(t *testing.T) {
	cases := []struct {
		dim, bs    int
		mm, lm, lr float64
		want       string
	}{
		{50, 300000, 0.1, 0.1, 0.001, "50_300000_0.1_0.1_0.001.pt"},
		{200, 512, 1, 0.5, 1e-05, "200_512_1.0_0.5_1e-05.pt"},
		{10, 1, 0.25, 0, 0.0001, "10_1_0.25_0.0_0.0001.pt"},
	}
	for _, c := range cases {
		got := Path("models", c.dim, c.bs, c.mm, c.lm, c.lr)
		assert.Equal(t, filepath.Join("models", c.want), got)
	}
}

func params(fill float64) []*nn.Param {
	a := nn.NewParam("a", 3, 2)
	b := nn.NewParam("b", 1, 4)
	a.Init(func() float64 { return fill })
	b.Init(func() float64 { return -fill })
	return []*nn.Param{a, b}
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "50_10_0.1_0.1_0.001.pt")

	saved := params(0.5)
	require.NoError(t, Save(path, saved))

	loaded := params(0)
	require.NoError(t, Load(path, loaded))
	for i := range saved {
		assert.Equal(t, saved[i].Value.RawMatrix().Data, loaded[i].Value.RawMatrix().Data)
	}

	// overwritten in place, no temporary files left behind
	require.NoError(t, Save(path, params(2)))
	require.NoError(t, Load(path, loaded))
	assert.Equal(t, 2.0, loaded[0].Row(2)[1])

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestLoadMissing(t *testing.T) {
	err := Load(filepath.Join(t.TempDir(), "none.pt"), params(0))
	assert.Equal(t, ErrNoCheckpoint, errors.Cause(err))
}

func TestLoadShapeMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.pt")
	require.NoError(t, Save(path, params(1)))

	wrong := []*nn.Param{nn.NewParam("a", 2, 2)}
	assert.Error(t, Load(path, wrong))

	unknown := []*nn.Param{nn.NewParam("c", 1, 1)}
	assert.Error(t, Load(path, unknown))
}

func TestLoadCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.pt")
	require.NoError(t, os.WriteFile(path, []byte("not a checkpoint"), 0644))
	assert.Error(t, Load(path, params(0)))
}
