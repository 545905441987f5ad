package gvas

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gvas-edit/ue"
)

func TestSessionBeforeOpen(t *testing.T) {
	s := NewSession(quiet())

	_, ok := s.Get(Path{Name("Score")})
	assert.False(t, ok)
	assert.ErrorIs(t, s.Set(Path{Name("Score")}, IntProperty(1)), ErrNotOpen)
	_, err := s.Write()
	assert.ErrorIs(t, err, ErrNotOpen)
	assert.Nil(t, s.Snapshot())
	assert.Nil(t, s.Properties())
}

func TestSessionEdits(t *testing.T) {
	s := NewSession(quiet())
	require.NoError(t, s.Open(context.Background(), saveFixture(intProp("Score", 10))))

	require.NoError(t, s.Set(Path{Name("Score")}, IntProperty(99)))
	out, err := s.Write()
	require.NoError(t, err)
	assert.Equal(t, saveFixture(intProp("Score", 99)), out)

	require.Len(t, s.Properties(), 1)
	assert.Equal(t, "Score", s.Properties()[0].Name)
}

func TestSessionFailedOpenKeepsFile(t *testing.T) {
	s := NewSession(quiet())
	require.NoError(t, s.Open(context.Background(), saveFixture(intProp("Score", 10))))

	assert.ErrorIs(t, s.Open(context.Background(), []byte("junk")), ErrMalformedHeader)
	score, ok := s.Get(Path{Name("Score")})
	require.True(t, ok)
	assert.Equal(t, IntProperty(10), score)
}

func TestSessionReturnsCopies(t *testing.T) {
	s := NewSession(quiet())
	require.NoError(t, s.Open(context.Background(), richFixture()))

	stats, ok := s.Get(Path{Name("Stats")})
	require.True(t, ok)
	stats.(*StructProperty).Fields.Set("Kills", IntProperty(1000))

	snapshot := s.Snapshot()
	require.NoError(t, snapshot.Set(Path{Name("Score")}, IntProperty(0)))

	kills, _ := s.Get(Path{Name("Stats"), Name("Kills")})
	assert.Equal(t, IntProperty(4), kills)
	score, _ := s.Get(Path{Name("Score")})
	assert.Equal(t, IntProperty(10), score)
}

func TestSessionStructSwapWarns(t *testing.T) {
	s := NewSession(quiet())
	require.NoError(t, s.Open(context.Background(), richFixture()))

	err := s.Set(Path{Name("Position")}, &StructProperty{Type: "Rotator", Intrinsic: &ue.Rotator{}})
	require.NoError(t, err)
	diags := s.Diagnostics()
	require.Len(t, diags, 1)
	assert.ErrorIs(t, diags[0], ErrStructChanged)
}

func TestSessionConcurrentAccess(t *testing.T) {
	s := NewSession(quiet())
	require.NoError(t, s.Open(context.Background(), saveFixture(intProp("Score", 0))))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, s.Set(Path{Name("Score")}, IntProperty(i)))
		}(i)
		go func() {
			defer wg.Done()
			_, err := s.Write()
			assert.NoError(t, err)
			_, ok := s.Get(Path{Name("Score")})
			assert.True(t, ok)
		}()
	}
	wg.Wait()

	out, err := s.Write()
	require.NoError(t, err)
	back := mustRead(t, out)
	score, _ := back.Properties.Get("Score")
	assert.IsType(t, IntProperty(0), score)
}
