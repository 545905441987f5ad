package gvas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gvas-edit/ue"
)

func TestParsePath(t *testing.T) {
	p, err := ParsePath("Stats.Items[1].Count")
	require.NoError(t, err)
	assert.Equal(t, Path{Name("Stats"), Name("Items"), Index(1), Name("Count")}, p)
	assert.Equal(t, "Stats.Items[1].Count", p.String())

	p, err = ParsePath("Grid[2][3]")
	require.NoError(t, err)
	assert.Equal(t, Path{Name("Grid"), Index(2), Index(3)}, p)

	for _, bad := range []string{"", "A..B", "A[x]", "A[1", "A[-1]"} {
		_, err := ParsePath(bad)
		assert.Error(t, err, bad)
	}
}

func TestGetMissingPath(t *testing.T) {
	sf := mustRead(t, richFixture())
	for _, p := range []Path{
		nil,
		{Name("Nope")},
		{Index(0)},
		{Name("Score"), Name("Inner")},
		{Name("Stats"), Name("Items"), Index(9)},
		{Name("Counters"), Name("draws")},
		{Name("Stats"), Index(0)},
	} {
		_, ok := sf.Get(p)
		assert.False(t, ok, p.String())
	}
}

func TestGetMapAndSetEntries(t *testing.T) {
	sf := mustRead(t, richFixture())

	wins, ok := sf.Get(Path{Name("Counters"), Name("wins")})
	require.True(t, ok)
	assert.Equal(t, IntProperty(7), wins)

	byIndex, ok := sf.Get(Path{Name("Counters"), Index(1)})
	require.True(t, ok)
	assert.Equal(t, IntProperty(2), byIndex)

	cave, ok := sf.Get(Path{Name("Visited"), Index(1)})
	require.True(t, ok)
	assert.Equal(t, NameProperty(ue.NewFString("Cave")), cave)
}

func TestSetErrorsLeaveTreeUnchanged(t *testing.T) {
	data := richFixture()
	sf := mustRead(t, data)

	err := sf.Set(Path{Name("Missing")}, IntProperty(1))
	assert.ErrorIs(t, err, ErrPathNotFound)

	err = sf.Set(Path{Name("Score")}, StrProperty(ue.NewFString("ten")))
	assert.ErrorIs(t, err, ErrTypeMismatch)

	err = sf.Set(Path{Name("Score")}, nil)
	assert.ErrorIs(t, err, ErrTypeMismatch)

	other := &StructProperty{Type: "Weapon", Fields: NewPropertyMap()}
	err = sf.Set(Path{Name("Stats"), Name("Items"), Index(0)}, other)
	assert.ErrorIs(t, err, ErrTypeMismatch)

	assert.Empty(t, sf.Diagnostics)
	assert.Equal(t, data, mustWrite(t, sf))
}

func TestSetNestedValues(t *testing.T) {
	sf := mustRead(t, richFixture())

	require.NoError(t, sf.Set(Path{Name("Counters"), Name("wins")}, IntProperty(8)))
	require.NoError(t, sf.Set(Path{Name("Unlocked"), Index(2)}, IntProperty(30)))

	back := mustRead(t, mustWrite(t, sf))
	wins, _ := back.Get(Path{Name("Counters"), Name("wins")})
	assert.Equal(t, IntProperty(8), wins)
	third, _ := back.Get(Path{Name("Unlocked"), Index(2)})
	assert.Equal(t, IntProperty(30), third)
}

func TestStructSwapIsRecorded(t *testing.T) {
	sf := mustRead(t, richFixture())
	swapped := &StructProperty{Type: "Vector", Guid: ue.Guid{1}, Intrinsic: &ue.Vector{X: 9}}

	require.NoError(t, sf.Set(Path{Name("Position")}, swapped))
	require.Len(t, sf.Diagnostics, 1)
	assert.ErrorIs(t, sf.Diagnostics[0], ErrStructChanged)
	assert.Equal(t, "Position", sf.Diagnostics[0].Path)

	value, _ := sf.Get(Path{Name("Position")})
	assert.Same(t, swapped, value)
}

func TestSetRejectsValuesTheEncoderRefuses(t *testing.T) {
	data := richFixture()
	sf := mustRead(t, data)

	for name, tc := range map[string]struct {
		path  Path
		value Value
	}{
		"array element type": {
			Path{Name("Unlocked")},
			&ArrayProperty{ElementType: "IntProperty", Elements: []Value{StrProperty(ue.NewFString("x"))}},
		},
		"nil set element": {
			Path{Name("Visited")},
			&SetProperty{ElementType: "NameProperty", Elements: []Value{nil}},
		},
		"map value type": {
			Path{Name("Counters")},
			&MapProperty{KeyType: "StrProperty", ValueType: "IntProperty", Entries: []MapEntry{
				{Key: StrProperty(ue.NewFString("wins")), Value: FloatProperty(1)},
			}},
		},
		"map removed key": {
			Path{Name("Counters")},
			&MapProperty{KeyType: "StrProperty", ValueType: "IntProperty", Removed: []Value{IntProperty(1)}},
		},
		"nested field without value": {
			Path{Name("Stats")},
			&StructProperty{Type: "PlayerStats", Fields: func() *PropertyMap {
				m := NewPropertyMap()
				m.Append(Property{Name: "Kills"})
				return m
			}()},
		},
	} {
		err := sf.Set(tc.path, tc.value)
		assert.ErrorIs(t, err, ErrTypeMismatch, name)
	}

	assert.Empty(t, sf.Diagnostics)
	assert.Equal(t, data, mustWrite(t, sf))
}
