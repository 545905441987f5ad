package gvas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPropertyMapKeepsInsertionOrder(t *testing.T) {
	m := NewPropertyMap()
	m.Set("B", IntProperty(1))
	m.Set("A", IntProperty(2))
	m.Set("B", IntProperty(3))
	assert.Equal(t, []string{"B", "A"}, m.Names())

	b, ok := m.Get("B")
	require.True(t, ok)
	assert.Equal(t, IntProperty(3), b)

	assert.True(t, m.Delete("B"))
	assert.False(t, m.Delete("B"))
	assert.Equal(t, []string{"A"}, m.Names())
	a, ok := m.Get("A")
	require.True(t, ok)
	assert.Equal(t, IntProperty(2), a)
}

func TestPropertyMapArrayIndexIsPartOfKey(t *testing.T) {
	m := NewPropertyMap()
	m.Append(Property{Name: "Slot", ArrayIndex: 0, Value: IntProperty(1)})
	m.Append(Property{Name: "Slot", ArrayIndex: 1, Value: IntProperty(2)})
	assert.Equal(t, 2, m.Len())

	p, ok := m.Lookup("Slot", 1)
	require.True(t, ok)
	assert.Equal(t, IntProperty(2), p.Value)
}

func TestNilPropertyMap(t *testing.T) {
	var m *PropertyMap
	assert.Equal(t, 0, m.Len())
	_, ok := m.Get("A")
	assert.False(t, ok)
	assert.Nil(t, m.All())
	assert.False(t, m.Delete("A"))
	assert.Nil(t, m.Terminator())
}

func TestCloneValueIsDeep(t *testing.T) {
	inner := NewPropertyMap()
	inner.Set("X", IntProperty(1))
	original := &MapProperty{
		KeyType:   "IntProperty",
		ValueType: "StructProperty",
		Entries:   []MapEntry{{Key: IntProperty(1), Value: &StructProperty{Type: "Thing", Fields: inner}}},
	}
	c := CloneValue(original).(*MapProperty)
	assert.Equal(t, original, c)

	c.Entries[0].Value.(*StructProperty).Fields.Set("X", IntProperty(2))
	x, _ := inner.Get("X")
	assert.Equal(t, IntProperty(1), x)
}
