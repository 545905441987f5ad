package gvas

import "gvas-edit/ue"

// Property is one named entry of a property stream. ArrayIndex is non-zero
// only for elements of fixed-size C arrays, which repeat the same name.
type Property struct {
	Name       string
	ArrayIndex int32
	Guid       *ue.Guid
	Value      Value
	// Tag is set when the name or a type name was stored in a form
	// NewFString would not pick.
	Tag *TagStrings
}

type propertyKey struct {
	name  string
	index int32
}

// PropertyMap is an insertion-ordered property stream. Keys (name plus
// array index) are unique; streams are order sensitive so the order is
// part of the value.
type PropertyMap struct {
	props      []Property
	index      map[propertyKey]int
	terminator *ue.FString
}

func NewPropertyMap() *PropertyMap {
	return &PropertyMap{index: make(map[propertyKey]int)}
}

func (m *PropertyMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.props)
}

// At returns the i-th property in stream order.
func (m *PropertyMap) At(i int) Property {
	return m.props[i]
}

// Get returns the value stored under name at array index 0.
func (m *PropertyMap) Get(name string) (Value, bool) {
	p, ok := m.Lookup(name, 0)
	if !ok {
		return nil, false
	}
	return p.Value, true
}

func (m *PropertyMap) Lookup(name string, arrayIndex int32) (*Property, bool) {
	if m == nil {
		return nil, false
	}
	i, ok := m.index[propertyKey{name, arrayIndex}]
	if !ok {
		return nil, false
	}
	return &m.props[i], true
}

// Set replaces the value stored under name in place, or appends a new
// property when the name is absent.
func (m *PropertyMap) Set(name string, v Value) {
	if p, ok := m.Lookup(name, 0); ok {
		p.Value = v
		return
	}
	m.Append(Property{Name: name, Value: v})
}

// Append adds p at the end of the stream. A property with the same key is
// replaced where it stands.
func (m *PropertyMap) Append(p Property) {
	if m.index == nil {
		m.index = make(map[propertyKey]int)
	}
	key := propertyKey{p.Name, p.ArrayIndex}
	if i, ok := m.index[key]; ok {
		m.props[i] = p
		return
	}
	m.index[key] = len(m.props)
	m.props = append(m.props, p)
}

func (m *PropertyMap) Delete(name string) bool {
	if m == nil {
		return false
	}
	i, ok := m.index[propertyKey{name, 0}]
	if !ok {
		return false
	}
	m.props = append(m.props[:i], m.props[i+1:]...)
	m.reindex()
	return true
}

func (m *PropertyMap) reindex() {
	m.index = make(map[propertyKey]int, len(m.props))
	for i, p := range m.props {
		m.index[propertyKey{p.Name, p.ArrayIndex}] = i
	}
}

// Names returns property names in stream order.
func (m *PropertyMap) Names() []string {
	names := make([]string, 0, m.Len())
	for i := 0; i < m.Len(); i++ {
		names = append(names, m.props[i].Name)
	}
	return names
}

// All returns a copy of the properties in stream order.
func (m *PropertyMap) All() []Property {
	if m == nil {
		return nil
	}
	return append([]Property(nil), m.props...)
}

func (m *PropertyMap) Clone() *PropertyMap {
	c := NewPropertyMap()
	for i := 0; i < m.Len(); i++ {
		p := m.props[i]
		if p.Guid != nil {
			guid := *p.Guid
			p.Guid = &guid
		}
		p.Value = CloneValue(p.Value)
		p.Tag = p.Tag.Clone()
		c.Append(p)
	}
	if m != nil {
		c.terminator = cloneString(m.terminator)
	}
	return c
}

// Terminator returns the stored form of the closing "None" when it was not
// the usual narrow string.
func (m *PropertyMap) Terminator() *ue.FString {
	if m == nil {
		return nil
	}
	return m.terminator
}

func (m *PropertyMap) SetTerminator(s *ue.FString) {
	m.terminator = s
}
