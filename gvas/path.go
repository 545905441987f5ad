package gvas

import (
	"fmt"
	"strconv"
	"strings"

	"gvas-edit/memory"
)

// Segment addresses a child: a property or map key by name, or an array,
// set or map element by index.
type Segment struct {
	Name    string
	Index   int
	IsIndex bool
}

func Name(name string) Segment { return Segment{Name: name} }
func Index(i int) Segment      { return Segment{Index: i, IsIndex: true} }

type Path []Segment

// ParsePath parses the dotted form used by the CLI, e.g.
// "Inventory.Items[2].Count".
func ParsePath(s string) (Path, error) {
	var path Path
	for _, part := range strings.Split(s, ".") {
		name := part
		var indexes []int
		if i := strings.IndexByte(part, '['); i >= 0 {
			name = part[:i]
			rest := part[i:]
			for rest != "" {
				end := strings.IndexByte(rest, ']')
				if rest[0] != '[' || end < 0 {
					return nil, fmt.Errorf("invalid path segment %q", part)
				}
				n, err := strconv.Atoi(rest[1:end])
				if err != nil || n < 0 {
					return nil, fmt.Errorf("invalid index in %q", part)
				}
				indexes = append(indexes, n)
				rest = rest[end+1:]
			}
		}
		if name == "" && len(indexes) == 0 {
			return nil, fmt.Errorf("empty segment in path %q", s)
		}
		if name != "" {
			path = append(path, Name(name))
		}
		for _, n := range indexes {
			path = append(path, Index(n))
		}
	}
	return path, nil
}

func (p Path) String() string {
	var b strings.Builder
	for i, seg := range p {
		if seg.IsIndex {
			fmt.Fprintf(&b, "[%d]", seg.Index)
			continue
		}
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(seg.Name)
	}
	return b.String()
}

// slot is a resolved location in the tree.
type slot struct {
	value   Value
	replace func(Value)
	// elementOf is set when the slot is an element of an array of structs.
	elementOf *ArrayProperty
}

func pathError(kind error, p Path, depth int, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", kind, p[:depth+1].String(), fmt.Sprintf(format, args...))
}

func (sf *SaveFile) resolve(p Path) (slot, error) {
	if len(p) == 0 {
		return slot{}, fmt.Errorf("%w: empty path", ErrPathNotFound)
	}
	if p[0].IsIndex {
		return slot{}, pathError(ErrPathNotFound, p, 0, "top-level properties are addressed by name")
	}
	current, err := lookupField(sf.Properties, p, 0)
	if err != nil {
		return slot{}, err
	}
	for depth := 1; depth < len(p); depth++ {
		current, err = child(current.value, p, depth)
		if err != nil {
			return slot{}, err
		}
	}
	return current, nil
}

func lookupField(props *PropertyMap, p Path, depth int) (slot, error) {
	property, ok := props.Lookup(p[depth].Name, 0)
	if !ok {
		return slot{}, pathError(ErrPathNotFound, p, depth, "no such property")
	}
	return slot{value: property.Value, replace: func(v Value) { property.Value = v }}, nil
}

func child(parent Value, p Path, depth int) (slot, error) {
	seg := p[depth]
	switch parent := parent.(type) {
	case *StructProperty:
		if seg.IsIndex || parent.Fields == nil {
			return slot{}, pathError(ErrPathNotFound, p, depth, "%s %s has no fields", parent.TypeName(), parent.Type)
		}
		return lookupField(parent.Fields, p, depth)

	case *ArrayProperty:
		if !seg.IsIndex || seg.Index >= len(parent.Elements) {
			return slot{}, pathError(ErrPathNotFound, p, depth, "array has %d elements", len(parent.Elements))
		}
		i := seg.Index
		s := slot{value: parent.Elements[i], replace: func(v Value) { parent.Elements[i] = v }}
		if parent.ElementType == "StructProperty" {
			s.elementOf = parent
		}
		return s, nil

	case *SetProperty:
		if !seg.IsIndex || seg.Index >= len(parent.Elements) {
			return slot{}, pathError(ErrPathNotFound, p, depth, "set has %d elements", len(parent.Elements))
		}
		i := seg.Index
		return slot{value: parent.Elements[i], replace: func(v Value) { parent.Elements[i] = v }}, nil

	case *MapProperty:
		i := -1
		if seg.IsIndex {
			if seg.Index < len(parent.Entries) {
				i = seg.Index
			}
		} else {
			for j, entry := range parent.Entries {
				if key, ok := stringKey(entry.Key); ok && key == seg.Name {
					i = j
					break
				}
			}
		}
		if i < 0 {
			return slot{}, pathError(ErrPathNotFound, p, depth, "no such map entry")
		}
		return slot{value: parent.Entries[i].Value, replace: func(v Value) { parent.Entries[i].Value = v }}, nil
	}
	return slot{}, pathError(ErrPathNotFound, p, depth, "%s has no children", typeNameOf(parent))
}

// Get returns the value at path.
func (sf *SaveFile) Get(p Path) (Value, bool) {
	s, err := sf.resolve(p)
	if err != nil {
		return nil, false
	}
	return s.value, true
}

// Set replaces the value at path. The replacement must have the type of the
// value it displaces; on error the tree is left unchanged. Replacing a
// struct with a different struct type or guid is allowed but recorded as a
// diagnostic, since the engine may no longer load the file.
func (sf *SaveFile) Set(p Path, v Value) error {
	s, err := sf.resolve(p)
	if err != nil {
		return err
	}
	if v == nil {
		return fmt.Errorf("%w: %s: nil value", ErrTypeMismatch, p)
	}
	if v.TypeName() != s.value.TypeName() {
		return fmt.Errorf("%w: %s: %s cannot replace %s", ErrTypeMismatch, p, v.TypeName(), s.value.TypeName())
	}
	if err := sf.checkEncodable(p, v); err != nil {
		return err
	}

	if next, ok := v.(*StructProperty); ok {
		if s.elementOf != nil && s.elementOf.Struct != nil && next.Type != s.elementOf.Struct.StructType {
			return fmt.Errorf("%w: %s: struct %s in an array of %s", ErrTypeMismatch, p, next.Type, s.elementOf.Struct.StructType)
		}
		if prev, ok := s.value.(*StructProperty); ok && (prev.Type != next.Type || prev.Guid != next.Guid) {
			sf.Diagnostics = append(sf.Diagnostics, Diagnostic{
				Kind: ErrStructChanged,
				Path: p.String(),
				Type: next.Type,
				Err:  fmt.Errorf("struct %s (%s) replaced by %s (%s)", prev.Type, prev.Guid, next.Type, next.Guid),
			})
		}
	}

	s.replace(v)
	return nil
}

// checkEncodable encodes v into a scratch buffer so a value the encoder
// would refuse never enters the tree.
func (sf *SaveFile) checkEncodable(p Path, v Value) error {
	if _, ok := v.(OpaqueProperty); ok {
		return nil
	}
	name := p[len(p)-1].Name
	e := encoder{lwc: sf.LargeWorldCoordinates()}
	if err := e.writeValue(memory.NewWriter(), v, name); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrTypeMismatch, p, err)
	}
	return nil
}
