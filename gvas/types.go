package gvas

import (
	"gvas-edit/ue"
)

// Value is one decoded property payload. The set of implementations is
// closed; TypeName returns the type name written in front of the payload.
type Value interface {
	TypeName() string
	isValue()
}

type IntProperty int32
type Int8Property int8
type Int16Property int16
type Int64Property int64
type UInt16Property uint16
type UInt32Property uint32
type UInt64Property uint64
type FloatProperty float32
type DoubleProperty float64
type BoolProperty bool

func (IntProperty) TypeName() string    { return "IntProperty" }
func (Int8Property) TypeName() string   { return "Int8Property" }
func (Int16Property) TypeName() string  { return "Int16Property" }
func (Int64Property) TypeName() string  { return "Int64Property" }
func (UInt16Property) TypeName() string { return "UInt16Property" }
func (UInt32Property) TypeName() string { return "UInt32Property" }
func (UInt64Property) TypeName() string { return "UInt64Property" }
func (FloatProperty) TypeName() string  { return "FloatProperty" }
func (DoubleProperty) TypeName() string { return "DoubleProperty" }
func (BoolProperty) TypeName() string   { return "BoolProperty" }

type StrProperty ue.FString
type NameProperty ue.FString

// ObjectProperty is an object reference, kept as its path string.
type ObjectProperty ue.FString
type SoftObjectProperty ue.FString

func (StrProperty) TypeName() string        { return "StrProperty" }
func (NameProperty) TypeName() string       { return "NameProperty" }
func (ObjectProperty) TypeName() string     { return "ObjectProperty" }
func (SoftObjectProperty) TypeName() string { return "SoftObjectProperty" }

// ByteProperty holds either a raw byte or, for enum-backed bytes, the
// enum value name.
type ByteProperty struct {
	Enum  string
	Byte  uint8
	Name  ue.FString
	Named bool
}

func (ByteProperty) TypeName() string { return "ByteProperty" }

type EnumProperty struct {
	EnumType string
	Value    ue.FString
}

func (EnumProperty) TypeName() string { return "EnumProperty" }

const (
	TextHistoryNone int8 = -1
	TextHistoryBase int8 = 0
)

// TextProperty is localized text. Base history carries namespace, key and
// source string; None history an optional culture invariant string. Other
// history types keep their bytes in Raw.
type TextProperty struct {
	Flags        uint32
	HistoryType  int8
	Namespace    ue.FString
	Key          ue.FString
	Source       ue.FString
	HasInvariant bool
	Invariant    ue.FString
	Raw          []byte
}

func (TextProperty) TypeName() string { return "TextProperty" }

// StructProperty is either an engine struct with a fixed layout
// (Intrinsic) or a nested property stream (Fields).
type StructProperty struct {
	Type      string
	Guid      ue.Guid
	Fields    *PropertyMap
	Intrinsic ue.Intrinsic
}

func (*StructProperty) TypeName() string { return "StructProperty" }

// ArrayStructHeader is the inner tag that precedes the elements of an
// array of structs.
type ArrayStructHeader struct {
	Name         string
	StructType   string
	Guid         ue.Guid
	ArrayIndex   int32
	PropertyGuid *ue.Guid
	Tag          *TagStrings
}

// TagStrings keeps the stored form of tag names and type names that
// NewFString would write differently, such as an ASCII name stored as
// UTF-16 or a null type name. Header holds the type names of the tag
// header in stream order. A kept string is only used while its text still
// matches the value being written.
type TagStrings struct {
	Name   *ue.FString
	Type   *ue.FString
	Header []*ue.FString
}

// newTagStrings returns nil when every string uses its inferred form.
func newTagStrings(name, typ ue.FString, header ...ue.FString) *TagStrings {
	t := &TagStrings{Name: keepString(name), Type: keepString(typ)}
	kept := t.Name != nil || t.Type != nil
	for _, h := range header {
		k := keepString(h)
		kept = kept || k != nil
		t.Header = append(t.Header, k)
	}
	if !kept {
		return nil
	}
	return t
}

func keepString(s ue.FString) *ue.FString {
	if s.Inferred() {
		return nil
	}
	return &s
}

func (t *TagStrings) name() *ue.FString {
	if t == nil {
		return nil
	}
	return t.Name
}

func (t *TagStrings) typ() *ue.FString {
	if t == nil {
		return nil
	}
	return t.Type
}

func (t *TagStrings) header(i int) *ue.FString {
	if t == nil || i >= len(t.Header) {
		return nil
	}
	return t.Header[i]
}

// Clone returns a deep copy of t.
func (t *TagStrings) Clone() *TagStrings {
	if t == nil {
		return nil
	}
	c := &TagStrings{Name: cloneString(t.Name), Type: cloneString(t.Type)}
	for _, h := range t.Header {
		c.Header = append(c.Header, cloneString(h))
	}
	return c
}

func cloneString(s *ue.FString) *ue.FString {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

// spell returns the kept form of text when there is one.
func spell(kept *ue.FString, text string) ue.FString {
	if kept != nil && kept.Value == text {
		return *kept
	}
	return ue.NewFString(text)
}

type ArrayProperty struct {
	ElementType string
	Elements    []Value
	// Struct is set for arrays of StructProperty.
	Struct *ArrayStructHeader
}

func (*ArrayProperty) TypeName() string { return "ArrayProperty" }

type SetProperty struct {
	ElementType string
	Removed     []Value
	Elements    []Value
}

func (*SetProperty) TypeName() string { return "SetProperty" }

type MapEntry struct {
	Key   Value
	Value Value
}

type MapProperty struct {
	KeyType   string
	ValueType string
	Removed   []Value
	Entries   []MapEntry
}

func (*MapProperty) TypeName() string { return "MapProperty" }

// OpaqueProperty keeps a payload that was not decoded: either its type is
// not registered or its structure did not match the declared length.
// Header holds the bytes between the tag's size fields and the payload.
type OpaqueProperty struct {
	Type   string
	Header []byte
	Raw    []byte
}

func (o OpaqueProperty) TypeName() string { return o.Type }

func (IntProperty) isValue()        {}
func (Int8Property) isValue()       {}
func (Int16Property) isValue()      {}
func (Int64Property) isValue()      {}
func (UInt16Property) isValue()     {}
func (UInt32Property) isValue()     {}
func (UInt64Property) isValue()     {}
func (FloatProperty) isValue()      {}
func (DoubleProperty) isValue()     {}
func (BoolProperty) isValue()       {}
func (StrProperty) isValue()        {}
func (NameProperty) isValue()       {}
func (ObjectProperty) isValue()     {}
func (SoftObjectProperty) isValue() {}
func (ByteProperty) isValue()       {}
func (EnumProperty) isValue()       {}
func (TextProperty) isValue()       {}
func (*StructProperty) isValue()    {}
func (*ArrayProperty) isValue()     {}
func (*SetProperty) isValue()       {}
func (*MapProperty) isValue()       {}
func (OpaqueProperty) isValue()     {}

// propertyTypes lists the type names the decoder understands. Anything
// else is read as an OpaqueProperty.
var propertyTypes = map[string]func() Value{
	"IntProperty":        func() Value { return IntProperty(0) },
	"Int8Property":       func() Value { return Int8Property(0) },
	"Int16Property":      func() Value { return Int16Property(0) },
	"Int64Property":      func() Value { return Int64Property(0) },
	"UInt16Property":     func() Value { return UInt16Property(0) },
	"UInt32Property":     func() Value { return UInt32Property(0) },
	"UInt64Property":     func() Value { return UInt64Property(0) },
	"FloatProperty":      func() Value { return FloatProperty(0) },
	"DoubleProperty":     func() Value { return DoubleProperty(0) },
	"BoolProperty":       func() Value { return BoolProperty(false) },
	"StrProperty":        func() Value { return StrProperty{} },
	"NameProperty":       func() Value { return NameProperty{} },
	"ObjectProperty":     func() Value { return ObjectProperty{} },
	"SoftObjectProperty": func() Value { return SoftObjectProperty{} },
	"ByteProperty":       func() Value { return ByteProperty{} },
	"EnumProperty":       func() Value { return EnumProperty{} },
	"TextProperty":       func() Value { return TextProperty{} },
	"StructProperty":     func() Value { return &StructProperty{Fields: NewPropertyMap()} },
	"ArrayProperty":      func() Value { return &ArrayProperty{} },
	"SetProperty":        func() Value { return &SetProperty{} },
	"MapProperty":        func() Value { return &MapProperty{} },
}

// Registered reports whether typeName is decoded structurally.
func Registered(typeName string) bool {
	_, ok := propertyTypes[typeName]
	return ok
}

// NewValue returns the zero value for a registered type name.
func NewValue(typeName string) (Value, bool) {
	ctor, ok := propertyTypes[typeName]
	if !ok {
		return nil, false
	}
	return ctor(), true
}

// CloneValue returns a deep copy of v.
func CloneValue(v Value) Value {
	switch v := v.(type) {
	case *StructProperty:
		c := &StructProperty{Type: v.Type, Guid: v.Guid}
		if v.Fields != nil {
			c.Fields = v.Fields.Clone()
		}
		if v.Intrinsic != nil {
			c.Intrinsic = v.Intrinsic.Clone()
		}
		return c
	case *ArrayProperty:
		c := &ArrayProperty{ElementType: v.ElementType, Elements: cloneValues(v.Elements)}
		if v.Struct != nil {
			header := *v.Struct
			if header.PropertyGuid != nil {
				guid := *header.PropertyGuid
				header.PropertyGuid = &guid
			}
			header.Tag = header.Tag.Clone()
			c.Struct = &header
		}
		return c
	case *SetProperty:
		return &SetProperty{ElementType: v.ElementType, Removed: cloneValues(v.Removed), Elements: cloneValues(v.Elements)}
	case *MapProperty:
		c := &MapProperty{KeyType: v.KeyType, ValueType: v.ValueType, Removed: cloneValues(v.Removed)}
		if v.Entries != nil {
			c.Entries = make([]MapEntry, len(v.Entries))
			for i, e := range v.Entries {
				c.Entries[i] = MapEntry{Key: CloneValue(e.Key), Value: CloneValue(e.Value)}
			}
		}
		return c
	case TextProperty:
		v.Raw = cloneBytes(v.Raw)
		return v
	case OpaqueProperty:
		v.Header = cloneBytes(v.Header)
		v.Raw = cloneBytes(v.Raw)
		return v
	default:
		return v
	}
}

func cloneValues(values []Value) []Value {
	if values == nil {
		return nil
	}
	out := make([]Value, len(values))
	for i, v := range values {
		out[i] = CloneValue(v)
	}
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}

// stringKey returns the text of string-like values, used to address map
// entries by key.
func stringKey(v Value) (string, bool) {
	switch v := v.(type) {
	case StrProperty:
		return v.Value, true
	case NameProperty:
		return v.Value, true
	case ObjectProperty:
		return v.Value, true
	case SoftObjectProperty:
		return v.Value, true
	case EnumProperty:
		return v.Value.Value, true
	case ByteProperty:
		if v.Named {
			return v.Name.Value, true
		}
	}
	return "", false
}
