// Package convert mirrors a decoded save as JSON and back. Every value is a
// tagged object so integer widths, string widths and opaque payloads
// survive the trip.
package convert

import (
	"errors"
	"fmt"

	json "github.com/goccy/go-json"

	"gvas-edit/gvas"
	"gvas-edit/ue"
)

var ErrUnknownType = errors.New("unknown value type")

type saveFileJSON struct {
	SaveGameVersion     uint32             `json:"save_game_version"`
	PackageVersionUE4   uint32             `json:"package_version_ue4"`
	PackageVersionUE5   uint32             `json:"package_version_ue5,omitempty"`
	EngineVersion       ue.EngineVersion   `json:"engine_version"`
	CustomVersionFormat uint32             `json:"custom_version_format"`
	CustomVersions      []ue.CustomVersion `json:"custom_versions,omitempty"`
	SaveGameClass       ue.FString         `json:"save_game_class"`
	Properties          []propertyJSON     `json:"properties"`
	Terminator          *ue.FString        `json:"terminator,omitempty"`
	Trailer             []byte             `json:"trailer,omitempty"`
}

type propertyJSON struct {
	Name       string          `json:"name"`
	ArrayIndex int32           `json:"array_index,omitempty"`
	Guid       *ue.Guid        `json:"property_guid,omitempty"`
	Tag        *tagStringsJSON `json:"tag,omitempty"`
	Value      json.RawMessage `json:"value"`
}

// tagStringsJSON mirrors gvas.TagStrings field for field, so the two
// convert into each other.
type tagStringsJSON struct {
	Name   *ue.FString   `json:"name,omitempty"`
	Type   *ue.FString   `json:"type,omitempty"`
	Header []*ue.FString `json:"header,omitempty"`
}

// valueJSON carries every field any value type uses; Type selects which
// ones are meaningful.
type valueJSON struct {
	Type   string          `json:"type"`
	Opaque bool            `json:"opaque,omitempty"`
	Value  json.RawMessage `json:"value,omitempty"`

	// ByteProperty, EnumProperty
	Enum string      `json:"enum,omitempty"`
	Name *ue.FString `json:"name,omitempty"`

	// TextProperty
	Flags     uint32      `json:"flags,omitempty"`
	History   int8        `json:"history,omitempty"`
	Namespace *ue.FString `json:"namespace,omitempty"`
	Key       *ue.FString `json:"key,omitempty"`
	Source    *ue.FString `json:"source,omitempty"`
	Invariant *ue.FString `json:"invariant,omitempty"`

	// StructProperty
	StructType string          `json:"struct_type,omitempty"`
	StructGuid *ue.Guid        `json:"struct_guid,omitempty"`
	Intrinsic  json.RawMessage `json:"intrinsic,omitempty"`
	Fields     []propertyJSON  `json:"fields,omitempty"`
	Terminator *ue.FString     `json:"terminator,omitempty"`

	// ArrayProperty, SetProperty, MapProperty
	ElementType string            `json:"element_type,omitempty"`
	KeyType     string            `json:"key_type,omitempty"`
	ValueType   string            `json:"value_type,omitempty"`
	Struct      *arrayStructJSON  `json:"struct,omitempty"`
	Elements    []json.RawMessage `json:"elements,omitempty"`
	Removed     []json.RawMessage `json:"removed,omitempty"`
	Entries     []mapEntryJSON    `json:"entries,omitempty"`

	// OpaqueProperty
	Header []byte `json:"header,omitempty"`
	Raw    []byte `json:"raw,omitempty"`
}

type arrayStructJSON struct {
	Name         string          `json:"name"`
	StructType   string          `json:"struct_type"`
	Guid         *ue.Guid        `json:"guid,omitempty"`
	ArrayIndex   int32           `json:"array_index,omitempty"`
	PropertyGuid *ue.Guid        `json:"property_guid,omitempty"`
	Tag          *tagStringsJSON `json:"tag,omitempty"`
}

type mapEntryJSON struct {
	Key   json.RawMessage `json:"key"`
	Value json.RawMessage `json:"value"`
}

// ToJSON renders the header and property tree. Diagnostics are not part of
// the mirror.
func ToJSON(sf *gvas.SaveFile) ([]byte, error) {
	out := saveFileJSON{
		SaveGameVersion:     sf.SaveGameVersion,
		PackageVersionUE4:   sf.PackageVersionUE4,
		PackageVersionUE5:   sf.PackageVersionUE5,
		EngineVersion:       sf.EngineVersion,
		CustomVersionFormat: sf.CustomVersionFormat,
		CustomVersions:      sf.CustomVersions,
		SaveGameClass:       sf.SaveGameClass,
		Terminator:          sf.Properties.Terminator(),
		Trailer:             sf.Trailer,
	}
	props, err := marshalProperties(sf.Properties)
	if err != nil {
		return nil, err
	}
	out.Properties = props
	return json.MarshalIndent(out, "", "  ")
}

// FromJSON rebuilds a SaveFile from the output of ToJSON.
func FromJSON(data []byte) (*gvas.SaveFile, error) {
	var in saveFileJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("FromJSON: %w", err)
	}
	props, err := unmarshalProperties(in.Properties)
	if err != nil {
		return nil, fmt.Errorf("FromJSON: %w", err)
	}
	props.SetTerminator(in.Terminator)
	return &gvas.SaveFile{
		SaveGameVersion:     in.SaveGameVersion,
		PackageVersionUE4:   in.PackageVersionUE4,
		PackageVersionUE5:   in.PackageVersionUE5,
		EngineVersion:       in.EngineVersion,
		CustomVersionFormat: in.CustomVersionFormat,
		CustomVersions:      nilIfEmpty(in.CustomVersions),
		SaveGameClass:       in.SaveGameClass,
		Properties:          props,
		Trailer:             nilIfEmpty(in.Trailer),
	}, nil
}

func marshalProperties(props *gvas.PropertyMap) ([]propertyJSON, error) {
	out := make([]propertyJSON, 0, props.Len())
	for _, p := range props.All() {
		value, err := MarshalValue(p.Value)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p.Name, err)
		}
		out = append(out, propertyJSON{
			Name:       p.Name,
			ArrayIndex: p.ArrayIndex,
			Guid:       p.Guid,
			Tag:        (*tagStringsJSON)(p.Tag),
			Value:      value,
		})
	}
	return out, nil
}

func unmarshalProperties(in []propertyJSON) (*gvas.PropertyMap, error) {
	props := gvas.NewPropertyMap()
	for _, p := range in {
		value, err := UnmarshalValue(p.Value)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p.Name, err)
		}
		props.Append(gvas.Property{
			Name:       p.Name,
			ArrayIndex: p.ArrayIndex,
			Guid:       p.Guid,
			Tag:        (*gvas.TagStrings)(p.Tag),
			Value:      value,
		})
	}
	return props, nil
}

// MarshalValue renders a single value as a tagged JSON object.
func MarshalValue(v gvas.Value) ([]byte, error) {
	if v == nil {
		return nil, errors.New("MarshalValue: nil value")
	}
	out := valueJSON{Type: v.TypeName()}

	var err error
	switch v := v.(type) {
	case gvas.IntProperty, gvas.Int8Property, gvas.Int16Property, gvas.Int64Property,
		gvas.UInt16Property, gvas.UInt32Property, gvas.UInt64Property,
		gvas.FloatProperty, gvas.DoubleProperty, gvas.BoolProperty:
		out.Value, err = json.Marshal(v)
	case gvas.StrProperty:
		out.Value, err = json.Marshal(ue.FString(v))
	case gvas.NameProperty:
		out.Value, err = json.Marshal(ue.FString(v))
	case gvas.ObjectProperty:
		out.Value, err = json.Marshal(ue.FString(v))
	case gvas.SoftObjectProperty:
		out.Value, err = json.Marshal(ue.FString(v))
	case gvas.ByteProperty:
		out.Enum = v.Enum
		if v.Named {
			name := v.Name
			out.Name = &name
		} else {
			out.Value, err = json.Marshal(v.Byte)
		}
	case gvas.EnumProperty:
		out.Enum = v.EnumType
		out.Value, err = json.Marshal(v.Value)
	case gvas.TextProperty:
		marshalText(&out, v)
	case *gvas.StructProperty:
		if err := marshalStruct(&out, v); err != nil {
			return nil, err
		}
	case *gvas.ArrayProperty:
		out.ElementType = v.ElementType
		if v.Struct != nil {
			out.Struct = &arrayStructJSON{
				Name:         v.Struct.Name,
				StructType:   v.Struct.StructType,
				Guid:         guidOrNil(v.Struct.Guid),
				ArrayIndex:   v.Struct.ArrayIndex,
				PropertyGuid: v.Struct.PropertyGuid,
				Tag:          (*tagStringsJSON)(v.Struct.Tag),
			}
		}
		elements, err := marshalValues(v.Elements)
		if err != nil {
			return nil, err
		}
		out.Elements = elements
	case *gvas.SetProperty:
		out.ElementType = v.ElementType
		if out.Removed, err = marshalValues(v.Removed); err != nil {
			return nil, err
		}
		if out.Elements, err = marshalValues(v.Elements); err != nil {
			return nil, err
		}
	case *gvas.MapProperty:
		out.KeyType = v.KeyType
		out.ValueType = v.ValueType
		if out.Removed, err = marshalValues(v.Removed); err != nil {
			return nil, err
		}
		for i, entry := range v.Entries {
			key, err := MarshalValue(entry.Key)
			if err != nil {
				return nil, fmt.Errorf("key %d: %w", i, err)
			}
			value, err := MarshalValue(entry.Value)
			if err != nil {
				return nil, fmt.Errorf("value %d: %w", i, err)
			}
			out.Entries = append(out.Entries, mapEntryJSON{Key: key, Value: value})
		}
	case gvas.OpaqueProperty:
		out.Opaque = true
		out.Header = v.Header
		out.Raw = v.Raw
	default:
		return nil, fmt.Errorf("MarshalValue: %w: %T", ErrUnknownType, v)
	}
	if err != nil {
		return nil, fmt.Errorf("MarshalValue %s: %w", out.Type, err)
	}
	return json.Marshal(out)
}

func marshalText(out *valueJSON, v gvas.TextProperty) {
	out.Flags = v.Flags
	out.History = v.HistoryType
	switch v.HistoryType {
	case gvas.TextHistoryBase:
		namespace, key, source := v.Namespace, v.Key, v.Source
		out.Namespace, out.Key, out.Source = &namespace, &key, &source
	case gvas.TextHistoryNone:
		if v.HasInvariant {
			invariant := v.Invariant
			out.Invariant = &invariant
		}
	default:
		out.Raw = v.Raw
	}
}

func marshalStruct(out *valueJSON, v *gvas.StructProperty) error {
	out.StructType = v.Type
	out.StructGuid = guidOrNil(v.Guid)
	if v.Intrinsic != nil {
		data, err := json.Marshal(v.Intrinsic)
		if err != nil {
			return fmt.Errorf("struct %s: %w", v.Type, err)
		}
		out.Intrinsic = data
		return nil
	}
	fields, err := marshalProperties(v.Fields)
	if err != nil {
		return fmt.Errorf("struct %s: %w", v.Type, err)
	}
	out.Fields = fields
	out.Terminator = v.Fields.Terminator()
	return nil
}

func marshalValues(values []gvas.Value) ([]json.RawMessage, error) {
	if len(values) == 0 {
		return nil, nil
	}
	out := make([]json.RawMessage, len(values))
	for i, v := range values {
		data, err := MarshalValue(v)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out[i] = data
	}
	return out, nil
}

// UnmarshalValue parses the output of MarshalValue.
func UnmarshalValue(data []byte) (gvas.Value, error) {
	var in valueJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("UnmarshalValue: %w", err)
	}
	if in.Opaque {
		return gvas.OpaqueProperty{Type: in.Type, Header: nilIfEmpty(in.Header), Raw: nilIfEmpty(in.Raw)}, nil
	}
	v, err := decodeValue(in)
	if err != nil {
		return nil, err
	}
	return v, nil
}

// decodeScalar reads the "value" field into its wire type, so 64-bit
// integers are read exactly.
func decodeScalar[T any](in valueJSON) (T, error) {
	var v T
	if err := json.Unmarshal(in.Value, &v); err != nil {
		return v, fmt.Errorf("%s: %w", in.Type, err)
	}
	return v, nil
}

func decodeValue(in valueJSON) (gvas.Value, error) {
	switch in.Type {
	case "IntProperty":
		v, err := decodeScalar[int32](in)
		return gvas.IntProperty(v), err
	case "Int8Property":
		v, err := decodeScalar[int8](in)
		return gvas.Int8Property(v), err
	case "Int16Property":
		v, err := decodeScalar[int16](in)
		return gvas.Int16Property(v), err
	case "Int64Property":
		v, err := decodeScalar[int64](in)
		return gvas.Int64Property(v), err
	case "UInt16Property":
		v, err := decodeScalar[uint16](in)
		return gvas.UInt16Property(v), err
	case "UInt32Property":
		v, err := decodeScalar[uint32](in)
		return gvas.UInt32Property(v), err
	case "UInt64Property":
		v, err := decodeScalar[uint64](in)
		return gvas.UInt64Property(v), err
	case "FloatProperty":
		v, err := decodeScalar[float32](in)
		return gvas.FloatProperty(v), err
	case "DoubleProperty":
		v, err := decodeScalar[float64](in)
		return gvas.DoubleProperty(v), err
	case "BoolProperty":
		v, err := decodeScalar[bool](in)
		return gvas.BoolProperty(v), err
	case "StrProperty":
		v, err := decodeScalar[ue.FString](in)
		return gvas.StrProperty(v), err
	case "NameProperty":
		v, err := decodeScalar[ue.FString](in)
		return gvas.NameProperty(v), err
	case "ObjectProperty":
		v, err := decodeScalar[ue.FString](in)
		return gvas.ObjectProperty(v), err
	case "SoftObjectProperty":
		v, err := decodeScalar[ue.FString](in)
		return gvas.SoftObjectProperty(v), err

	case "ByteProperty":
		result := gvas.ByteProperty{Enum: in.Enum}
		if in.Name != nil {
			result.Name = *in.Name
			result.Named = true
			return result, nil
		}
		b, err := decodeScalar[uint8](in)
		result.Byte = b
		return result, err

	case "EnumProperty":
		value, err := decodeScalar[ue.FString](in)
		return gvas.EnumProperty{EnumType: in.Enum, Value: value}, err

	case "TextProperty":
		return unmarshalText(in), nil

	case "StructProperty":
		return unmarshalStruct(in)

	case "ArrayProperty":
		result := &gvas.ArrayProperty{ElementType: in.ElementType}
		if in.Struct != nil {
			result.Struct = &gvas.ArrayStructHeader{
				Name:         in.Struct.Name,
				StructType:   in.Struct.StructType,
				Guid:         guidValue(in.Struct.Guid),
				ArrayIndex:   in.Struct.ArrayIndex,
				PropertyGuid: in.Struct.PropertyGuid,
				Tag:          (*gvas.TagStrings)(in.Struct.Tag),
			}
		}
		var err error
		if result.Elements, err = unmarshalValues(in.Elements); err != nil {
			return nil, fmt.Errorf("ArrayProperty: %w", err)
		}
		return result, nil

	case "SetProperty":
		result := &gvas.SetProperty{ElementType: in.ElementType}
		var err error
		if result.Removed, err = unmarshalValues(in.Removed); err != nil {
			return nil, fmt.Errorf("SetProperty: removed: %w", err)
		}
		if result.Elements, err = unmarshalValues(in.Elements); err != nil {
			return nil, fmt.Errorf("SetProperty: %w", err)
		}
		return result, nil

	case "MapProperty":
		result := &gvas.MapProperty{KeyType: in.KeyType, ValueType: in.ValueType}
		var err error
		if result.Removed, err = unmarshalValues(in.Removed); err != nil {
			return nil, fmt.Errorf("MapProperty: removed: %w", err)
		}
		for i, entry := range in.Entries {
			key, err := UnmarshalValue(entry.Key)
			if err != nil {
				return nil, fmt.Errorf("MapProperty: key %d: %w", i, err)
			}
			value, err := UnmarshalValue(entry.Value)
			if err != nil {
				return nil, fmt.Errorf("MapProperty: value %d: %w", i, err)
			}
			result.Entries = append(result.Entries, gvas.MapEntry{Key: key, Value: value})
		}
		return result, nil
	}
	return nil, fmt.Errorf("UnmarshalValue: %w: %q", ErrUnknownType, in.Type)
}

func unmarshalText(in valueJSON) gvas.TextProperty {
	result := gvas.TextProperty{Flags: in.Flags, HistoryType: in.History}
	switch in.History {
	case gvas.TextHistoryBase:
		result.Namespace = deref(in.Namespace)
		result.Key = deref(in.Key)
		result.Source = deref(in.Source)
	case gvas.TextHistoryNone:
		if in.Invariant != nil {
			result.HasInvariant = true
			result.Invariant = *in.Invariant
		}
	default:
		result.Raw = nilIfEmpty(in.Raw)
	}
	return result
}

func unmarshalStruct(in valueJSON) (*gvas.StructProperty, error) {
	result := &gvas.StructProperty{Type: in.StructType, Guid: guidValue(in.StructGuid)}
	if len(in.Intrinsic) > 0 {
		intrinsic, ok := ue.NewIntrinsic(in.StructType)
		if !ok {
			return nil, fmt.Errorf("StructProperty: %s has no fixed layout", in.StructType)
		}
		if err := json.Unmarshal(in.Intrinsic, intrinsic); err != nil {
			return nil, fmt.Errorf("StructProperty %s: %w", in.StructType, err)
		}
		result.Intrinsic = intrinsic
		return result, nil
	}
	fields, err := unmarshalProperties(in.Fields)
	if err != nil {
		return nil, fmt.Errorf("StructProperty %s: %w", in.StructType, err)
	}
	fields.SetTerminator(in.Terminator)
	result.Fields = fields
	return result, nil
}

func unmarshalValues(in []json.RawMessage) ([]gvas.Value, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make([]gvas.Value, len(in))
	for i, data := range in {
		v, err := UnmarshalValue(data)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

func guidOrNil(g ue.Guid) *ue.Guid {
	if g.IsZero() {
		return nil
	}
	return &g
}

func guidValue(g *ue.Guid) ue.Guid {
	if g == nil {
		return ue.Guid{}
	}
	return *g
}

func deref(s *ue.FString) ue.FString {
	if s == nil {
		return ue.FString{}
	}
	return *s
}

func nilIfEmpty[S ~[]E, E any](s S) S {
	if len(s) == 0 {
		return nil
	}
	return s
}
