package gvas

import (
	"fmt"

	"gvas-edit/memory"
	"gvas-edit/ue"
)

// encoder is the inverse of decoder. Sizes are measured by encoding each
// payload into a scratch writer before the tag that declares them.
type encoder struct {
	lwc bool
}

func (e *encoder) writeProperties(w *memory.Writer, props *PropertyMap) error {
	for i := 0; i < props.Len(); i++ {
		if err := e.writeProperty(w, props.At(i)); err != nil {
			return err
		}
	}
	return ue.WriteFString(w, spell(props.Terminator(), "None"))
}

func (e *encoder) writeProperty(w *memory.Writer, p Property) error {
	if p.Value == nil {
		return fmt.Errorf("writeProperty %s: nil value", p.Name)
	}
	if err := ue.WriteFString(w, spell(p.Tag.name(), p.Name)); err != nil {
		return fmt.Errorf("writeProperty %s: %w", p.Name, err)
	}
	if err := ue.WriteFString(w, spell(p.Tag.typ(), p.Value.TypeName())); err != nil {
		return fmt.Errorf("writeProperty %s: %w", p.Name, err)
	}

	if opaque, ok := p.Value.(OpaqueProperty); ok {
		memory.WriteInt(w, int32(len(opaque.Raw)))
		memory.WriteInt(w, p.ArrayIndex)
		w.WriteBytes(opaque.Header)
		w.WriteBytes(opaque.Raw)
		return nil
	}

	payload := memory.NewWriter()
	if err := e.writeValue(payload, p.Value, p.Name); err != nil {
		return fmt.Errorf("writeProperty %s: %w", p.Name, err)
	}
	memory.WriteInt(w, int32(payload.Len()))
	memory.WriteInt(w, p.ArrayIndex)
	if err := e.writeTagHeader(w, p.Value, p.Tag); err != nil {
		return fmt.Errorf("writeProperty %s: %w", p.Name, err)
	}
	writePropertyGuid(w, p.Guid)
	w.WriteBytes(payload.Bytes())
	return nil
}

func (e *encoder) writeTagHeader(w *memory.Writer, v Value, tags *TagStrings) error {
	switch v := v.(type) {
	case *StructProperty:
		if err := ue.WriteFString(w, spell(tags.header(0), v.Type)); err != nil {
			return err
		}
		ue.WriteGuid(w, v.Guid)
	case *ArrayProperty:
		return ue.WriteFString(w, spell(tags.header(0), v.ElementType))
	case *SetProperty:
		return ue.WriteFString(w, spell(tags.header(0), v.ElementType))
	case *MapProperty:
		if err := ue.WriteFString(w, spell(tags.header(0), v.KeyType)); err != nil {
			return err
		}
		return ue.WriteFString(w, spell(tags.header(1), v.ValueType))
	case EnumProperty:
		return ue.WriteFString(w, spell(tags.header(0), v.EnumType))
	case ByteProperty:
		enum := v.Enum
		if kept := tags.header(0); enum == "" && (kept == nil || kept.Value != "") {
			enum = "None"
		}
		return ue.WriteFString(w, spell(tags.header(0), enum))
	case BoolProperty:
		if v {
			memory.WriteInt(w, uint8(1))
		} else {
			memory.WriteInt(w, uint8(0))
		}
	}
	return nil
}

func writePropertyGuid(w *memory.Writer, guid *ue.Guid) {
	if guid == nil {
		memory.WriteInt(w, uint8(0))
		return
	}
	memory.WriteInt(w, uint8(1))
	ue.WriteGuid(w, *guid)
}

// writeValue writes the payload that follows a property tag.
func (e *encoder) writeValue(w *memory.Writer, v Value, name string) error {
	switch v := v.(type) {
	case BoolProperty:
		return nil
	case *ArrayProperty:
		return e.writeArrayProperty(w, v, name)
	case *SetProperty:
		if err := e.writeElements(w, v.ElementType, v.Removed); err != nil {
			return err
		}
		return e.writeElements(w, v.ElementType, v.Elements)
	case *MapProperty:
		return e.writeMapProperty(w, v)
	default:
		return e.writeElement(w, v)
	}
}

// writeElement writes a value without a tag, as it appears inside arrays,
// sets and maps.
func (e *encoder) writeElement(w *memory.Writer, v Value) error {
	switch v := v.(type) {
	case IntProperty:
		memory.WriteInt(w, int32(v))
	case Int8Property:
		memory.WriteInt(w, int8(v))
	case Int16Property:
		memory.WriteInt(w, int16(v))
	case Int64Property:
		memory.WriteInt(w, int64(v))
	case UInt16Property:
		memory.WriteInt(w, uint16(v))
	case UInt32Property:
		memory.WriteInt(w, uint32(v))
	case UInt64Property:
		memory.WriteInt(w, uint64(v))
	case FloatProperty:
		memory.WriteFloat32(w, float32(v))
	case DoubleProperty:
		memory.WriteFloat64(w, float64(v))
	case BoolProperty:
		if v {
			memory.WriteInt(w, uint8(1))
		} else {
			memory.WriteInt(w, uint8(0))
		}
	case ByteProperty:
		if v.Named {
			return ue.WriteFString(w, v.Name)
		}
		memory.WriteInt(w, v.Byte)
	case StrProperty:
		return ue.WriteFString(w, ue.FString(v))
	case NameProperty:
		return ue.WriteFString(w, ue.FString(v))
	case ObjectProperty:
		return ue.WriteFString(w, ue.FString(v))
	case SoftObjectProperty:
		return ue.WriteFString(w, ue.FString(v))
	case EnumProperty:
		return ue.WriteFString(w, v.Value)
	case TextProperty:
		return writeTextProperty(w, v)
	case *StructProperty:
		return e.writeStructProperty(w, v)
	default:
		return fmt.Errorf("%s cannot be written as an element", v.TypeName())
	}
	return nil
}

func (e *encoder) writeStructProperty(w *memory.Writer, v *StructProperty) error {
	if v.Intrinsic != nil {
		return v.Intrinsic.Encode(w, e.lwc)
	}
	return e.writeProperties(w, v.Fields)
}

func (e *encoder) writeArrayProperty(w *memory.Writer, v *ArrayProperty, name string) error {
	memory.WriteInt(w, int32(len(v.Elements)))
	if v.ElementType != "StructProperty" {
		for i, element := range v.Elements {
			if err := checkElement(v.ElementType, element); err != nil {
				return fmt.Errorf("element %d: %w", i, err)
			}
			if err := e.writeElement(w, element); err != nil {
				return fmt.Errorf("element %d: %w", i, err)
			}
		}
		return nil
	}

	header := v.Struct
	if header == nil {
		header = &ArrayStructHeader{Name: name}
		if len(v.Elements) > 0 {
			if first, ok := v.Elements[0].(*StructProperty); ok {
				header.StructType = first.Type
			}
		}
	}
	items := memory.NewWriter()
	for i, element := range v.Elements {
		item, ok := element.(*StructProperty)
		if !ok {
			return fmt.Errorf("element %d: %w: %s in an array of StructProperty", i, ErrTypeMismatch, typeNameOf(element))
		}
		if err := e.writeStructProperty(items, item); err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}
	}
	if err := ue.WriteFString(w, spell(header.Tag.name(), header.Name)); err != nil {
		return err
	}
	if err := ue.WriteFString(w, spell(header.Tag.typ(), "StructProperty")); err != nil {
		return err
	}
	memory.WriteInt(w, int32(items.Len()))
	memory.WriteInt(w, header.ArrayIndex)
	if err := ue.WriteFString(w, spell(header.Tag.header(0), header.StructType)); err != nil {
		return err
	}
	ue.WriteGuid(w, header.Guid)
	writePropertyGuid(w, header.PropertyGuid)
	w.WriteBytes(items.Bytes())
	return nil
}

func (e *encoder) writeElements(w *memory.Writer, elementType string, values []Value) error {
	memory.WriteInt(w, int32(len(values)))
	for i, value := range values {
		if err := checkElement(elementType, value); err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}
		if err := e.writeElement(w, value); err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}
	}
	return nil
}

func (e *encoder) writeMapProperty(w *memory.Writer, v *MapProperty) error {
	if err := e.writeElements(w, v.KeyType, v.Removed); err != nil {
		return fmt.Errorf("removed: %w", err)
	}
	memory.WriteInt(w, int32(len(v.Entries)))
	for i, entry := range v.Entries {
		if err := checkElement(v.KeyType, entry.Key); err != nil {
			return fmt.Errorf("key %d: %w", i, err)
		}
		if err := e.writeElement(w, entry.Key); err != nil {
			return fmt.Errorf("key %d: %w", i, err)
		}
		if err := checkElement(v.ValueType, entry.Value); err != nil {
			return fmt.Errorf("value %d: %w", i, err)
		}
		if err := e.writeElement(w, entry.Value); err != nil {
			return fmt.Errorf("value %d: %w", i, err)
		}
	}
	return nil
}

func checkElement(elementType string, v Value) error {
	if v == nil || v.TypeName() != elementType {
		return fmt.Errorf("%w: %s where %s is declared", ErrTypeMismatch, typeNameOf(v), elementType)
	}
	return nil
}

func typeNameOf(v Value) string {
	if v == nil {
		return "<nil>"
	}
	return v.TypeName()
}

func writeTextProperty(w *memory.Writer, v TextProperty) error {
	memory.WriteInt(w, v.Flags)
	memory.WriteInt(w, v.HistoryType)
	switch v.HistoryType {
	case TextHistoryBase:
		for _, s := range []ue.FString{v.Namespace, v.Key, v.Source} {
			if err := ue.WriteFString(w, s); err != nil {
				return err
			}
		}
	case TextHistoryNone:
		if !v.HasInvariant {
			memory.WriteInt(w, uint32(0))
			return nil
		}
		memory.WriteInt(w, uint32(1))
		return ue.WriteFString(w, v.Invariant)
	default:
		w.WriteBytes(v.Raw)
	}
	return nil
}
