package gvas

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"

	"gvas-edit/memory"
	"gvas-edit/ue"
)

// DecodeOptions configures a decode.
type DecodeOptions struct {
	// Logger receives decode events. slog.Default() is used when nil.
	Logger *slog.Logger
	// Hints names the struct type of map keys, map values and set elements,
	// which the stream does not record. Keys are the dotted property path
	// followed by ".Key", ".Value" or ".Element".
	Hints map[string]string
	// Verify re-encodes every decoded payload and keeps it opaque when the
	// bytes differ.
	Verify bool
}

type decoder struct {
	opts  DecodeOptions
	log   *slog.Logger
	lwc   bool
	diags []Diagnostic
}

func newDecoder(opts DecodeOptions) *decoder {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &decoder{opts: opts, log: logger}
}

type tagHeader struct {
	StructType  string
	StructGuid  ue.Guid
	ElementType string
	KeyType     string
	ValueType   string
	EnumType    string
	Bool        bool
	// names are the type names above as stored, in stream order
	names []ue.FString
}

func (h *tagHeader) readName(r *memory.Reader, dst *string) error {
	s, err := ue.ReadFString(r)
	if err != nil {
		return err
	}
	h.names = append(h.names, s)
	*dst = s.Value
	return nil
}

func joinPath(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "." + name
}

func (d *decoder) hint(key, fallback string) string {
	if structType, ok := d.opts.Hints[key]; ok {
		return structType
	}
	return fallback
}

func (d *decoder) fatal(err error, offset int, path string) error {
	var decodeErr *DecodeError
	if errors.As(err, &decodeErr) {
		return decodeErr
	}
	var eofErr *memory.EOFError
	if errors.As(err, &eofErr) {
		offset = eofErr.Offset
	}
	return &DecodeError{Kind: classify(err), Offset: offset, Path: path, Err: err}
}

func (d *decoder) report(diag Diagnostic) {
	d.diags = append(d.diags, diag)
	switch diag.Kind {
	case ErrUnknownTypeTag:
		d.log.Warn("unknown-type-tag", "name", diag.Type, "path", diag.Path, "offset", diag.Offset)
	case ErrLengthMismatch:
		d.log.Warn("length-mismatch", "name", diag.Path, "type", diag.Type,
			"expected", diag.Expected, "actual", diag.Actual, "error", diag.Err)
	}
}

func (d *decoder) readProperties(r *memory.Reader, path string) (*PropertyMap, error) {
	result := NewPropertyMap()
	for {
		done, err := d.readNext(r, path, result)
		if err != nil {
			return nil, err
		}
		if done {
			return result, nil
		}
	}
}

// readNext appends the next property of a stream to props. It reports done
// at the "None" terminator.
func (d *decoder) readNext(r *memory.Reader, path string, props *PropertyMap) (bool, error) {
	start := r.Offset()
	varName, err := ue.ReadFString(r)
	if err != nil {
		return false, d.fatal(fmt.Errorf("failed to read property name: %w", err), start, path)
	}
	if varName.Value == "None" {
		props.SetTerminator(keepString(varName))
		return true, nil
	}
	property, err := d.readProperty(r, path, varName, start)
	if err != nil {
		return false, err
	}
	props.Append(*property)
	return false, nil
}

// readProperty reads the rest of a tagged property whose name has been read.
// Errors are fatal for the enclosing stream; a payload that does not decode
// inside its declared length is kept as an OpaqueProperty.
func (d *decoder) readProperty(r *memory.Reader, parent string, name ue.FString, start int) (*Property, error) {
	path := joinPath(parent, name.Value)

	typeName, err := ue.ReadFString(r)
	if err != nil {
		return nil, d.fatal(fmt.Errorf("failed to read property type: %w", err), start, path)
	}
	varType := typeName.Value

	sizeOffset := r.Offset()
	varSize, err := memory.ReadInt[int32](r)
	if err != nil {
		return nil, d.fatal(fmt.Errorf("failed to read property size: %w", err), sizeOffset, path)
	}
	arrayIndex, err := memory.ReadInt[int32](r)
	if err != nil {
		return nil, d.fatal(fmt.Errorf("failed to read array index: %w", err), sizeOffset, path)
	}
	if varSize < 0 {
		return nil, &DecodeError{Kind: ErrTruncatedStream, Offset: sizeOffset, Path: path,
			Err: fmt.Errorf("negative size %d", varSize)}
	}

	headerStart := r.Offset()
	known := Registered(varType)
	var header tagHeader
	if known {
		header, err = readTagHeader(r, varType)
		if err != nil {
			return nil, d.fatal(fmt.Errorf("failed to read %s header: %w", varType, err), headerStart, path)
		}
	}
	guid, err := readPropertyGuid(r)
	if err != nil {
		return nil, d.fatal(fmt.Errorf("failed to read property guid: %w", err), headerStart, path)
	}
	headerBytes := r.Since(headerStart)

	payloadStart := r.Offset()
	if int(varSize) > r.Remaining() {
		return nil, &DecodeError{Kind: ErrTruncatedStream, Offset: payloadStart, Path: path,
			Err: fmt.Errorf("%s declares %d bytes, %d remain", varType, varSize, r.Remaining())}
	}
	payload, err := r.Sub(int(varSize))
	if err != nil {
		return nil, d.fatal(err, payloadStart, path)
	}

	varName := name.Value
	tags := newTagStrings(name, typeName, header.names...)
	property := &Property{Name: varName, ArrayIndex: arrayIndex, Tag: tags}
	if !known {
		d.report(Diagnostic{Kind: ErrUnknownTypeTag, Path: path, Type: varType, Offset: start})
		property.Value = OpaqueProperty{
			Type:   varType,
			Header: cloneBytes(headerBytes),
			Raw:    cloneBytes(payload.Rest()),
		}
		return property, nil
	}

	mark := len(d.diags)
	value, err := d.readValue(payload, varType, header, path)
	consumed := int(varSize) - payload.Remaining()
	if err == nil && payload.Remaining() != 0 {
		err = fmt.Errorf("%d bytes left undecoded", payload.Remaining())
	}
	if err == nil && d.opts.Verify {
		err = d.verify(varName, value, tags, guid, headerBytes, r.Since(payloadStart))
	}
	if err != nil {
		d.diags = d.diags[:mark]
		d.report(Diagnostic{
			Kind:     ErrLengthMismatch,
			Path:     path,
			Type:     varType,
			Offset:   payloadStart,
			Expected: int(varSize),
			Actual:   consumed,
			Err:      err,
		})
		property.Value = OpaqueProperty{
			Type:   varType,
			Header: cloneBytes(headerBytes),
			Raw:    cloneBytes(r.Since(payloadStart)),
		}
		return property, nil
	}

	property.Guid = guid
	property.Value = value
	return property, nil
}

// verify re-encodes a decoded value and compares it with the bytes it was
// decoded from.
func (d *decoder) verify(name string, value Value, tags *TagStrings, guid *ue.Guid, header, payload []byte) error {
	e := encoder{lwc: d.lwc}
	w := memory.NewWriter()
	if err := e.writeValue(w, value, name); err != nil {
		return fmt.Errorf("verify: %w", err)
	}
	if !bytes.Equal(w.Bytes(), payload) {
		return fmt.Errorf("verify: re-encoded payload is %d bytes and differs from the original", w.Len())
	}
	hw := memory.NewWriter()
	if err := e.writeTagHeader(hw, value, tags); err != nil {
		return fmt.Errorf("verify: %w", err)
	}
	writePropertyGuid(hw, guid)
	if !bytes.Equal(hw.Bytes(), header) {
		return errors.New("verify: re-encoded tag header differs from the original")
	}
	return nil
}

func readTagHeader(r *memory.Reader, varType string) (tagHeader, error) {
	var h tagHeader
	var err error
	switch varType {
	case "StructProperty":
		if err = h.readName(r, &h.StructType); err != nil {
			return h, err
		}
		h.StructGuid, err = ue.ReadGuid(r)
	case "ArrayProperty", "SetProperty":
		err = h.readName(r, &h.ElementType)
	case "MapProperty":
		if err = h.readName(r, &h.KeyType); err != nil {
			return h, err
		}
		err = h.readName(r, &h.ValueType)
	case "EnumProperty", "ByteProperty":
		err = h.readName(r, &h.EnumType)
	case "BoolProperty":
		var b uint8
		b, err = memory.ReadInt[uint8](r)
		h.Bool = b != 0
	}
	return h, err
}

func readPropertyGuid(r *memory.Reader) (*ue.Guid, error) {
	hasGuid, err := memory.ReadInt[uint8](r)
	if err != nil {
		return nil, err
	}
	if hasGuid == 0 {
		return nil, nil
	}
	guid, err := ue.ReadGuid(r)
	if err != nil {
		return nil, err
	}
	return &guid, nil
}

func (d *decoder) readValue(r *memory.Reader, varType string, h tagHeader, path string) (Value, error) {
	switch varType {
	case "BoolProperty":
		return BoolProperty(h.Bool), nil

	case "ByteProperty":
		if r.Remaining() == 1 {
			b, err := memory.ReadInt[uint8](r)
			return ByteProperty{Enum: h.EnumType, Byte: b}, err
		}
		name, err := ue.ReadFString(r)
		return ByteProperty{Enum: h.EnumType, Name: name, Named: true}, err

	case "EnumProperty":
		value, err := ue.ReadFString(r)
		if err != nil {
			return nil, fmt.Errorf("readEnumProperty: %w", err)
		}
		return EnumProperty{EnumType: h.EnumType, Value: value}, nil

	case "TextProperty":
		return readTextProperty(r, true)

	case "StructProperty":
		return d.readStructProperty(r, h.StructType, h.StructGuid, path)

	case "ArrayProperty":
		return d.readArrayProperty(r, h.ElementType, path)

	case "SetProperty":
		return d.readSetProperty(r, h.ElementType, path)

	case "MapProperty":
		return d.readMapProperty(r, h.KeyType, h.ValueType, path)

	default:
		return d.readElement(r, varType, "", path)
	}
}

// readElement reads a bare value: an array, set or map element with no tag
// of its own.
func (d *decoder) readElement(r *memory.Reader, varType, structType, path string) (Value, error) {
	switch varType {
	case "IntProperty":
		v, err := memory.ReadInt[int32](r)
		return IntProperty(v), err
	case "Int8Property":
		v, err := memory.ReadInt[int8](r)
		return Int8Property(v), err
	case "Int16Property":
		v, err := memory.ReadInt[int16](r)
		return Int16Property(v), err
	case "Int64Property":
		v, err := memory.ReadInt[int64](r)
		return Int64Property(v), err
	case "UInt16Property":
		v, err := memory.ReadInt[uint16](r)
		return UInt16Property(v), err
	case "UInt32Property":
		v, err := memory.ReadInt[uint32](r)
		return UInt32Property(v), err
	case "UInt64Property":
		v, err := memory.ReadInt[uint64](r)
		return UInt64Property(v), err
	case "FloatProperty":
		v, err := memory.ReadFloat32(r)
		return FloatProperty(v), err
	case "DoubleProperty":
		v, err := memory.ReadFloat64(r)
		return DoubleProperty(v), err
	case "BoolProperty":
		v, err := memory.ReadInt[uint8](r)
		return BoolProperty(v != 0), err
	case "ByteProperty":
		v, err := memory.ReadInt[uint8](r)
		return ByteProperty{Byte: v}, err
	case "StrProperty":
		s, err := ue.ReadFString(r)
		return StrProperty(s), err
	case "NameProperty":
		s, err := ue.ReadFString(r)
		return NameProperty(s), err
	case "ObjectProperty":
		s, err := ue.ReadFString(r)
		return ObjectProperty(s), err
	case "SoftObjectProperty":
		s, err := ue.ReadFString(r)
		return SoftObjectProperty(s), err
	case "EnumProperty":
		s, err := ue.ReadFString(r)
		return EnumProperty{Value: s}, err
	case "TextProperty":
		return readTextProperty(r, false)
	case "StructProperty":
		return d.readStructProperty(r, structType, ue.Guid{}, path)
	default:
		return nil, fmt.Errorf("%s is not supported as an element type", varType)
	}
}

func (d *decoder) readStructProperty(r *memory.Reader, structType string, guid ue.Guid, path string) (*StructProperty, error) {
	result := &StructProperty{Type: structType, Guid: guid}
	if intrinsic, ok := ue.NewIntrinsic(structType); ok {
		if err := intrinsic.Decode(r, d.lwc); err != nil {
			return nil, fmt.Errorf("readStructProperty %s: %w", structType, err)
		}
		result.Intrinsic = intrinsic
		return result, nil
	}

	fields, err := d.readProperties(r, path)
	if err != nil {
		return nil, fmt.Errorf("readStructProperty %s: %w", structType, err)
	}
	result.Fields = fields
	return result, nil
}

func readCount(r *memory.Reader) (int, error) {
	count, err := memory.ReadInt[int32](r)
	if err != nil {
		return 0, err
	}
	// every element takes at least one byte
	if count < 0 || int(count) > r.Remaining() {
		return 0, fmt.Errorf("element count %d does not fit in %d bytes", count, r.Remaining())
	}
	return int(count), nil
}

func (d *decoder) readArrayProperty(r *memory.Reader, elementType, path string) (*ArrayProperty, error) {
	count, err := readCount(r)
	if err != nil {
		return nil, fmt.Errorf("readArrayProperty: %w", err)
	}
	result := &ArrayProperty{ElementType: elementType}
	if count == 0 && elementType != "StructProperty" {
		return result, nil
	}

	switch elementType {
	case "StructProperty":
		header, items, err := readArrayStructHeader(r)
		if err != nil {
			return nil, fmt.Errorf("readArrayProperty: %w", err)
		}
		result.Struct = &header
		for i := 0; i < count; i++ {
			item, err := d.readStructProperty(items, header.StructType, ue.Guid{}, path)
			if err != nil {
				return nil, fmt.Errorf("readArrayProperty: element %d: %w", i, err)
			}
			result.Elements = append(result.Elements, item)
		}
		if items.Remaining() != 0 {
			return nil, fmt.Errorf("readArrayProperty: %d bytes left after %d elements", items.Remaining(), count)
		}
		return result, nil

	case "ByteProperty":
		// byte arrays are raw bytes; enum-backed ones store names
		if r.Remaining() == count {
			raw, _ := r.Bytes(count)
			result.Elements = make([]Value, count)
			for i, b := range raw {
				result.Elements[i] = ByteProperty{Byte: b}
			}
			return result, nil
		}
		result.Elements = make([]Value, count)
		for i := range result.Elements {
			name, err := ue.ReadFString(r)
			if err != nil {
				return nil, fmt.Errorf("readArrayProperty: element %d: %w", i, err)
			}
			result.Elements[i] = ByteProperty{Name: name, Named: true}
		}
		return result, nil
	}

	result.Elements = make([]Value, count)
	for i := range result.Elements {
		result.Elements[i], err = d.readElement(r, elementType, "", path)
		if err != nil {
			return nil, fmt.Errorf("readArrayProperty: element %d: %w", i, err)
		}
	}
	return result, nil
}

// readArrayStructHeader reads the inner tag of an array of structs and
// returns a reader bounded to the element bytes it declares.
func readArrayStructHeader(r *memory.Reader) (ArrayStructHeader, *memory.Reader, error) {
	var header ArrayStructHeader
	name, err := ue.ReadFString(r)
	if err != nil {
		return header, nil, err
	}
	innerType, err := ue.ReadFString(r)
	if err != nil {
		return header, nil, err
	}
	if innerType.Value != "StructProperty" {
		return header, nil, fmt.Errorf("array struct header has type %q", innerType.Value)
	}
	size, err := memory.ReadInt[int32](r)
	if err != nil {
		return header, nil, err
	}
	if header.ArrayIndex, err = memory.ReadInt[int32](r); err != nil {
		return header, nil, err
	}
	structType, err := ue.ReadFString(r)
	if err != nil {
		return header, nil, err
	}
	if header.Guid, err = ue.ReadGuid(r); err != nil {
		return header, nil, err
	}
	if header.PropertyGuid, err = readPropertyGuid(r); err != nil {
		return header, nil, err
	}
	if size < 0 || int(size) > r.Remaining() {
		return header, nil, fmt.Errorf("array struct header declares %d bytes, %d remain", size, r.Remaining())
	}
	header.Name = name.Value
	header.StructType = structType.Value
	header.Tag = newTagStrings(name, innerType, structType)
	items, err := r.Sub(int(size))
	return header, items, err
}

func (d *decoder) readElements(r *memory.Reader, varType, structType, path string) ([]Value, error) {
	count, err := readCount(r)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, nil
	}
	values := make([]Value, count)
	for i := range values {
		values[i], err = d.readElement(r, varType, structType, path)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
	}
	return values, nil
}

func (d *decoder) readSetProperty(r *memory.Reader, elementType, path string) (*SetProperty, error) {
	structType := d.hint(path+".Element", "Struct")
	removed, err := d.readElements(r, elementType, structType, path)
	if err != nil {
		return nil, fmt.Errorf("readSetProperty: removed: %w", err)
	}
	elements, err := d.readElements(r, elementType, structType, path)
	if err != nil {
		return nil, fmt.Errorf("readSetProperty: %w", err)
	}
	return &SetProperty{ElementType: elementType, Removed: removed, Elements: elements}, nil
}

func (d *decoder) readMapProperty(r *memory.Reader, keyType, valueType, path string) (*MapProperty, error) {
	result := &MapProperty{KeyType: keyType, ValueType: valueType}
	keyStruct := d.hint(path+".Key", "Guid")
	valueStruct := d.hint(path+".Value", "Struct")

	var err error
	result.Removed, err = d.readElements(r, keyType, keyStruct, path)
	if err != nil {
		return nil, fmt.Errorf("readMapProperty: removed: %w", err)
	}

	mapLength, err := readCount(r)
	if err != nil {
		return nil, fmt.Errorf("readMapProperty: %w", err)
	}
	if mapLength == 0 {
		return result, nil
	}
	result.Entries = make([]MapEntry, mapLength)
	for i := range result.Entries {
		key, err := d.readElement(r, keyType, keyStruct, path)
		if err != nil {
			return nil, fmt.Errorf("readMapProperty: key %d: %w", i, err)
		}
		value, err := d.readElement(r, valueType, valueStruct, path)
		if err != nil {
			return nil, fmt.Errorf("readMapProperty: value %d: %w", i, err)
		}
		result.Entries[i] = MapEntry{Key: key, Value: value}
	}
	return result, nil
}

// readTextProperty reads localized text. Only Base and None histories are
// structured; others need a bounded reader so the rest can be kept raw.
func readTextProperty(r *memory.Reader, bounded bool) (TextProperty, error) {
	var result TextProperty
	var err error
	if result.Flags, err = memory.ReadInt[uint32](r); err != nil {
		return result, fmt.Errorf("readTextProperty: %w", err)
	}
	if result.HistoryType, err = memory.ReadInt[int8](r); err != nil {
		return result, fmt.Errorf("readTextProperty: %w", err)
	}

	switch result.HistoryType {
	case TextHistoryBase:
		if result.Namespace, err = ue.ReadFString(r); err != nil {
			return result, fmt.Errorf("readTextProperty: %w", err)
		}
		if result.Key, err = ue.ReadFString(r); err != nil {
			return result, fmt.Errorf("readTextProperty: %w", err)
		}
		if result.Source, err = ue.ReadFString(r); err != nil {
			return result, fmt.Errorf("readTextProperty: %w", err)
		}
	case TextHistoryNone:
		flag, err := memory.ReadInt[uint32](r)
		if err != nil {
			return result, fmt.Errorf("readTextProperty: %w", err)
		}
		if flag != 0 {
			result.HasInvariant = true
			if result.Invariant, err = ue.ReadFString(r); err != nil {
				return result, fmt.Errorf("readTextProperty: %w", err)
			}
		}
	default:
		if !bounded {
			return result, fmt.Errorf("readTextProperty: history type %d is not supported as an element", result.HistoryType)
		}
		result.Raw = cloneBytes(r.Rest())
		if len(result.Raw) == 0 {
			result.Raw = nil
		}
	}
	return result, nil
}
