package gvas

import (
	"bytes"
	"encoding/binary"
	"math"
	"unicode/utf16"
)

// stream builds GVAS bytes by hand so fixtures do not depend on the
// encoder under test.
type stream struct {
	buf bytes.Buffer
}

func (s *stream) put(v any) *stream {
	_ = binary.Write(&s.buf, binary.LittleEndian, v)
	return s
}

func (s *stream) u8(v uint8) *stream   { return s.put(v) }
func (s *stream) i8(v int8) *stream    { return s.put(v) }
func (s *stream) u16(v uint16) *stream { return s.put(v) }
func (s *stream) i32(v int32) *stream  { return s.put(v) }
func (s *stream) u32(v uint32) *stream { return s.put(v) }
func (s *stream) i64(v int64) *stream  { return s.put(v) }
func (s *stream) u64(v uint64) *stream { return s.put(v) }
func (s *stream) f32(v float32) *stream {
	return s.u32(math.Float32bits(v))
}
func (s *stream) f64(v float64) *stream {
	return s.u64(math.Float64bits(v))
}

func (s *stream) raw(b []byte) *stream {
	s.buf.Write(b)
	return s
}

// str writes a narrow string with its terminator.
func (s *stream) str(v string) *stream {
	s.i32(int32(len(v) + 1))
	s.buf.WriteString(v)
	s.buf.WriteByte(0)
	return s
}

// wstr writes a UTF-16 string with its terminator.
func (s *stream) wstr(v string) *stream {
	units := utf16.Encode([]rune(v))
	s.i32(-int32(len(units) + 1))
	for _, u := range units {
		s.u16(u)
	}
	return s.u16(0)
}

func (s *stream) guid(b byte) *stream {
	return s.raw(bytes.Repeat([]byte{b}, 16))
}

func (s *stream) none() *stream { return s.str("None") }

func (s *stream) bytes() []byte { return append([]byte(nil), s.buf.Bytes()...) }

func build(f func(s *stream)) []byte {
	s := &stream{}
	f(s)
	return s.bytes()
}

// tag writes a full property: name, type, size, array index, the type
// specific header, an absent property guid and the payload.
func tag(name, typ string, header func(s *stream), payload []byte) []byte {
	return build(func(s *stream) {
		s.str(name).str(typ).i32(int32(len(payload))).i32(0)
		if header != nil {
			header(s)
		}
		s.u8(0).raw(payload)
	})
}

func intProp(name string, v int32) []byte {
	return tag(name, "IntProperty", nil, build(func(s *stream) { s.i32(v) }))
}

func strProp(name, v string) []byte {
	return tag(name, "StrProperty", nil, build(func(s *stream) { s.str(v) }))
}

func boolProp(name string, v uint8) []byte {
	return tag(name, "BoolProperty", func(s *stream) { s.u8(v) }, nil)
}

func structProp(name, structType string, payload []byte) []byte {
	return tag(name, "StructProperty", func(s *stream) { s.str(structType).guid(0) }, payload)
}

func arrayProp(name, elementType string, payload []byte) []byte {
	return tag(name, "ArrayProperty", func(s *stream) { s.str(elementType) }, payload)
}

// structArray is the payload of an array of structs of the given type.
func structArray(name, structType string, elements ...[]byte) []byte {
	body := bytes.Join(elements, nil)
	return build(func(s *stream) {
		s.i32(int32(len(elements)))
		s.str(name).str("StructProperty").i32(int32(len(body))).i32(0)
		s.str(structType).guid(0).u8(0)
		s.raw(body)
	})
}

// fields is a nested property stream with its terminator.
func fields(props ...[]byte) []byte {
	return append(bytes.Join(props, nil), build(func(s *stream) { s.none() })...)
}

func header(s *stream) {
	s.raw([]byte("GVAS")).u32(2).u32(522)
	s.u16(4).u16(27).u16(2).u32(18319896).str("++UE4+Release-4.27")
	s.u32(3).u32(1).guid(0xAB).i32(7)
	s.str("/Script/Game.TestSave")
}

func headerUE5(s *stream) {
	s.raw([]byte("GVAS")).u32(3).u32(522).u32(1009)
	s.u16(5).u16(1).u16(1).u32(0).str("++UE5+Release-5.1")
	s.u32(3).u32(0)
	s.str("/Script/Game.TestSave")
}

// saveFixture is a UE4 save holding props followed by the usual trailer.
func saveFixture(props ...[]byte) []byte {
	return build(func(s *stream) {
		header(s)
		for _, p := range props {
			s.raw(p)
		}
		s.none().u32(0)
	})
}

// richFixture exercises every structured property type.
func richFixture() []byte {
	return saveFixture(
		intProp("Score", 10),
		strProp("PlayerName", "Ada"),
		tag("Greeting", "StrProperty", nil, build(func(s *stream) { s.wstr("héllo 😀") })),
		tag("Empty", "StrProperty", nil, build(func(s *stream) { s.i32(0) })),
		boolProp("Alive", 1),
		tag("Health", "FloatProperty", nil, build(func(s *stream) { s.f32(87.5) })),
		tag("Seed", "Int64Property", nil, build(func(s *stream) { s.i64(-1 << 60) })),
		tag("Flags", "UInt64Property", nil, build(func(s *stream) { s.u64(math.MaxUint64) })),
		tag("Level", "NameProperty", nil, build(func(s *stream) { s.str("Map_01") })),
		tag("Mode", "EnumProperty", func(s *stream) { s.str("EGameMode") }, build(func(s *stream) { s.str("EGameMode::Hard") })),
		tag("Slot", "ByteProperty", func(s *stream) { s.str("None") }, []byte{3}),
		tag("Title", "TextProperty", nil, build(func(s *stream) {
			s.u32(0).i8(0).str("Game").str("TitleKey").str("The Title")
		})),
		structProp("Position", "Vector", build(func(s *stream) { s.f32(1).f32(2).f32(3) })),
		structProp("Stats", "PlayerStats", fields(
			intProp("Kills", 4),
			arrayProp("Items", "StructProperty", structArray("Items", "InventoryItem",
				fields(strProp("Id", "sword"), intProp("Count", 1)),
				fields(strProp("Id", "potion"), intProp("Count", 5)),
			)),
		)),
		arrayProp("Unlocked", "IntProperty", build(func(s *stream) { s.i32(3).i32(1).i32(2).i32(3) })),
		arrayProp("Blob", "ByteProperty", build(func(s *stream) { s.i32(4).raw([]byte{9, 8, 7, 6}) })),
		tag("Visited", "SetProperty", func(s *stream) { s.str("NameProperty") }, build(func(s *stream) {
			s.i32(0).i32(2).str("Town").str("Cave")
		})),
		tag("Counters", "MapProperty", func(s *stream) { s.str("StrProperty").str("IntProperty") }, build(func(s *stream) {
			s.i32(0).i32(2).str("wins").i32(7).str("losses").i32(2)
		})),
	)
}
