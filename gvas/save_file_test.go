package gvas

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gvas-edit/ue"
)

func quiet() DecodeOptions {
	return DecodeOptions{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func mustRead(t *testing.T, data []byte) *SaveFile {
	t.Helper()
	sf, err := Read(data, quiet())
	require.NoError(t, err)
	return sf
}

func mustWrite(t *testing.T, sf *SaveFile) []byte {
	t.Helper()
	out, err := sf.Write()
	require.NoError(t, err)
	return out
}

func TestRoundTripIsByteExact(t *testing.T) {
	data := richFixture()
	sf := mustRead(t, data)
	assert.Empty(t, sf.Diagnostics)
	assert.Equal(t, data, mustWrite(t, sf))
}

func TestRoundTripIsIdempotent(t *testing.T) {
	first := mustWrite(t, mustRead(t, richFixture()))
	second := mustWrite(t, mustRead(t, first))
	assert.Equal(t, first, second)
}

func TestHeaderFields(t *testing.T) {
	sf := mustRead(t, richFixture())
	assert.Equal(t, uint32(2), sf.SaveGameVersion)
	assert.Equal(t, uint32(522), sf.PackageVersionUE4)
	assert.Equal(t, "4.27.2-18319896+++UE4+Release-4.27", sf.EngineVersion.String())
	require.Len(t, sf.CustomVersions, 1)
	assert.Equal(t, int32(7), sf.CustomVersions[0].Version)
	assert.Equal(t, "/Script/Game.TestSave", sf.SaveGameClass.Value)
	assert.Equal(t, []byte{0, 0, 0, 0}, sf.Trailer)
	assert.False(t, sf.LargeWorldCoordinates())
}

func TestDecodedValues(t *testing.T) {
	sf := mustRead(t, richFixture())
	props := sf.Properties

	score, ok := props.Get("Score")
	require.True(t, ok)
	assert.Equal(t, IntProperty(10), score)

	greeting, _ := props.Get("Greeting")
	assert.Equal(t, StrProperty(ue.FString{Value: "héllo 😀", Wide: true}), greeting)

	empty, _ := props.Get("Empty")
	assert.Equal(t, StrProperty(ue.FString{Null: true}), empty)

	alive, _ := props.Get("Alive")
	assert.Equal(t, BoolProperty(true), alive)

	flags, _ := props.Get("Flags")
	assert.Equal(t, UInt64Property(math.MaxUint64), flags)

	slot, _ := props.Get("Slot")
	assert.Equal(t, ByteProperty{Enum: "None", Byte: 3}, slot)

	mode, _ := props.Get("Mode")
	assert.Equal(t, EnumProperty{EnumType: "EGameMode", Value: ue.NewFString("EGameMode::Hard")}, mode)

	title, _ := props.Get("Title")
	assert.Equal(t, "The Title", title.(TextProperty).Source.Value)

	position, _ := props.Get("Position")
	assert.Equal(t, &ue.Vector{X: 1, Y: 2, Z: 3}, position.(*StructProperty).Intrinsic)

	blob, _ := props.Get("Blob")
	assert.Len(t, blob.(*ArrayProperty).Elements, 4)

	counters, _ := props.Get("Counters")
	entries := counters.(*MapProperty).Entries
	require.Len(t, entries, 2)
	assert.Equal(t, StrProperty(ue.NewFString("losses")), entries[1].Key)
	assert.Equal(t, IntProperty(2), entries[1].Value)
}

func TestPropertyOrderIsPreserved(t *testing.T) {
	sf := mustRead(t, saveFixture(intProp("Zeta", 1), intProp("Alpha", 2), intProp("Mid", 3)))
	assert.Equal(t, []string{"Zeta", "Alpha", "Mid"}, sf.Properties.Names())
}

func TestNestedArrayOfStructs(t *testing.T) {
	sf := mustRead(t, richFixture())

	count, ok := sf.Get(Path{Name("Stats"), Name("Items"), Index(1), Name("Count")})
	require.True(t, ok)
	assert.Equal(t, IntProperty(5), count)

	items, ok := sf.Get(Path{Name("Stats"), Name("Items")})
	require.True(t, ok)
	array := items.(*ArrayProperty)
	require.NotNil(t, array.Struct)
	assert.Equal(t, "InventoryItem", array.Struct.StructType)
	assert.Equal(t, "Items", array.Struct.Name)
}

func TestUnknownTypeSurvives(t *testing.T) {
	fancy := build(func(s *stream) {
		s.str("Fancy").str("FancyProperty").i32(3).i32(0).u8(0).raw([]byte{1, 2, 3})
	})
	data := saveFixture(intProp("Before", 1), fancy, intProp("After", 2))

	sf := mustRead(t, data)
	value, ok := sf.Properties.Get("Fancy")
	require.True(t, ok)
	assert.Equal(t, OpaqueProperty{Type: "FancyProperty", Header: []byte{0}, Raw: []byte{1, 2, 3}}, value)

	require.Len(t, sf.Diagnostics, 1)
	assert.ErrorIs(t, sf.Diagnostics[0], ErrUnknownTypeTag)
	assert.Equal(t, "FancyProperty", sf.Diagnostics[0].Type)

	after, _ := sf.Properties.Get("After")
	assert.Equal(t, IntProperty(2), after)
	assert.Equal(t, data, mustWrite(t, sf))
}

func TestLengthMismatchKeepsPayloadOpaque(t *testing.T) {
	odd := tag("Odd", "IntProperty", nil, []byte{1, 0, 0, 0, 0xFF})
	data := saveFixture(odd, intProp("Next", 4))

	sf := mustRead(t, data)
	value, _ := sf.Properties.Get("Odd")
	opaque, ok := value.(OpaqueProperty)
	require.True(t, ok)
	assert.Equal(t, "IntProperty", opaque.TypeName())
	assert.Equal(t, []byte{1, 0, 0, 0, 0xFF}, opaque.Raw)

	require.Len(t, sf.Diagnostics, 1)
	diag := sf.Diagnostics[0]
	assert.ErrorIs(t, diag, ErrLengthMismatch)
	assert.Equal(t, 5, diag.Expected)
	assert.Equal(t, 4, diag.Actual)

	next, _ := sf.Properties.Get("Next")
	assert.Equal(t, IntProperty(4), next)
	assert.Equal(t, data, mustWrite(t, sf))
}

func TestVerifyKeepsNonCanonicalPayloads(t *testing.T) {
	// a bool element stored as 2 decodes to true but would be written as 1
	data := saveFixture(arrayProp("Switches", "BoolProperty", build(func(s *stream) { s.i32(2).u8(1).u8(2) })))

	sf := mustRead(t, data)
	assert.NotEqual(t, data, mustWrite(t, sf))

	opts := quiet()
	opts.Verify = true
	verified, err := Read(data, opts)
	require.NoError(t, err)
	value, _ := verified.Properties.Get("Switches")
	assert.IsType(t, OpaqueProperty{}, value)
	require.Len(t, verified.Diagnostics, 1)
	assert.ErrorIs(t, verified.Diagnostics[0], ErrLengthMismatch)
	assert.Equal(t, data, mustWrite(t, verified))
}

func TestTruncationInsidePropertiesIsFatal(t *testing.T) {
	data := saveFixture(intProp("Score", 10), structProp("Position", "Vector", build(func(s *stream) { s.f32(1).f32(2).f32(3) })))
	start := len(build(header))
	end := len(data) - 4 // the trailer is optional

	for cut := start; cut < end; cut++ {
		sf, err := Read(data[:cut], quiet())
		require.Error(t, err, "cut at %d", cut)
		assert.Nil(t, sf)
		assert.ErrorIs(t, err, ErrTruncatedStream, "cut at %d", cut)

		var decodeErr *DecodeError
		require.ErrorAs(t, err, &decodeErr)
		assert.LessOrEqual(t, decodeErr.Offset, cut)
	}
}

func TestNegativeSizeIsTruncation(t *testing.T) {
	bad := build(func(s *stream) { s.str("Bad").str("IntProperty").i32(-4).i32(0).u8(0) })
	_, err := Read(saveFixture(bad), quiet())
	assert.ErrorIs(t, err, ErrTruncatedStream)
}

func TestMalformedHeader(t *testing.T) {
	good := saveFixture()
	cases := map[string][]byte{
		"empty":     nil,
		"bad magic": append([]byte("SAVE"), good[4:]...),
		"version 1": append(append([]byte("GVAS"), 1, 0, 0, 0), good[8:]...),
		"version 4": append(append([]byte("GVAS"), 4, 0, 0, 0), good[8:]...),
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Read(data, quiet())
			assert.ErrorIs(t, err, ErrMalformedHeader)
		})
	}
}

func TestInvalidStringEncoding(t *testing.T) {
	bad := tag("Name", "StrProperty", nil, build(func(s *stream) { s.i32(-2).u16(0xD800).u16(0) }))
	sf := mustRead(t, saveFixture(bad))
	require.Len(t, sf.Diagnostics, 1)
	assert.ErrorIs(t, sf.Diagnostics[0].Err, ue.ErrInvalidEncoding)

	_, err := Read(build(func(s *stream) {
		s.raw([]byte("GVAS")).u32(2).u32(522).u16(4).u16(27).u16(2).u32(0)
		s.i32(3).raw([]byte("abc"))
	}), quiet())
	assert.ErrorIs(t, err, ue.ErrInvalidEncoding)
}

func TestLargeWorldCoordinates(t *testing.T) {
	data := build(func(s *stream) {
		headerUE5(s)
		s.raw(structProp("Position", "Vector", build(func(s *stream) { s.f64(1.25).f64(-2).f64(1e10) })))
		s.none().u32(0)
	})
	sf := mustRead(t, data)
	assert.True(t, sf.LargeWorldCoordinates())
	assert.Nil(t, sf.CustomVersions)

	position, _ := sf.Properties.Get("Position")
	assert.Equal(t, &ue.Vector{X: 1.25, Y: -2, Z: 1e10}, position.(*StructProperty).Intrinsic)
	assert.Equal(t, data, mustWrite(t, sf))
}

func TestScoreMutation(t *testing.T) {
	sf := mustRead(t, saveFixture(intProp("Score", 10), strProp("Name", "Ada")))
	require.NoError(t, sf.Set(Path{Name("Score")}, IntProperty(99)))
	assert.Equal(t, saveFixture(intProp("Score", 99), strProp("Name", "Ada")), mustWrite(t, sf))
}

func TestStringEditRecomputesSize(t *testing.T) {
	sf := mustRead(t, saveFixture(strProp("Name", "Ada")))
	require.NoError(t, sf.Set(Path{Name("Name")}, StrProperty(ue.NewFString("Grace"))))
	assert.Equal(t, saveFixture(strProp("Name", "Grace")), mustWrite(t, sf))
}

func TestCancelledDecodeReturnsNothing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sf, err := ReadContext(ctx, richFixture(), quiet())
	assert.Nil(t, sf)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDecodeLogsEvents(t *testing.T) {
	var logs bytes.Buffer
	opts := DecodeOptions{Logger: slog.New(slog.NewTextHandler(&logs, nil))}
	fancy := build(func(s *stream) { s.str("Fancy").str("FancyProperty").i32(0).i32(0).u8(0) })

	_, err := Read(saveFixture(intProp("Score", 1), fancy), opts)
	require.NoError(t, err)
	assert.Contains(t, logs.String(), "msg=decode-started")
	assert.Contains(t, logs.String(), "msg=unknown-type-tag")
	assert.Contains(t, logs.String(), "property_count=2")
}

func TestHintsSelectStructType(t *testing.T) {
	payload := build(func(s *stream) {
		s.i32(0).i32(1).str("home")
		s.f32(1).f32(2).f32(3)
	})
	data := saveFixture(tag("Waypoints", "MapProperty", func(s *stream) { s.str("StrProperty").str("StructProperty") }, payload))

	// without a hint the value is read as a property stream and fails
	plain := mustRead(t, data)
	value, _ := plain.Properties.Get("Waypoints")
	assert.IsType(t, OpaqueProperty{}, value)

	opts := quiet()
	opts.Hints = map[string]string{"Waypoints.Value": "Vector"}
	hinted, err := Read(data, opts)
	require.NoError(t, err)
	assert.Empty(t, hinted.Diagnostics)

	home, ok := hinted.Get(Path{Name("Waypoints"), Name("home")})
	require.True(t, ok)
	assert.Equal(t, &ue.Vector{X: 1, Y: 2, Z: 3}, home.(*StructProperty).Intrinsic)
	assert.Equal(t, data, mustWrite(t, hinted))
}

func TestNewSaveFileRoundTrip(t *testing.T) {
	sf := NewSaveFile("/Script/Game.Fresh")
	sf.Properties.Set("Score", IntProperty(1))
	sf.Properties.Set("Name", StrProperty(ue.NewFString("Zoë")))

	item := NewPropertyMap()
	item.Set("Count", IntProperty(2))
	sf.Properties.Set("Items", &ArrayProperty{
		ElementType: "StructProperty",
		Elements:    []Value{&StructProperty{Type: "Item", Fields: item}},
	})

	back := mustRead(t, mustWrite(t, sf))
	assert.Equal(t, []string{"Score", "Name", "Items"}, back.Properties.Names())
	count, ok := back.Get(Path{Name("Items"), Index(0), Name("Count")})
	require.True(t, ok)
	assert.Equal(t, IntProperty(2), count)

	name, _ := back.Properties.Get("Name")
	assert.True(t, ue.FString(name.(StrProperty)).Wide)
}

func TestWriteRejectsMismatchedElements(t *testing.T) {
	sf := NewSaveFile("/Script/Game.Fresh")
	sf.Properties.Set("Numbers", &ArrayProperty{ElementType: "IntProperty", Elements: []Value{IntProperty(1), FloatProperty(2)}})
	_, err := sf.Write()
	assert.ErrorIs(t, err, ErrTypeMismatch)
}

func TestReadWriteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "slot.sav")
	require.NoError(t, os.WriteFile(path, richFixture(), 0644))

	sf, err := ReadFile(path, quiet())
	require.NoError(t, err)

	out := filepath.Join(dir, "out.sav")
	require.NoError(t, sf.WriteFile(out))
	written, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, richFixture(), written)

	_, err = ReadFile(filepath.Join(dir, "missing.sav"), quiet())
	assert.ErrorIs(t, err, ErrIO)
}

func TestCloneIsIndependent(t *testing.T) {
	sf := mustRead(t, richFixture())
	c := sf.Clone()
	assert.Equal(t, sf, c)

	require.NoError(t, c.Set(Path{Name("Stats"), Name("Items"), Index(0), Name("Count")}, IntProperty(40)))
	original, _ := sf.Get(Path{Name("Stats"), Name("Items"), Index(0), Name("Count")})
	assert.Equal(t, IntProperty(1), original)
	assert.True(t, errors.Is(c.Set(Path{Name("Nope")}, IntProperty(1)), ErrPathNotFound))
}

func TestTagStringsKeepTheirWidth(t *testing.T) {
	position := build(func(s *stream) { s.f32(1).f32(2).f32(3) })
	item := fields(intProp("Count", 1))
	items := build(func(s *stream) {
		s.i32(1).wstr("Items").str("StructProperty").i32(int32(len(item))).i32(0)
		s.str("InventoryItem").guid(0).u8(0).raw(item)
	})
	data := saveFixture(
		build(func(s *stream) { s.wstr("Score").str("IntProperty").i32(4).i32(0).u8(0).i32(10) }),
		build(func(s *stream) { s.str("Slot").str("ByteProperty").i32(1).i32(0).i32(0).u8(0).u8(3) }),
		build(func(s *stream) {
			s.str("Position").wstr("StructProperty").i32(int32(len(position))).i32(0)
			s.wstr("Vector").guid(0).u8(0).raw(position)
		}),
		structProp("Stats", "PlayerStats", build(func(s *stream) { s.raw(intProp("Kills", 4)).wstr("None") })),
		arrayProp("Items", "StructProperty", items),
	)

	sf := mustRead(t, data)
	assert.Empty(t, sf.Diagnostics)
	assert.Equal(t, data, mustWrite(t, sf))
	assert.Equal(t, data, mustWrite(t, sf.Clone()))

	score, ok := sf.Properties.Lookup("Score", 0)
	require.True(t, ok)
	assert.Equal(t, IntProperty(10), score.Value)
	require.NotNil(t, score.Tag)
	assert.Equal(t, &ue.FString{Value: "Score", Wide: true}, score.Tag.Name)

	slot, _ := sf.Properties.Get("Slot")
	assert.Equal(t, ByteProperty{Byte: 3}, slot)

	// edits keep the stored spelling of the tag
	require.NoError(t, sf.Set(Path{Name("Score")}, IntProperty(11)))
	edited := mustWrite(t, sf)
	assert.Len(t, edited, len(data))
	back := mustRead(t, edited)
	score, _ = back.Properties.Lookup("Score", 0)
	assert.Equal(t, IntProperty(11), score.Value)
	assert.True(t, score.Tag.Name.Wide)
}

func TestTruncatedRichFixtureIsFatal(t *testing.T) {
	data := richFixture()
	start := len(build(header))
	end := len(data) - 4

	for cut := start; cut < end; cut++ {
		sf, err := Read(data[:cut], quiet())
		require.Error(t, err, "cut at %d", cut)
		assert.Nil(t, sf)
		assert.ErrorIs(t, err, ErrTruncatedStream, "cut at %d", cut)

		var decodeErr *DecodeError
		require.ErrorAs(t, err, &decodeErr)
		assert.LessOrEqual(t, decodeErr.Offset, cut)
	}
}
