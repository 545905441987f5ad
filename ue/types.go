package ue

import (
	"fmt"

	"gvas-edit/memory"
)

// Intrinsic is an engine struct with a fixed binary layout instead of a
// nested property stream. lwc selects double precision for the math types
// (large world coordinates, UE5).
type Intrinsic interface {
	StructName() string
	Decode(r *memory.Reader, lwc bool) error
	Encode(w *memory.Writer, lwc bool) error
	Clone() Intrinsic
}

var intrinsicTypes = map[string]func() Intrinsic{
	"Vector":               func() Intrinsic { return &Vector{} },
	"Vector2D":             func() Intrinsic { return &Vector2D{} },
	"Vector4":              func() Intrinsic { return &Vector4{} },
	"Rotator":              func() Intrinsic { return &Rotator{} },
	"Quat":                 func() Intrinsic { return &Quat{} },
	"Box":                  func() Intrinsic { return &Box{} },
	"LinearColor":          func() Intrinsic { return &LinearColor{} },
	"Color":                func() Intrinsic { return &Color{} },
	"IntPoint":             func() Intrinsic { return &IntPoint{} },
	"IntVector":            func() Intrinsic { return &IntVector{} },
	"Guid":                 func() Intrinsic { return &GuidStruct{} },
	"DateTime":             func() Intrinsic { return &DateTime{} },
	"Timespan":             func() Intrinsic { return &Timespan{} },
	"SoftObjectPath":       func() Intrinsic { return &SoftObjectPath{Name: "SoftObjectPath"} },
	"SoftClassPath":        func() Intrinsic { return &SoftObjectPath{Name: "SoftClassPath"} },
	"GameplayTagContainer": func() Intrinsic { return &GameplayTagContainer{} },
}

// NewIntrinsic returns a zero value for a known engine struct name.
func NewIntrinsic(structName string) (Intrinsic, bool) {
	ctor, ok := intrinsicTypes[structName]
	if !ok {
		return nil, false
	}
	return ctor(), true
}

func IsIntrinsic(structName string) bool {
	_, ok := intrinsicTypes[structName]
	return ok
}

func readReal(r *memory.Reader, lwc bool) (float64, error) {
	if lwc {
		return memory.ReadFloat64(r)
	}
	v, err := memory.ReadFloat32(r)
	return float64(v), err
}

func writeReal(w *memory.Writer, v float64, lwc bool) {
	if lwc {
		memory.WriteFloat64(w, v)
		return
	}
	memory.WriteFloat32(w, float32(v))
}

func readReals(r *memory.Reader, lwc bool, dst ...*float64) error {
	for _, d := range dst {
		v, err := readReal(r, lwc)
		if err != nil {
			return err
		}
		*d = v
	}
	return nil
}

func writeReals(w *memory.Writer, lwc bool, values ...float64) {
	for _, v := range values {
		writeReal(w, v, lwc)
	}
}

type Vector struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (*Vector) StructName() string { return "Vector" }
func (v *Vector) Decode(r *memory.Reader, lwc bool) error {
	return readReals(r, lwc, &v.X, &v.Y, &v.Z)
}
func (v *Vector) Encode(w *memory.Writer, lwc bool) error {
	writeReals(w, lwc, v.X, v.Y, v.Z)
	return nil
}
func (v *Vector) Clone() Intrinsic { c := *v; return &c }

type Vector2D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (*Vector2D) StructName() string { return "Vector2D" }
func (v *Vector2D) Decode(r *memory.Reader, lwc bool) error {
	return readReals(r, lwc, &v.X, &v.Y)
}
func (v *Vector2D) Encode(w *memory.Writer, lwc bool) error {
	writeReals(w, lwc, v.X, v.Y)
	return nil
}
func (v *Vector2D) Clone() Intrinsic { c := *v; return &c }

type Vector4 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

func (*Vector4) StructName() string { return "Vector4" }
func (v *Vector4) Decode(r *memory.Reader, lwc bool) error {
	return readReals(r, lwc, &v.X, &v.Y, &v.Z, &v.W)
}
func (v *Vector4) Encode(w *memory.Writer, lwc bool) error {
	writeReals(w, lwc, v.X, v.Y, v.Z, v.W)
	return nil
}
func (v *Vector4) Clone() Intrinsic { c := *v; return &c }

type Rotator struct {
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
	Roll  float64 `json:"roll"`
}

func (*Rotator) StructName() string { return "Rotator" }
func (v *Rotator) Decode(r *memory.Reader, lwc bool) error {
	return readReals(r, lwc, &v.Pitch, &v.Yaw, &v.Roll)
}
func (v *Rotator) Encode(w *memory.Writer, lwc bool) error {
	writeReals(w, lwc, v.Pitch, v.Yaw, v.Roll)
	return nil
}
func (v *Rotator) Clone() Intrinsic { c := *v; return &c }

type Quat struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

func (*Quat) StructName() string { return "Quat" }
func (v *Quat) Decode(r *memory.Reader, lwc bool) error {
	return readReals(r, lwc, &v.X, &v.Y, &v.Z, &v.W)
}
func (v *Quat) Encode(w *memory.Writer, lwc bool) error {
	writeReals(w, lwc, v.X, v.Y, v.Z, v.W)
	return nil
}
func (v *Quat) Clone() Intrinsic { c := *v; return &c }

type Box struct {
	Min     Vector `json:"min"`
	Max     Vector `json:"max"`
	IsValid uint8  `json:"is_valid"`
}

func (*Box) StructName() string { return "Box" }
func (v *Box) Decode(r *memory.Reader, lwc bool) error {
	if err := v.Min.Decode(r, lwc); err != nil {
		return err
	}
	if err := v.Max.Decode(r, lwc); err != nil {
		return err
	}
	valid, err := memory.ReadInt[uint8](r)
	v.IsValid = valid
	return err
}
func (v *Box) Encode(w *memory.Writer, lwc bool) error {
	v.Min.Encode(w, lwc)
	v.Max.Encode(w, lwc)
	memory.WriteInt(w, v.IsValid)
	return nil
}
func (v *Box) Clone() Intrinsic { c := *v; return &c }

// LinearColor stays single precision regardless of lwc.
type LinearColor struct {
	R float32 `json:"r"`
	G float32 `json:"g"`
	B float32 `json:"b"`
	A float32 `json:"a"`
}

func (*LinearColor) StructName() string { return "LinearColor" }
func (v *LinearColor) Decode(r *memory.Reader, _ bool) error {
	for _, d := range []*float32{&v.R, &v.G, &v.B, &v.A} {
		f, err := memory.ReadFloat32(r)
		if err != nil {
			return err
		}
		*d = f
	}
	return nil
}
func (v *LinearColor) Encode(w *memory.Writer, _ bool) error {
	for _, f := range []float32{v.R, v.G, v.B, v.A} {
		memory.WriteFloat32(w, f)
	}
	return nil
}
func (v *LinearColor) Clone() Intrinsic { c := *v; return &c }

// Color is stored in BGRA order.
type Color struct {
	B uint8 `json:"b"`
	G uint8 `json:"g"`
	R uint8 `json:"r"`
	A uint8 `json:"a"`
}

func (*Color) StructName() string { return "Color" }
func (v *Color) Decode(r *memory.Reader, _ bool) error {
	b, err := r.Bytes(4)
	if err != nil {
		return err
	}
	v.B, v.G, v.R, v.A = b[0], b[1], b[2], b[3]
	return nil
}
func (v *Color) Encode(w *memory.Writer, _ bool) error {
	w.WriteBytes([]byte{v.B, v.G, v.R, v.A})
	return nil
}
func (v *Color) Clone() Intrinsic { c := *v; return &c }

type IntPoint struct {
	X int32 `json:"x"`
	Y int32 `json:"y"`
}

func (*IntPoint) StructName() string { return "IntPoint" }
func (v *IntPoint) Decode(r *memory.Reader, _ bool) error {
	return readInt32s(r, &v.X, &v.Y)
}
func (v *IntPoint) Encode(w *memory.Writer, _ bool) error {
	memory.WriteInt(w, v.X)
	memory.WriteInt(w, v.Y)
	return nil
}
func (v *IntPoint) Clone() Intrinsic { c := *v; return &c }

type IntVector struct {
	X int32 `json:"x"`
	Y int32 `json:"y"`
	Z int32 `json:"z"`
}

func (*IntVector) StructName() string { return "IntVector" }
func (v *IntVector) Decode(r *memory.Reader, _ bool) error {
	return readInt32s(r, &v.X, &v.Y, &v.Z)
}
func (v *IntVector) Encode(w *memory.Writer, _ bool) error {
	memory.WriteInt(w, v.X)
	memory.WriteInt(w, v.Y)
	memory.WriteInt(w, v.Z)
	return nil
}
func (v *IntVector) Clone() Intrinsic { c := *v; return &c }

func readInt32s(r *memory.Reader, dst ...*int32) error {
	for _, d := range dst {
		v, err := memory.ReadInt[int32](r)
		if err != nil {
			return err
		}
		*d = v
	}
	return nil
}

// GuidStruct is a Guid carried as a struct property value.
type GuidStruct struct {
	Guid Guid `json:"guid"`
}

func (*GuidStruct) StructName() string { return "Guid" }
func (v *GuidStruct) Decode(r *memory.Reader, _ bool) error {
	g, err := ReadGuid(r)
	v.Guid = g
	return err
}
func (v *GuidStruct) Encode(w *memory.Writer, _ bool) error {
	WriteGuid(w, v.Guid)
	return nil
}
func (v *GuidStruct) Clone() Intrinsic { c := *v; return &c }

// DateTime is a count of 100ns ticks since 0001-01-01.
type DateTime struct {
	Ticks int64 `json:"ticks"`
}

func (*DateTime) StructName() string { return "DateTime" }
func (v *DateTime) Decode(r *memory.Reader, _ bool) error {
	t, err := memory.ReadInt[int64](r)
	v.Ticks = t
	return err
}
func (v *DateTime) Encode(w *memory.Writer, _ bool) error {
	memory.WriteInt(w, v.Ticks)
	return nil
}
func (v *DateTime) Clone() Intrinsic { c := *v; return &c }

type Timespan struct {
	Ticks int64 `json:"ticks"`
}

func (*Timespan) StructName() string { return "Timespan" }
func (v *Timespan) Decode(r *memory.Reader, _ bool) error {
	t, err := memory.ReadInt[int64](r)
	v.Ticks = t
	return err
}
func (v *Timespan) Encode(w *memory.Writer, _ bool) error {
	memory.WriteInt(w, v.Ticks)
	return nil
}
func (v *Timespan) Clone() Intrinsic { c := *v; return &c }

// SoftObjectPath serves both SoftObjectPath and SoftClassPath.
type SoftObjectPath struct {
	Name      string  `json:"-"`
	AssetPath FString `json:"asset_path"`
	SubPath   FString `json:"sub_path"`
}

func (v *SoftObjectPath) StructName() string {
	if v.Name == "" {
		return "SoftObjectPath"
	}
	return v.Name
}
func (v *SoftObjectPath) Decode(r *memory.Reader, _ bool) error {
	var err error
	if v.AssetPath, err = ReadFString(r); err != nil {
		return err
	}
	v.SubPath, err = ReadFString(r)
	return err
}
func (v *SoftObjectPath) Encode(w *memory.Writer, _ bool) error {
	if err := WriteFString(w, v.AssetPath); err != nil {
		return err
	}
	return WriteFString(w, v.SubPath)
}
func (v *SoftObjectPath) Clone() Intrinsic { c := *v; return &c }

type GameplayTagContainer struct {
	Tags []FString `json:"tags"`
}

func (*GameplayTagContainer) StructName() string { return "GameplayTagContainer" }
func (v *GameplayTagContainer) Decode(r *memory.Reader, _ bool) error {
	count, err := memory.ReadInt[uint32](r)
	if err != nil {
		return err
	}
	// every tag takes at least its 4-byte length prefix
	if int64(count)*4 > int64(r.Remaining()) {
		return fmt.Errorf("gameplay tag count %d exceeds data: %w", count, &memory.EOFError{Offset: r.Offset(), Want: int(count) * 4, Have: r.Remaining()})
	}
	if count == 0 {
		v.Tags = nil
		return nil
	}
	v.Tags = make([]FString, count)
	for i := range v.Tags {
		if v.Tags[i], err = ReadFString(r); err != nil {
			return err
		}
	}
	return nil
}
func (v *GameplayTagContainer) Encode(w *memory.Writer, _ bool) error {
	memory.WriteInt(w, uint32(len(v.Tags)))
	for _, tag := range v.Tags {
		if err := WriteFString(w, tag); err != nil {
			return err
		}
	}
	return nil
}
func (v *GameplayTagContainer) Clone() Intrinsic {
	return &GameplayTagContainer{Tags: append([]FString(nil), v.Tags...)}
}
