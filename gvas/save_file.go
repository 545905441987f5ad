package gvas

import (
	"context"
	"fmt"
	"io"
	"os"

	"gvas-edit/memory"
	"gvas-edit/ue"
)

const (
	FileTypeTag = "GVAS"

	// UE5 package version that switched math structs to doubles.
	PackageVersionLargeWorldCoordinates = 1004
)

// SaveFile is a decoded GVAS file. It is built by Read or NewSaveFile and
// owns its property tree exclusively.
type SaveFile struct {
	SaveGameVersion     uint32
	PackageVersionUE4   uint32
	PackageVersionUE5   uint32
	EngineVersion       ue.EngineVersion
	CustomVersionFormat uint32
	CustomVersions      []ue.CustomVersion
	SaveGameClass       ue.FString
	Properties          *PropertyMap
	// Trailer holds whatever follows the root terminator, written back as is.
	Trailer []byte
	// Diagnostics lists the non-fatal events of the decode and later edits.
	Diagnostics []Diagnostic
}

// NewSaveFile returns an empty UE 4.27 save for the given class.
func NewSaveFile(saveGameClass string) *SaveFile {
	return &SaveFile{
		SaveGameVersion:     2,
		PackageVersionUE4:   522,
		EngineVersion:       ue.EngineVersion{Major: 4, Minor: 27, Patch: 2, Branch: ue.NewFString("++UE4+Release-4.27")},
		CustomVersionFormat: 3,
		SaveGameClass:       ue.NewFString(saveGameClass),
		Properties:          NewPropertyMap(),
		Trailer:             []byte{0, 0, 0, 0},
	}
}

// LargeWorldCoordinates reports whether math structs are stored as doubles.
func (sf *SaveFile) LargeWorldCoordinates() bool {
	return sf.SaveGameVersion >= 3 && sf.PackageVersionUE5 >= PackageVersionLargeWorldCoordinates
}

func Read(data []byte, opts DecodeOptions) (*SaveFile, error) {
	return ReadContext(context.Background(), data, opts)
}

// ReadContext decodes data. Cancellation is checked between top-level
// properties; a cancelled or failed decode returns no SaveFile.
func ReadContext(ctx context.Context, data []byte, opts DecodeOptions) (*SaveFile, error) {
	d := newDecoder(opts)
	d.log.Info("decode-started", "bytes", len(data))

	r := memory.NewReader(data)
	result, err := d.readHeader(r)
	if err != nil {
		return nil, err
	}
	d.lwc = result.LargeWorldCoordinates()

	result.Properties = NewPropertyMap()
	for {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("gvas: decode stopped at offset %d: %w", r.Offset(), err)
		}
		done, err := d.readNext(r, "", result.Properties)
		if err != nil {
			return nil, err
		}
		if done {
			break
		}
	}
	result.Trailer = cloneBytes(r.Rest())
	result.Diagnostics = d.diags

	d.log.Info("decode-finished", "property_count", result.Properties.Len(), "diagnostics", len(d.diags))
	return result, nil
}

// ReadFile reads and decodes the save at path.
func ReadFile(path string, opts DecodeOptions) (*SaveFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}
	return Read(data, opts)
}

func (d *decoder) readHeader(r *memory.Reader) (*SaveFile, error) {
	magic, err := r.Bytes(len(FileTypeTag))
	if err != nil || string(magic) != FileTypeTag {
		return nil, &DecodeError{Kind: ErrMalformedHeader, Offset: 0, Err: fmt.Errorf("missing %s magic", FileTypeTag)}
	}

	result := &SaveFile{}
	if result.SaveGameVersion, err = memory.ReadInt[uint32](r); err != nil {
		return nil, d.fatal(err, r.Offset(), "header")
	}
	if result.SaveGameVersion < 2 || result.SaveGameVersion > 3 {
		return nil, &DecodeError{Kind: ErrMalformedHeader, Offset: 4,
			Err: fmt.Errorf("unsupported save game version %d", result.SaveGameVersion)}
	}
	if result.PackageVersionUE4, err = memory.ReadInt[uint32](r); err != nil {
		return nil, d.fatal(err, r.Offset(), "header")
	}
	if result.SaveGameVersion >= 3 {
		if result.PackageVersionUE5, err = memory.ReadInt[uint32](r); err != nil {
			return nil, d.fatal(err, r.Offset(), "header")
		}
	}
	if result.EngineVersion, err = ue.ReadEngineVersion(r); err != nil {
		return nil, d.fatal(err, r.Offset(), "header")
	}
	if result.CustomVersionFormat, err = memory.ReadInt[uint32](r); err != nil {
		return nil, d.fatal(err, r.Offset(), "header")
	}
	if result.CustomVersions, err = ue.ReadCustomVersions(r); err != nil {
		return nil, d.fatal(err, r.Offset(), "header")
	}
	if result.SaveGameClass, err = ue.ReadFString(r); err != nil {
		return nil, d.fatal(err, r.Offset(), "header")
	}
	return result, nil
}

// Write encodes the header, the property tree and the trailer.
func (sf *SaveFile) Write() ([]byte, error) {
	w := memory.NewWriter()
	w.WriteBytes([]byte(FileTypeTag))
	memory.WriteInt(w, sf.SaveGameVersion)
	memory.WriteInt(w, sf.PackageVersionUE4)
	if sf.SaveGameVersion >= 3 {
		memory.WriteInt(w, sf.PackageVersionUE5)
	}
	if err := ue.WriteEngineVersion(w, sf.EngineVersion); err != nil {
		return nil, fmt.Errorf("gvas: write header: %w", err)
	}
	memory.WriteInt(w, sf.CustomVersionFormat)
	ue.WriteCustomVersions(w, sf.CustomVersions)
	if err := ue.WriteFString(w, sf.SaveGameClass); err != nil {
		return nil, fmt.Errorf("gvas: write header: %w", err)
	}

	e := encoder{lwc: sf.LargeWorldCoordinates()}
	if err := e.writeProperties(w, sf.Properties); err != nil {
		return nil, fmt.Errorf("gvas: %w", err)
	}
	w.WriteBytes(sf.Trailer)
	return w.Bytes(), nil
}

func (sf *SaveFile) WriteTo(out io.Writer) (int64, error) {
	data, err := sf.Write()
	if err != nil {
		return 0, err
	}
	n, err := out.Write(data)
	if err != nil {
		return int64(n), fmt.Errorf("%w: %w", ErrIO, err)
	}
	return int64(n), nil
}

// WriteFile encodes the save and writes it to path.
func (sf *SaveFile) WriteFile(path string) error {
	data, err := sf.Write()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	return nil
}

// Clone returns a deep copy.
func (sf *SaveFile) Clone() *SaveFile {
	c := *sf
	c.CustomVersions = append([]ue.CustomVersion(nil), sf.CustomVersions...)
	c.Properties = sf.Properties.Clone()
	c.Trailer = cloneBytes(sf.Trailer)
	c.Diagnostics = append([]Diagnostic(nil), sf.Diagnostics...)
	return &c
}
