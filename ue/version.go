package ue

import (
	"fmt"

	"gvas-edit/memory"
)

type EngineVersion struct {
	Major      uint16  `json:"major"`
	Minor      uint16  `json:"minor"`
	Patch      uint16  `json:"patch"`
	Changelist uint32  `json:"changelist"`
	Branch     FString `json:"branch"`
}

func (v EngineVersion) String() string {
	return fmt.Sprintf("%d.%d.%d-%d+%s", v.Major, v.Minor, v.Patch, v.Changelist, v.Branch.Value)
}

// CustomVersion is one entry of the forward-compatibility version list.
type CustomVersion struct {
	Key     Guid  `json:"key"`
	Version int32 `json:"version"`
}

func ReadEngineVersion(r *memory.Reader) (EngineVersion, error) {
	var v EngineVersion
	var err error
	if v.Major, err = memory.ReadInt[uint16](r); err != nil {
		return v, fmt.Errorf("ReadEngineVersion: %w", err)
	}
	if v.Minor, err = memory.ReadInt[uint16](r); err != nil {
		return v, fmt.Errorf("ReadEngineVersion: %w", err)
	}
	if v.Patch, err = memory.ReadInt[uint16](r); err != nil {
		return v, fmt.Errorf("ReadEngineVersion: %w", err)
	}
	if v.Changelist, err = memory.ReadInt[uint32](r); err != nil {
		return v, fmt.Errorf("ReadEngineVersion: %w", err)
	}
	if v.Branch, err = ReadFString(r); err != nil {
		return v, fmt.Errorf("ReadEngineVersion: %w", err)
	}
	return v, nil
}

func WriteEngineVersion(w *memory.Writer, v EngineVersion) error {
	memory.WriteInt(w, v.Major)
	memory.WriteInt(w, v.Minor)
	memory.WriteInt(w, v.Patch)
	memory.WriteInt(w, v.Changelist)
	return WriteFString(w, v.Branch)
}

func ReadCustomVersions(r *memory.Reader) ([]CustomVersion, error) {
	count, err := memory.ReadInt[uint32](r)
	if err != nil {
		return nil, fmt.Errorf("ReadCustomVersions: %w", err)
	}
	// each entry is 20 bytes; reject counts the buffer cannot hold
	if int64(count)*20 > int64(r.Remaining()) {
		return nil, fmt.Errorf("ReadCustomVersions: %w", &memory.EOFError{Offset: r.Offset(), Want: int(count) * 20, Have: r.Remaining()})
	}
	if count == 0 {
		return nil, nil
	}
	versions := make([]CustomVersion, count)
	for i := range versions {
		if versions[i].Key, err = ReadGuid(r); err != nil {
			return nil, fmt.Errorf("ReadCustomVersions: %w", err)
		}
		if versions[i].Version, err = memory.ReadInt[int32](r); err != nil {
			return nil, fmt.Errorf("ReadCustomVersions: %w", err)
		}
	}
	return versions, nil
}

func WriteCustomVersions(w *memory.Writer, versions []CustomVersion) {
	memory.WriteInt(w, uint32(len(versions)))
	for _, v := range versions {
		WriteGuid(w, v.Key)
		memory.WriteInt(w, v.Version)
	}
}
