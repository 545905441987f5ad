package utils

import (
	"fmt"
	"os"
	"path/filepath"

	"gvas-edit/config"
)

func createIfNotExist(name string) error {
	return os.MkdirAll(name, os.ModePerm)
}

func saveJSON(root, foldername, name string, data []byte) error {
	combinedPath := filepath.Join(root, "json", foldername)
	if err := createIfNotExist(combinedPath); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(combinedPath, name+".json"), data, 0644)
}

func saveBinary(root, foldername, name string, data []byte) error {
	combinedPath := filepath.Join(root, "binary", foldername)
	if err := createIfNotExist(combinedPath); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(combinedPath, name+".bin"), data, 0644)
}

// SaveToFile writes a debug dump under cfg.DumpDir when the matching
// switch (save_json or save_binary) is on.
func SaveToFile(cfg config.Config, foldername, name, dataType string, data []byte) error {
	switch dataType {
	case "json":
		if cfg.SaveJSON {
			return saveJSON(cfg.DumpDir, foldername, name, data)
		}
	case "bin":
		if cfg.SaveBinary {
			return saveBinary(cfg.DumpDir, foldername, name, data)
		}
	default:
		return fmt.Errorf("unknown file dataType: %s", dataType)
	}
	return nil
}
