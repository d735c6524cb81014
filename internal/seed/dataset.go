package seed

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// WriteDataset serializes the datasets as indented JSON into path.
func WriteDataset(datasets []Dataset, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(datasets); err != nil {
		return fmt.Errorf("encode json for %s: %w", path, err)
	}
	return nil
}

// ReadDataset loads datasets previously written by WriteDataset.
func ReadDataset(path string) ([]Dataset, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	var datasets []Dataset
	if err := json.NewDecoder(file).Decode(&datasets); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return datasets, nil
}
