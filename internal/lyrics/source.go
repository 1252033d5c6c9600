package lyrics

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
)

// ErrUnknownDataset is returned for a dataset name with no configured directory.
var ErrUnknownDataset = errors.New("unknown dataset")

// Source produces the text blobs that make up a logical dataset.
type Source interface {
	Load(ctx context.Context, dataset string) ([]string, error)
}

// DirSource reads every regular file in a dataset's directory.
// Relative dataset paths are resolved against Root.
type DirSource struct {
	Root     string
	Datasets map[string]string // dataset name -> directory
}

// NewDirSource creates a DirSource.
func NewDirSource(root string, datasets map[string]string) *DirSource {
	return &DirSource{Root: root, Datasets: datasets}
}

// Dir returns the directory a dataset resolves to.
func (s *DirSource) Dir(dataset string) (string, error) {
	dir, ok := s.Datasets[dataset]
	if !ok {
		return "", fmt.Errorf("%w %q", ErrUnknownDataset, dataset)
	}
	if !filepath.IsAbs(dir) && s.Root != "" {
		dir = filepath.Join(s.Root, dir)
	}
	return dir, nil
}

// Load returns the contents of the dataset's files in name order.
// Subdirectories are ignored.
func (s *DirSource) Load(ctx context.Context, dataset string) ([]string, error) {
	dir, err := s.Dir(dataset)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading dataset %q: %w", dataset, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)

	blobs := make([]string, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", name, err)
		}
		blobs = append(blobs, string(data))
	}
	return blobs, nil
}
