package source

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/gridwatch/sentinel/internal/model"
)

// FileSource reads a batch of data points from a local file. The file is
// re-read on every fetch, so an external writer can drop fresh batches in
// place between cycles.
type FileSource struct {
	name string
	path string
}

// NewFile creates a file source. Supported formats: JSON array, CSV with a
// header row, and XLSX (first sheet).
func NewFile(name, path string) *FileSource {
	return &FileSource{name: name, path: path}
}

func (s *FileSource) Name() string { return s.name }

func (s *FileSource) Fetch(ctx context.Context) ([]model.DataPoint, error) {
	if strings.ToLower(filepath.Ext(s.path)) == ".xlsx" {
		return decodeXLSX(s.path)
	}

	f, err := os.Open(s.path)
	if err != nil {
		return nil, eris.Wrapf(err, "source %s: open %s", s.name, s.path)
	}
	defer f.Close() //nolint:errcheck

	return decodeByExtension(ctx, f, s.path)
}
