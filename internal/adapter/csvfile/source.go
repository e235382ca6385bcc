// Package csvfile reads sensor sheets exported as CSV files.
package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/couchcryptid/riverwatch-service/internal/domain"
)

// ErrEmpty is returned for a file with no rows at all.
var ErrEmpty = errors.New("csv file is empty")

// Source reads a CSV file on every Fetch so edits made between cycles are
// picked up. It implements pipeline.Source.
type Source struct {
	path string
}

// NewSource creates a Source for the file at path.
func NewSource(path string) *Source {
	return &Source{path: path}
}

// Fetch reads the whole file as a RawTable.
func (s *Source) Fetch(_ context.Context) (domain.RawTable, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return domain.RawTable{}, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	return ReadTable(f)
}

// ReadTable parses CSV from r. Rows may have differing lengths; a UTF-8 byte
// order mark on the header is removed.
func ReadTable(r io.Reader) (domain.RawTable, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return domain.RawTable{}, fmt.Errorf("read csv: %w", err)
	}
	if len(rows) == 0 {
		return domain.RawTable{}, ErrEmpty
	}

	if len(rows[0]) > 0 {
		rows[0][0] = strings.TrimPrefix(rows[0][0], "\ufeff")
	}
	return domain.RawTable{Rows: rows}, nil
}
