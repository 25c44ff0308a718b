package etl

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Row is one raw CSV record keyed by canonical column name. Values are the
// untrimmed-to-trimmed cell strings; missing cells are absent from the map.
type Row struct {
	// Line is the 1-based line number in the source file, header included.
	Line   int
	Values map[string]string
}

// Get returns the trimmed cell value for a canonical column name.
func (r Row) Get(name string) (string, bool) {
	v, ok := r.Values[name]
	return v, ok
}

// CheckInputs verifies that every source file exists and is readable before
// any row is processed. A missing or unreadable file fails the whole batch
// up front so a partial run never starts.
func CheckInputs(dataDir string, schemas []SourceSchema) error {
	var missing []string
	for _, s := range schemas {
		path := filepath.Join(dataDir, s.Filename)
		f, err := os.Open(path)
		if err != nil {
			missing = append(missing, fmt.Sprintf("%s (%v)", s.Filename, err))
			continue
		}
		f.Close()
	}
	if len(missing) > 0 {
		return &FatalInputError{Reason: "missing input files: " + strings.Join(missing, "; ")}
	}
	return nil
}

// ReadSource streams the CSV for one source and returns its rows in file
// order. Header names are normalized so unit-suffixed variants of the same
// column resolve to one canonical name.
func ReadSource(dataDir string, schema SourceSchema) ([]Row, error) {
	path := filepath.Join(dataDir, schema.Filename)
	f, err := os.Open(path)
	if err != nil {
		return nil, &FatalInputError{Reason: fmt.Sprintf("open %s: %v", schema.Filename, err)}
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, &FatalInputError{Reason: fmt.Sprintf("read %s header: %v", schema.Filename, err)}
	}
	columns := make([]string, len(header))
	for i, h := range header {
		columns[i] = normalizeColumn(h)
	}

	var rows []Row
	line := 1
	for {
		record, err := r.Read()
		line++
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s line %d: %w", schema.Filename, line, err)
		}
		values := make(map[string]string, len(columns))
		for i, cell := range record {
			if i >= len(columns) {
				break
			}
			values[columns[i]] = strings.TrimSpace(cell)
		}
		rows = append(rows, Row{Line: line, Values: values})
	}
	return rows, nil
}

// normalizeColumn canonicalizes a raw CSV header: lowercase, separators and
// unit punctuation folded to underscores, then known aliases resolved.
func normalizeColumn(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	h = strings.ToLower(strings.TrimSpace(h))
	var b strings.Builder
	for _, r := range h {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	h = b.String()
	for strings.Contains(h, "__") {
		h = strings.ReplaceAll(h, "__", "_")
	}
	h = strings.Trim(h, "_")
	if canonical, ok := columnAliases[h]; ok {
		return canonical
	}
	return h
}
