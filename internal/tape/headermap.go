package tape

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v2"

	apperrors "tapestrat/internal/errors"
	"tapestrat/internal/schema"
)

const mappedFieldColumn = "mapped_field"

// LoadHeaderMap reads a tape-column rename table. A .csv file keys on its
// first column and takes the target from the mapped_field column; a .yaml
// file is a flat source: target mapping.
func LoadHeaderMap(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to read header map", err).WithContext("path", path)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		raw := make(map[string]string)
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, apperrors.NewParsingError("failed to parse header map", err).WithContext("path", path)
		}
		return normalizeHeaderMap(raw), nil
	case ".csv":
		m, err := parseHeaderMapCSV(strings.NewReader(strings.TrimPrefix(string(data), utf8BOM)))
		if err != nil {
			return nil, apperrors.NewParsingError("failed to parse header map", err).WithContext("path", path)
		}
		return m, nil
	default:
		return nil, fmt.Errorf("%w: header map %q", apperrors.ErrUnsupportedFormat, filepath.Ext(path))
	}
}

func parseHeaderMapCSV(r io.Reader) (map[string]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, err
	}
	target := -1
	for i, h := range header {
		if schema.NormalizeName(h) == mappedFieldColumn {
			target = i
		}
	}
	if target <= 0 {
		return nil, errors.New("header map needs a source column followed by a mapped_field column")
	}

	raw := make(map[string]string)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(record) <= target {
			continue
		}
		raw[record[0]] = record[target]
	}
	return normalizeHeaderMap(raw), nil
}

func normalizeHeaderMap(raw map[string]string) map[string]string {
	out := make(map[string]string, len(raw))
	for from, to := range raw {
		from, to = schema.NormalizeName(from), schema.NormalizeName(to)
		if from == "" || to == "" {
			continue
		}
		out[from] = to
	}
	return out
}
