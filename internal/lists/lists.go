// Package lists reads the single-column CSV files used as
// include/exclude/split-code/admin-only inputs.
package lists

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
)

// Load reads a single-column CSV file into a slice, one value per line. An
// absent or empty file yields an empty list, not an error: every filter list
// is optional.
func Load(path string) ([]string, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("lists: open %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	var values []string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("lists: read %s: %w", path, err)
		}
		if len(record) == 0 {
			continue
		}
		value := strings.TrimSpace(record[0])
		if value != "" {
			values = append(values, value)
		}
	}
	return values, nil
}
