package xlsx

import (
	"fmt"
	"os"
	"strings"

	"github.com/xuri/excelize/v2"

	"hotel_pricesheet/internal/domain"
)

// AliasReader reads the aggregator alias table: header row holds aggregator
// ids, column A the template name, and each other column the name that
// aggregator uses for the same hotel.
type AliasReader struct{}

func (AliasReader) Version(path string) (string, error) {
	st, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d-%d", st.ModTime().UnixNano(), st.Size()), nil
}

func (AliasReader) Load(path string) (domain.AliasTable, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open alias table %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("alias table %s has no sheets", path)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read alias table %s: %w", path, err)
	}
	out := domain.AliasTable{}
	if len(rows) == 0 {
		return out, nil
	}
	header := rows[0]
	for _, row := range rows[1:] {
		if len(row) == 0 {
			continue
		}
		canonical := strings.TrimSpace(row[0])
		if placeholder(canonical) {
			continue
		}
		for j := 1; j < len(row) && j < len(header); j++ {
			agg := domain.Aggregator(strings.TrimSpace(header[j]))
			name := strings.TrimSpace(row[j])
			if agg == "" || placeholder(name) {
				continue
			}
			if out[agg] == nil {
				out[agg] = map[string]string{}
			}
			out[agg][name] = canonical
		}
	}
	return out, nil
}

func placeholder(s string) bool {
	switch strings.ToUpper(s) {
	case "", "NA", "N/A", "#N/A", "-", "—":
		return true
	}
	return false
}
