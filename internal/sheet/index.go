package sheet

import "strings"

// Index is the code→row lookup built once per run from the ID Interno
// column. It is a snapshot: concurrent writers to the worksheet are not
// accounted for.
type Index struct {
	rows        map[string]int
	duplicates  map[string][]int
	lastDataRow int
}

// NewIndex builds the lookup from the internal-code column as read from
// the worksheet: element 0 is the header (row 1), data starts at row 2.
// When the same code appears in several rows the first (lowest) row
// wins; the extra rows are kept in Duplicates so callers can surface the
// condition instead of resolving it silently.
func NewIndex(column []string) *Index {
	ix := &Index{
		rows:       make(map[string]int),
		duplicates: make(map[string][]int),
	}

	for i, value := range column {
		if i == 0 {
			continue // header row
		}
		code := strings.TrimSpace(value)
		if code == "" {
			continue
		}

		row := i + 1
		if _, ok := ix.rows[code]; ok {
			ix.duplicates[code] = append(ix.duplicates[code], row)
			continue
		}
		ix.rows[code] = row
	}

	ix.lastDataRow = lastNonEmptyRow(column)

	return ix
}

// Lookup returns the worksheet row holding the given code.
func (ix *Index) Lookup(code string) (int, bool) {
	row, ok := ix.rows[code]
	return row, ok
}

// LastDataRow returns the highest row containing data in the code
// column, the anchor for inserts. It is at least 1 (the header row).
func (ix *Index) LastDataRow() int {
	return ix.lastDataRow
}

// Len returns the number of distinct codes in the index.
func (ix *Index) Len() int {
	return len(ix.rows)
}

// Duplicates returns codes that appear in more than one row, mapped to
// the rows that lost to the first occurrence.
func (ix *Index) Duplicates() map[string][]int {
	return ix.duplicates
}

// lastNonEmptyRow walks back over trailing blank cells, mirroring how
// the sheet backend may or may not include them in a column read.
func lastNonEmptyRow(column []string) int {
	last := len(column)
	for last > 1 && strings.TrimSpace(column[last-1]) == "" {
		last--
	}
	if last < 1 {
		return 1
	}
	return last
}
