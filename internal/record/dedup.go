package record

import "sort"

// Deduplicate collapses records sharing a ClientNumber down to the one
// with the most recent ReadTimestampLocal (ties keep the first-seen
// record) and returns the survivors ordered most recent first. That
// ordering is the processing order downstream, so it must be stable.
func Deduplicate(records []UnifiedRecord) []UnifiedRecord {
	if len(records) == 0 {
		return nil
	}

	latest := make(map[string]UnifiedRecord, len(records))
	order := make([]string, 0, len(records))

	for _, rec := range records {
		current, seen := latest[rec.ClientNumber]
		if !seen {
			latest[rec.ClientNumber] = rec
			order = append(order, rec.ClientNumber)
			continue
		}

		// Strictly-after only: an equal timestamp keeps the earlier entry.
		if rec.ReadTimestampLocal.After(current.ReadTimestampLocal) {
			latest[rec.ClientNumber] = rec
		}
	}

	result := make([]UnifiedRecord, 0, len(order))
	for _, client := range order {
		result = append(result, latest[client])
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].ReadTimestampLocal.After(result[j].ReadTimestampLocal)
	})

	return result
}
