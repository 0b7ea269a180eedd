package reservation

// FilterDays returns the candidate days for a search: available only, not
// excluded, first occurrence of each label, calendar order preserved.
func FilterDays(days []Day, excluded []string) []Day {
	skip := make(map[string]struct{}, len(excluded))
	for _, e := range excluded {
		skip[e] = struct{}{}
	}
	seen := make(map[string]struct{}, len(days))
	out := make([]Day, 0, len(days))
	for _, d := range days {
		if !d.Available {
			continue
		}
		if _, ok := skip[d.Label]; ok {
			continue
		}
		if _, ok := seen[d.Label]; ok {
			continue
		}
		seen[d.Label] = struct{}{}
		out = append(out, d)
	}
	return out
}
