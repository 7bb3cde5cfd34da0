package crawler

// FilterPending removes addresses that are already persisted and returns
// the remaining work in discovery order. Duplicates in discovered are
// dropped as well so each source link is visited at most once per run.
// Stored keys are compared in normalized form, so output written with a
// different host case, default port or fragment still matches.
func FilterPending(discovered []string, done map[string]struct{}) []WorkItem {
	doneKeys := make(map[string]struct{}, len(done))
	for link := range done {
		doneKeys[resumeKey(link)] = struct{}{}
	}
	seen := make(map[string]struct{}, len(discovered))
	pending := make([]string, 0, len(discovered))
	for _, link := range discovered {
		key := resumeKey(link)
		if _, ok := doneKeys[key]; ok {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		pending = append(pending, link)
	}
	items := make([]WorkItem, len(pending))
	for i, link := range pending {
		items[i] = WorkItem{URL: link, Index: i + 1, Total: len(pending)}
	}
	return items
}

// resumeKey normalizes link, falling back to the raw text when it does not
// parse.
func resumeKey(link string) string {
	if normalized, err := NormalizeURL(link); err == nil {
		return normalized
	}
	return link
}
