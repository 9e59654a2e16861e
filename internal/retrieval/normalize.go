package retrieval

// Normalize maps provider records to canonical results, one result per record and in the
// same order. Missing metadata never drops a record.
func Normalize(records []RawRecord) []Result {
	results := make([]Result, 0, len(records))
	for _, record := range records {
		results = append(results, normalizeRecord(record))
	}
	return results
}

func normalizeRecord(record RawRecord) Result {
	result := Result{Source: UnknownDocument}

	if name, ok := lookupString(record, "segment", "document", "name"); ok {
		result.Source = name
	}
	if score, ok := lookupFloat(record, "score"); ok {
		result.Score = &score
	}
	if content, ok := lookupString(record, "segment", "content"); ok {
		result.Content = &content
	}

	return result
}

// lookup walks nested JSON objects along path. It reports false as soon as a level is
// absent, null, or not an object.
func lookup(record RawRecord, path ...string) (any, bool) {
	var current any = map[string]any(record)
	for _, key := range path {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = obj[key]
		if !ok || current == nil {
			return nil, false
		}
	}
	return current, true
}

func lookupString(record RawRecord, path ...string) (string, bool) {
	v, ok := lookup(record, path...)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func lookupFloat(record RawRecord, path ...string) (float64, bool) {
	v, ok := lookup(record, path...)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}
