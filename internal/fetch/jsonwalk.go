package fetch

// FindKey performs a depth-first search through a decoded JSON tree
// (maps and slices) and returns the first value stored under the given key.
func FindKey(root any, key string) (any, bool) {
	switch node := root.(type) {
	case map[string]any:
		if v, ok := node[key]; ok {
			return v, true
		}
		for _, child := range node {
			if v, ok := FindKey(child, key); ok {
				return v, true
			}
		}
	case []any:
		for _, child := range node {
			if v, ok := FindKey(child, key); ok {
				return v, true
			}
		}
	}
	return nil, false
}

// FindMap is FindKey restricted to object values.
func FindMap(root any, key string) (map[string]any, bool) {
	v, ok := FindKey(root, key)
	if !ok {
		return nil, false
	}
	m, ok := v.(map[string]any)
	return m, ok
}

// FindString is FindKey restricted to string values.
func FindString(root any, key string) (string, bool) {
	v, ok := FindKey(root, key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
