package dumper

// orderedMap keeps keys in first-insertion order. Setting an existing key
// replaces its value in place.
type orderedMap[V any] struct {
	keys   []string
	values map[string]V
}

func newOrderedMap[V any]() *orderedMap[V] {
	return &orderedMap[V]{
		values: make(map[string]V),
	}
}

func (m *orderedMap[V]) set(key string, value V) {
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}

	m.values[key] = value
}

func (m *orderedMap[V]) get(key string) (V, bool) {
	v, ok := m.values[key]
	return v, ok
}

func (m *orderedMap[V]) len() int {
	return len(m.keys)
}

func (m *orderedMap[V]) each(fn func(key string, value V)) {
	for _, key := range m.keys {
		fn(key, m.values[key])
	}
}

func (m *orderedMap[V]) clone() *orderedMap[V] {
	c := &orderedMap[V]{
		keys:   make([]string, len(m.keys)),
		values: make(map[string]V, len(m.values)),
	}

	copy(c.keys, m.keys)
	for k, v := range m.values {
		c.values[k] = v
	}

	return c
}
