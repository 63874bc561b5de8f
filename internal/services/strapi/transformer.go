package strapi

// DefaultIDField is where the commerce id lands on the remote entry, so it
// never collides with the remote's own id.
const DefaultIDField = "medusa_id"

// Mapping is a declarative rename table for one entity shape.
type Mapping struct {
	// IDField replaces "id"; empty means DefaultIDField.
	IDField string
	// Fields renames scalar keys.
	Fields map[string]string
	// Relations renames nested entities and says how to map them.
	Relations map[string]Relation
}

type Relation struct {
	Name string
	// Mapping for the nested entity; nil only remaps its id.
	Mapping *Mapping
}

// WithFields returns a copy of m with extra scalar renames layered on top.
func (m *Mapping) WithFields(extra map[string]string) *Mapping {
	if len(extra) == 0 {
		return m
	}
	out := &Mapping{IDField: m.IDField, Relations: m.Relations, Fields: map[string]string{}}
	for k, v := range m.Fields {
		out.Fields[k] = v
	}
	for k, v := range extra {
		out.Fields[k] = v
	}
	return out
}

// IDKey is the remote field that carries the commerce id.
func (m *Mapping) IDKey() string {
	if m == nil || m.IDField == "" {
		return DefaultIDField
	}
	return m.IDField
}

// Transform walks entity and applies m. The input is not modified.
func Transform(entity map[string]interface{}, m *Mapping) map[string]interface{} {
	return transformMap(entity, m)
}

func transformNode(v interface{}, m *Mapping) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		return transformMap(t, m)
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, item := range t {
			out[i] = transformNode(item, m)
		}
		return out
	default:
		return v
	}
}

func transformMap(in map[string]interface{}, m *Mapping) map[string]interface{} {
	if in == nil {
		return nil
	}
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		if k == "id" {
			out[m.IDKey()] = v
			continue
		}
		if m != nil {
			if rel, ok := m.Relations[k]; ok {
				out[rel.Name] = transformNode(v, rel.Mapping)
				continue
			}
			if renamed, ok := m.Fields[k]; ok {
				out[renamed] = v
				continue
			}
		}
		// Unmapped nested values such as metadata are copied untouched.
		out[k] = v
	}
	return out
}
