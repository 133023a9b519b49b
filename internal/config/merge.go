package config

// deepMerge returns a new map holding base overlaid with override. Nested
// maps merge recursively; any other value in override replaces the base
// value, lists included. Neither input is modified.
func deepMerge(base, override map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		if existing, ok := out[k]; ok {
			em, eok := asMap(existing)
			om, ook := asMap(v)
			if eok && ook {
				out[k] = deepMerge(em, om)
				continue
			}
		}
		out[k] = v
	}
	return out
}

// cloneValues copies a parsed config so the returned EffectiveConfig shares
// no maps with the resolver's per-directory cache.
func cloneValues(values map[string]any) map[string]any {
	if values == nil {
		return nil
	}
	out := make(map[string]any, len(values))
	for k, v := range values {
		switch t := v.(type) {
		case map[string]any:
			out[k] = cloneValues(t)
		case []any:
			cp := make([]any, len(t))
			copy(cp, t)
			out[k] = cp
		default:
			out[k] = v
		}
	}
	return out
}
