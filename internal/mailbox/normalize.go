package mailbox

// MaxNormalizeDepth bounds recursion in Normalize. Past it the subtree is rendered
// with String instead of probed.
const MaxNormalizeDepth = 16

var (
	mappingKeys = []string{"message", "body", "text", "content", "html", "data", "raw"}
	objectAttrs = []string{"message", "body", "text", "content", "html", "subject"}
)

// Normalize flattens a message into the single text blob most likely to hold the
// message body. Mappings are probed by key priority, then all values; objects by
// attribute priority; sequences element by element. Anything left falls back to String.
func Normalize(m Message) string {
	return normalize(m, 0)
}

func normalize(m Message, depth int) string {
	if depth >= MaxNormalizeDepth {
		return m.String()
	}

	switch m.Kind {
	case KindText:
		return m.Text
	case KindBytes:
		return decodeLossy(m.Bytes)
	case KindMapping:
		if t := probe(m, mappingKeys, depth); t != "" {
			return t
		}
		for _, f := range m.Fields {
			if t := normalize(f.Value, depth+1); t != "" {
				return t
			}
		}
	case KindObject:
		if t := probe(m, objectAttrs, depth); t != "" {
			return t
		}
	case KindSequence:
		for _, item := range m.Items {
			if t := normalize(item, depth+1); t != "" {
				return t
			}
		}
	}
	return m.String()
}

func probe(m Message, keys []string, depth int) string {
	for _, k := range keys {
		v, ok := m.Lookup(k)
		if !ok {
			continue
		}
		if t := normalize(v, depth+1); t != "" {
			return t
		}
	}
	return ""
}
