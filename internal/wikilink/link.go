package wikilink

// LinkKind classifies how a wikilink was resolved.
type LinkKind int

const (
	// LinkResolved points at a corpus entry.
	LinkResolved LinkKind = iota
	// LinkUnresolved matched no entry and uses the fallback route.
	LinkUnresolved
	// LinkBroken matched an entry but no relative path could be computed;
	// Text is empty.
	LinkBroken
)

// String returns the metric/log label for k.
func (k LinkKind) String() string {
	switch k {
	case LinkResolved:
		return "resolved"
	case LinkUnresolved:
		return "unresolved"
	case LinkBroken:
		return "broken"
	}
	return "unknown"
}

// Link is the replacement produced for one wikilink token.
type Link struct {
	Reference string   `json:"reference"`
	Target    string   `json:"target,omitempty"`
	Href      string   `json:"href,omitempty"`
	Text      string   `json:"text"`
	Kind      LinkKind `json:"kind"`
}

// MarshalText encodes k as its label.
func (k LinkKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Counts tallies links by kind.
type Counts struct {
	Resolved   int `json:"resolved"`
	Unresolved int `json:"unresolved"`
	Broken     int `json:"broken"`
}

// Count tallies links by kind.
func Count(links []Link) Counts {
	var c Counts
	for _, l := range links {
		switch l.Kind {
		case LinkResolved:
			c.Resolved++
		case LinkUnresolved:
			c.Unresolved++
		case LinkBroken:
			c.Broken++
		}
	}
	return c
}
