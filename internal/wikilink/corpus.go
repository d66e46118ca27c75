package wikilink

import "github.com/starford/wikilinker/internal/pathdiff"

// Corpus is a read-only stem index over the ordered list of entry paths.
// It is safe for concurrent use once built.
type Corpus struct {
	byStem map[string]string
}

// NewCorpus indexes entries by stem. When stems collide the entry listed
// first wins.
func NewCorpus(entries []string) *Corpus {
	c := &Corpus{byStem: make(map[string]string, len(entries))}
	for _, e := range entries {
		stem := pathdiff.Stem(e)
		if _, dup := c.byStem[stem]; dup {
			continue
		}
		c.byStem[stem] = e
	}
	return c
}

// Find returns the first entry whose stem equals reference exactly.
func (c *Corpus) Find(reference string) (string, bool) {
	if c == nil {
		return "", false
	}
	e, ok := c.byStem[reference]
	return e, ok
}
