package digest

import (
	"crypto/sha256"
	"encoding/json"
	"strings"
)

// Lineage is the content-derived address of a node: the hashes on the path
// from a root to the node, with consecutive repeats collapsed so recursive
// chains do not grow the lineage. Two lineages are equal iff their identity
// digests are equal. A Lineage is immutable.
type Lineage struct {
	hashes []Digest
	id     Digest
}

// NewLineage builds a lineage from root-to-node ordered hashes.
func NewLineage(hashes []Digest) Lineage {
	deduped := make([]Digest, 0, len(hashes))
	for _, h := range hashes {
		if len(deduped) > 0 && deduped[len(deduped)-1] == h {
			continue
		}
		deduped = append(deduped, h)
	}
	return Lineage{hashes: deduped, id: identity(deduped)}
}

// identity digests the hashes in order. Unlike Hash, order is significant.
func identity(hashes []Digest) Digest {
	s := sha256.New()
	s.Write([]byte("lineage:"))
	for _, h := range hashes {
		s.Write(h[:])
	}
	var out Digest
	s.Sum(out[:0])
	return out
}

// WithHash returns a new lineage extended by h.
func (l Lineage) WithHash(h Digest) Lineage {
	next := make([]Digest, len(l.hashes), len(l.hashes)+1)
	copy(next, l.hashes)
	next = append(next, h)
	return NewLineage(next)
}

// ID is the identity digest of the lineage.
func (l Lineage) ID() Digest {
	if len(l.hashes) == 0 {
		return identity(nil)
	}
	return l.id
}

// Hashes returns a copy of the deduplicated hash sequence.
func (l Lineage) Hashes() []Digest {
	out := make([]Digest, len(l.hashes))
	copy(out, l.hashes)
	return out
}

func (l Lineage) Len() int {
	return len(l.hashes)
}

// At returns the i-th hash of the lineage.
func (l Lineage) At(i int) Digest {
	return l.hashes[i]
}

func (l Lineage) Equal(other Lineage) bool {
	return l.ID() == other.ID()
}

func (l Lineage) String() string {
	parts := make([]string, len(l.hashes))
	for i, h := range l.hashes {
		parts[i] = h.Short()
	}
	return strings.Join(parts, "/")
}

func (l Lineage) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.hashes)
}

func (l *Lineage) UnmarshalJSON(data []byte) error {
	var hashes []Digest
	if err := json.Unmarshal(data, &hashes); err != nil {
		return err
	}
	*l = NewLineage(hashes)
	return nil
}
