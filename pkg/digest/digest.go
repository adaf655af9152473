// Package digest provides the content fingerprints used to address graph
// nodes: a finalize-once, order-independent Hash accumulator and the
// Lineage path identity built from it.
package digest

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"slices"
)

// Size is the length of a Digest in bytes.
const Size = sha256.Size

// Digest is a fixed-size SHA-256 fingerprint.
type Digest [Size]byte

// Cycle is contributed in place of a node that is revisited while it is
// still on the recursion stack of a subgraph hash computation.
var Cycle = Of("cycle")

// Of digests the given items as an unordered set.
func Of(items ...string) Digest {
	h := New()
	for _, it := range items {
		h.PushString(it)
	}
	return h.Finalize()
}

// Parse decodes a hex encoded digest.
func Parse(s string) (Digest, error) {
	var d Digest
	b, err := hex.DecodeString(s)
	if err != nil {
		return d, fmt.Errorf("invalid digest %q: %w", s, err)
	}
	if len(b) != Size {
		return d, fmt.Errorf("invalid digest length %d", len(b))
	}
	copy(d[:], b)
	return d, nil
}

func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// Short returns the first 12 hex characters, for logs.
func (d Digest) Short() string {
	return d.String()[:12]
}

func (d Digest) IsZero() bool {
	return d == Digest{}
}

func (d Digest) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Digest) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Hash accumulates items and reduces them to a Digest. Items are sorted
// before digesting, so push order does not matter. Push after Finalize is a
// programming error and panics.
type Hash struct {
	items     [][]byte
	sum       Digest
	finalized bool
}

func New() *Hash {
	return &Hash{}
}

// Push adds a raw item.
func (h *Hash) Push(item []byte) *Hash {
	if h.finalized {
		panic("digest: push after finalize")
	}
	h.items = append(h.items, bytes.Clone(item))
	return h
}

func (h *Hash) PushString(item string) *Hash {
	return h.Push([]byte(item))
}

func (h *Hash) PushDigest(d Digest) *Hash {
	return h.Push(d[:])
}

// Finalize sorts the pushed items and digests them. It is idempotent.
func (h *Hash) Finalize() Digest {
	if h.finalized {
		return h.sum
	}
	slices.SortFunc(h.items, bytes.Compare)

	s := sha256.New()
	var n [8]byte
	for _, it := range h.items {
		// length prefix keeps ["ab","c"] apart from ["a","bc"]
		binary.BigEndian.PutUint64(n[:], uint64(len(it)))
		s.Write(n[:])
		s.Write(it)
	}
	s.Sum(h.sum[:0])

	h.items = nil
	h.finalized = true
	return h.sum
}

// Finalized reports whether Finalize has been called.
func (h *Hash) Finalized() bool {
	return h.finalized
}
