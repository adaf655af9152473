package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTaxonomyMarkers(t *testing.T) {
	parse := Parsef("document %q has no elements", "a.html")
	contract := Contractf("graph has no root")

	assert.True(t, IsParse(parse))
	assert.False(t, IsContract(parse))
	assert.True(t, IsContract(contract))
	assert.False(t, IsParse(contract))
	assert.False(t, IsParse(nil))
}

func TestMarkersSurviveWrapping(t *testing.T) {
	base := Contractf("graph has no root")
	wrapped := fmt.Errorf("failed to harvest: %w", Wrap(base, "resolve lineage"))

	assert.True(t, IsContract(wrapped))
	assert.Contains(t, wrapped.Error(), "graph has no root")
}

func TestIsNotFound(t *testing.T) {
	err := Wrapf(ErrNotFound, "template %s", "news")
	assert.True(t, IsNotFound(err))
	assert.False(t, IsNotFound(New("other")))
}
