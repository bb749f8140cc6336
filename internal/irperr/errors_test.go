package irperr

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorIsMatchesKind(t *testing.T) {
	err := Validation("edm_name cannot be empty")

	assert.True(t, errors.Is(err, ErrValidation))
	assert.False(t, errors.Is(err, ErrAPI))
	assert.Equal(t, "edm_name cannot be empty", err.Error())
}

func TestWrapPreservesChain(t *testing.T) {
	err := Wrap(KindFile, io.ErrUnexpectedEOF, "failed to read mapping file %q", "mapping.json")

	assert.True(t, errors.Is(err, ErrFile))
	assert.True(t, errors.Is(err, io.ErrUnexpectedEOF))
	assert.Contains(t, err.Error(), "mapping.json")
	assert.Contains(t, err.Error(), "unexpected EOF")
}

func TestWrapNil(t *testing.T) {
	assert.NoError(t, Wrap(KindAPI, nil, "nothing"))
}

func TestKindOfThroughFmtWrap(t *testing.T) {
	inner := ReferenceData("portfolio with name %s not found", "USFL")
	outer := fmt.Errorf("geohaz submission: %w", inner)

	assert.Equal(t, KindReferenceData, KindOf(outer))
	assert.True(t, errors.Is(outer, ErrReferenceData))
	assert.Equal(t, Kind(0), KindOf(io.EOF))
}

func TestEnsureKind(t *testing.T) {
	classified := API("Location header missing from response")
	assert.Same(t, classified, EnsureKind(KindFile, classified, "ignored"))

	wrapped := EnsureKind(KindFile, io.EOF, "upload")
	assert.True(t, errors.Is(wrapped, ErrFile))
	assert.True(t, errors.Is(wrapped, io.EOF))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "job timeout", KindJobTimeout.String())
	assert.Equal(t, "unknown", Kind(99).String())
}
