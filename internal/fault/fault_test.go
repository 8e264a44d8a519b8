package fault

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, Validation, KindOf(Validationf("bad input")))
	assert.Equal(t, NotFound, KindOf(NotFoundf("missing")))
	assert.Equal(t, InsufficientFunds, KindOf(InsufficientFundsf("broke")))
	assert.Equal(t, Internal, KindOf(errors.New("plain")))
}

func TestKindOfWrappedChain(t *testing.T) {
	inner := NotFoundf("account x not found")
	outer := fmt.Errorf("loading account: %w", inner)
	assert.Equal(t, NotFound, KindOf(outer))

	// Wrap reclassifies; the outermost classification wins.
	reclassified := Wrap(Internal, inner, "store failure")
	assert.Equal(t, Internal, KindOf(reclassified))
	assert.True(t, errors.Is(reclassified, inner))
}

func TestErrorMessage(t *testing.T) {
	err := Wrap(Internal, errors.New("disk full"), "failed to save")
	assert.Equal(t, "failed to save: disk full", err.Error())
	assert.Equal(t, "bad kind: cash", New(Validation, "bad kind: %s", "cash").Error())
}

func TestIsKind(t *testing.T) {
	assert.True(t, IsKind(InvalidStatef("closed"), InvalidState))
	assert.False(t, IsKind(InvalidStatef("closed"), Validation))
	assert.False(t, IsKind(nil, Internal))
}
