package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapAndKindOf(t *testing.T) {
	base := errors.New("disk full")
	err := fmt.Errorf("committing: %w", Wrap(StorageFailure, "ledger.Commit", base))

	assert.Equal(t, StorageFailure, KindOf(err))
	assert.True(t, Is(err, StorageFailure))
	assert.False(t, Is(err, ValidationFailure))
	assert.ErrorIs(t, err, base)
	assert.Contains(t, err.Error(), "disk full")
}

func TestWrapNil(t *testing.T) {
	assert.NoError(t, Wrap(StorageFailure, "op", nil))
}

func TestKindOfPlainError(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
	assert.False(t, Is(nil, Unparseable))
}

func TestAmbiguousChoices(t *testing.T) {
	err := fmt.Errorf("selecting: %w", Ambiguous("categories.Select", []string{"Pix", "Pizza"}))
	require.True(t, Is(err, AmbiguousCategory))
	assert.Equal(t, []string{"Pix", "Pizza"}, ChoicesOf(err))
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "money.Parse: unparseable: no digits", New(Unparseable, "money.Parse", "no digits").Error())
	assert.Equal(t, "validation_failure: bad", New(ValidationFailure, "", "bad").Error())
}
