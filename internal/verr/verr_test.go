package verr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInvalidInputMessage(t *testing.T) {
	err := NewInvalidInput("preset_index", "out of range")
	assert.EqualError(t, err, "invalid input: preset_index: out of range")
	var target *InvalidInput
	assert.ErrorAs(t, err, &target)
}

func TestInsufficientDataMessage(t *testing.T) {
	err := NewInsufficientData("indicator", 5, 14)
	assert.EqualError(t, err, "indicator: insufficient data: have 5 bars, need 14")
	var target *InsufficientData
	assert.ErrorAs(t, err, &target)
	assert.Equal(t, 5, target.Have)
	assert.Equal(t, 14, target.Need)
}

func TestExternalFailureWrapsAndUnwraps(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewExternalFailure("binance", "GetKlines", cause)
	assert.EqualError(t, err, "binance.GetKlines: connection reset")
	assert.ErrorIs(t, err, cause)
}

func TestExternalFailureNilErrIsNil(t *testing.T) {
	assert.NoError(t, NewExternalFailure("binance", "GetKlines", nil))
}
