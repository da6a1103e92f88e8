package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateTaxID(t *testing.T) {
	id, err := ValidateTaxID("12.345.678/0001-90")
	require.NoError(t, err)
	assert.Equal(t, "12345678000190", id)

	_, err = ValidateTaxID("  ")
	assert.ErrorIs(t, err, ErrMissingTaxID)

	_, err = ValidateTaxID("1234567800019")
	assert.ErrorIs(t, err, ErrInvalidTaxID)

	_, err = ValidateTaxID("abc")
	assert.ErrorIs(t, err, ErrInvalidTaxID)
}

func TestValidateHours(t *testing.T) {
	assert.Equal(t, 24, ValidateHours(0))
	assert.Equal(t, 6, ValidateHours(6))
	assert.Equal(t, 720, ValidateHours(10000))
}

func TestValidateClientName(t *testing.T) {
	assert.NoError(t, ValidateClientName("erp-loja-centro"))
	assert.Error(t, ValidateClientName(""))
	assert.Error(t, ValidateClientName("bad\nname"))
}
