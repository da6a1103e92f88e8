package validation

import (
	"errors"
	"strings"

	"github.com/gdbrns/go-whatsapp-erp-dispatcher/pkg/dispatch"
)

const taxIDDigits = 14

var (
	ErrMissingTaxID = errors.New("cnpj is required")
	ErrInvalidTaxID = errors.New("cnpj must have 14 digits")
)

// ValidateTaxID strips punctuation from a CNPJ and checks its length.
func ValidateTaxID(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", ErrMissingTaxID
	}
	digits := dispatch.Digits(raw)
	if len(digits) != taxIDDigits {
		return "", ErrInvalidTaxID
	}
	return digits, nil
}

// ValidateHours keeps the journal window between one hour and thirty days.
func ValidateHours(hours int) int {
	switch {
	case hours <= 0:
		return 24
	case hours > 24*30:
		return 24 * 30
	default:
		return hours
	}
}

// ValidateClientName ensures a token subject is present and printable.
func ValidateClientName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("client name is required")
	}
	if len(name) > 64 {
		return errors.New("client name must be at most 64 characters")
	}
	for _, r := range name {
		if r < 0x20 || r == 0x7f {
			return errors.New("client name must not contain control characters")
		}
	}
	return nil
}
