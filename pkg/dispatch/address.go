package dispatch

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
)

// AddressKind tells groups and individual contacts apart.
type AddressKind string

const (
	Individual AddressKind = "individual"
	Group      AddressKind = "group"
)

const (
	GroupSuffix   = "@g.us"
	ContactSuffix = "@c.us"

	// DefaultCountryCode is prepended to local ten digit numbers.
	DefaultCountryCode = "55"

	groupDigitThreshold = 15
	localNumberDigits   = 10
	fullNumberDigits    = 12

	formatHint = "use the format DDNNNNNNNN (e.g. 3791470016)"
)

// CanonicalAddress is a destination reduced to digits, classified and
// suffixed with the platform domain.
type CanonicalAddress struct {
	Digits     string      `json:"digits"`
	Kind       AddressKind `json:"kind"`
	PlatformID string      `json:"platformId"`
}

func (a CanonicalAddress) IsGroup() bool {
	return a.Kind == Group
}

// Normalizer turns raw destinations into canonical addresses.
type Normalizer struct {
	CountryCode string
}

// Normalize uses DefaultCountryCode.
func Normalize(raw string) (CanonicalAddress, error) {
	return Normalizer{}.Normalize(raw)
}

func (n Normalizer) Normalize(raw string) (CanonicalAddress, error) {
	digits := Digits(raw)
	if digits == "" {
		return CanonicalAddress{}, newError(InvalidAddress, "destination has no digits, "+formatHint, nil)
	}

	if len(digits) > groupDigitThreshold {
		return CanonicalAddress{Digits: digits, Kind: Group, PlatformID: PlatformID(digits, Group)}, nil
	}

	switch len(digits) {
	case localNumberDigits:
		digits = n.countryCode() + digits
	case fullNumberDigits:
	default:
		return CanonicalAddress{}, newError(InvalidAddress, "invalid number "+digits+", "+formatHint, nil)
	}

	return CanonicalAddress{Digits: digits, Kind: Individual, PlatformID: PlatformID(digits, Individual)}, nil
}

func (n Normalizer) countryCode() string {
	if cc := Digits(n.CountryCode); cc != "" {
		return cc
	}
	return DefaultCountryCode
}

// Digits strips every non digit character.
func Digits(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func PlatformID(digits string, kind AddressKind) string {
	if kind == Group {
		return digits + GroupSuffix
	}
	return digits + ContactSuffix
}

// ParsePlatformID splits a serialized platform id back into an address.
func ParsePlatformID(id string) (CanonicalAddress, bool) {
	switch {
	case strings.HasSuffix(id, GroupSuffix):
		digits := strings.TrimSuffix(id, GroupSuffix)
		return CanonicalAddress{Digits: digits, Kind: Group, PlatformID: id}, digits != ""
	case strings.HasSuffix(id, ContactSuffix):
		digits := strings.TrimSuffix(id, ContactSuffix)
		return CanonicalAddress{Digits: digits, Kind: Individual, PlatformID: id}, digits != ""
	}
	return CanonicalAddress{}, false
}

// Destination is a raw destination as received from a JSON body. It accepts
// both strings and numbers; numbers are kept exactly as written so long
// group identifiers never pass through a float.
type Destination string

func (d *Destination) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*d = ""
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*d = Destination(strings.TrimSpace(s))
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return errors.New("destination must be a string or a number")
	}
	*d = Destination(n.String())
	return nil
}

func (d Destination) String() string {
	return string(d)
}
