package authcore

import (
	"net/mail"
	"strings"
)

// IdentifierKind tags which lookup channel an identifier addresses.
type IdentifierKind int

const (
	IdentifierEmail IdentifierKind = iota + 1
	IdentifierPhone
)

// Identifier is a validated, normalized login identifier. Flows dispatch
// on Kind instead of inspecting the raw string.
type Identifier struct {
	Kind  IdentifierKind
	Value string
}

// ParseIdentifier classifies raw as an email address or a phone number
// and normalizes it: emails are lowercased, phone numbers reduced to a
// leading "+" plus digits. Anything else fails ErrIdentifierInvalid.
func ParseIdentifier(raw string) (Identifier, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Identifier{}, ErrIdentifierInvalid
	}

	if strings.ContainsRune(trimmed, '@') {
		email, err := normalizeEmail(trimmed)
		if err != nil {
			return Identifier{}, err
		}
		return Identifier{Kind: IdentifierEmail, Value: email}, nil
	}

	phone, err := normalizePhone(trimmed)
	if err != nil {
		return Identifier{}, err
	}
	return Identifier{Kind: IdentifierPhone, Value: phone}, nil
}

// EmailIdentifier validates raw as an email address.
func EmailIdentifier(raw string) (Identifier, error) {
	email, err := normalizeEmail(strings.TrimSpace(raw))
	if err != nil {
		return Identifier{}, err
	}
	return Identifier{Kind: IdentifierEmail, Value: email}, nil
}

// PhoneIdentifier validates raw as a phone number.
func PhoneIdentifier(raw string) (Identifier, error) {
	phone, err := normalizePhone(strings.TrimSpace(raw))
	if err != nil {
		return Identifier{}, err
	}
	return Identifier{Kind: IdentifierPhone, Value: phone}, nil
}

func normalizeEmail(raw string) (string, error) {
	addr, err := mail.ParseAddress(raw)
	if err != nil || addr.Address != raw {
		return "", ErrIdentifierInvalid
	}
	return strings.ToLower(raw), nil
}

func normalizePhone(raw string) (string, error) {
	var b strings.Builder
	b.Grow(len(raw))

	for i, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '(' || r == ')':
			// separators tolerated, dropped
		default:
			return "", ErrIdentifierInvalid
		}
	}

	phone := b.String()
	digits := strings.TrimPrefix(phone, "+")
	if len(digits) < 7 || len(digits) > 15 {
		return "", ErrIdentifierInvalid
	}
	return phone, nil
}
