package authcore

import (
	"errors"
	"testing"
)

func TestParseIdentifier(t *testing.T) {
	cases := []struct {
		name  string
		raw   string
		kind  IdentifierKind
		value string
		fail  bool
	}{
		{name: "email", raw: "buyer@example.com", kind: IdentifierEmail, value: "buyer@example.com"},
		{name: "email uppercased", raw: "Buyer@Example.COM", kind: IdentifierEmail, value: "buyer@example.com"},
		{name: "email with spaces", raw: "  buyer@example.com ", kind: IdentifierEmail, value: "buyer@example.com"},
		{name: "email with display name", raw: "Buyer <buyer@example.com>", fail: true},
		{name: "bare at sign", raw: "@", fail: true},
		{name: "phone international", raw: "+27821234567", kind: IdentifierPhone, value: "+27821234567"},
		{name: "phone with separators", raw: "082 123-4567", kind: IdentifierPhone, value: "0821234567"},
		{name: "phone parenthesized", raw: "(082) 123 4567", kind: IdentifierPhone, value: "0821234567"},
		{name: "phone too short", raw: "123456", fail: true},
		{name: "phone too long", raw: "+1234567890123456", fail: true},
		{name: "phone plus in middle", raw: "082+1234567", fail: true},
		{name: "phone with letters", raw: "082abc4567", fail: true},
		{name: "empty", raw: "", fail: true},
		{name: "whitespace only", raw: "   ", fail: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			id, err := ParseIdentifier(tc.raw)
			if tc.fail {
				if !errors.Is(err, ErrIdentifierInvalid) {
					t.Fatalf("expected ErrIdentifierInvalid, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if id.Kind != tc.kind {
				t.Fatalf("kind mismatch: got %d want %d", id.Kind, tc.kind)
			}
			if id.Value != tc.value {
				t.Fatalf("value mismatch: got %q want %q", id.Value, tc.value)
			}
		})
	}
}

func TestEmailIdentifierRejectsPhone(t *testing.T) {
	if _, err := EmailIdentifier("+27821234567"); !errors.Is(err, ErrIdentifierInvalid) {
		t.Fatalf("expected ErrIdentifierInvalid, got %v", err)
	}
}

func TestPhoneIdentifierRejectsEmail(t *testing.T) {
	if _, err := PhoneIdentifier("buyer@example.com"); !errors.Is(err, ErrIdentifierInvalid) {
		t.Fatalf("expected ErrIdentifierInvalid, got %v", err)
	}
}
