package schema

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// Text is a string field that remembers whether the source document carried
// it at all. Decoding never fails: null, absent, or a non-string value all
// leave the field unset.
type Text struct {
	Val string
	Set bool
}

func NewText(s string) Text { return Text{Val: s, Set: true} }

func (t *Text) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*t = Text{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		// numbers or other scalars where a string was expected: keep the
		// literal so an id printed without quotes still survives
		if b[0] != '{' && b[0] != '[' {
			*t = Text{Val: string(b), Set: true}
			return nil
		}
		*t = Text{}
		return nil
	}
	*t = Text{Val: s, Set: true}
	return nil
}

func (t Text) MarshalJSON() ([]byte, error) {
	if !t.Set {
		return []byte("null"), nil
	}
	return json.Marshal(t.Val)
}

// Truthy reports whether the field carries a usable value: present and
// non-empty. An empty string is indistinguishable from absent on purpose.
func (t Text) Truthy() bool { return t.Set && strings.TrimSpace(t.Val) != "" }

// Or returns t when truthy, otherwise fallback.
func (t Text) Or(fallback Text) Text {
	if t.Truthy() {
		return t
	}
	return fallback
}

// OrIfSet returns t when present (even if empty), otherwise fallback.
// Used by the strict-presence reconciliation mode.
func (t Text) OrIfSet(fallback Text) Text {
	if t.Set {
		return t
	}
	return fallback
}

func (t Text) String() string { return t.Val }

// Amount is a monetary or numeric field with explicit presence. Values arrive
// already normalized to dot-decimal form; comma handling is an upstream
// responsibility. Decoding never fails: null, absent, or an unusable value
// leave the field unset.
type Amount struct {
	Val decimal.Decimal
	Set bool
}

func NewAmount(v decimal.Decimal) Amount { return Amount{Val: v, Set: true} }

func AmountFromFloat(f float64) Amount {
	return Amount{Val: decimal.NewFromFloat(f), Set: true}
}

func (a *Amount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*a = Amount{}
		return nil
	}
	// strip quotes so numeric strings ("1549.19") parse too
	s := strings.Trim(string(b), `"`)
	s = strings.TrimSpace(s)
	if s == "" {
		*a = Amount{}
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		*a = Amount{}
		return nil
	}
	*a = Amount{Val: d, Set: true}
	return nil
}

func (a Amount) MarshalJSON() ([]byte, error) {
	if !a.Set {
		return []byte("null"), nil
	}
	return []byte(a.Val.String()), nil
}

// Truthy reports whether the field carries a usable value: present and
// non-zero. A present-but-zero amount is indistinguishable from absent; that
// is the documented (lossy) precedence policy.
func (a Amount) Truthy() bool { return a.Set && !a.Val.IsZero() }

// Or returns a when truthy, otherwise fallback.
func (a Amount) Or(fallback Amount) Amount {
	if a.Truthy() {
		return a
	}
	return fallback
}

// OrIfSet returns a when present (even if zero), otherwise fallback.
func (a Amount) OrIfSet(fallback Amount) Amount {
	if a.Set {
		return a
	}
	return fallback
}

// Float renders the value for tabular output; unset amounts flatten to 0.
func (a Amount) Float() float64 {
	if !a.Set {
		return 0
	}
	f, _ := a.Val.Float64()
	return f
}
