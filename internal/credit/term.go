package credit

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrInvalidTerm = errors.New("invalid credit term")

// Term is a loan duration: one of the fixed terms or a custom term longer
// than 24 months.
type Term struct {
	months uint8
	custom bool
}

var (
	Term3  = Term{months: 3}
	Term6  = Term{months: 6}
	Term12 = Term{months: 12}
	Term24 = Term{months: 24}
)

// CustomTerm returns a term of n months; n must exceed 24.
func CustomTerm(n uint8) (Term, error) {
	if n <= 24 {
		return Term{}, fmt.Errorf("%w: custom term must exceed 24 months, got %d", ErrInvalidTerm, n)
	}
	return Term{months: n, custom: true}, nil
}

func (t Term) Months() int    { return int(t.months) }
func (t Term) IsCustom() bool { return t.custom }
func (t Term) Valid() bool    { return t.months > 0 }

// String renders the wire form: "3m", "6m", "12m", "24m" or "custom:N".
func (t Term) String() string {
	if t.custom {
		return "custom:" + strconv.Itoa(int(t.months))
	}
	return strconv.Itoa(int(t.months)) + "m"
}

func (t Term) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, ErrInvalidTerm
	}
	return []byte(t.String()), nil
}

func (t *Term) UnmarshalText(b []byte) error {
	s := string(b)
	switch s {
	case "3m":
		*t = Term3
	case "6m":
		*t = Term6
	case "12m":
		*t = Term12
	case "24m":
		*t = Term24
	default:
		raw, ok := strings.CutPrefix(s, "custom:")
		if !ok {
			return fmt.Errorf("%w: %q", ErrInvalidTerm, s)
		}
		n, err := strconv.ParseUint(raw, 10, 8)
		if err != nil {
			return fmt.Errorf("%w: %q", ErrInvalidTerm, s)
		}
		ct, err := CustomTerm(uint8(n))
		if err != nil {
			return err
		}
		*t = ct
	}
	return nil
}
