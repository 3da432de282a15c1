package payment

import (
	"bytes"
	"fmt"
	"math"
	"strconv"

	"github.com/ariefcatur/go-shop-checkout/internal/apperr"
)

var ErrInvalidAmount = apperr.New(apperr.Invalid, "INVALID_AMOUNT", "Amount must be a whole number")

// maxExactAmount is the largest integer a float64 holds exactly.
const maxExactAmount = 1 << 53

// Amount is a money value in minor units. Gateways send it as a JSON
// number; an integral float such as 100000.0 is accepted, a fractional one
// is rejected with ErrInvalidAmount.
type Amount int64

func (a *Amount) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	s := string(b)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		*a = Amount(n)
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || math.Abs(f) > maxExactAmount {
		return fmt.Errorf("%s: %w", s, ErrInvalidAmount)
	}
	*a = Amount(f)
	return nil
}
