package lineitem

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// MaxQuantity bounds both the quantity and the billing count of a line so
// that a line amount fits the numeric(14,2) money columns.
const MaxQuantity = 10000

// Input is a service selection as submitted by a form.
type Input struct {
	ServiceID    string    `json:"service_id" validate:"required"`
	Quantity     Quantity  `json:"quantity"`
	BillingCount *Quantity `json:"billing_count,omitempty"`
}

// Quantity accepts a JSON number or a numeric string. Empty, non-numeric,
// fractional or out of range values decode to zero, which marks the line as
// not configured.
type Quantity int64

// Bounded returns q, or zero when q is outside 0..MaxQuantity.
func (q Quantity) Bounded() int64 {
	if q < 0 || q > MaxQuantity {
		return 0
	}
	return int64(q)
}

func (q *Quantity) UnmarshalJSON(data []byte) error {
	*q = 0
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	raw := string(data)
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		raw = strings.TrimSpace(s)
	}

	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		*q = Quantity(Quantity(n).Bounded())
		return nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f != math.Trunc(f) || f < 0 || f > MaxQuantity {
		return nil
	}
	*q = Quantity(f)
	return nil
}
