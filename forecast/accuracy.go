package forecast

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Accuracy is a backtest RMSE that may be unavailable. The zero value is
// Unavailable, so "not enough data" can never be mistaken for a perfect score.
type Accuracy struct {
	rmse      float64
	available bool
}

// Unavailable reports that the series was too short to backtest.
func Unavailable() Accuracy {
	return Accuracy{}
}

// Score wraps a computed RMSE.
func Score(rmse float64) Accuracy {
	return Accuracy{rmse: rmse, available: true}
}

// Value returns the RMSE and whether it was computed.
func (a Accuracy) Value() (float64, bool) {
	return a.rmse, a.available
}

// Available reports whether the RMSE was computed.
func (a Accuracy) Available() bool {
	return a.available
}

// Float64 returns the RMSE, or 0.0 when unavailable. Prefer Value; this
// exists for callers that expect the bare-number convention.
func (a Accuracy) Float64() float64 {
	if !a.available {
		return 0
	}
	return a.rmse
}

func (a Accuracy) String() string {
	if !a.available {
		return "n/a"
	}
	return strconv.FormatFloat(a.rmse, 'f', 2, 64)
}

// MarshalJSON encodes an unavailable score as null.
func (a Accuracy) MarshalJSON() ([]byte, error) {
	if !a.available {
		return []byte("null"), nil
	}
	return json.Marshal(a.rmse)
}

// UnmarshalJSON decodes null as Unavailable.
func (a *Accuracy) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*a = Unavailable()
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*a = Score(v)
	return nil
}
