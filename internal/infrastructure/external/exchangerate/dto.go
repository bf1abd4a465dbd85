package exchangerate

import (
	"strings"
	"time"

	"github.com/alem-hub/academy-core/internal/domain/currency"
)

// LatestResponseDTO is the body of GET <base-url>/<FROM>.
type LatestResponseDTO struct {
	Result            string             `json:"result,omitempty"`
	BaseCode          string             `json:"base_code,omitempty"`
	Rates             map[string]float64 `json:"rates"`
	TimeLastUpdateUTC string             `json:"time_last_update_utc"`
}

// lastUpdateLayouts are the timestamp formats seen in time_last_update_utc.
var lastUpdateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC3339,
}

// parseLastUpdate returns the zero time when the value is absent or unparseable.
func parseLastUpdate(v string) time.Time {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}
	}
	for _, layout := range lastUpdateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// ToRateTable maps the response into the domain table with uppercase codes.
func (d *LatestResponseDTO) ToRateTable(base string) *currency.RateTable {
	rates := make(map[string]float64, len(d.Rates))
	for code, v := range d.Rates {
		rates[currency.NormalizeCode(code)] = v
	}

	if d.BaseCode != "" {
		base = d.BaseCode
	}

	return &currency.RateTable{
		Base:      currency.NormalizeCode(base),
		Rates:     rates,
		UpdatedAt: parseLastUpdate(d.TimeLastUpdateUTC),
	}
}
