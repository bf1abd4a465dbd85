package currency

// EmergencyRateSAREGP is the last-resort SAR->EGP rate used when even the
// fallback table cannot price the pair.
const EmergencyRateSAREGP = 12.69

// FallbackTable maps a currency code to its rate against one common base.
type FallbackTable map[string]float64

// DefaultFallbackTable returns the built-in table, priced against USD.
func DefaultFallbackTable() FallbackTable {
	return FallbackTable{
		"USD": 1,
		"SAR": 3.75,
		"EGP": 47.5875,
		"AED": 3.6725,
		"QAR": 3.64,
		"KWD": 0.3075,
		"BHD": 0.376,
		"OMR": 0.385,
		"JOD": 0.709,
		"EUR": 0.92,
		"GBP": 0.79,
		"TRY": 32.5,
		"MYR": 4.7,
		"IDR": 15800,
		"PKR": 278,
	}
}

// Normalize returns a copy with uppercase codes.
func (t FallbackTable) Normalize() FallbackTable {
	out := make(FallbackTable, len(t))
	for code, rate := range t {
		out[NormalizeCode(code)] = rate
	}
	return out
}

// CrossRate converts through the common base: (1/from)*to.
// Missing codes or non-positive rates yield ErrNoFallbackAvailable.
func (t FallbackTable) CrossRate(p Pair) (float64, error) {
	fromRate, okFrom := t[p.From]
	toRate, okTo := t[p.To]
	if !okFrom || !okTo || fromRate <= 0 || toRate <= 0 {
		return 0, ErrNoFallbackAvailable
	}
	return (1 / fromRate) * toRate, nil
}

// EmergencyRate returns the hard-coded rate for pairs that have one.
func EmergencyRate(p Pair) (float64, bool) {
	if p.From == "SAR" && p.To == "EGP" {
		return EmergencyRateSAREGP, true
	}
	return 0, false
}
