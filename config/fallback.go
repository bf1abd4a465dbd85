package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/alem-hub/academy-core/internal/domain/currency"
)

// FallbackFile is the on-disk shape of the fallback rate table:
//
//	base: USD
//	merge: true
//	rates:
//	  SAR: 3.75
//	  EGP: 47.59
type FallbackFile struct {
	Base  string             `yaml:"base"`
	Merge bool               `yaml:"merge"`
	Rates map[string]float64 `yaml:"rates"`
}

// LoadFallbackTable returns the built-in table when path is empty. Otherwise
// it reads the file; with merge set the file's rates override the built-in
// ones, without it they replace the table.
func LoadFallbackTable(path string) (currency.FallbackTable, error) {
	if path == "" {
		return currency.DefaultFallbackTable(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fallback rates: %w", err)
	}
	return ParseFallbackTable(data)
}

// ParseFallbackTable decodes and validates a fallback table document.
func ParseFallbackTable(data []byte) (currency.FallbackTable, error) {
	var file FallbackFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode fallback rates: %w", err)
	}
	if len(file.Rates) == 0 {
		return nil, fmt.Errorf("fallback rates: no rates defined")
	}

	rates := currency.FallbackTable(file.Rates).Normalize()
	for code, rate := range rates {
		if code == "" {
			return nil, fmt.Errorf("fallback rates: empty currency code")
		}
		if rate <= 0 {
			return nil, fmt.Errorf("fallback rates: %s must be positive, got %v", code, rate)
		}
	}

	if base := currency.NormalizeCode(file.Base); base != "" {
		if rate, ok := rates[base]; !ok {
			rates[base] = 1
		} else if rate != 1 {
			return nil, fmt.Errorf("fallback rates: base %s must have rate 1, got %v", base, rate)
		}
	}

	if !file.Merge {
		return rates, nil
	}

	table := currency.DefaultFallbackTable()
	for code, rate := range rates {
		table[code] = rate
	}
	return table, nil
}
