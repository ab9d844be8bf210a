package rates

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"taxledger/internal/core"
)

//go:embed fallback.yaml
var embeddedFallback []byte

// Table is a rate table quoted against Base.
type Table struct {
	Base  string
	Rates core.Rates
}

type tableFile struct {
	Base  string            `yaml:"base"`
	Rates map[string]string `yaml:"rates"`
}

// LoadFallback reads the fallback table from path, or the built-in table
// when path is empty.
func LoadFallback(path string) (Table, error) {
	data := embeddedFallback
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Table{}, fmt.Errorf("read fallback rates: %w", err)
		}
		data = b
	}
	return parseTable(data)
}

func parseTable(data []byte) (Table, error) {
	var f tableFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Table{}, fmt.Errorf("parse fallback rates: %w", err)
	}
	base := core.NormalizeCode(f.Base)
	if base == "" {
		base = core.BaseCurrency
	}
	if base != core.BaseCurrency {
		return Table{}, fmt.Errorf("fallback rates must be quoted against %s, got %s", core.BaseCurrency, base)
	}

	t := Table{Base: base, Rates: core.Rates{}}
	for code, raw := range f.Rates {
		rate, err := decimal.NewFromString(raw)
		if err != nil || !rate.IsPositive() {
			return Table{}, fmt.Errorf("fallback rate for %s: invalid value %q", code, raw)
		}
		t.Rates[core.NormalizeCode(code)] = rate
	}
	t.Rates[base] = decimal.NewFromInt(1)
	return t, nil
}
