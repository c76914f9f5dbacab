package config

import "github.com/shopspring/decimal"

// Static is a fixed map of configuration options. Options that are absent
// from the map are reported as unconfigured, which callers treat as null.
type Static struct {
	options map[string]decimal.Decimal
}

func NewStatic(options map[string]decimal.Decimal) *Static {
	copied := make(map[string]decimal.Decimal, len(options))
	for k, v := range options {
		copied[k] = v
	}
	return &Static{options: copied}
}

func (s *Static) Get(name string) (decimal.Decimal, bool) {
	v, ok := s.options[name]
	return v, ok
}
