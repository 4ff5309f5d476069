package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/efreitasn/simexchange/internal/domain"
)

// InstrumentSeed describes one listed company in the seed file.
type InstrumentSeed struct {
	Ticker string `yaml:"ticker"`
	Name   string `yaml:"name"`
	Sector string `yaml:"sector"`
	Price  int64  `yaml:"price"`
}

type seedFile struct {
	Instruments []InstrumentSeed `yaml:"instruments"`
}

// DefaultInstruments is the listing used when no seed file is configured.
var DefaultInstruments = []InstrumentSeed{
	{"RE001", "Real Estate Co.", "Real Estate", 20},
	{"EN002", "Energy Corp.", "Energy", 30},
	{"IN003", "Industrial Sol.", "Industrial", 40},
	{"CC004", "Consumer Tech", "Consumer Cyclical", 50},
	{"DC005", "Daily Goods", "Consumer Defensive", 60},
	{"HC006", "Health Care Inc.", "Healthcare", 70},
	{"FI007", "Finance Group", "Financial", 80},
	{"IT008", "InfoTech Systems", "Technology", 90},
	{"CS009", "Comm Services", "Communication", 100},
	{"UT010", "Utilities Power", "Utilities", 110},
	{"BM011", "Basic Materials", "Basic Materials", 120},
}

// LoadInstruments reads the instrument seed from path, or returns the
// default listing when path is empty.
func LoadInstruments(path string) ([]domain.Instrument, error) {
	seeds := DefaultInstruments
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read instruments file: %w", err)
		}
		if seeds, err = ParseInstruments(data); err != nil {
			return nil, err
		}
	}

	out := make([]domain.Instrument, 0, len(seeds))
	for _, s := range seeds {
		out = append(out, domain.Instrument{
			Ticker:       s.Ticker,
			Name:         s.Name,
			Sector:       s.Sector,
			CurrentPrice: s.Price,
		})
	}
	return out, nil
}

// ParseInstruments decodes and validates a YAML instrument seed.
func ParseInstruments(data []byte) ([]InstrumentSeed, error) {
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse instruments file: %w", err)
	}
	if len(f.Instruments) == 0 {
		return nil, fmt.Errorf("instruments file lists no instruments")
	}

	seen := make(map[string]bool, len(f.Instruments))
	for i, s := range f.Instruments {
		if !domain.ValidTicker(s.Ticker) {
			return nil, fmt.Errorf("instrument %d: invalid ticker %q", i, s.Ticker)
		}
		if seen[s.Ticker] {
			return nil, fmt.Errorf("instrument %d: duplicate ticker %q", i, s.Ticker)
		}
		seen[s.Ticker] = true
		if s.Price <= 0 || s.Price > domain.MaxPrice {
			return nil, fmt.Errorf("instrument %s: price must be between 1 and %d", s.Ticker, domain.MaxPrice)
		}
	}
	return f.Instruments, nil
}
