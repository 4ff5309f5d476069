package store

import (
	"sort"
	"sync"

	"github.com/efreitasn/simexchange/internal/domain"
)

// InstrumentStore is a thread-safe registry of instruments keyed by
// ticker. It stores values: readers get copies and writers replace the
// whole record, so a reader never observes a half-applied trade.
type InstrumentStore struct {
	mu          sync.RWMutex
	instruments map[string]domain.Instrument
}

// NewInstrumentStore creates an empty InstrumentStore.
func NewInstrumentStore() *InstrumentStore {
	return &InstrumentStore{
		instruments: make(map[string]domain.Instrument),
	}
}

// Create registers a new instrument. It returns
// domain.ErrInstrumentExists if the ticker is already registered.
func (s *InstrumentStore) Create(inst domain.Instrument) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.instruments[inst.Ticker]; exists {
		return domain.ErrInstrumentExists
	}
	s.instruments[inst.Ticker] = inst
	return nil
}

// Get returns a copy of the instrument. It returns
// domain.ErrUnknownInstrument if the ticker is not registered.
func (s *InstrumentStore) Get(ticker string) (domain.Instrument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inst, ok := s.instruments[ticker]
	if !ok {
		return domain.Instrument{}, domain.ErrUnknownInstrument
	}
	return inst, nil
}

// Put replaces the record of an already registered instrument.
func (s *InstrumentStore) Put(inst domain.Instrument) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.instruments[inst.Ticker]; !exists {
		return domain.ErrUnknownInstrument
	}
	s.instruments[inst.Ticker] = inst
	return nil
}

// Exists returns true if the ticker is registered.
func (s *InstrumentStore) Exists(ticker string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.instruments[ticker]
	return ok
}

// List returns copies of all instruments ordered by ticker.
func (s *InstrumentStore) List() []domain.Instrument {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Instrument, 0, len(s.instruments))
	for _, inst := range s.instruments {
		out = append(out, inst)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ticker < out[j].Ticker })
	return out
}

// Tickers returns all registered tickers in lexicographic order.
func (s *InstrumentStore) Tickers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.instruments))
	for t := range s.instruments {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
