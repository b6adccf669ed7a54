// Package history tracks the last wake time of named targets in memory.
package history

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pihub/pihub/internal/models"
	"github.com/rs/zerolog"
)

// ErrNoHistory is returned when a target has never been woken.
var ErrNoHistory = errors.New("no wake recorded")

// Service defines the interface for wake history operations.
type Service interface {
	// Record overwrites any prior record for name.
	Record(name string, t time.Time)
	// Lookup returns the last wake record for name, or ErrNoHistory.
	Lookup(name string) (models.WakeRecord, error)
}

// Impl implements the history Service interface. A single mutex guards the
// whole map; a Record followed by a Lookup of the same name from any request
// observes the written value.
type Impl struct {
	mu      sync.RWMutex
	records map[string]models.WakeRecord
	logger  zerolog.Logger
}

// New creates an empty wake history store. Records live for the process
// lifetime only; nothing is persisted.
func New(logger zerolog.Logger) *Impl {
	return &Impl{
		records: make(map[string]models.WakeRecord),
		logger:  logger,
	}
}

// Record stores t as the last wake time of name, replacing any prior record.
func (s *Impl) Record(name string, t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[name] = models.WakeRecord{TargetName: name, LastWake: t}
	s.logger.Debug().Str("target", name).Time("last_wake", t).Msg("wake recorded")
}

// Lookup returns the last wake record for name.
func (s *Impl) Lookup(name string) (models.WakeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[name]
	if !ok {
		return models.WakeRecord{}, fmt.Errorf("%w for %s", ErrNoHistory, name)
	}
	return rec, nil
}
