package invoice

import (
	"fmt"
	"strconv"
	"sync/atomic"

	"github.com/google/uuid"
)

// IDGenerator hands out line item identifiers.
type IDGenerator interface {
	NewID() string
}

// UUIDs generates random v4 identifiers.
type UUIDs struct{}

func (UUIDs) NewID() string { return uuid.NewString() }

// SequenceIDs generates increasing decimal identifiers starting after Start.
type SequenceIDs struct {
	next atomic.Int64
}

// NewSequenceIDs returns a generator whose first id is start+1.
func NewSequenceIDs(start int64) *SequenceIDs {
	s := &SequenceIDs{}
	s.next.Store(start)
	return s
}

func (s *SequenceIDs) NewID() string {
	return strconv.FormatInt(s.next.Add(1), 10)
}

// Observe moves the sequence past any numeric ids already in doc so loaded
// documents never collide with new items.
func (s *SequenceIDs) Observe(doc Document) {
	for _, item := range doc.LineItems {
		n, err := strconv.ParseInt(item.ID, 10, 64)
		if err != nil {
			continue
		}
		for {
			cur := s.next.Load()
			if n <= cur || s.next.CompareAndSwap(cur, n) {
				break
			}
		}
	}
}

// NewIDGenerator builds a generator from a configuration value.
func NewIDGenerator(strategy string) (IDGenerator, error) {
	switch strategy {
	case "", "uuid":
		return UUIDs{}, nil
	case "sequence":
		return NewSequenceIDs(0), nil
	default:
		return nil, fmt.Errorf("invoice: unknown id strategy %q", strategy)
	}
}
