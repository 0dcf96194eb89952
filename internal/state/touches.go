package state

// ActiveTouchSet holds one record per contact that is currently down,
// in the order the contacts started.
type ActiveTouchSet struct {
	records []TouchRecord
}

func NewActiveTouchSet() *ActiveTouchSet {
	return &ActiveTouchSet{records: make([]TouchRecord, 0, 10)}
}

// Index returns the position of id in the set, or -1.
// The set is bounded by hardware contact limits so a scan is fine.
func (s *ActiveTouchSet) Index(id int64) int {
	for i := range s.records {
		if s.records[i].Identifier == id {
			return i
		}
	}
	return -1
}

func (s *ActiveTouchSet) Lookup(id int64) (TouchRecord, bool) {
	if i := s.Index(id); i >= 0 {
		return s.records[i], true
	}
	return TouchRecord{}, false
}

// Add inserts t, or replaces the record already held for its identifier.
// It reports whether a new record was created.
func (s *ActiveTouchSet) Add(t TouchRecord) bool {
	if i := s.Index(t.Identifier); i >= 0 {
		s.records[i] = t
		return false
	}
	s.records = append(s.records, t)
	return true
}

// Update replaces the record for t.Identifier in place and returns the
// previous one. Unknown identifiers are left alone.
func (s *ActiveTouchSet) Update(t TouchRecord) (TouchRecord, bool) {
	i := s.Index(t.Identifier)
	if i < 0 {
		return TouchRecord{}, false
	}
	prev := s.records[i]
	s.records[i] = t
	return prev, true
}

func (s *ActiveTouchSet) Remove(id int64) (TouchRecord, bool) {
	i := s.Index(id)
	if i < 0 {
		return TouchRecord{}, false
	}
	rec := s.records[i]
	s.records = append(s.records[:i], s.records[i+1:]...)
	return rec, true
}

// Records returns a copy of the active records.
func (s *ActiveTouchSet) Records() []TouchRecord {
	out := make([]TouchRecord, len(s.records))
	copy(out, s.records)
	return out
}
