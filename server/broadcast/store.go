package broadcast

// Store is the set of values observed by the node.
//
// The set never shrinks. Store isn't safe for concurrent use as it is only
// accessed by the dispatch loop.
type Store struct {
	values map[int]struct{}
}

func NewStore() *Store {
	return &Store{
		values: make(map[int]struct{}),
	}
}

// Record adds the value to the store. Returns true if the value was not
// already recorded.
func (s *Store) Record(v int) bool {
	if _, ok := s.values[v]; ok {
		return false
	}
	s.values[v] = struct{}{}
	return true
}

// Snapshot returns all recorded values in an unspecified order.
func (s *Store) Snapshot() []int {
	values := make([]int, 0, len(s.values))
	for v := range s.values {
		values = append(values, v)
	}
	return values
}

func (s *Store) Len() int {
	return len(s.values)
}
