package warmup

// SeenSet tracks creator handles already encountered in a run so the
// scheduler does not re-engage them. It is bounded: when an insert
// would exceed the limit the whole set is cleared first, trading exact
// history for a fixed footprint and letting old creators resurface.
type SeenSet struct {
	limit   int
	members map[string]struct{}
}

func NewSeenSet(limit int) *SeenSet {
	return &SeenSet{
		limit:   limit,
		members: make(map[string]struct{}),
	}
}

// Seen reports whether the handle was recorded since the last clear.
func (s *SeenSet) Seen(handle string) bool {
	_, ok := s.members[handle]
	return ok
}

// Add records a handle, clearing the set first when it is full.
func (s *SeenSet) Add(handle string) {
	if handle == "" {
		return
	}
	if len(s.members) >= s.limit {
		s.members = make(map[string]struct{})
	}
	s.members[handle] = struct{}{}
}

// Len returns the number of tracked handles.
func (s *SeenSet) Len() int {
	return len(s.members)
}
