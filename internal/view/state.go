package view

// State is an interactive list position. Changing what is shown (search,
// status or sort) always goes back to the first page.
type State struct {
	q Query
}

func NewState(pageSize int) *State {
	q := DefaultQuery()
	if pageSize > 0 {
		q.PageSize = pageSize
	}
	return &State{q: q}
}

func (s *State) Query() Query { return s.q }

func (s *State) SetSearch(text string) {
	s.q.Search = text
	s.q.Page = 1
}

func (s *State) SetStatus(status Status) {
	s.q.Status = status
	s.q.Page = 1
}

// SortBy toggles the direction when key is already active, otherwise
// switches to key in ascending order.
func (s *State) SortBy(key SortKey) {
	if s.q.SortBy == key {
		if s.q.SortDir == Asc {
			s.q.SortDir = Desc
		} else {
			s.q.SortDir = Asc
		}
	} else {
		s.q.SortBy = key
		s.q.SortDir = Asc
	}
	s.q.Page = 1
}

func (s *State) SetPage(page int) {
	if page < 1 {
		page = 1
	}
	s.q.Page = page
}

// Clamp pulls the stored page back into range after a derivation.
func (s *State) Clamp(r Result) {
	s.q.Page = r.Page
}
