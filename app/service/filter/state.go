package filter

import (
	"strings"

	"github.com/elliotchance/pie/v2"
)

// Field extracts the value a dimension is matched against.
type Field[T any] func(T) string

// State holds the committed per-dimension selections of one view.
type State struct {
	order      []string
	selections map[string][]string
}

func NewState(dimensions ...string) *State {
	s := &State{selections: map[string][]string{}}
	for _, d := range dimensions {
		s.order = append(s.order, d)
		s.selections[d] = []string{}
	}

	return s
}

// Commit stores the current selection of every multi-select, keyed by
// dimension. Called from the explicit search/update trigger.
func (s *State) Commit(groups map[string]*MultiSelect) {
	for dimension, group := range groups {
		if _, ok := s.selections[dimension]; !ok {
			s.order = append(s.order, dimension)
		}
		s.selections[dimension] = group.Selection()
	}
}

func (s *State) Set(dimension string, values []string) {
	if _, ok := s.selections[dimension]; !ok {
		s.order = append(s.order, dimension)
	}
	s.selections[dimension] = values
}

func (s *State) Get(dimension string) []string {
	return s.selections[dimension]
}

// Apply keeps the records whose field equals one of the selected values on
// every non-empty dimension. Order is preserved.
func Apply[T any](s *State, records []T, fields map[string]Field[T]) []T {
	return pie.Filter(records, func(record T) bool {
		for _, dimension := range s.order {
			selected := s.selections[dimension]
			if len(selected) == 0 {
				continue
			}

			field, ok := fields[dimension]
			if !ok {
				continue
			}

			if !pie.Contains(selected, field(record)) {
				return false
			}
		}

		return true
	})
}

// Match is the single-select predicate: an empty selection matches everything.
func Match(selected, value string) bool {
	return selected == "" || selected == value
}

// ContainsFold reports whether value contains term ignoring case. An empty term
// matches.
func ContainsFold(value, term string) bool {
	term = strings.TrimSpace(term)

	return term == "" || strings.Contains(strings.ToLower(value), strings.ToLower(term))
}
