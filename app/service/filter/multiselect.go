package filter

import (
	"strconv"

	"github.com/elliotchance/pie/v2"
)

// MultiSelect is one checkbox group. Toggling only changes the buffered
// selection; the displayed collection is recomputed by State.Apply.
type MultiSelect struct {
	defaultLabel string
	labelFn      func(string) string

	options []string
	checked map[string]bool
}

func NewMultiSelect(defaultLabel string, labelFn func(string) string) *MultiSelect {
	if labelFn == nil {
		labelFn = func(v string) string { return v }
	}

	return &MultiSelect{
		defaultLabel: defaultLabel,
		labelFn:      labelFn,
		checked:      map[string]bool{},
	}
}

// SetOptions rebuilds the group for a new option list. An empty selection
// checks every option.
func (m *MultiSelect) SetOptions(options []string, selection []string) {
	m.options = make([]string, 0, len(options))
	for _, opt := range options {
		if !pie.Contains(m.options, opt) {
			m.options = append(m.options, opt)
		}
	}
	m.checked = make(map[string]bool, len(m.options))

	for _, opt := range m.options {
		m.checked[opt] = len(selection) == 0 || pie.Contains(selection, opt)
	}
}

func (m *MultiSelect) Options() []string {
	return m.options
}

// Toggle flips one checkbox. Unknown values are ignored.
func (m *MultiSelect) Toggle(value string) {
	if !pie.Contains(m.options, value) {
		return
	}

	m.checked[value] = !m.checked[value]
}

func (m *MultiSelect) Checked(value string) bool {
	return m.checked[value]
}

// Selection returns the stored selection in option order. Every option checked
// and none checked both mean "unrestricted" and yield an empty selection.
func (m *MultiSelect) Selection() []string {
	checked := m.checkedValues()
	if len(checked) == len(m.options) {
		return []string{}
	}

	return checked
}

// Label mirrors the dropdown button text.
func (m *MultiSelect) Label() string {
	checked := m.checkedValues()

	switch {
	case len(checked) == 0 || len(checked) == len(m.options):
		return m.defaultLabel
	case len(checked) == 1:
		return m.labelFn(checked[0])
	default:
		return strconv.Itoa(len(checked)) + " sel."
	}
}

func (m *MultiSelect) checkedValues() []string {
	return pie.Filter(m.options, func(opt string) bool {
		return m.checked[opt]
	})
}
