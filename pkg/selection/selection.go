// Package selection tracks the selected dashboard, the selected panel and the
// dashboard's input values.
package selection

import "maps"

// State is the selection and navigation state of one session. It is a value
// type; callers mutate a copy and hand it back.
type State struct {
	Dashboard        string            `json:"selected_dashboard,omitempty" yaml:"selected_dashboard,omitempty"`
	Panel            string            `json:"selected_panel,omitempty" yaml:"selected_panel,omitempty"`
	Inputs           map[string]string `json:"selected_dashboard_inputs,omitempty" yaml:"selected_dashboard_inputs,omitempty"`
	LastChangedInput string            `json:"last_changed_input,omitempty" yaml:"last_changed_input,omitempty"`
}

// SelectDashboard switches to fullName and resets everything scoped to the
// previous dashboard.
func (s *State) SelectDashboard(fullName string) {
	*s = State{Dashboard: fullName}
}

// SelectPanel records the path of the selected node. The caller is
// responsible for checking that the path exists.
func (s *State) SelectPanel(path string) {
	s.Panel = path
}

// ClosePanelDetail clears the selected panel only.
func (s *State) ClosePanelDetail() {
	s.Panel = ""
}

// SetInput stores one input value and marks it as the most recent change.
func (s *State) SetInput(name, value string) {
	if s.Inputs == nil {
		s.Inputs = make(map[string]string)
	}
	s.Inputs[name] = value
	s.LastChangedInput = name
}

// Input returns the current value of an input.
func (s State) Input(name string) (string, bool) {
	v, ok := s.Inputs[name]
	return v, ok
}

// HasDashboard reports whether a dashboard is selected.
func (s State) HasDashboard() bool {
	return s.Dashboard != ""
}

// Clone returns a copy that shares no maps with s.
func (s State) Clone() State {
	out := s
	out.Inputs = maps.Clone(s.Inputs)
	return out
}
