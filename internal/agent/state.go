// Package agent runs the project development workflow: a brainstorm
// followed by repeated plan, execute, implement and review steps
// until the configured number of phases is reached.
package agent

// Message is one entry in the workflow transcript.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// PhaseRecord is the workflow's in-memory view of a phase. The store
// holds the durable copy; this one drives the loop.
type PhaseRecord struct {
	Number       int            `json:"number"`
	Title        string         `json:"title"`
	Specs        map[string]any `json:"specs"`
	Status       string         `json:"status"`
	ProgressData map[string]any `json:"progress_data,omitempty"`
}

// State carries the workflow between steps. Steps take a State value
// and return an updated copy, so a failed step can never leave a
// half-mutated state behind.
type State struct {
	ProjectName        string         `json:"project_name"`
	ProjectDescription string         `json:"project_description"`
	ProjectID          string         `json:"project_id"`
	Preferences        map[string]any `json:"preferences,omitempty"`

	CurrentPhase int           `json:"current_phase"`
	Phases       []PhaseRecord `json:"phases"`
	Messages     []Message     `json:"messages"`
	Brainstorm   map[string]any `json:"brainstorm,omitempty"`

	ShouldContinue bool   `json:"should_continue"`
	NextPhaseFocus string `json:"next_phase_focus,omitempty"`
	Err            string `json:"error,omitempty"`
}

// withMessage appends to a copied transcript so the caller's slice is
// never shared with the returned state.
func (s State) withMessage(role, content string) State {
	msgs := make([]Message, len(s.Messages), len(s.Messages)+1)
	copy(msgs, s.Messages)
	s.Messages = append(msgs, Message{Role: role, Content: content})
	return s
}

// withError marks the state terminal and records why.
func (s State) withError(msg string) State {
	s.Err = msg
	return s.withMessage("system", msg)
}

func (s State) withPhase(p PhaseRecord) State {
	phases := make([]PhaseRecord, len(s.Phases), len(s.Phases)+1)
	copy(phases, s.Phases)
	s.Phases = append(phases, p)
	s.CurrentPhase = p.Number
	return s
}

// withLastPhaseStatus updates the status of the phase being worked
// on, again on a copied slice.
func (s State) withLastPhaseStatus(status string) State {
	if len(s.Phases) == 0 {
		return s
	}
	phases := make([]PhaseRecord, len(s.Phases))
	copy(phases, s.Phases)
	phases[len(phases)-1].Status = status
	s.Phases = phases
	return s
}

func (s State) lastPhase() (PhaseRecord, bool) {
	if len(s.Phases) == 0 {
		return PhaseRecord{}, false
	}
	return s.Phases[len(s.Phases)-1], true
}
