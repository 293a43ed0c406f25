package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/HendryAvila/aidev/internal/implementer"
	"github.com/HendryAvila/aidev/internal/llm"
)

// Phase statuses as the workflow tracks them locally.
const (
	statusPlanned   = "planned"
	statusSaved     = "saved"
	statusCompleted = "completed"
	statusFailed    = "failed"
)

// PhaseImplementer builds the files for a planned phase. Wiring one
// in switches the runner from plan-only to automatic mode.
type PhaseImplementer interface {
	ImplementPhase(
		ctx context.Context,
		spec implementer.PhaseSpec,
		projectName, projectDescription string,
		previous []implementer.PhaseSummary,
	) implementer.Result
}

// Runner drives the workflow loop:
//
//	brainstorm → (plan → execute → [implement] → review)* → done
//
// The loop ends when review decides to stop or any step other than
// review fails.
type Runner struct {
	llm       llm.Client
	tools     Invoker
	maxPhases int
	impl      PhaseImplementer
	logger    *zap.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithImplementer enables automatic mode: each saved phase gets
// implemented on disk before review.
func WithImplementer(impl PhaseImplementer) RunnerOption {
	return func(r *Runner) { r.impl = impl }
}

func WithLogger(l *zap.Logger) RunnerOption {
	return func(r *Runner) { r.logger = l }
}

// NewRunner builds a workflow runner targeting maxPhases phases.
func NewRunner(client llm.Client, tools Invoker, maxPhases int, opts ...RunnerOption) *Runner {
	r := &Runner{
		llm:       client,
		tools:     tools,
		maxPhases: maxPhases,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes the workflow to completion and returns the final
// state. Failures are reported in State.Err, never as a Go error:
// the partial transcript and phase list are part of the outcome.
func (r *Runner) Run(ctx context.Context, s State) State {
	s.ShouldContinue = true

	s = r.brainstorm(ctx, s)

	for s.Err == "" && s.ShouldContinue {
		s = r.plan(ctx, s)
		if s.Err != "" {
			break
		}
		s = r.execute(ctx, s)
		if s.Err != "" {
			break
		}
		if r.impl != nil {
			s = r.implement(ctx, s)
			if s.Err != "" {
				break
			}
		}
		s = r.review(ctx, s)
	}

	if s.Err != "" {
		r.logger.Error("workflow ended with error",
			zap.String("project", s.ProjectName), zap.String("error", s.Err))
	} else {
		r.logger.Info("workflow completed",
			zap.String("project", s.ProjectName), zap.Int("phases", len(s.Phases)))
	}
	return s
}

// brainstorm analyzes the project before any phase is planned. Its
// output feeds every later planning prompt.
func (r *Runner) brainstorm(ctx context.Context, s State) State {
	prompt := fmt.Sprintf(`You are an expert software architect analyzing a new project before development starts.

Project Name: %s
Project Description: %s

Project Requirements and Preferences (PRP):
%s

Analyze the project covering: core purpose and key features, suitable
technologies and architecture, scope and MVP features, main risks,
development phases and build order, and security/testing practices.

Return your analysis as JSON:
{
    "project_understanding": {"core_purpose": "...", "key_features": ["..."]},
    "technical_analysis": {"recommended_technologies": ["..."], "architecture_pattern": "...", "main_challenges": ["..."]},
    "project_scope": {"mvp_features": ["..."], "out_of_scope": ["..."]},
    "risk_assessment": {"main_risks": ["..."]},
    "recommendations": {"total_phases_suggested": <number>, "phase_breakdown": ["..."]},
    "best_practices": {"security": ["..."], "testing_strategy": "..."}
}

Return ONLY valid JSON, no other text.`,
		s.ProjectName, s.ProjectDescription, PreferencesContext(s.Preferences))

	response, err := r.llm.Complete(ctx, prompt, llm.TempPlanning)
	if err != nil {
		return s.withError(fmt.Sprintf("brainstorm failed: %v", err))
	}

	var analysis map[string]any
	if err := llm.ExtractJSON(response, &analysis); err != nil {
		return s.withError(fmt.Sprintf("failed to parse brainstorm response as JSON: %v", err))
	}

	s.Brainstorm = analysis
	suggested := "unknown"
	if rec, ok := analysis["recommendations"].(map[string]any); ok {
		if n, ok := rec["total_phases_suggested"]; ok {
			suggested = fmt.Sprint(n)
		}
	}
	r.logger.Info("brainstorm completed",
		zap.String("project", s.ProjectName), zap.String("suggested_phases", suggested))
	return s.withMessage("assistant",
		fmt.Sprintf("Brainstorm completed. Analysis suggests %s phases.", suggested))
}

// plan asks for the next phase specification. A response that cannot
// be parsed or misses required fields ends the run: retrying the same
// prompt tends to reproduce the same malformed output.
func (r *Runner) plan(ctx context.Context, s State) State {
	var b strings.Builder
	fmt.Fprintf(&b, "Project: %s\nDescription: %s\n", s.ProjectName, s.ProjectDescription)
	fmt.Fprintf(&b, "Current Phase: %d\nPrevious Phases: %d\n", s.CurrentPhase, len(s.Phases))
	fmt.Fprintf(&b, "Target Total Phases: %d\nRemaining Phases Needed: %d\n",
		r.maxPhases, r.maxPhases-s.CurrentPhase)
	fmt.Fprintf(&b, "\nProject Requirements and Preferences (PRP):\n%s\n",
		PreferencesContext(s.Preferences))
	if summary := brainstormSummary(s.Brainstorm); summary != "" {
		fmt.Fprintf(&b, "\nBRAINSTORM ANALYSIS (use these insights for planning):\n%s\n", summary)
	}
	if last, ok := s.lastPhase(); ok {
		fmt.Fprintf(&b, "\nLast Phase: %s (Status: %s)\n", last.Title, last.Status)
	}
	if s.NextPhaseFocus != "" {
		fmt.Fprintf(&b, "\nSuggested Focus (from last review): %s\n", s.NextPhaseFocus)
	}

	prompt := fmt.Sprintf(`You are a software architect planning development phases.

%s
IMPORTANT: We need to plan %d phases total. Currently at phase %d of %d.
Generate the next phase specification as JSON:
{
    "phase_number": %d,
    "title": "Phase Title",
    "specs": {
        "files_to_create": ["list of files"],
        "tests_to_write": ["list of test files"],
        "dependencies": ["required packages"],
        "instructions": "Detailed instructions for implementation"
    }
}

Focus on TDD (Test-Driven Development) with security considerations.
Return ONLY valid JSON, no other text.`,
		b.String(), r.maxPhases, s.CurrentPhase+1, r.maxPhases, s.CurrentPhase+1)

	response, err := r.llm.Complete(ctx, prompt, llm.TempPlanning)
	if err != nil {
		return s.withError(fmt.Sprintf("planning failed: %v", err))
	}

	var parsed struct {
		PhaseNumber json.Number    `json:"phase_number"`
		Title       string         `json:"title"`
		Specs       map[string]any `json:"specs"`
	}
	if err := llm.ExtractJSON(response, &parsed); err != nil {
		return s.withError(fmt.Sprintf("failed to parse phase plan as JSON: %v", err))
	}
	number, err := parsed.PhaseNumber.Int64()
	if err != nil || parsed.Title == "" || parsed.Specs == nil {
		return s.withError(fmt.Sprintf("invalid phase data structure in plan response: %q", parsed.Title))
	}

	s = s.withPhase(PhaseRecord{
		Number: int(number),
		Title:  parsed.Title,
		Specs:  parsed.Specs,
		Status: statusPlanned,
	})
	r.logger.Info("phase planned", zap.Int("phase", int(number)), zap.String("title", parsed.Title))
	return s.withMessage("assistant", fmt.Sprintf("Planned phase %d: %s", number, parsed.Title))
}

// execute persists the latest plan: creates the project on first use,
// then saves the phase through the tool surface.
func (r *Runner) execute(ctx context.Context, s State) State {
	phase, ok := s.lastPhase()
	if !ok {
		return s.withError("no phases to execute")
	}

	if s.ProjectID == "" {
		res, err := r.tools.Call(ctx, "create_project", map[string]any{
			"name":        s.ProjectName,
			"description": s.ProjectDescription,
			"preferences": s.Preferences,
		})
		if err != nil {
			return s.withError(fmt.Sprintf("failed to create project: %v", err))
		}
		if !res.Success {
			return s.withError(fmt.Sprintf("failed to create project: %s", res.Error))
		}
		s.ProjectID = dataString(res.Data, "project_id")
		s = s.withMessage("system", fmt.Sprintf("Created project with ID: %s", s.ProjectID))
	}

	res, err := r.tools.Call(ctx, "save_phase", map[string]any{
		"project_id":   s.ProjectID,
		"phase_number": phase.Number,
		"title":        phase.Title,
		"specs":        phase.Specs,
	})
	if err != nil {
		return s.withError(fmt.Sprintf("failed to save phase: %v", err))
	}
	if !res.Success {
		return s.withError(fmt.Sprintf("failed to save phase: %s", res.Error))
	}

	s = s.withLastPhaseStatus(statusSaved)
	return s.withMessage("system", fmt.Sprintf("Saved phase %d to the tool server", phase.Number))
}

// implement builds the saved phase's files on disk and pushes the
// progress back through the tool surface.
func (r *Runner) implement(ctx context.Context, s State) State {
	phase, ok := s.lastPhase()
	if !ok {
		return s.withError("no phases to implement")
	}
	if phase.Status == statusCompleted {
		return s.withMessage("system",
			fmt.Sprintf("Phase %d already completed, skipping implementation", phase.Number))
	}

	spec := implementer.PhaseSpec{Number: phase.Number, Title: phase.Title, Specs: phase.Specs}
	if s.ProjectID != "" {
		// Prefer the stored copy; fall back to the in-memory one when
		// the fetch fails.
		if res, err := r.tools.Call(ctx, "get_phase", map[string]any{
			"project_id": s.ProjectID, "phase_number": phase.Number,
		}); err == nil && res.Success {
			if raw, ok := dataField(res.Data, "specs"); ok {
				if specs, ok := raw.(map[string]any); ok {
					spec.Specs = specs
				}
			}
		}
	}

	result := r.impl.ImplementPhase(ctx, spec, s.ProjectName, s.ProjectDescription,
		r.completedPhasesBefore(ctx, s, phase.Number))

	if !result.Success {
		s = s.withLastPhaseStatus(statusFailed)
		return s.withError(fmt.Sprintf("implementation failed: %s", strings.Join(result.Errors, ", ")))
	}

	s = s.withLastPhaseStatus(statusCompleted)
	if s.ProjectID != "" {
		// Progress push is best effort; the files already exist.
		res, err := r.tools.Call(ctx, "update_progress", map[string]any{
			"project_id":   s.ProjectID,
			"phase_number": phase.Number,
			"status":       statusCompleted,
			"progress_data": map[string]any{
				"files_created": result.FilesCreated,
				"files_updated": result.FilesUpdated,
				"tests_passed":  result.TestsPassed,
				"tests_failed":  result.TestsFailed,
				"notes":         result.Notes,
			},
		})
		if err != nil || !res.Success {
			r.logger.Warn("progress update failed", zap.Int("phase", phase.Number))
		}
	}

	return s.withMessage("system", fmt.Sprintf(
		"Phase %d implemented successfully. Created %d files, updated %d files. Tests: %d passed, %d failed.",
		phase.Number, len(result.FilesCreated), len(result.FilesUpdated),
		result.TestsPassed, result.TestsFailed))
}

// completedPhasesBefore collects earlier completed phases from the
// store for implementation context. Errors just mean less context.
func (r *Runner) completedPhasesBefore(ctx context.Context, s State, before int) []implementer.PhaseSummary {
	if s.ProjectID == "" {
		return nil
	}
	res, err := r.tools.Call(ctx, "list_project_phases", map[string]any{"project_id": s.ProjectID})
	if err != nil || !res.Success {
		return nil
	}
	raw, ok := dataField(res.Data, "phases")
	if !ok {
		return nil
	}
	items, ok := raw.([]any)
	if !ok {
		return nil
	}
	var previous []implementer.PhaseSummary
	for _, item := range items {
		phase, ok := item.(map[string]any)
		if !ok {
			continue
		}
		number, _ := phase["phase_number"].(float64)
		status, _ := phase["status"].(string)
		title, _ := phase["title"].(string)
		if int(number) < before && status == statusCompleted {
			previous = append(previous, implementer.PhaseSummary{Number: int(number), Title: title})
		}
	}
	return previous
}

// review closes a cycle and decides whether another phase follows.
// The phase-count target outranks the model: below the target the
// workflow continues even on a stop vote, at or above it the workflow
// stops even on a continue vote. An unparseable review is not an
// error; the count rule alone decides.
func (r *Runner) review(ctx context.Context, s State) State {
	phase, ok := s.lastPhase()
	if !ok {
		s.ShouldContinue = false
		return s
	}

	specsJSON, _ := json.MarshalIndent(phase.Specs, "", "  ")
	prompt := fmt.Sprintf(`Review the completed phase:

Project: %s
Phase %d: %s
Status: %s
Specs: %s

IMPORTANT: We need to plan %d phases total.
Currently completed: %d phases.
Remaining phases needed: %d

Provide a brief review and indicate if we should continue to the next phase.
You MUST continue if current_phase (%d) < max_phases (%d).
Only stop if we have reached or exceeded max_phases (%d).

Return JSON:
{
    "review": "Your review comments",
    "should_continue": true/false,
    "next_phase_focus": "What the next phase should focus on (if continuing)"
}

Return ONLY valid JSON.`,
		s.ProjectName, phase.Number, phase.Title, phase.Status, specsJSON,
		r.maxPhases, s.CurrentPhase, r.maxPhases-s.CurrentPhase,
		s.CurrentPhase, r.maxPhases, r.maxPhases)

	var parsed struct {
		Review         string `json:"review"`
		ShouldContinue *bool  `json:"should_continue"`
		NextPhaseFocus string `json:"next_phase_focus"`
	}
	parseOK := false
	if response, err := r.llm.Complete(ctx, prompt, llm.TempPlanning); err == nil {
		if err := llm.ExtractJSON(response, &parsed); err == nil {
			parseOK = true
		}
	}

	if parseOK {
		review := parsed.Review
		if review == "" {
			review = "Phase reviewed"
		}
		s.NextPhaseFocus = parsed.NextPhaseFocus
		s = s.withMessage("assistant", "Review: "+review)
	} else {
		s = s.withMessage("assistant", fmt.Sprintf("Review completed for phase %d", phase.Number))
	}

	if s.CurrentPhase >= r.maxPhases {
		s.ShouldContinue = false
		return s.withMessage("system",
			fmt.Sprintf("Reached max phases limit (%d). Stopping.", r.maxPhases))
	}

	s.ShouldContinue = true
	if parseOK && parsed.ShouldContinue != nil && !*parsed.ShouldContinue {
		s = s.withMessage("system", fmt.Sprintf(
			"LLM suggested stopping, but we need %d more phases. Continuing.",
			r.maxPhases-s.CurrentPhase))
	}
	if !parseOK {
		s = s.withMessage("system", fmt.Sprintf(
			"JSON parse error in review, but continuing to reach max_phases (%d). Current: %d",
			r.maxPhases, s.CurrentPhase))
	}
	return s
}

// brainstormSummary flattens the analysis fields the planning prompt
// cares about.
func brainstormSummary(analysis map[string]any) string {
	if len(analysis) == 0 {
		return ""
	}
	section := func(name string) map[string]any {
		m, _ := analysis[name].(map[string]any)
		return m
	}
	joinList := func(m map[string]any, key string) string {
		items, _ := m[key].([]any)
		parts := make([]string, 0, len(items))
		for _, item := range items {
			parts = append(parts, fmt.Sprint(item))
		}
		return strings.Join(parts, ", ")
	}
	str := func(m map[string]any, key string) string {
		if v, ok := m[key]; ok {
			return fmt.Sprint(v)
		}
		return "N/A"
	}

	understanding := section("project_understanding")
	technical := section("technical_analysis")
	scope := section("project_scope")
	recs := section("recommendations")
	practices := section("best_practices")

	var b strings.Builder
	fmt.Fprintf(&b, "- Core Purpose: %s\n", str(understanding, "core_purpose"))
	fmt.Fprintf(&b, "- Recommended Technologies: %s\n", joinList(technical, "recommended_technologies"))
	fmt.Fprintf(&b, "- Architecture Pattern: %s\n", str(technical, "architecture_pattern"))
	fmt.Fprintf(&b, "- Main Challenges: %s\n", joinList(technical, "main_challenges"))
	fmt.Fprintf(&b, "- MVP Features: %s\n", joinList(scope, "mvp_features"))
	fmt.Fprintf(&b, "- Suggested Phases: %s\n", str(recs, "total_phases_suggested"))
	fmt.Fprintf(&b, "- Phase Breakdown: %s\n", joinList(recs, "phase_breakdown"))
	fmt.Fprintf(&b, "- Security Considerations: %s\n", joinList(practices, "security"))
	fmt.Fprintf(&b, "- Testing Strategy: %s", str(practices, "testing_strategy"))
	return b.String()
}
