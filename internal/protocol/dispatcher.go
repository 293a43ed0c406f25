// Package protocol implements the tool-call dispatcher.
//
// A dispatcher accepts a (tool name, arguments) pair, validates the
// arguments against the registry's input contract, routes the call to
// the persistence layer, and shapes the outcome into a uniform
// {success, data, error} envelope. It never panics and never returns a
// transport-level failure for a domain error — every call produces a
// well-formed envelope.
package protocol

import (
	"errors"
	"fmt"
	"math"

	"github.com/HendryAvila/aidev/internal/registry"
	"github.com/HendryAvila/aidev/internal/store"
	"go.uber.org/zap"
)

// Result is the uniform tool-call envelope.
type Result struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func ok(data any) Result {
	return Result{Success: true, Data: data}
}

func fail(format string, args ...any) Result {
	return Result{Success: false, Error: fmt.Sprintf(format, args...)}
}

// Dispatcher validates and executes tool calls against the store.
type Dispatcher struct {
	store  *store.Store
	logger *zap.Logger
}

// New creates a dispatcher. A nil logger disables logging.
func New(st *store.Store, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{store: st, logger: logger}
}

// Execute runs one tool call and always returns an envelope.
func (d *Dispatcher) Execute(toolName string, arguments map[string]any) (result Result) {
	// The dispatcher is the protocol boundary: anything unexpected
	// below it is converted into an error envelope here.
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("tool execution panic",
				zap.String("tool", toolName), zap.Any("panic", r))
			result = fail("Execution error: %v", r)
		}
	}()

	def, found := registry.Lookup(toolName)
	if !found {
		return fail("Tool '%s' not found", toolName)
	}

	if msg := validateArguments(def.InputSchema, arguments); msg != "" {
		return Result{Success: false, Error: msg}
	}

	data, err := d.dispatch(toolName, arguments)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Result{Success: false, Error: err.Error()}
		}
		d.logger.Error("tool execution failed",
			zap.String("tool", toolName), zap.Error(err))
		return fail("Execution error: %v", err)
	}
	return ok(data)
}

// validateArguments returns an error message, or "" when valid.
// Required fields are checked first (in declared order), then types
// (in schema field order); validation stops at the first failure.
// Unknown extra fields are ignored.
func validateArguments(schema registry.InputSchema, args map[string]any) string {
	for _, field := range schema.Required {
		if _, present := args[field]; !present {
			return fmt.Sprintf("Missing required parameter: %s", field)
		}
	}
	for _, f := range schema.Fields {
		value, present := args[f.Name]
		if !present {
			continue
		}
		if !matchesType(value, f.Type) {
			return fmt.Sprintf("Invalid type for '%s': expected %s", f.Name, f.Type)
		}
	}
	return ""
}

// matchesType checks a runtime value against a primitive JSON Schema
// type tag. Arguments arrive either decoded from JSON (float64,
// map[string]any, []any) or constructed in-process (int, typed maps),
// so the numeric checks accept both encodings. Unknown tags pass,
// matching the permissive contract of the schema layer.
func matchesType(value any, typeTag string) bool {
	switch typeTag {
	case registry.TypeString:
		_, ok := value.(string)
		return ok
	case registry.TypeInteger:
		switch v := value.(type) {
		case int, int32, int64:
			return true
		case float64:
			return v == math.Trunc(v)
		default:
			return false
		}
	case registry.TypeNumber:
		switch value.(type) {
		case int, int32, int64, float32, float64:
			return true
		default:
			return false
		}
	case registry.TypeBoolean:
		_, ok := value.(bool)
		return ok
	case registry.TypeArray:
		_, ok := value.([]any)
		return ok
	case registry.TypeObject:
		_, ok := value.(map[string]any)
		return ok
	default:
		return true
	}
}

// Typed response payloads. Embedding flattens the entity fields next
// to the human-readable message, matching the wire shape clients see.

type projectResponse struct {
	*store.Project
	Message string `json:"message"`
}

type phaseResponse struct {
	*store.Phase
	Message string `json:"message"`
}

type phaseListResponse struct {
	ProjectID string         `json:"project_id"`
	Phases    []*store.Phase `json:"phases"`
	Total     int            `json:"total"`
}

type currentPhaseResponse struct {
	ProjectID    string       `json:"project_id"`
	CurrentPhase *store.Phase `json:"current_phase"`
	AllCompleted bool         `json:"all_completed"`
}

type projectListResponse struct {
	Projects []store.ProjectSummary `json:"projects"`
	Total    int                    `json:"total"`
}

func (d *Dispatcher) dispatch(toolName string, args map[string]any) (any, error) {
	switch toolName {
	case "create_project":
		p, err := d.store.CreateProject(
			stringArg(args, "name"),
			stringArg(args, "description"),
			objectArg(args, "preferences"),
		)
		if err != nil {
			return nil, err
		}
		return projectResponse{p, fmt.Sprintf("Project '%s' created successfully", p.Name)}, nil

	case "save_phase":
		ph, err := d.store.SavePhase(
			stringArg(args, "project_id"),
			intArg(args, "phase_number"),
			stringArg(args, "title"),
			objectArg(args, "specs"),
		)
		if err != nil {
			return nil, err
		}
		return phaseResponse{ph, fmt.Sprintf("Phase %d saved successfully", ph.PhaseNumber)}, nil

	case "get_phase":
		return d.store.GetPhase(stringArg(args, "project_id"), intArg(args, "phase_number"))

	case "update_progress":
		ph, err := d.store.UpdateProgress(
			stringArg(args, "project_id"),
			intArg(args, "phase_number"),
			stringArg(args, "status"),
			objectArg(args, "progress_data"),
		)
		if err != nil {
			return nil, err
		}
		return phaseResponse{ph, fmt.Sprintf("Phase %d progress updated to '%s'", ph.PhaseNumber, ph.Status)}, nil

	case "get_project_status":
		return d.store.GetProjectStatus(stringArg(args, "project_id"))

	case "list_project_phases":
		projectID := stringArg(args, "project_id")
		phases, err := d.store.ListPhases(projectID)
		if err != nil {
			return nil, err
		}
		if phases == nil {
			phases = []*store.Phase{}
		}
		return phaseListResponse{ProjectID: projectID, Phases: phases, Total: len(phases)}, nil

	case "get_current_phase":
		projectID := stringArg(args, "project_id")
		cur, err := d.store.GetCurrentPhase(projectID)
		if err != nil {
			return nil, err
		}
		return currentPhaseResponse{ProjectID: projectID, CurrentPhase: cur, AllCompleted: cur == nil}, nil

	case "list_projects":
		summaries, err := d.store.ListProjects()
		if err != nil {
			return nil, err
		}
		return projectListResponse{Projects: summaries, Total: len(summaries)}, nil

	default:
		// Registered but not routed — a registry/dispatcher mismatch.
		return nil, fmt.Errorf("unknown tool: %s", toolName)
	}
}

// Argument accessors. Types were validated already, so these only
// normalize representation (JSON float64 vs in-process int).

func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

func intArg(args map[string]any, key string) int {
	switch v := args[key].(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

func objectArg(args map[string]any, key string) map[string]any {
	m, _ := args[key].(map[string]any)
	return m
}
