// Package registry defines the static catalog of orchestrator tools.
//
// Each tool has a name, a human-readable description, and an input
// contract: which fields are required and what primitive JSON type each
// field carries. The catalog is built once at package init and never
// mutated — lookups are side-effect free.
package registry

import "encoding/json"

// Primitive JSON Schema type tags recognized by the dispatcher.
const (
	TypeString  = "string"
	TypeInteger = "integer"
	TypeNumber  = "number"
	TypeBoolean = "boolean"
	TypeArray   = "array"
	TypeObject  = "object"
)

// Property describes a single schema field.
type Property struct {
	Type        string              `json:"type"`
	Description string              `json:"description,omitempty"`
	Enum        []string            `json:"enum,omitempty"`
	Items       *Property           `json:"items,omitempty"`
	Properties  map[string]Property `json:"properties,omitempty"`
}

// Field pairs a property with its name, preserving declaration order.
// Validation iterates fields in this order so error messages are
// deterministic.
type Field struct {
	Name string
	Property
}

// InputSchema is a tool's input contract.
type InputSchema struct {
	Fields   []Field
	Required []string
}

// MarshalJSON renders the schema in JSON Schema object form.
func (s InputSchema) MarshalJSON() ([]byte, error) {
	props := make(map[string]Property, len(s.Fields))
	for _, f := range s.Fields {
		props[f.Name] = f.Property
	}
	required := s.Required
	if required == nil {
		required = []string{}
	}
	return json.Marshal(struct {
		Type       string              `json:"type"`
		Properties map[string]Property `json:"properties"`
		Required   []string            `json:"required"`
	}{
		Type:       "object",
		Properties: props,
		Required:   required,
	})
}

// Property returns the schema field with the given name.
func (s InputSchema) Property(name string) (Property, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f.Property, true
		}
	}
	return Property{}, false
}

// Definition is one catalog entry.
type Definition struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema InputSchema `json:"input_schema"`
}

var catalog = []Definition{
	{
		Name:        "create_project",
		Description: "Creates a new project in the orchestrator for tracking development phases",
		InputSchema: InputSchema{
			Fields: []Field{
				{Name: "name", Property: Property{Type: TypeString, Description: "Unique name for the project"}},
				{Name: "description", Property: Property{Type: TypeString, Description: "Optional description of the project"}},
				{Name: "preferences", Property: Property{Type: TypeObject, Description: "Optional PRP (project requirement preferences) for the project"}},
			},
			Required: []string{"name"},
		},
	},
	{
		Name:        "save_phase",
		Description: "Saves phase specifications for a project, including files to create, tests, and instructions",
		InputSchema: InputSchema{
			Fields: []Field{
				{Name: "project_id", Property: Property{Type: TypeString, Description: "UUID of the project"}},
				{Name: "phase_number", Property: Property{Type: TypeInteger, Description: "Phase number (1, 2, 3, etc.)"}},
				{Name: "title", Property: Property{Type: TypeString, Description: "Title of the phase"}},
				{Name: "specs", Property: Property{
					Type:        TypeObject,
					Description: "Phase specifications including files, tests, dependencies",
					Properties: map[string]Property{
						"files_to_create": {Type: TypeArray, Items: &Property{Type: TypeString}},
						"files_to_update": {Type: TypeArray, Items: &Property{Type: TypeString}},
						"tests_to_write":  {Type: TypeArray, Items: &Property{Type: TypeString}},
						"dependencies":    {Type: TypeArray, Items: &Property{Type: TypeString}},
						"instructions":    {Type: TypeString},
					},
				}},
			},
			Required: []string{"project_id", "phase_number", "title", "specs"},
		},
	},
	{
		Name:        "get_phase",
		Description: "Retrieves phase specifications for implementation",
		InputSchema: InputSchema{
			Fields: []Field{
				{Name: "project_id", Property: Property{Type: TypeString, Description: "UUID of the project"}},
				{Name: "phase_number", Property: Property{Type: TypeInteger, Description: "Phase number to retrieve"}},
			},
			Required: []string{"project_id", "phase_number"},
		},
	},
	{
		Name:        "update_progress",
		Description: "Updates phase progress after implementation, including test results and status",
		InputSchema: InputSchema{
			Fields: []Field{
				{Name: "project_id", Property: Property{Type: TypeString, Description: "UUID of the project"}},
				{Name: "phase_number", Property: Property{Type: TypeInteger, Description: "Phase number to update"}},
				{Name: "status", Property: Property{Type: TypeString, Description: "New status of the phase", Enum: []string{"planned", "saved", "in_progress", "completed", "failed"}}},
				{Name: "progress_data", Property: Property{
					Type:        TypeObject,
					Description: "Progress information from implementation",
					Properties: map[string]Property{
						"files_created": {Type: TypeArray, Items: &Property{Type: TypeString}},
						"files_updated": {Type: TypeArray, Items: &Property{Type: TypeString}},
						"tests_passed":  {Type: TypeInteger},
						"tests_failed":  {Type: TypeInteger},
						"notes":         {Type: TypeString},
					},
				}},
			},
			Required: []string{"project_id", "phase_number", "status"},
		},
	},
	{
		Name:        "get_project_status",
		Description: "Get comprehensive project status including total phases, completed phases, in-progress phases, current phase, and progress percentage",
		InputSchema: InputSchema{
			Fields: []Field{
				{Name: "project_id", Property: Property{Type: TypeString, Description: "UUID of the project"}},
			},
			Required: []string{"project_id"},
		},
	},
	{
		Name:        "list_project_phases",
		Description: "List all phases for a project with their status (planned, in_progress, completed)",
		InputSchema: InputSchema{
			Fields: []Field{
				{Name: "project_id", Property: Property{Type: TypeString, Description: "UUID of the project"}},
			},
			Required: []string{"project_id"},
		},
	},
	{
		Name:        "get_current_phase",
		Description: "Get the current phase (first non-completed phase) for a project. Returns null if all phases are completed.",
		InputSchema: InputSchema{
			Fields: []Field{
				{Name: "project_id", Property: Property{Type: TypeString, Description: "UUID of the project"}},
			},
			Required: []string{"project_id"},
		},
	},
	{
		Name:        "list_projects",
		Description: "List all projects with phase counts and progress",
		InputSchema: InputSchema{},
	},
}

var byName = func() map[string]Definition {
	m := make(map[string]Definition, len(catalog))
	for _, d := range catalog {
		m[d.Name] = d
	}
	return m
}()

// Lookup returns the definition for a tool name.
func Lookup(name string) (Definition, bool) {
	d, ok := byName[name]
	return d, ok
}

// All returns every tool definition in declaration order.
func All() []Definition {
	out := make([]Definition, len(catalog))
	copy(out, catalog)
	return out
}

// Names returns the tool names in declaration order.
func Names() []string {
	names := make([]string, len(catalog))
	for i, d := range catalog {
		names[i] = d.Name
	}
	return names
}
