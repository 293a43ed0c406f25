package registry

import (
	"encoding/json"
	"testing"
)

func TestLookup_KnownTools(t *testing.T) {
	for _, name := range []string{
		"create_project", "save_phase", "get_phase", "update_progress",
		"get_project_status", "list_project_phases", "get_current_phase",
		"list_projects",
	} {
		def, ok := Lookup(name)
		if !ok {
			t.Errorf("Lookup(%q) not found", name)
			continue
		}
		if def.Name != name {
			t.Errorf("Lookup(%q).Name = %q", name, def.Name)
		}
		if def.Description == "" {
			t.Errorf("Lookup(%q) has empty description", name)
		}
	}
}

func TestLookup_Unknown(t *testing.T) {
	if _, ok := Lookup("delete_everything"); ok {
		t.Error("Lookup returned a definition for an unknown tool")
	}
}

func TestRequiredFields(t *testing.T) {
	tests := []struct {
		tool     string
		required []string
	}{
		{"create_project", []string{"name"}},
		{"save_phase", []string{"project_id", "phase_number", "title", "specs"}},
		{"get_phase", []string{"project_id", "phase_number"}},
		{"update_progress", []string{"project_id", "phase_number", "status"}},
		{"get_project_status", []string{"project_id"}},
		{"list_project_phases", []string{"project_id"}},
		{"get_current_phase", []string{"project_id"}},
		{"list_projects", nil},
	}

	for _, tt := range tests {
		t.Run(tt.tool, func(t *testing.T) {
			def, ok := Lookup(tt.tool)
			if !ok {
				t.Fatalf("tool %q not found", tt.tool)
			}
			if len(def.InputSchema.Required) != len(tt.required) {
				t.Fatalf("required = %v, want %v", def.InputSchema.Required, tt.required)
			}
			for i, f := range tt.required {
				if def.InputSchema.Required[i] != f {
					t.Errorf("required[%d] = %q, want %q", i, def.InputSchema.Required[i], f)
				}
			}
			// Every required field must exist in the schema.
			for _, f := range tt.required {
				if _, ok := def.InputSchema.Property(f); !ok {
					t.Errorf("required field %q missing from schema", f)
				}
			}
		})
	}
}

func TestAll_DeclarationOrderAndImmutability(t *testing.T) {
	all := All()
	if len(all) != len(Names()) {
		t.Fatalf("All() length %d != Names() length %d", len(all), len(Names()))
	}
	if all[0].Name != "create_project" {
		t.Errorf("first tool = %q, want create_project", all[0].Name)
	}

	// Mutating the returned slice must not affect the catalog.
	all[0].Name = "mutated"
	if fresh := All(); fresh[0].Name != "create_project" {
		t.Error("All() returned a slice aliasing the catalog")
	}
}

func TestInputSchema_MarshalJSON(t *testing.T) {
	def, _ := Lookup("save_phase")
	raw, err := json.Marshal(def.InputSchema)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded struct {
		Type       string                     `json:"type"`
		Properties map[string]json.RawMessage `json:"properties"`
		Required   []string                   `json:"required"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Type != "object" {
		t.Errorf("type = %q, want object", decoded.Type)
	}
	if len(decoded.Properties) != 4 {
		t.Errorf("properties count = %d, want 4", len(decoded.Properties))
	}
	if len(decoded.Required) != 4 {
		t.Errorf("required count = %d, want 4", len(decoded.Required))
	}
}

func TestInputSchema_MarshalJSON_EmptySchema(t *testing.T) {
	def, _ := Lookup("list_projects")
	raw, err := json.Marshal(def.InputSchema)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded struct {
		Required []string `json:"required"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Required == nil {
		t.Error("required should marshal as [] not null")
	}
}
