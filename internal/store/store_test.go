package store

import (
	"errors"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(Config{Path: filepath.Join(t.TempDir(), "test.db")})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// --- CreateProject ---

func TestCreateProject(t *testing.T) {
	s := newTestStore(t)

	p, err := s.CreateProject("demo", "a demo project", map[string]any{"stack": "go"})
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	if p.ID == "" {
		t.Error("project id is empty")
	}
	if p.Status != ProjectActive {
		t.Errorf("status = %s, want active", p.Status)
	}
	if p.CreatedAt == "" || p.UpdatedAt == "" {
		t.Error("timestamps not set")
	}

	got, err := s.GetProject(p.ID)
	if err != nil {
		t.Fatalf("GetProject: %v", err)
	}
	if got == nil {
		t.Fatal("GetProject returned nil for fresh project")
	}
	if got.Name != "demo" || got.Description != "a demo project" {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if got.Preferences["stack"] != "go" {
		t.Errorf("preferences not persisted: %v", got.Preferences)
	}
}

func TestCreateProject_UniqueIDs(t *testing.T) {
	s := newTestStore(t)

	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		p, err := s.CreateProject("demo", "", nil)
		if err != nil {
			t.Fatalf("CreateProject: %v", err)
		}
		if seen[p.ID] {
			t.Fatalf("duplicate project id %s", p.ID)
		}
		seen[p.ID] = true
	}
}

// --- SavePhase ---

func TestSavePhase_InsertsPlanned(t *testing.T) {
	s := newTestStore(t)
	p, _ := s.CreateProject("demo", "", nil)

	ph, err := s.SavePhase(p.ID, 1, "Setup", map[string]any{"instructions": "x"})
	if err != nil {
		t.Fatalf("SavePhase: %v", err)
	}
	if ph.Status != PhasePlanned {
		t.Errorf("status = %s, want planned", ph.Status)
	}
	if ph.PhaseNumber != 1 || ph.Title != "Setup" {
		t.Errorf("phase mismatch: %+v", ph)
	}
}

func TestSavePhase_UnknownProject(t *testing.T) {
	s := newTestStore(t)

	_, err := s.SavePhase("no-such-id", 1, "Setup", map[string]any{})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}

	// The store must gain no orphan phase row.
	summaries, err := s.ListProjects()
	if err != nil {
		t.Fatalf("ListProjects: %v", err)
	}
	if len(summaries) != 0 {
		t.Errorf("unexpected projects after failed save: %d", len(summaries))
	}
}

func TestSavePhase_UpsertOverwritesInPlace(t *testing.T) {
	s := newTestStore(t)
	p, _ := s.CreateProject("demo", "", nil)

	first, err := s.SavePhase(p.ID, 1, "Setup", map[string]any{"instructions": "one"})
	if err != nil {
		t.Fatalf("SavePhase: %v", err)
	}

	// Status and progress data get non-default values before the
	// overwrite to verify they survive.
	if _, err := s.UpdateProgress(p.ID, 1, PhaseInProgress, map[string]any{"notes": "wip"}); err != nil {
		t.Fatalf("UpdateProgress: %v", err)
	}

	second, err := s.SavePhase(p.ID, 1, "Setup v2", map[string]any{"instructions": "two"})
	if err != nil {
		t.Fatalf("SavePhase (upsert): %v", err)
	}

	if second.ID != first.ID {
		t.Errorf("upsert changed phase identity: %s != %s", second.ID, first.ID)
	}
	if second.Status != PhaseInProgress {
		t.Errorf("upsert reset status to %s", second.Status)
	}
	if second.CreatedAt != first.CreatedAt {
		t.Errorf("upsert changed created_at")
	}

	got, err := s.GetPhase(p.ID, 1)
	if err != nil {
		t.Fatalf("GetPhase: %v", err)
	}
	if got.Title != "Setup v2" || got.Specs["instructions"] != "two" {
		t.Errorf("second write not reflected: %+v", got)
	}
	if got.ProgressData["notes"] != "wip" {
		t.Errorf("upsert clobbered progress_data: %v", got.ProgressData)
	}

	phases, err := s.ListPhases(p.ID)
	if err != nil {
		t.Fatalf("ListPhases: %v", err)
	}
	if len(phases) != 1 {
		t.Fatalf("upsert created a duplicate: %d rows", len(phases))
	}
}

// --- GetPhase ---

func TestGetPhase_NotFound(t *testing.T) {
	s := newTestStore(t)
	p, _ := s.CreateProject("demo", "", nil)

	_, err := s.GetPhase(p.ID, 7)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

// --- UpdateProgress ---

func TestUpdateProgress_SetsStatusUnconditionally(t *testing.T) {
	s := newTestStore(t)
	p, _ := s.CreateProject("demo", "", nil)
	s.SavePhase(p.ID, 1, "Setup", map[string]any{})

	// No transition validation: any status value is accepted, including
	// jumping straight to completed or back to planned.
	for _, status := range []string{PhaseCompleted, PhasePlanned, PhaseFailed} {
		ph, err := s.UpdateProgress(p.ID, 1, status, nil)
		if err != nil {
			t.Fatalf("UpdateProgress(%s): %v", status, err)
		}
		if ph.Status != status {
			t.Errorf("status = %s, want %s", ph.Status, status)
		}
	}
}

func TestUpdateProgress_OmittedDataPreservesPrevious(t *testing.T) {
	s := newTestStore(t)
	p, _ := s.CreateProject("demo", "", nil)
	s.SavePhase(p.ID, 1, "Setup", map[string]any{})

	if _, err := s.UpdateProgress(p.ID, 1, PhaseInProgress, map[string]any{"tests_passed": float64(3)}); err != nil {
		t.Fatalf("UpdateProgress: %v", err)
	}

	// Omitting progress_data must keep the stored value while the
	// status still changes.
	if _, err := s.UpdateProgress(p.ID, 1, PhaseCompleted, nil); err != nil {
		t.Fatalf("UpdateProgress (omitted data): %v", err)
	}

	got, err := s.GetPhase(p.ID, 1)
	if err != nil {
		t.Fatalf("GetPhase: %v", err)
	}
	if got.Status != PhaseCompleted {
		t.Errorf("status = %s, want completed", got.Status)
	}
	if got.ProgressData["tests_passed"] != float64(3) {
		t.Errorf("progress_data lost: %v", got.ProgressData)
	}
}

func TestUpdateProgress_NotFound(t *testing.T) {
	s := newTestStore(t)
	p, _ := s.CreateProject("demo", "", nil)

	_, err := s.UpdateProgress(p.ID, 42, PhaseCompleted, nil)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

// --- Aggregates ---

func TestGetCurrentPhase(t *testing.T) {
	s := newTestStore(t)
	p, _ := s.CreateProject("demo", "", nil)

	// No phases: current phase is nil, not an error.
	cur, err := s.GetCurrentPhase(p.ID)
	if err != nil {
		t.Fatalf("GetCurrentPhase: %v", err)
	}
	if cur != nil {
		t.Errorf("current = %+v, want nil", cur)
	}

	s.SavePhase(p.ID, 1, "One", map[string]any{})
	s.SavePhase(p.ID, 2, "Two", map[string]any{})
	s.UpdateProgress(p.ID, 1, PhaseCompleted, nil)

	cur, err = s.GetCurrentPhase(p.ID)
	if err != nil {
		t.Fatalf("GetCurrentPhase: %v", err)
	}
	if cur == nil || cur.PhaseNumber != 2 {
		t.Errorf("current = %+v, want phase 2", cur)
	}

	s.UpdateProgress(p.ID, 2, PhaseCompleted, nil)
	cur, err = s.GetCurrentPhase(p.ID)
	if err != nil {
		t.Fatalf("GetCurrentPhase: %v", err)
	}
	if cur != nil {
		t.Errorf("current = %+v, want nil after all completed", cur)
	}
}

func TestGetProjectStatus_ProgressPercentage(t *testing.T) {
	s := newTestStore(t)

	tests := []struct {
		name      string
		statuses  []string
		wantPct   int
		wantTotal int
	}{
		{"no phases", nil, 0, 0},
		{"none completed", []string{PhasePlanned, PhaseSaved}, 0, 2},
		{"one of three", []string{PhaseCompleted, PhasePlanned, PhaseInProgress}, 33, 3},
		{"two of three", []string{PhaseCompleted, PhaseCompleted, PhaseFailed}, 66, 3},
		{"all completed", []string{PhaseCompleted, PhaseCompleted}, 100, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _ := s.CreateProject("demo-"+tt.name, "", nil)
			for i, status := range tt.statuses {
				s.SavePhase(p.ID, i+1, "Phase", map[string]any{})
				s.UpdateProgress(p.ID, i+1, status, nil)
			}

			st, err := s.GetProjectStatus(p.ID)
			if err != nil {
				t.Fatalf("GetProjectStatus: %v", err)
			}
			if st.TotalPhases != tt.wantTotal {
				t.Errorf("total = %d, want %d", st.TotalPhases, tt.wantTotal)
			}
			if st.ProgressPercentage != tt.wantPct {
				t.Errorf("progress = %d, want %d", st.ProgressPercentage, tt.wantPct)
			}
		})
	}
}

func TestGetProject_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetProject("missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestGetProjectStatus_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetProjectStatus("missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestListProjects(t *testing.T) {
	s := newTestStore(t)

	summaries, err := s.ListProjects()
	if err != nil {
		t.Fatalf("ListProjects: %v", err)
	}
	if len(summaries) != 0 {
		t.Fatalf("expected empty list, got %d", len(summaries))
	}

	a, _ := s.CreateProject("alpha", "", nil)
	b, _ := s.CreateProject("beta", "", nil)
	s.SavePhase(a.ID, 1, "One", map[string]any{})
	s.UpdateProgress(a.ID, 1, PhaseCompleted, nil)

	summaries, err = s.ListProjects()
	if err != nil {
		t.Fatalf("ListProjects: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("len = %d, want 2", len(summaries))
	}

	byName := map[string]ProjectSummary{}
	for _, sum := range summaries {
		byName[sum.Name] = sum
	}
	if byName["alpha"].PhasesCount != 1 || byName["alpha"].ProgressPercentage != 100 {
		t.Errorf("alpha summary = %+v", byName["alpha"])
	}
	if byName["alpha"].CurrentPhase != nil {
		t.Errorf("alpha current phase = %+v, want nil", byName["alpha"].CurrentPhase)
	}
	if byName["beta"].PhasesCount != 0 || byName["beta"].ProgressPercentage != 0 {
		t.Errorf("beta summary = %+v", byName["beta"])
	}
	_ = b
}

func TestProgressPercentage(t *testing.T) {
	tests := []struct {
		completed, total, want int
	}{
		{0, 0, 0},
		{0, 7, 0},
		{1, 3, 33},
		{2, 3, 66},
		{3, 3, 100},
		{1, 8, 12},
	}
	for _, tt := range tests {
		if got := progressPercentage(tt.completed, tt.total); got != tt.want {
			t.Errorf("progressPercentage(%d, %d) = %d, want %d", tt.completed, tt.total, got, tt.want)
		}
	}
}
