// Package store implements durable persistence for projects and phases.
//
// It uses SQLite (modernc.org/sqlite, no cgo) with WAL mode. Projects
// own an ordered set of phases; (project_id, phase_number) is a natural
// key with upsert semantics, and deleting a project cascades to its
// phases. Every write commits before the call returns.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// ErrNotFound marks lookups that referenced a nonexistent project or
// phase. Callers match with errors.Is; the message carries the detail.
var ErrNotFound = errors.New("not found")

// NotFoundError wraps ErrNotFound with a human-readable message that
// names the missing entity, mirroring the dispatcher's error envelope.
type NotFoundError struct {
	msg string
}

func (e *NotFoundError) Error() string        { return e.msg }
func (e *NotFoundError) Unwrap() error        { return ErrNotFound }
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

func projectNotFound(projectID string) error {
	return &NotFoundError{msg: fmt.Sprintf("Project %s not found", projectID)}
}

func phaseNotFound(projectID string, phaseNumber int) error {
	return &NotFoundError{msg: fmt.Sprintf("Phase %d not found for project %s", phaseNumber, projectID)}
}

// Project statuses. Only "active" is produced by the orchestrator core.
const (
	ProjectActive    = "active"
	ProjectCompleted = "completed"
	ProjectArchived  = "archived"
)

// Phase statuses.
const (
	PhasePlanned    = "planned"
	PhaseSaved      = "saved"
	PhaseInProgress = "in_progress"
	PhaseCompleted  = "completed"
	PhaseFailed     = "failed"
)

// Project is one orchestrated development project.
type Project struct {
	ID          string         `json:"project_id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Status      string         `json:"status"`
	Preferences map[string]any `json:"preferences,omitempty"`
	CreatedAt   string         `json:"created_at"`
	UpdatedAt   string         `json:"updated_at"`
}

// Phase is one development increment within a project.
type Phase struct {
	ID           string         `json:"phase_id"`
	ProjectID    string         `json:"project_id"`
	PhaseNumber  int            `json:"phase_number"`
	Title        string         `json:"title"`
	Specs        map[string]any `json:"specs"`
	Status       string         `json:"status"`
	ProgressData map[string]any `json:"progress_data,omitempty"`
	CreatedAt    string         `json:"created_at"`
	UpdatedAt    string         `json:"updated_at"`
}

// CurrentPhase points at the lowest-numbered phase that is not yet
// completed. Nil means every phase is done (or none exist).
type CurrentPhase struct {
	PhaseNumber int    `json:"phase_number"`
	Title       string `json:"title"`
	Status      string `json:"status"`
}

// ProjectSummary is the aggregate view returned by ListProjects.
type ProjectSummary struct {
	ID                 string        `json:"project_id"`
	Name               string        `json:"name"`
	Description        string        `json:"description"`
	Status             string        `json:"status"`
	CreatedAt          string        `json:"created_at"`
	PhasesCount        int           `json:"phases_count"`
	PhasesCompleted    int           `json:"phases_completed"`
	PhasesInProgress   int           `json:"phases_in_progress"`
	PhasesPlanned      int           `json:"phases_planned"`
	ProgressPercentage int           `json:"progress_percentage"`
	CurrentPhase       *CurrentPhase `json:"current_phase"`
}

// ProjectStatus is the same aggregate scoped to one project.
type ProjectStatus struct {
	ProjectID          string        `json:"project_id"`
	Name               string        `json:"name"`
	Status             string        `json:"status"`
	TotalPhases        int           `json:"total_phases"`
	PhasesCompleted    int           `json:"phases_completed"`
	PhasesInProgress   int           `json:"phases_in_progress"`
	PhasesPlanned      int           `json:"phases_planned"`
	PhasesFailed       int           `json:"phases_failed"`
	ProgressPercentage int           `json:"progress_percentage"`
	CurrentPhase       *CurrentPhase `json:"current_phase"`
}

// Config holds store construction options.
type Config struct {
	// Path is the SQLite database file. Parent directories are created
	// as needed.
	Path string
}

// Store wraps the SQLite connection.
type Store struct {
	db *sql.DB
}

// New opens (creating if needed) the database at cfg.Path, applies
// pragmas, and runs migrations.
func New(cfg Config) (*Store, error) {
	if dir := filepath.Dir(cfg.Path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("store: create data dir: %w", err)
		}
	}

	db, err := openDB("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return nil, fmt.Errorf("store: pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("store: migration: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable. Used by the health endpoint.
func (s *Store) Ping() error {
	var one int
	return s.db.QueryRow("SELECT 1").Scan(&one)
}

func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS projects (
			id          TEXT PRIMARY KEY,
			name        TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			status      TEXT NOT NULL DEFAULT 'active',
			preferences TEXT,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS phases (
			id            TEXT PRIMARY KEY,
			project_id    TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
			phase_number  INTEGER NOT NULL,
			title         TEXT NOT NULL,
			specs         TEXT NOT NULL,
			status        TEXT NOT NULL DEFAULT 'planned',
			progress_data TEXT,
			created_at    TEXT NOT NULL,
			updated_at    TEXT NOT NULL,
			UNIQUE (project_id, phase_number)
		);

		CREATE INDEX IF NOT EXISTS idx_phases_project ON phases(project_id, phase_number);
	`
	_, err := s.db.Exec(schema)
	return err
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func marshalBlob(m map[string]any) (sql.NullString, error) {
	if len(m) == 0 {
		return sql.NullString{}, nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encoding json blob: %w", err)
	}
	return sql.NullString{String: string(raw), Valid: true}, nil
}

func unmarshalBlob(ns sql.NullString) (map[string]any, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(ns.String), &m); err != nil {
		return nil, fmt.Errorf("decoding json blob: %w", err)
	}
	return m, nil
}

// CreateProject inserts a new active project and returns it.
func (s *Store) CreateProject(name, description string, preferences map[string]any) (*Project, error) {
	prefs, err := marshalBlob(preferences)
	if err != nil {
		return nil, err
	}

	p := &Project{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		Status:      ProjectActive,
		Preferences: preferences,
		CreatedAt:   now(),
		UpdatedAt:   now(),
	}

	_, err = s.db.Exec(`
		INSERT INTO projects (id, name, description, status, preferences, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Description, p.Status, prefs, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting project: %w", err)
	}
	return p, nil
}

// GetProject returns one project by id, or ErrNotFound.
func (s *Store) GetProject(projectID string) (*Project, error) {
	row := s.db.QueryRow(`
		SELECT id, name, description, status, preferences, created_at, updated_at
		FROM projects WHERE id = ?`, projectID)
	p, err := scanProject(row)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, projectNotFound(projectID)
	}
	return p, nil
}

func scanProject(row *sql.Row) (*Project, error) {
	var p Project
	var prefs sql.NullString
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Status, &prefs, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning project: %w", err)
	}
	if p.Preferences, err = unmarshalBlob(prefs); err != nil {
		return nil, err
	}
	return &p, nil
}

// SavePhase inserts or overwrites the phase keyed by
// (projectID, phaseNumber). On overwrite only title, specs, and
// updated_at change; identity, status, progress data, and created_at
// are preserved.
func (s *Store) SavePhase(projectID string, phaseNumber int, title string, specs map[string]any) (*Phase, error) {
	if _, err := s.GetProject(projectID); err != nil {
		return nil, err
	}

	specsBlob, err := marshalBlob(specs)
	if err != nil {
		return nil, err
	}
	if !specsBlob.Valid {
		specsBlob = sql.NullString{String: "{}", Valid: true}
	}

	existing, err := s.getPhase(projectID, phaseNumber)
	if err != nil {
		return nil, err
	}

	ts := now()
	if existing != nil {
		_, err = s.db.Exec(`
			UPDATE phases SET title = ?, specs = ?, updated_at = ?
			WHERE project_id = ? AND phase_number = ?`,
			title, specsBlob, ts, projectID, phaseNumber,
		)
		if err != nil {
			return nil, fmt.Errorf("updating phase: %w", err)
		}
		existing.Title = title
		existing.Specs = specs
		existing.UpdatedAt = ts
		return existing, nil
	}

	ph := &Phase{
		ID:          uuid.NewString(),
		ProjectID:   projectID,
		PhaseNumber: phaseNumber,
		Title:       title,
		Specs:       specs,
		Status:      PhasePlanned,
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}
	_, err = s.db.Exec(`
		INSERT INTO phases (id, project_id, phase_number, title, specs, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ph.ID, ph.ProjectID, ph.PhaseNumber, ph.Title, specsBlob, ph.Status, ph.CreatedAt, ph.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting phase: %w", err)
	}
	return ph, nil
}

// GetPhase returns the phase keyed by (projectID, phaseNumber), or a
// NotFoundError if absent.
func (s *Store) GetPhase(projectID string, phaseNumber int) (*Phase, error) {
	ph, err := s.getPhase(projectID, phaseNumber)
	if err != nil {
		return nil, err
	}
	if ph == nil {
		return nil, phaseNotFound(projectID, phaseNumber)
	}
	return ph, nil
}

func (s *Store) getPhase(projectID string, phaseNumber int) (*Phase, error) {
	rows, err := s.db.Query(`
		SELECT id, project_id, phase_number, title, specs, status, progress_data, created_at, updated_at
		FROM phases WHERE project_id = ? AND phase_number = ?`,
		projectID, phaseNumber,
	)
	if err != nil {
		return nil, fmt.Errorf("querying phase: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	return scanPhase(rows)
}

func scanPhase(rows *sql.Rows) (*Phase, error) {
	var ph Phase
	var specs, progress sql.NullString
	err := rows.Scan(&ph.ID, &ph.ProjectID, &ph.PhaseNumber, &ph.Title, &specs, &ph.Status, &progress, &ph.CreatedAt, &ph.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("scanning phase: %w", err)
	}
	if ph.Specs, err = unmarshalBlob(specs); err != nil {
		return nil, err
	}
	if ph.ProgressData, err = unmarshalBlob(progress); err != nil {
		return nil, err
	}
	return &ph, nil
}

// UpdateProgress sets the phase's status unconditionally (no transition
// validation) and replaces progress data only when a non-empty value is
// supplied — omission preserves the previous value.
func (s *Store) UpdateProgress(projectID string, phaseNumber int, status string, progressData map[string]any) (*Phase, error) {
	ph, err := s.getPhase(projectID, phaseNumber)
	if err != nil {
		return nil, err
	}
	if ph == nil {
		return nil, phaseNotFound(projectID, phaseNumber)
	}

	ts := now()
	if len(progressData) > 0 {
		blob, err := marshalBlob(progressData)
		if err != nil {
			return nil, err
		}
		_, err = s.db.Exec(`
			UPDATE phases SET status = ?, progress_data = ?, updated_at = ?
			WHERE project_id = ? AND phase_number = ?`,
			status, blob, ts, projectID, phaseNumber,
		)
		if err != nil {
			return nil, fmt.Errorf("updating progress: %w", err)
		}
		ph.ProgressData = progressData
	} else {
		_, err = s.db.Exec(`
			UPDATE phases SET status = ?, updated_at = ?
			WHERE project_id = ? AND phase_number = ?`,
			status, ts, projectID, phaseNumber,
		)
		if err != nil {
			return nil, fmt.Errorf("updating progress: %w", err)
		}
	}
	ph.Status = status
	ph.UpdatedAt = ts
	return ph, nil
}

// ListPhases returns all phases of a project ordered by phase number.
func (s *Store) ListPhases(projectID string) ([]*Phase, error) {
	if _, err := s.GetProject(projectID); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(`
		SELECT id, project_id, phase_number, title, specs, status, progress_data, created_at, updated_at
		FROM phases WHERE project_id = ? ORDER BY phase_number`, projectID)
	if err != nil {
		return nil, fmt.Errorf("querying phases: %w", err)
	}
	defer rows.Close()

	var phases []*Phase
	for rows.Next() {
		ph, err := scanPhase(rows)
		if err != nil {
			return nil, err
		}
		phases = append(phases, ph)
	}
	return phases, rows.Err()
}

// GetCurrentPhase returns the lowest-numbered phase whose status is not
// "completed". Returns (nil, nil) when all phases are completed or the
// project has no phases.
func (s *Store) GetCurrentPhase(projectID string) (*Phase, error) {
	phases, err := s.ListPhases(projectID)
	if err != nil {
		return nil, err
	}
	for _, ph := range phases {
		if ph.Status != PhaseCompleted {
			return ph, nil
		}
	}
	return nil, nil
}

// GetProjectStatus computes the aggregate view for one project.
func (s *Store) GetProjectStatus(projectID string) (*ProjectStatus, error) {
	project, err := s.GetProject(projectID)
	if err != nil {
		return nil, err
	}

	phases, err := s.ListPhases(projectID)
	if err != nil {
		return nil, err
	}

	st := &ProjectStatus{
		ProjectID:   project.ID,
		Name:        project.Name,
		Status:      project.Status,
		TotalPhases: len(phases),
	}
	for _, ph := range phases {
		switch ph.Status {
		case PhaseCompleted:
			st.PhasesCompleted++
		case PhaseInProgress:
			st.PhasesInProgress++
		case PhaseFailed:
			st.PhasesFailed++
		default:
			st.PhasesPlanned++
		}
		if st.CurrentPhase == nil && ph.Status != PhaseCompleted {
			st.CurrentPhase = &CurrentPhase{
				PhaseNumber: ph.PhaseNumber,
				Title:       ph.Title,
				Status:      ph.Status,
			}
		}
	}
	st.ProgressPercentage = progressPercentage(st.PhasesCompleted, st.TotalPhases)
	return st, nil
}

// ListProjects returns a summary for every project.
func (s *Store) ListProjects() ([]ProjectSummary, error) {
	rows, err := s.db.Query(`
		SELECT id, name, description, status, created_at
		FROM projects ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("querying projects: %w", err)
	}
	defer rows.Close()

	var summaries []ProjectSummary
	for rows.Next() {
		var sum ProjectSummary
		if err := rows.Scan(&sum.ID, &sum.Name, &sum.Description, &sum.Status, &sum.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning project summary: %w", err)
		}
		summaries = append(summaries, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range summaries {
		st, err := s.GetProjectStatus(summaries[i].ID)
		if err != nil {
			return nil, err
		}
		summaries[i].PhasesCount = st.TotalPhases
		summaries[i].PhasesCompleted = st.PhasesCompleted
		summaries[i].PhasesInProgress = st.PhasesInProgress
		summaries[i].PhasesPlanned = st.PhasesPlanned
		summaries[i].ProgressPercentage = st.ProgressPercentage
		summaries[i].CurrentPhase = st.CurrentPhase
	}
	if summaries == nil {
		summaries = []ProjectSummary{}
	}
	return summaries, nil
}

// progressPercentage is floor(100 * completed / total); 0 when total is 0.
func progressPercentage(completed, total int) int {
	if total == 0 {
		return 0
	}
	return completed * 100 / total
}
