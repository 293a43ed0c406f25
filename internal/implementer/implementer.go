// Package implementer turns a planned phase into files on disk. It
// follows a test-first loop: generate test files, generate source
// files against those tests, then run the tests to verify.
package implementer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/HendryAvila/aidev/internal/llm"
)

// Prompt context truncation limits, to stay inside model windows.
const (
	maxTestContext = 1000
	maxFileContext = 2000
)

// PhaseSpec is the phase to implement.
type PhaseSpec struct {
	Number int
	Title  string
	Specs  map[string]any
}

// PhaseSummary describes an earlier completed phase, included in
// prompts for continuity.
type PhaseSummary struct {
	Number int
	Title  string
}

// Result reports what a phase implementation produced.
type Result struct {
	Success      bool     `json:"success"`
	FilesCreated []string `json:"files_created"`
	FilesUpdated []string `json:"files_updated"`
	TestsPassed  int      `json:"tests_passed"`
	TestsFailed  int      `json:"tests_failed"`
	Errors       []string `json:"errors"`
	Notes        string   `json:"notes"`
}

// TestRunner executes generated test files and reports counts.
type TestRunner interface {
	Run(ctx context.Context, testFiles []string) (passed, failed int, err error)
}

// NoopRunner skips test execution. It is the default: running
// generated tests requires a toolchain for the generated project's
// language, which is outside this process.
type NoopRunner struct{}

func (NoopRunner) Run(context.Context, []string) (int, int, error) { return 0, 0, nil }

// Implementer generates code for phases under a project root.
type Implementer struct {
	gen    llm.Client
	root   string
	runner TestRunner
	logger *zap.Logger
}

// Option configures an Implementer.
type Option func(*Implementer)

// WithTestRunner replaces the default NoopRunner.
func WithTestRunner(r TestRunner) Option {
	return func(im *Implementer) { im.runner = r }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(im *Implementer) { im.logger = l }
}

// New builds an Implementer writing files under root.
func New(gen llm.Client, root string, opts ...Option) *Implementer {
	im := &Implementer{
		gen:    gen,
		root:   root,
		runner: NoopRunner{},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(im)
	}
	return im
}

// ImplementPhase runs the test-first loop for one phase. Individual
// file failures are collected rather than aborting: a phase with a
// bad file still produces its other files. Success means no errors
// were collected.
func (im *Implementer) ImplementPhase(
	ctx context.Context,
	spec PhaseSpec,
	projectName, projectDescription string,
	previous []PhaseSummary,
) (result Result) {
	result = Result{
		FilesCreated: []string{},
		FilesUpdated: []string{},
		Errors:       []string{},
	}
	defer func() {
		if r := recover(); r != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("implementation failed: %v", r))
			result.Success = false
		}
	}()

	promptContext := im.buildContext(spec, projectName, projectDescription, previous)

	testsToWrite := stringList(spec.Specs, "tests_to_write")
	filesToCreate := stringList(spec.Specs, "files_to_create")
	filesToUpdate := stringList(spec.Specs, "files_to_update")

	if deps := stringList(spec.Specs, "dependencies"); len(deps) > 0 {
		// Installing them needs the target project's package manager;
		// record the request so a human or outer tool can act on it.
		result.Notes = "Dependencies requested: " + strings.Join(deps, ", ")
		im.logger.Info("phase requests dependencies",
			zap.Int("phase", spec.Number), zap.Strings("dependencies", deps))
	}

	// Tests first. They are expected to fail until the sources exist.
	for _, testFile := range testsToWrite {
		if err := im.createTestFile(ctx, testFile, promptContext, spec, filesToCreate); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("failed to create test %s: %v", testFile, err))
			continue
		}
		result.FilesCreated = append(result.FilesCreated, testFile)
	}
	if len(testsToWrite) > 0 {
		_, failed, err := im.runner.Run(ctx, testsToWrite)
		if err != nil {
			im.logger.Warn("initial test run failed", zap.Error(err))
		} else {
			im.logger.Info("tests failing before implementation", zap.Int("failed", failed))
		}
	}

	// Sources next, written against the tests above.
	for _, file := range sourceFiles(filesToCreate, testsToWrite) {
		if err := im.createFile(ctx, file, promptContext, spec, testsToWrite); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("failed to create %s: %v", file, err))
			continue
		}
		result.FilesCreated = append(result.FilesCreated, file)
	}
	for _, file := range filesToUpdate {
		if err := im.updateFile(ctx, file, promptContext, spec); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("failed to update %s: %v", file, err))
			continue
		}
		result.FilesUpdated = append(result.FilesUpdated, file)
	}

	// Verify.
	if len(testsToWrite) > 0 {
		passed, failed, err := im.runner.Run(ctx, testsToWrite)
		if err != nil {
			im.logger.Warn("test run failed", zap.Error(err))
		} else {
			result.TestsPassed = passed
			result.TestsFailed = failed
			if failed > 0 {
				result.Errors = append(result.Errors,
					fmt.Sprintf("%d test(s) still failing after implementation", failed))
			}
		}
	}

	result.Success = len(result.Errors) == 0
	if result.Success {
		if result.Notes != "" {
			result.Notes += "; "
		}
		result.Notes += fmt.Sprintf("Successfully implemented phase %d", spec.Number)
	} else {
		if result.Notes != "" {
			result.Notes += "; "
		}
		result.Notes += fmt.Sprintf("Implementation completed with %d errors", len(result.Errors))
	}
	return result
}

func (im *Implementer) buildContext(
	spec PhaseSpec,
	projectName, projectDescription string,
	previous []PhaseSummary,
) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Project: %s\nDescription: %s\n\n", projectName, projectDescription)
	fmt.Fprintf(&b, "Current Phase: %d - %s\n", spec.Number, spec.Title)
	fmt.Fprintf(&b, "Instructions: %s\n", instructions(spec.Specs))

	if len(previous) > 0 {
		b.WriteString("\nPrevious Phases:\n")
		start := 0
		if len(previous) > 3 {
			start = len(previous) - 3
		}
		for _, p := range previous[start:] {
			fmt.Fprintf(&b, "  - Phase %d: %s\n", p.Number, p.Title)
		}
	}
	return b.String()
}

func (im *Implementer) createTestFile(
	ctx context.Context,
	testFile, promptContext string,
	spec PhaseSpec,
	sources []string,
) error {
	fullPath := filepath.Join(im.root, testFile)
	if _, err := os.Stat(fullPath); err == nil {
		return fmt.Errorf("test file %s already exists", testFile)
	}

	prompt := fmt.Sprintf(`%s
Write the tests before the implementation exists. They define the
expected behavior and are expected to fail until the sources are
written.

Create the test file: %s

Source files that will be tested: %v
Instructions: %s

Requirements:
- Test WHAT the code should do, not HOW
- Cover edge cases and error handling
- Keep tests independent and isolated
- Use the standard testing framework for the file's language

Return ONLY the test code, no markdown, no explanations.
`, promptContext, testFile, sources, instructions(spec.Specs))

	out, err := im.gen.Complete(ctx, prompt, llm.TempCodegen)
	if err != nil {
		return err
	}
	return writeFile(fullPath, llm.StripFences(out))
}

func (im *Implementer) createFile(
	ctx context.Context,
	file, promptContext string,
	spec PhaseSpec,
	testFiles []string,
) error {
	fullPath := filepath.Join(im.root, file)
	if _, err := os.Stat(fullPath); err == nil {
		return fmt.Errorf("file %s already exists, use files_to_update instead", file)
	}

	testContext := im.readTestContext(testFiles)

	prompt := fmt.Sprintf(`%s
Write the minimal code needed to make the existing tests pass.

Create the file: %s
%s
Instructions: %s

Requirements:
- If tests exist, implement exactly what they expect
- Include proper error handling
- Follow the language's conventions

Return ONLY the code, no markdown, no explanations.
`, promptContext, file, testContext, instructions(spec.Specs))

	out, err := im.gen.Complete(ctx, prompt, llm.TempCodegen)
	if err != nil {
		return err
	}
	return writeFile(fullPath, llm.StripFences(out))
}

func (im *Implementer) updateFile(ctx context.Context, file, promptContext string, spec PhaseSpec) error {
	fullPath := filepath.Join(im.root, file)
	existing, err := os.ReadFile(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("file %s does not exist, use files_to_create instead", file)
		}
		return err
	}

	content := string(existing)
	if len(content) > maxFileContext {
		content = content[:maxFileContext]
	}

	prompt := fmt.Sprintf(`%s
Update the file: %s

Current file content:
%s

Instructions for the update: %s

Produce the complete updated file. Preserve the existing
functionality and add the new behavior.

Return ONLY the complete updated code, no markdown.
`, promptContext, file, content, instructions(spec.Specs))

	out, err := im.gen.Complete(ctx, prompt, llm.TempCodegen)
	if err != nil {
		return err
	}
	return writeFile(fullPath, llm.StripFences(out))
}

// readTestContext inlines truncated test file contents so the code
// generator can see what it has to satisfy.
func (im *Implementer) readTestContext(testFiles []string) string {
	var parts []string
	for _, testFile := range testFiles {
		data, err := os.ReadFile(filepath.Join(im.root, testFile))
		if err != nil {
			continue
		}
		content := string(data)
		if len(content) > maxTestContext {
			content = content[:maxTestContext]
		}
		parts = append(parts, fmt.Sprintf("Test file %s:\n%s", testFile, content))
	}
	if len(parts) == 0 {
		return ""
	}
	return "\nEXISTING TESTS (make these pass):\n" + strings.Join(parts, "\n") + "\n"
}

func writeFile(fullPath, content string) error {
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return err
	}
	return os.WriteFile(fullPath, []byte(content), 0o644)
}

// sourceFiles filters test paths out of the create list so a file
// listed in both is only generated once, as a test.
func sourceFiles(create, tests []string) []string {
	testSet := make(map[string]struct{}, len(tests))
	for _, t := range tests {
		testSet[t] = struct{}{}
	}
	var out []string
	for _, f := range create {
		if _, isTest := testSet[f]; !isTest {
			out = append(out, f)
		}
	}
	return out
}

func instructions(specs map[string]any) string {
	if s, ok := specs["instructions"].(string); ok && s != "" {
		return s
	}
	return "Implement according to best practices"
}

func stringList(specs map[string]any, key string) []string {
	raw, ok := specs[key]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
