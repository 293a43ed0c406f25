package implementer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGen returns canned code for every prompt and records calls.
type fakeGen struct {
	output string
	err    error
	calls  int
}

func (f *fakeGen) Complete(_ context.Context, _ string, _ float64) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.output, nil
}

type fakeRunner struct {
	passed, failed int
}

func (r fakeRunner) Run(context.Context, []string) (int, int, error) {
	return r.passed, r.failed, nil
}

func specWith(extra map[string]any) PhaseSpec {
	specs := map[string]any{"instructions": "build the calculator"}
	for k, v := range extra {
		specs[k] = v
	}
	return PhaseSpec{Number: 1, Title: "Setup", Specs: specs}
}

func TestImplementPhase_CreatesTestsAndSources(t *testing.T) {
	root := t.TempDir()
	gen := &fakeGen{output: "```python\nprint('ok')\n```"}
	im := New(gen, root)

	result := im.ImplementPhase(context.Background(), specWith(map[string]any{
		"tests_to_write":  []any{"tests/test_calc.py"},
		"files_to_create": []any{"calc.py", "tests/test_calc.py"},
	}), "calc", "a calculator", nil)

	require.True(t, result.Success, result.Errors)
	assert.ElementsMatch(t, []string{"tests/test_calc.py", "calc.py"}, result.FilesCreated)
	assert.Equal(t, 2, gen.calls, "the shared path must be generated once")

	data, err := os.ReadFile(filepath.Join(root, "calc.py"))
	require.NoError(t, err)
	assert.Equal(t, "print('ok')", string(data), "fences must be stripped")
}

func TestImplementPhase_RefusesOverwriteOnCreate(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "calc.py"), []byte("original"), 0o644))

	gen := &fakeGen{output: "new code"}
	im := New(gen, root)

	result := im.ImplementPhase(context.Background(), specWith(map[string]any{
		"files_to_create": []any{"calc.py", "util.py"},
	}), "calc", "", nil)

	assert.False(t, result.Success)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "calc.py already exists")

	// The conflict must not keep the other file from being written.
	assert.Equal(t, []string{"util.py"}, result.FilesCreated)

	data, err := os.ReadFile(filepath.Join(root, "calc.py"))
	require.NoError(t, err)
	assert.Equal(t, "original", string(data))
}

func TestImplementPhase_UpdateRequiresExistingFile(t *testing.T) {
	root := t.TempDir()
	gen := &fakeGen{output: "updated"}
	im := New(gen, root)

	result := im.ImplementPhase(context.Background(), specWith(map[string]any{
		"files_to_update": []any{"missing.py"},
	}), "calc", "", nil)

	assert.False(t, result.Success)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "missing.py does not exist")
}

func TestImplementPhase_UpdateOverwrites(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "calc.py"), []byte("v1"), 0o644))

	gen := &fakeGen{output: "v2"}
	im := New(gen, root)

	result := im.ImplementPhase(context.Background(), specWith(map[string]any{
		"files_to_update": []any{"calc.py"},
	}), "calc", "", nil)

	require.True(t, result.Success, result.Errors)
	assert.Equal(t, []string{"calc.py"}, result.FilesUpdated)

	data, err := os.ReadFile(filepath.Join(root, "calc.py"))
	require.NoError(t, err)
	assert.Equal(t, "v2", string(data))
}

func TestImplementPhase_FailingTestsAppendError(t *testing.T) {
	root := t.TempDir()
	gen := &fakeGen{output: "code"}
	im := New(gen, root, WithTestRunner(fakeRunner{passed: 2, failed: 1}))

	result := im.ImplementPhase(context.Background(), specWith(map[string]any{
		"tests_to_write": []any{"test_calc.py"},
	}), "calc", "", nil)

	assert.False(t, result.Success)
	assert.Equal(t, 2, result.TestsPassed)
	assert.Equal(t, 1, result.TestsFailed)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "1 test(s) still failing")
}

func TestImplementPhase_GeneratorErrorCollected(t *testing.T) {
	root := t.TempDir()
	gen := &fakeGen{err: fmt.Errorf("rate limited")}
	im := New(gen, root)

	result := im.ImplementPhase(context.Background(), specWith(map[string]any{
		"files_to_create": []any{"a.py"},
	}), "calc", "", nil)

	assert.False(t, result.Success)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "rate limited")
	assert.Empty(t, result.FilesCreated)
}

func TestImplementPhase_DependenciesRecorded(t *testing.T) {
	root := t.TempDir()
	im := New(&fakeGen{output: "x"}, root)

	result := im.ImplementPhase(context.Background(), specWith(map[string]any{
		"dependencies": []any{"fastapi", "uvicorn"},
	}), "calc", "", nil)

	require.True(t, result.Success)
	assert.Contains(t, result.Notes, "fastapi, uvicorn")
	assert.Contains(t, result.Notes, "Successfully implemented phase 1")
}

func TestImplementPhase_NestedDirectoriesCreated(t *testing.T) {
	root := t.TempDir()
	im := New(&fakeGen{output: "content"}, root)

	result := im.ImplementPhase(context.Background(), specWith(map[string]any{
		"files_to_create": []any{"src/deep/pkg/mod.py"},
	}), "calc", "", nil)

	require.True(t, result.Success, result.Errors)
	_, err := os.Stat(filepath.Join(root, "src", "deep", "pkg", "mod.py"))
	assert.NoError(t, err)
}
