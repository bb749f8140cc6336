package validate

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rossigee/irp-integration/internal/irperr"
)

func TestNonEmptyString(t *testing.T) {
	tests := []struct {
		name        string
		value       string
		expectError bool
	}{
		{name: "value", value: "RM_EDM_202511", expectError: false},
		{name: "empty", value: "", expectError: true},
		{name: "whitespace", value: "  \t", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NonEmptyString(tt.value, "edm_name")
			if tt.expectError {
				require.Error(t, err)
				assert.True(t, errors.Is(err, irperr.ErrValidation))
				assert.Contains(t, err.Error(), "edm_name cannot be empty")
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPositiveInt(t *testing.T) {
	assert.NoError(t, PositiveInt(1, "workflow_id"))
	assert.NoError(t, PositiveInt(int64(42), "workflow_id"))

	err := PositiveInt(0, "workflow_id")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "workflow_id must be positive, got 0")

	err = PositiveInt(int64(-3), "interval")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "got -3")
}

func TestNonNegative(t *testing.T) {
	assert.NoError(t, NonNegativeInt(0, "offset"))
	assert.Error(t, NonNegativeInt(-1, "offset"))
	assert.NoError(t, NonNegativeFloat(0, "ratio"))
	assert.Error(t, NonNegativeFloat(-0.5, "ratio"))
	assert.NoError(t, PositiveFloat(0.1, "ratio"))
	assert.Error(t, PositiveFloat(0, "ratio"))
}

func TestNonEmptyList(t *testing.T) {
	assert.NoError(t, NonEmptyList([]int64{1}, "workflow_ids"))

	err := NonEmptyList([]int64{}, "workflow_ids")
	require.Error(t, err)
	assert.True(t, errors.Is(err, irperr.ErrValidation))
	assert.Contains(t, err.Error(), "workflow_ids cannot be empty")

	assert.Error(t, NonEmptyList[string](nil, "names"))
}

func TestFileExists(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "accounts.txt")
	require.NoError(t, os.WriteFile(file, []byte("ACCNTNUM\n"), 0o600))

	assert.NoError(t, FileExists(file, "accounts_file"))

	err := FileExists(filepath.Join(dir, "missing.txt"), "accounts_file")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accounts_file does not exist")

	err = FileExists(dir, "accounts_file")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is not a file")
}

func TestAll(t *testing.T) {
	err := All(
		NonEmptyString("x", "a"),
		PositiveInt(0, "b"),
		NonEmptyString("", "c"),
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "b must be positive")
	assert.NoError(t, All())
}
