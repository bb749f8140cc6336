package refdata

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rossigee/irp-integration/internal/irperr"
)

func TestExactlyOne(t *testing.T) {
	tests := []struct {
		name        string
		matches     []string
		expectError bool
		errorMsg    string
	}{
		{name: "none", matches: nil, expectError: true, errorMsg: "EDM 'EDM_A' not found"},
		{name: "one", matches: []string{"EDM_A"}},
		{name: "two", matches: []string{"EDM_A", "EDM_A"}, expectError: true, errorMsg: "2 EDMs found with name EDM_A, please use a unique name"},
		{name: "three", matches: []string{"a", "b", "c"}, expectError: true, errorMsg: "3 EDMs found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExactlyOne(tt.matches, "EDM", "EDM_A")
			if tt.expectError {
				require.Error(t, err)
				assert.True(t, errors.Is(err, irperr.ErrReferenceData))
				assert.Contains(t, err.Error(), tt.errorMsg)
				assert.Empty(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "EDM_A", got)
		})
	}
}

type named struct{ Name string }

func TestFindByName(t *testing.T) {
	nameOf := func(n named) string { return n.Name }

	var many []named
	for i := 0; i < 8; i++ {
		many = append(many, named{Name: fmt.Sprintf("cur%d", i)})
	}

	got, err := FindByName(many, "cur6", "currency", nameOf)
	require.NoError(t, err)
	assert.Equal(t, "cur6", got.Name)

	_, err = FindByName(many, "EUR", "currency", nameOf)
	require.Error(t, err)
	assert.True(t, errors.Is(err, irperr.ErrReferenceData))
	assert.Equal(t, "currency 'EUR' not found. Available: cur0, cur1, cur2, cur3, cur4, ... (3 more)", err.Error())

	_, err = FindByName([]named{{Name: ""}}, "x", "model", nameOf)
	assert.Contains(t, err.Error(), "Available: <unnamed>")

	_, err = FindByName[named](nil, "x", "model", nameOf)
	assert.EqualError(t, err, "No model available to search")
}
