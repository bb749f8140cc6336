package mri

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rossigee/irp-integration/internal/irperr"
	"github.com/rossigee/irp-integration/pkg/types"
)

func TestAddMissingSources(t *testing.T) {
	tests := []struct {
		name      string
		headers   []string
		items     []types.MappingItem
		wantItems []types.MappingItem
		wantAdded int
	}{
		{
			name:    "absent header gets identity entry",
			headers: []string{"ZIP"},
			items:   []types.MappingItem{{Source: "ACCNTNUM", Destination: "AccountNumber"}},
			wantItems: []types.MappingItem{
				{Source: "ACCNTNUM", Destination: "AccountNumber"},
				{Source: "ZIP", Destination: "ZIP"},
			},
			wantAdded: 1,
		},
		{
			name:      "present case-insensitively",
			headers:   []string{"zip"},
			items:     []types.MappingItem{{Source: "ZIP", Destination: "PostalCode"}},
			wantItems: []types.MappingItem{{Source: "ZIP", Destination: "PostalCode"}},
		},
		{
			name:      "lower-case header is upper-cased",
			headers:   []string{"county"},
			wantItems: []types.MappingItem{{Source: "COUNTY", Destination: "COUNTY"}},
			wantAdded: 1,
		},
		{
			name:      "duplicate headers added once",
			headers:   []string{"State", "STATE"},
			wantItems: []types.MappingItem{{Source: "STATE", Destination: "STATE"}},
			wantAdded: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, added := AddMissingSources(tt.headers, tt.items)
			assert.Equal(t, tt.wantItems, items)
			assert.Len(t, added, tt.wantAdded)
		})
	}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadHeader(t *testing.T) {
	dir := t.TempDir()

	header, err := ReadHeader(writeFile(t, dir, "bom.txt", "\ufeffACCNTNUM\tZIP\n1\t12345\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"ACCNTNUM", "ZIP"}, header)

	_, err = ReadHeader(writeFile(t, dir, "empty.txt", ""))
	require.Error(t, err)
	assert.ErrorIs(t, err, irperr.ErrFile)

	_, err = ReadHeader(filepath.Join(dir, "missing.txt"))
	assert.ErrorIs(t, err, irperr.ErrFile)
}

func TestSyncMapping(t *testing.T) {
	dir := t.TempDir()
	mappingPath := writeFile(t, dir, "mapping.json", `{
  "version": 2,
  "accountItems": [{"source": "ACCNTNUM", "destination": "AccountNumber"}],
  "locationItems": [{"source": "ZIP", "destination": "PostalCode"}]
}`)
	accounts := writeFile(t, dir, "accounts.txt", "ACCNTNUM\tAccntName\n1\tAcme\n")
	locations := writeFile(t, dir, "locations.txt", "zip\tLocNum\n12345\t1\n")

	m := NewManager(nil, nil, nil, nil, nil)
	changed, err := m.SyncMapping(mappingPath, accounts, locations)
	require.NoError(t, err)
	assert.True(t, changed)

	data, err := os.ReadFile(mappingPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n    \"accountItems\"")

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.JSONEq(t, `2`, string(raw["version"]))

	spec, err := LoadMapping(mappingPath)
	require.NoError(t, err)
	assert.Equal(t, []types.MappingItem{
		{Source: "ACCNTNUM", Destination: "AccountNumber"},
		{Source: "ACCNTNAME", Destination: "ACCNTNAME"},
	}, spec.AccountItems)
	assert.Equal(t, []types.MappingItem{
		{Source: "ZIP", Destination: "PostalCode"},
		{Source: "LOCNUM", Destination: "LOCNUM"},
	}, spec.LocationItems)

	before, err := os.ReadFile(mappingPath)
	require.NoError(t, err)
	changed, err = m.SyncMapping(mappingPath, accounts, locations)
	require.NoError(t, err)
	assert.False(t, changed)
	after, err := os.ReadFile(mappingPath)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestSyncMapping_KeepsItemFields(t *testing.T) {
	dir := t.TempDir()
	mappingPath := writeFile(t, dir, "mapping.json", `{
  "accountItems": [{"source": "ACCNTNUM", "destination": "ACCNTNUM", "dataType": "string", "isKey": true}],
  "locationItems": [{"source": "ZIP", "destination": "PostalCode", "format": {"pad": 5}}]
}`)
	accounts := writeFile(t, dir, "accounts.txt", "ACCNTNUM\tAccntName\n")
	locations := writeFile(t, dir, "locations.txt", "ZIP\tLocNum\n")

	changed, err := NewManager(nil, nil, nil, nil, nil).SyncMapping(mappingPath, accounts, locations)
	require.NoError(t, err)
	assert.True(t, changed)

	data, err := os.ReadFile(mappingPath)
	require.NoError(t, err)
	var raw struct {
		AccountItems  []json.RawMessage `json:"accountItems"`
		LocationItems []json.RawMessage `json:"locationItems"`
	}
	require.NoError(t, json.Unmarshal(data, &raw))
	require.Len(t, raw.AccountItems, 2)
	require.Len(t, raw.LocationItems, 2)
	assert.JSONEq(t, `{"source":"ACCNTNUM","destination":"ACCNTNUM","dataType":"string","isKey":true}`, string(raw.AccountItems[0]))
	assert.JSONEq(t, `{"source":"ACCNTNAME","destination":"ACCNTNAME"}`, string(raw.AccountItems[1]))
	assert.JSONEq(t, `{"source":"ZIP","destination":"PostalCode","format":{"pad":5}}`, string(raw.LocationItems[0]))
}

func TestSyncMapping_InvalidMapping(t *testing.T) {
	dir := t.TempDir()
	mappingPath := writeFile(t, dir, "mapping.json", `{not json`)
	data := writeFile(t, dir, "data.txt", "A\n")

	_, err := NewManager(nil, nil, nil, nil, nil).SyncMapping(mappingPath, data, data)
	require.Error(t, err)
	assert.ErrorIs(t, err, irperr.ErrFile)
	assert.Contains(t, err.Error(), "Invalid JSON in mapping file")
}
