package mri

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"os"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/rossigee/irp-integration/internal/irperr"
	"github.com/rossigee/irp-integration/pkg/types"
)

const utf8BOM = "\ufeff"

// AddMissingSources appends an identity entry, upper-cased, for every header
// whose upper-cased form is not already a source in items. It returns the
// extended list and the entries that were added.
func AddMissingSources(headers []string, items []types.MappingItem) ([]types.MappingItem, []types.MappingItem) {
	known := mapset.NewThreadUnsafeSet[string]()
	for _, item := range items {
		known.Add(strings.ToUpper(item.Source))
	}

	var added []types.MappingItem
	for _, header := range headers {
		upper := strings.ToUpper(header)
		if !known.Add(upper) {
			continue
		}
		entry := types.MappingItem{Source: upper, Destination: upper}
		items = append(items, entry)
		added = append(added, entry)
	}
	return items, added
}

// ReadHeader returns the header row of a tab-delimited data file.
func ReadHeader(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, irperr.Wrap(irperr.KindFile, err, "Failed to open data file '%s'", path)
	}
	defer func() {
		_ = f.Close() // Close errors are not critical
	}()

	r := csv.NewReader(f)
	r.Comma = '\t'
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, irperr.File("Data file '%s' has no header row", path)
	}
	if err != nil {
		return nil, irperr.Wrap(irperr.KindFile, err, "Failed to read header of data file '%s'", path)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], utf8BOM)
	}
	return header, nil
}

// LoadMapping reads a mapping file.
func LoadMapping(path string) (*types.MappingSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, irperr.Wrap(irperr.KindFile, err, "Mapping file not found: %s", path)
	}
	var spec types.MappingSpec
	if err := json.Unmarshal(data, &spec); err != nil {
		return nil, irperr.Wrap(irperr.KindFile, err, "Invalid JSON in mapping file '%s'", path)
	}
	return &spec, nil
}

// SaveMapping writes spec to path with four-space indentation.
func SaveMapping(path string, spec *types.MappingSpec) error {
	f, err := os.Create(path)
	if err != nil {
		return irperr.Wrap(irperr.KindFile, err, "Failed to write mapping file '%s'", path)
	}
	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(spec); err != nil {
		_ = f.Close()
		return irperr.Wrap(irperr.KindFile, err, "Failed to write mapping file '%s'", path)
	}
	if err := f.Close(); err != nil {
		return irperr.Wrap(irperr.KindFile, err, "Failed to write mapping file '%s'", path)
	}
	return nil
}

// SyncMapping adds identity entries to the mapping file for data file
// headers it does not cover yet. The file is rewritten only when something
// was added; the return value reports whether it was.
func (m *Manager) SyncMapping(mappingPath, accountsPath, locationsPath string) (bool, error) {
	spec, err := LoadMapping(mappingPath)
	if err != nil {
		return false, err
	}

	accountHeaders, err := ReadHeader(accountsPath)
	if err != nil {
		return false, err
	}
	locationHeaders, err := ReadHeader(locationsPath)
	if err != nil {
		return false, err
	}

	var addedAccounts, addedLocations []types.MappingItem
	spec.AccountItems, addedAccounts = AddMissingSources(accountHeaders, spec.AccountItems)
	spec.LocationItems, addedLocations = AddMissingSources(locationHeaders, spec.LocationItems)

	for _, item := range append(addedAccounts, addedLocations...) {
		m.log.Infof("Added mapping: %s -> %s", item.Source, item.Destination)
	}
	if len(addedAccounts)+len(addedLocations) == 0 {
		return false, nil
	}

	if err := SaveMapping(mappingPath, spec); err != nil {
		return false, err
	}
	m.log.WithField("mapping", mappingPath).Info("Updated mapping file with new source entries")
	return true, nil
}
