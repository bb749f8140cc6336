package types

import (
	"encoding/json"
)

// EDM is an exposure data module as returned by the exposure search.
type EDM struct {
	ExposureID   int64  `json:"exposureId"`
	ExposureName string `json:"exposureName"`
	DatabaseName string `json:"databaseName,omitempty"`
	ServerName   string `json:"serverName,omitempty"`
	URI          string `json:"uri,omitempty"`
}

// CreateEDMRequest is the body for creating an exposure data module.
type CreateEDMRequest struct {
	ExposureName string `json:"exposureName"`
	ServerName   string `json:"serverName"`
}

// Portfolio is a portfolio within an EDM.
type Portfolio struct {
	PortfolioID     int64  `json:"portfolioId"`
	PortfolioName   string `json:"portfolioName"`
	PortfolioNumber string `json:"portfolioNumber,omitempty"`
	Description     string `json:"description,omitempty"`
	URI             string `json:"uri"`
}

// Account is an account attached to a portfolio.
type Account struct {
	AccountID      int64  `json:"accountId"`
	AccountName    string `json:"accountName,omitempty"`
	LocationsCount *int   `json:"locationsCount"`
}

// CreatePortfolioRequest is the body for portfolio creation.
type CreatePortfolioRequest struct {
	PortfolioName   string `json:"portfolioName"`
	PortfolioNumber string `json:"portfolioNumber"`
	Description     string `json:"description"`
}

// PortfolioSpec describes one portfolio to create in bulk.
type PortfolioSpec struct {
	EDMName         string `json:"edm_name"`
	PortfolioName   string `json:"portfolio_name"`
	PortfolioNumber string `json:"portfolio_number"`
	Description     string `json:"description"`
}

// GeocodeLayerOptions are the default options of the geocode layer.
type GeocodeLayerOptions struct {
	AggregateTriggerEnabled string `json:"aggregateTriggerEnabled"`
	GeoLicenseType          string `json:"geoLicenseType"`
	SkipPrevGeocoded        bool   `json:"skipPrevGeocoded"`
}

// HazardLayerOptions are the default options of a hazard layer.
type HazardLayerOptions struct {
	OverrideUserDef bool `json:"overrideUserDef"`
	SkipPrevHazard  bool `json:"skipPrevHazard"`
}

// DefaultGeocodeLayerOptions mirrors the options the API console submits.
func DefaultGeocodeLayerOptions() GeocodeLayerOptions {
	return GeocodeLayerOptions{
		AggregateTriggerEnabled: "true",
		GeoLicenseType:          "0",
		SkipPrevGeocoded:        false,
	}
}

// DefaultHazardLayerOptions mirrors the options the API console submits.
func DefaultHazardLayerOptions() HazardLayerOptions {
	return HazardLayerOptions{}
}

// GeohazSpec describes a geocode/hazard submission against a portfolio.
type GeohazSpec struct {
	EDMName       string `json:"edm_name"`
	PortfolioName string `json:"portfolio_name"`
	Version       string `json:"version"`
	HazardEQ      bool   `json:"hazard_eq"`
	HazardWS      bool   `json:"hazard_ws"`

	// Nil selects the defaults.
	GeocodeLayerOptions any `json:"geocode_layer_options,omitempty"`
	HazardLayerOptions  any `json:"hazard_layer_options,omitempty"`
}

// GeohazLayer is a single geocode or hazard layer.
type GeohazLayer struct {
	Type         string `json:"type"`
	Name         string `json:"name"`
	EngineType   string `json:"engineType"`
	Version      string `json:"version"`
	LayerOptions any    `json:"layerOptions"`
}

// GeohazSettings wraps the layer list.
type GeohazSettings struct {
	Layers []GeohazLayer `json:"layers"`
}

// GeohazRequest is the body of a geohaz job submission.
type GeohazRequest struct {
	ResourceURI  string         `json:"resourceUri"`
	ResourceType string         `json:"resourceType"`
	Settings     GeohazSettings `json:"settings"`
}

// FileCredentialsRequest asks the bucket for upload credentials.
type FileCredentialsRequest struct {
	FileName string `json:"fileName"`
	FileSize int    `json:"fileSize"`
	FileType string `json:"fileType"`
}

// Credentials are decoded temporary object-storage credentials.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	Path            string
	Region          string
}

// FileCredentials are credentials for one uploaded file.
type FileCredentials struct {
	Filename string
	FileID   string
	Credentials
}

// ImportRequest is the body of an MRI import submission.
type ImportRequest struct {
	ImportType      string `json:"importType"`
	BucketID        int64  `json:"bucketId"`
	DataSourceName  string `json:"dataSourceName"`
	AccountsFileID  int64  `json:"accountsFileId"`
	LocationsFileID int64  `json:"locationsFileId"`
	MappingFileID   int64  `json:"mappingFileId"`
	Delimiter       string `json:"delimiter"`
	SkipLines       int    `json:"skipLines"`
	Currency        string `json:"currency"`
	PortfolioID     int64  `json:"portfolioId"`
	AppendLocations bool   `json:"appendLocations"`
}

// ImportFiles describes an end-to-end MRI import from local files.
type ImportFiles struct {
	EDMName         string
	PortfolioName   string
	AccountsFile    string
	LocationsFile   string
	MappingFile     string
	FilesDir        string
	MappingDir      string
	Delimiter       string
	SkipLines       int
	Currency        string
	AppendLocations bool
}

// MappingItem maps a source column to a destination field. Other keys of
// the item are kept.
type MappingItem struct {
	Source      string
	Destination string

	extra map[string]json.RawMessage
}

// UnmarshalJSON reads source and destination and keeps any other keys.
func (i *MappingItem) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	*i = MappingItem{}
	if raw, ok := fields["source"]; ok {
		if err := json.Unmarshal(raw, &i.Source); err != nil {
			return err
		}
		delete(fields, "source")
	}
	if raw, ok := fields["destination"]; ok {
		if err := json.Unmarshal(raw, &i.Destination); err != nil {
			return err
		}
		delete(fields, "destination")
	}
	if len(fields) > 0 {
		i.extra = fields
	}
	return nil
}

// MarshalJSON writes source and destination together with any preserved keys.
func (i MappingItem) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(i.extra)+2)
	for k, v := range i.extra {
		out[k] = v
	}
	out["source"] = i.Source
	out["destination"] = i.Destination
	return json.Marshal(out)
}

// MappingSpec is the local mapping file. Unknown top-level keys are kept.
type MappingSpec struct {
	AccountItems  []MappingItem
	LocationItems []MappingItem

	extra map[string]json.RawMessage
}

// UnmarshalJSON reads the item lists and keeps any other keys.
func (m *MappingSpec) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	*m = MappingSpec{}
	if raw, ok := fields["accountItems"]; ok {
		if err := json.Unmarshal(raw, &m.AccountItems); err != nil {
			return err
		}
		delete(fields, "accountItems")
	}
	if raw, ok := fields["locationItems"]; ok {
		if err := json.Unmarshal(raw, &m.LocationItems); err != nil {
			return err
		}
		delete(fields, "locationItems")
	}
	if len(fields) > 0 {
		m.extra = fields
	}
	return nil
}

// MarshalJSON writes the item lists together with any preserved keys.
func (m MappingSpec) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(m.extra)+2)
	for k, v := range m.extra {
		out[k] = v
	}
	accounts := m.AccountItems
	if accounts == nil {
		accounts = []MappingItem{}
	}
	locations := m.LocationItems
	if locations == nil {
		locations = []MappingItem{}
	}
	out["accountItems"] = accounts
	out["locationItems"] = locations
	return json.Marshal(out)
}

// Portfolio mapping outcomes.
const (
	MappingFinished = "FINISHED"
	MappingSkipped  = "SKIPPED"

	ScriptExecuted = "EXECUTED"
	ScriptNotFound = "NOT_FOUND"
)

// MappingRun describes a portfolio mapping script execution.
type MappingRun struct {
	PortfolioName string
	EDMName       string
	ImportFile    string
	CycleType     string
	Connection    string
}

// ScriptInfo identifies the SQL script of a mapping run.
type ScriptInfo struct {
	Name   string `json:"script_name"`
	Path   string `json:"script_path"`
	Status string `json:"status"`
}

// MappingResult is the outcome of a portfolio mapping run.
type MappingResult struct {
	Status          string         `json:"status"`
	Message         string         `json:"message"`
	ResultSetsCount int            `json:"result_sets_count,omitempty"`
	Script          ScriptInfo     `json:"sql_script"`
	Parameters      map[string]any `json:"parameters,omitempty"`
}
