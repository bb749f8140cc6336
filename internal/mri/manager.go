// Package mri runs MRI imports: account, location and mapping files are
// uploaded to a storage bucket created through the API and an import
// workflow is submitted against a portfolio.
package mri

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/rossigee/irp-integration/internal/client"
	"github.com/rossigee/irp-integration/internal/irperr"
	"github.com/rossigee/irp-integration/internal/objectstore"
	"github.com/rossigee/irp-integration/internal/validate"
	"github.com/rossigee/irp-integration/internal/workflow"
	"github.com/rossigee/irp-integration/pkg/types"
)

// Import defaults.
const (
	ImportType       = "MRI"
	DefaultDelimiter = "COMMA"
	DefaultCurrency  = "USD"
	DefaultSkipLines = 1
)

// File types accepted by the credentials endpoint.
const (
	FileTypeAccount  = "account"
	FileTypeLocation = "location"
)

// API issues synchronous requests.
type API interface {
	Request(ctx context.Context, method, path string, opts ...client.RequestOption) (*client.Response, error)
}

// EDMResolver resolves an EDM by name.
type EDMResolver interface {
	LookupByName(ctx context.Context, name string) (types.EDM, error)
}

// PortfolioResolver resolves a portfolio by name within an EDM.
type PortfolioResolver interface {
	LookupByName(ctx context.Context, exposureID int64, name string) (types.Portfolio, error)
}

// Poller runs the list-style batch poll.
type Poller interface {
	PollBatch(ctx context.Context, ids []int64, opts workflow.Options) (*types.WorkflowPage, error)
}

// Manager handles MRI import operations. All collaborators are supplied at
// construction.
type Manager struct {
	api        API
	edms       EDMResolver
	portfolios PortfolioResolver
	poller     Poller
	uploader   objectstore.Uploader
	log        *logrus.Entry
	filesDir   string
	mappingDir string
}

// Option customizes a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(log *logrus.Entry) Option {
	return func(m *Manager) { m.log = log }
}

// WithDirectories sets the directories used when an import does not name
// its own.
func WithDirectories(filesDir, mappingDir string) Option {
	return func(m *Manager) {
		m.filesDir = filesDir
		m.mappingDir = mappingDir
	}
}

// NewManager creates an MRI import manager.
func NewManager(api API, edms EDMResolver, portfolios PortfolioResolver, poller Poller, uploader objectstore.Uploader, opts ...Option) *Manager {
	m := &Manager{
		api:        api,
		edms:       edms,
		portfolios: portfolios,
		poller:     poller,
		uploader:   uploader,
		log:        logrus.NewEntry(logrus.StandardLogger()),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CreateBucket creates a storage bucket. The bucket URL is returned in the
// Location header.
func (m *Manager) CreateBucket(ctx context.Context) (*client.Response, error) {
	return m.api.Request(ctx, http.MethodPost, client.PathCreateBucket)
}

// GetFileCredentials requests temporary upload credentials for one file in
// the bucket at bucketURL. sizeKB may be zero for files under a kilobyte.
func (m *Manager) GetFileCredentials(ctx context.Context, bucketURL, filename string, sizeKB int, fileType string) (types.FileCredentials, error) {
	if err := validate.All(
		validate.NonEmptyString(bucketURL, "bucket_url"),
		validate.NonEmptyString(filename, "filename"),
		validate.NonNegativeInt(sizeKB, "filesize"),
		validate.NonEmptyString(fileType, "file_type"),
	); err != nil {
		return types.FileCredentials{}, err
	}

	body := types.FileCredentialsRequest{FileName: filename, FileSize: sizeKB, FileType: fileType}
	resp, err := m.api.Request(ctx, http.MethodPost, "path", client.WithBaseURL(bucketURL), client.WithJSON(body))
	if err != nil {
		return types.FileCredentials{}, irperr.Wrap(irperr.KindAPI, err, "Failed to get file credentials")
	}
	var raw map[string]any
	if err := resp.JSON(&raw); err != nil {
		return types.FileCredentials{}, irperr.Wrap(irperr.KindAPI, err, "Failed to get file credentials")
	}

	fileID, err := client.IDFromLocation(resp, "file credentials response")
	if err != nil {
		return types.FileCredentials{}, err
	}
	creds, err := DecodeCredentials(raw, FileCredentialFields)
	if err != nil {
		return types.FileCredentials{}, err
	}
	return types.FileCredentials{Filename: filename, FileID: fileID, Credentials: creds}, nil
}

func missingCredentialFields(c types.FileCredentials) []string {
	var missing []string
	for _, f := range []struct{ name, value string }{
		{"access_key_id", c.AccessKeyID},
		{"secret_access_key", c.SecretAccessKey},
		{"session_token", c.SessionToken},
		{"region", c.Region},
		{"path", c.Path},
		{"file_id", c.FileID},
		{"filename", c.Filename},
	} {
		if f.value == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}

// Upload writes localPath to the object key the credentials were issued for.
func (m *Manager) Upload(ctx context.Context, creds types.FileCredentials, localPath string) error {
	if err := validate.FileExists(localPath, "file_path"); err != nil {
		return err
	}
	if missing := missingCredentialFields(creds); len(missing) > 0 {
		return irperr.Validation("credentials missing required fields: %s", strings.Join(missing, ", "))
	}

	bucket, prefix := objectstore.SplitPath(creds.Path)
	target := objectstore.Target{
		Bucket:          bucket,
		Key:             objectstore.ObjectKey(prefix, creds.FileID, creds.Filename),
		Region:          creds.Region,
		AccessKeyID:     creds.AccessKeyID,
		SecretAccessKey: creds.SecretAccessKey,
		SessionToken:    creds.SessionToken,
	}

	m.log.WithField("file", localPath).Info("Uploading file")
	if err := m.uploader.Upload(ctx, target, localPath); err != nil {
		return irperr.Wrap(irperr.KindFile, err, "Failed to upload file to S3")
	}
	return nil
}

// UploadMapping sends the mapping file to the bucket and returns the ID the
// server assigned to it.
func (m *Manager) UploadMapping(ctx context.Context, path string, bucketID int64) (int64, error) {
	if err := validate.All(
		validate.FileExists(path, "file_path"),
		validate.PositiveInt(bucketID, "bucket_id"),
	); err != nil {
		return 0, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return 0, irperr.Wrap(irperr.KindFile, err, "Failed to read mapping file '%s'", path)
	}
	if !json.Valid(data) {
		return 0, irperr.File("Invalid JSON in mapping file '%s'", path)
	}

	resp, err := m.api.Request(ctx, http.MethodPost,
		fmt.Sprintf(client.PathCreateMapping, strconv.FormatInt(bucketID, 10)),
		client.WithJSON(json.RawMessage(data)))
	if err != nil {
		return 0, irperr.Wrap(irperr.KindAPI, err, "Failed to upload mapping file")
	}
	var mappingID int64
	if err := resp.JSON(&mappingID); err != nil {
		return 0, irperr.Wrap(irperr.KindAPI, err, "Failed to read mapping file ID")
	}
	return mappingID, nil
}

// GetImportJob fetches the status of an import workflow.
func (m *Manager) GetImportJob(ctx context.Context, workflowID int64) (types.WorkflowStatus, error) {
	if err := validate.PositiveInt(workflowID, "workflow_id"); err != nil {
		return types.WorkflowStatus{}, err
	}

	resp, err := m.api.Request(ctx, http.MethodGet, fmt.Sprintf(client.PathWorkflowByID, workflowID))
	if err != nil {
		return types.WorkflowStatus{}, irperr.Wrap(irperr.KindAPI, err, "Failed to get import job status for workflow ID %d", workflowID)
	}
	var status types.WorkflowStatus
	if err := resp.JSON(&status); err != nil {
		return types.WorkflowStatus{}, irperr.Wrap(irperr.KindAPI, err, "Failed to get import job status for workflow ID %d", workflowID)
	}
	return status, nil
}

// SubmitImport submits an import workflow for files already uploaded and
// returns the workflow ID together with the request body that was sent.
func (m *Manager) SubmitImport(ctx context.Context, req types.ImportRequest) (int64, types.ImportRequest, error) {
	if err := validate.All(
		validate.NonEmptyString(req.DataSourceName, "edm_name"),
		validate.PositiveInt(req.PortfolioID, "portfolio_id"),
		validate.PositiveInt(req.BucketID, "bucket_id"),
		validate.PositiveInt(req.AccountsFileID, "accounts_file_id"),
		validate.PositiveInt(req.LocationsFileID, "locations_file_id"),
		validate.PositiveInt(req.MappingFileID, "mapping_file_id"),
		validate.NonNegativeInt(req.SkipLines, "skip_lines"),
	); err != nil {
		return 0, req, err
	}
	req.ImportType = ImportType
	if req.Delimiter == "" {
		req.Delimiter = DefaultDelimiter
	}
	if req.Currency == "" {
		req.Currency = DefaultCurrency
	}

	resp, err := m.api.Request(ctx, http.MethodPost, client.PathExecuteImport, client.WithJSON(req))
	if err != nil {
		return 0, req, irperr.Wrap(irperr.KindAPI, err, "Failed to submit MRI import")
	}
	workflowID, err := client.IntIDFromLocation(resp, "MRI import submission")
	if err != nil {
		return 0, req, err
	}
	return workflowID, req, nil
}

// PollImportJobs waits for a set of import workflows using the workflow
// listing. A timeout is reported as a job timeout.
func (m *Manager) PollImportJobs(ctx context.Context, workflowIDs []int64, opts workflow.Options) ([]types.WorkflowStatus, error) {
	if opts.TimeoutKind == 0 {
		opts.TimeoutKind = irperr.KindJobTimeout
	}
	if opts.Label == "" {
		opts.Label = "Batch import workflows"
	}
	page, err := m.poller.PollBatch(ctx, workflowIDs, opts)
	if err != nil {
		return nil, err
	}
	return page.Workflows, nil
}

// FileSizeKB returns the size of path in whole kilobytes.
func FileSizeKB(path string) (int, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, irperr.Wrap(irperr.KindFile, err, "Failed to determine file size of '%s'", path)
	}
	return int(info.Size() / 1024), nil
}

// SubmitFromFiles runs the whole import for local files: it resolves the
// EDM and portfolio, syncs the mapping with the data file headers, creates
// a bucket, uploads the three files and submits the import. Nothing is
// rolled back when a step fails.
func (m *Manager) SubmitFromFiles(ctx context.Context, in types.ImportFiles) (int64, types.ImportRequest, error) {
	if err := validate.All(
		validate.NonEmptyString(in.EDMName, "edm_name"),
		validate.NonEmptyString(in.PortfolioName, "portfolio_name"),
		validate.NonEmptyString(in.AccountsFile, "accounts_file_name"),
		validate.NonEmptyString(in.LocationsFile, "locations_file_name"),
		validate.NonEmptyString(in.MappingFile, "mapping_file_name"),
		validate.NonNegativeInt(in.SkipLines, "skip_lines"),
	); err != nil {
		return 0, types.ImportRequest{}, err
	}

	filesDir := in.FilesDir
	if filesDir == "" {
		filesDir = m.filesDir
	}
	mappingDir := in.MappingDir
	if mappingDir == "" {
		mappingDir = m.mappingDir
	}
	if mappingDir == "" {
		mappingDir = filesDir
	}

	log := m.log.WithFields(logrus.Fields{"edm": in.EDMName, "portfolio": in.PortfolioName})

	log.Info("Looking up EDM")
	edm, err := m.edms.LookupByName(ctx, in.EDMName)
	if err != nil {
		return 0, types.ImportRequest{}, err
	}
	log.Info("Looking up portfolio")
	portfolio, err := m.portfolios.LookupByName(ctx, edm.ExposureID, in.PortfolioName)
	if err != nil {
		return 0, types.ImportRequest{}, err
	}

	accountsPath := filepath.Join(filesDir, in.AccountsFile)
	locationsPath := filepath.Join(filesDir, in.LocationsFile)
	mappingPath := filepath.Join(mappingDir, in.MappingFile)
	if err := validate.All(
		validate.FileExists(accountsPath, "accounts_file_name"),
		validate.FileExists(locationsPath, "locations_file_name"),
		validate.FileExists(mappingPath, "mapping_file_name"),
	); err != nil {
		return 0, types.ImportRequest{}, err
	}

	if _, err := m.SyncMapping(mappingPath, accountsPath, locationsPath); err != nil {
		return 0, types.ImportRequest{}, err
	}

	accountsKB, err := FileSizeKB(accountsPath)
	if err != nil {
		return 0, types.ImportRequest{}, err
	}
	locationsKB, err := FileSizeKB(locationsPath)
	if err != nil {
		return 0, types.ImportRequest{}, err
	}

	log.Info("Creating storage bucket")
	bucketResp, err := m.CreateBucket(ctx)
	if err != nil {
		return 0, types.ImportRequest{}, err
	}
	bucketURL, err := client.LocationHeader(bucketResp, "storage bucket creation response")
	if err != nil {
		return 0, types.ImportRequest{}, err
	}
	bucketID, err := client.IntIDFromLocation(bucketResp, "storage bucket creation response")
	if err != nil {
		return 0, types.ImportRequest{}, err
	}

	accountsID, err := m.uploadDataFile(ctx, bucketURL, accountsPath, accountsKB, FileTypeAccount)
	if err != nil {
		return 0, types.ImportRequest{}, err
	}
	locationsID, err := m.uploadDataFile(ctx, bucketURL, locationsPath, locationsKB, FileTypeLocation)
	if err != nil {
		return 0, types.ImportRequest{}, err
	}

	log.WithField("mapping", in.MappingFile).Info("Uploading mapping file")
	mappingID, err := m.UploadMapping(ctx, mappingPath, bucketID)
	if err != nil {
		return 0, types.ImportRequest{}, err
	}

	log.Info("Submitting import job")
	workflowID, req, err := m.SubmitImport(ctx, types.ImportRequest{
		BucketID:        bucketID,
		DataSourceName:  in.EDMName,
		AccountsFileID:  accountsID,
		LocationsFileID: locationsID,
		MappingFileID:   mappingID,
		Delimiter:       in.Delimiter,
		SkipLines:       in.SkipLines,
		Currency:        in.Currency,
		PortfolioID:     portfolio.PortfolioID,
		AppendLocations: in.AppendLocations,
	})
	if err != nil {
		return 0, req, err
	}
	log.WithField("workflow_id", workflowID).Info("Import job submitted")
	return workflowID, req, nil
}

func (m *Manager) uploadDataFile(ctx context.Context, bucketURL, path string, sizeKB int, fileType string) (int64, error) {
	m.log.WithFields(logrus.Fields{"file": path, "type": fileType}).Info("Requesting upload credentials")
	creds, err := m.GetFileCredentials(ctx, bucketURL, filepath.Base(path), sizeKB, fileType)
	if err != nil {
		return 0, err
	}
	if err := m.Upload(ctx, creds, path); err != nil {
		return 0, err
	}
	id, err := strconv.ParseInt(creds.FileID, 10, 64)
	if err != nil {
		return 0, irperr.Wrap(irperr.KindAPI, err, "non-numeric %s file ID %q", fileType, creds.FileID)
	}
	return id, nil
}
