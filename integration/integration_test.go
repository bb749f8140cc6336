//go:build integration
// +build integration

package integration

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/rossigee/irp-integration/internal/api"
	"github.com/rossigee/irp-integration/internal/auth"
	"github.com/rossigee/irp-integration/internal/jobs"
	"github.com/rossigee/irp-integration/internal/objectstore"
	"github.com/rossigee/irp-integration/internal/storage"
	"github.com/rossigee/irp-integration/pkg/types"
)

const testToken = "integration-token"

// TestSuite holds the integration test suite
type TestSuite struct {
	suite.Suite
	minioClient *minio.Client
	endpoint    string
	accessKey   string
	secretKey   string
	testBucket  string
	workDir     string
}

func envOr(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}

// SetupSuite initializes the test suite
func (suite *TestSuite) SetupSuite() {
	suite.T().Log("Setting up integration test suite...")

	suite.endpoint = envOr("TEST_MINIO_ENDPOINT", "http://localhost:9000")
	suite.accessKey = envOr("TEST_MINIO_ACCESS_KEY", "testminio")
	suite.secretKey = envOr("TEST_MINIO_SECRET_KEY", "testminio123")

	host := strings.TrimPrefix(strings.TrimPrefix(suite.endpoint, "https://"), "http://")
	minioClient, err := minio.New(host, &minio.Options{
		Creds:  credentials.NewStaticV4(suite.accessKey, suite.secretKey, ""),
		Secure: strings.HasPrefix(suite.endpoint, "https://"),
	})
	require.NoError(suite.T(), err, "Failed to create MinIO client")
	suite.minioClient = minioClient

	// Create test bucket
	suite.testBucket = fmt.Sprintf("irp-import-%d", time.Now().Unix())
	err = minioClient.MakeBucket(context.Background(), suite.testBucket, minio.MakeBucketOptions{Region: "us-east-1"})
	require.NoError(suite.T(), err, "Failed to create test bucket")

	suite.workDir = suite.T().TempDir()
}

// TearDownSuite cleans up after all tests
func (suite *TestSuite) TearDownSuite() {
	ctx := context.Background()
	for obj := range suite.minioClient.ListObjects(ctx, suite.testBucket, minio.ListObjectsOptions{Recursive: true}) {
		if obj.Err == nil {
			_ = suite.minioClient.RemoveObject(ctx, suite.testBucket, obj.Key, minio.RemoveObjectOptions{})
		}
	}
	_ = suite.minioClient.RemoveBucket(ctx, suite.testBucket)
}

// writeCSV creates a data file of roughly size bytes and returns its path and digest
func (suite *TestSuite) writeCSV(name string, size int) (string, []byte) {
	var b strings.Builder
	b.WriteString("ACCNTNUM,LOCNUM,POSTALCODE\n")
	buf := make([]byte, 8)
	for b.Len() < size {
		_, err := rand.Read(buf)
		require.NoError(suite.T(), err)
		fmt.Fprintf(&b, "%x,%x,33101\n", buf[:4], buf[4:])
	}
	path := filepath.Join(suite.workDir, name)
	require.NoError(suite.T(), os.WriteFile(path, []byte(b.String()), 0600))
	sum := sha256.Sum256([]byte(b.String()))
	return path, sum[:]
}

func (suite *TestSuite) assertObject(key string, digest []byte) {
	ctx := context.Background()
	info, err := suite.minioClient.StatObject(ctx, suite.testBucket, key, minio.StatObjectOptions{})
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), objectstore.ContentType, info.ContentType)

	obj, err := suite.minioClient.GetObject(ctx, suite.testBucket, key, minio.GetObjectOptions{})
	require.NoError(suite.T(), err)
	defer obj.Close()
	h := sha256.New()
	_, err = io.Copy(h, obj)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), digest, h.Sum(nil))
}

func (suite *TestSuite) target(key string) objectstore.Target {
	return objectstore.Target{
		Bucket:          suite.testBucket,
		Key:             key,
		Region:          "us-east-1",
		AccessKeyID:     suite.accessKey,
		SecretAccessKey: suite.secretKey,
	}
}

// TestUploadBackends uploads the same files through every storage backend
func (suite *TestSuite) TestUploadBackends() {
	tests := []struct {
		name    string
		backend string
		size    int
	}{
		{name: "minio small", backend: objectstore.BackendMinio, size: 4 * 1024},
		{name: "minio multipart", backend: objectstore.BackendMinio, size: 2*objectstore.PartSize + 1024},
		{name: "aws small", backend: objectstore.BackendAWS, size: 4 * 1024},
		{name: "aws multipart", backend: objectstore.BackendAWS, size: 2*objectstore.PartSize + 1024},
	}

	for i, tt := range tests {
		suite.Run(tt.name, func() {
			uploader, err := objectstore.New(tt.backend, suite.endpoint)
			require.NoError(suite.T(), err)

			path, digest := suite.writeCSV(fmt.Sprintf("accounts-%d.csv", i), tt.size)
			key := objectstore.ObjectKey("tenant/123", fmt.Sprintf("%d", 500+i), filepath.Base(path))

			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()
			require.NoError(suite.T(), uploader.Upload(ctx, suite.target(key), path))
			suite.assertObject(key, digest)
		})
	}
}

// TestUploadBadCredentials expects the storage service to refuse the upload
func (suite *TestSuite) TestUploadBadCredentials() {
	uploader, err := objectstore.New(objectstore.BackendMinio, suite.endpoint)
	require.NoError(suite.T(), err)

	path, _ := suite.writeCSV("locations.csv", 1024)
	target := suite.target("tenant/123/9-locations.csv")
	target.SecretAccessKey = "wrong-secret"

	err = uploader.Upload(context.Background(), target, path)
	assert.Error(suite.T(), err)
}

// TestJournalServer serves a file-backed journal with token auth
func (suite *TestSuite) TestJournalServer() {
	store, err := storage.NewStore(filepath.Join(suite.workDir, "journal.db"))
	require.NoError(suite.T(), err)
	defer store.Close()

	tokens := filepath.Join(suite.workDir, "tokens")
	require.NoError(suite.T(), os.WriteFile(tokens, []byte(testToken+"\n"), 0600))
	validator, err := auth.NewValidator(auth.Config{TokensFile: tokens})
	require.NoError(suite.T(), err)

	ctx := context.Background()
	tracker := jobs.NewTracker(store)
	tracker.Submitted(ctx, storage.KindImport, 42, "EDM_A/USFL_Other", types.ImportRequest{ImportType: "MRI", BucketID: 77})
	tracker.Submitted(ctx, storage.KindImport, 43, "EDM_A/USFL_Commercial", types.ImportRequest{ImportType: "MRI", BucketID: 78})

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(validator.Middleware())
	api.SetupRoutes(router, api.NewHandler(store, tracker, nil))
	srv := httptest.NewServer(router)
	defer srv.Close()

	anonymous := &JournalClient{baseURL: srv.URL, httpClient: &http.Client{Timeout: 10 * time.Second}}
	_, code, err := anonymous.ListSubmissions(storage.KindImport)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), http.StatusUnauthorized, code)

	client := &JournalClient{baseURL: srv.URL, token: testToken, httpClient: &http.Client{Timeout: 10 * time.Second}}
	list, code, err := client.ListSubmissions(storage.KindImport)
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), http.StatusOK, code)
	assert.Len(suite.T(), list.Submissions, 2)

	health, code, err := client.Health()
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), http.StatusOK, code)
	assert.Equal(suite.T(), 2, health.ActiveJobs)
}

// TestIntegrationSuite runs the integration test suite
func TestIntegrationSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration tests in short mode")
	}

	suite.Run(t, new(TestSuite))
}
