package auth

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, content, 0600))
	return path
}

func TestNewValidator(t *testing.T) {
	caPEM, _, err := generateECDSACA()
	require.NoError(t, err)

	tests := []struct {
		name           string
		cfg            func(t *testing.T) Config
		expectError    bool
		expectCA       bool
		expectedTokens map[string]bool
	}{
		{
			name:           "nothing configured",
			cfg:            func(*testing.T) Config { return Config{} },
			expectedTokens: map[string]bool{"dev-token-12345": false},
		},
		{
			name: "tokens file with comments and blanks",
			cfg: func(t *testing.T) Config {
				return Config{TokensFile: writeFile(t, "tokens", []byte("# ops\ntoken-a\n\n  token-b  \n"))}
			},
			expectedTokens: map[string]bool{"token-a": true, "token-b": true, "# ops": false},
		},
		{
			name: "client CA",
			cfg: func(t *testing.T) Config {
				return Config{ClientCAFile: writeFile(t, "ca.pem", caPEM)}
			},
			expectCA: true,
		},
		{
			name:        "missing tokens file",
			cfg:         func(t *testing.T) Config { return Config{TokensFile: filepath.Join(t.TempDir(), "absent")} },
			expectError: true,
		},
		{
			name: "CA file without certificates",
			cfg: func(t *testing.T) Config {
				return Config{ClientCAFile: writeFile(t, "ca.pem", []byte("not a certificate"))}
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			validator, err := NewValidator(tt.cfg(t))
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expectCA, validator.IsClientCALoaded())
			for token, expected := range tt.expectedTokens {
				assert.Equal(t, expected, validator.apiTokens[token])
			}
		})
	}
}

func TestValidateAPIToken(t *testing.T) {
	validator := &Validator{
		apiTokens: map[string]bool{
			"valid-token":   true,
			"another-token": true,
		},
	}

	tests := []struct {
		name       string
		authHeader string
		apiToken   string
		expected   bool
	}{
		{
			name:       "valid bearer token",
			authHeader: "Bearer valid-token",
			expected:   true,
		},
		{
			name:     "valid X-API-Token",
			apiToken: "another-token",
			expected: true,
		},
		{
			name:       "invalid bearer token",
			authHeader: "Bearer invalid-token",
			expected:   false,
		},
		{
			name:       "bearer without token falls back to header",
			authHeader: "Bearer ",
			apiToken:   "valid-token",
			expected:   true,
		},
		{
			name:     "invalid X-API-Token",
			apiToken: "invalid-token",
			expected: false,
		},
		{
			name:     "empty headers",
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Create a fresh gin context for each test
			c, _ := gin.CreateTestContext(nil)
			c.Request = &http.Request{Header: make(http.Header)}
			if tt.authHeader != "" {
				c.Request.Header.Set("Authorization", tt.authHeader)
			}
			if tt.apiToken != "" {
				c.Request.Header.Set("X-API-Token", tt.apiToken)
			}
			result := validator.validateAPIToken(c)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name      string
		validator *Validator
		token     string
		wantCode  int
	}{
		{
			name:      "open when nothing configured",
			validator: &Validator{apiTokens: map[string]bool{}},
			wantCode:  http.StatusOK,
		},
		{
			name:      "valid token",
			validator: &Validator{apiTokens: map[string]bool{"secret": true}},
			token:     "secret",
			wantCode:  http.StatusOK,
		},
		{
			name:      "wrong token",
			validator: &Validator{apiTokens: map[string]bool{"secret": true}},
			token:     "guess",
			wantCode:  http.StatusUnauthorized,
		},
		{
			name:      "CA configured without certificate",
			validator: &Validator{apiTokens: map[string]bool{}, clientCALoaded: true},
			wantCode:  http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.Use(tt.validator.Middleware())
			router.GET("/api/v1/submissions", func(c *gin.Context) { c.Status(http.StatusOK) })

			req := httptest.NewRequest(http.MethodGet, "/api/v1/submissions", nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantCode, w.Code)
			if tt.wantCode == http.StatusUnauthorized {
				assert.Contains(t, w.Body.String(), "authentication required")
			}
		})
	}
}
