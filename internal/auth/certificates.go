// Package auth guards the journal API with bearer tokens and, when a client
// CA is configured, verified client certificates.
package auth

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/rossigee/irp-integration/pkg/types"
)

// Config names the credential files. Empty paths disable that method.
type Config struct {
	ClientCAFile string `mapstructure:"client_ca_file"`
	TokensFile   string `mapstructure:"tokens_file"`
}

// Validator handles authentication validation
type Validator struct {
	clientCAs      *x509.CertPool
	clientCALoaded bool            // Whether client CA certificates were loaded
	apiTokens      map[string]bool // Simple token validation
}

// NewValidator creates a new authentication validator
func NewValidator(cfg Config) (*Validator, error) {
	validator := &Validator{
		clientCAs: x509.NewCertPool(),
		apiTokens: make(map[string]bool),
	}

	if err := validator.loadClientCAs(cfg.ClientCAFile); err != nil {
		return nil, fmt.Errorf("failed to load client CAs: %w", err)
	}

	if err := validator.loadAPITokens(cfg.TokensFile); err != nil {
		return nil, fmt.Errorf("failed to load API tokens: %w", err)
	}

	return validator, nil
}

// loadClientCAs loads client certificate authorities
func (v *Validator) loadClientCAs(path string) error {
	if path == "" {
		return nil
	}

	caCert, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read CA cert: %w", err)
	}

	if !v.clientCAs.AppendCertsFromPEM(caCert) {
		return fmt.Errorf("failed to parse CA cert %s", path)
	}

	v.clientCALoaded = true
	return nil
}

// loadAPITokens loads API tokens, one per line; blank lines and lines
// starting with # are ignored
func (v *Validator) loadAPITokens(path string) error {
	if path == "" {
		return nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read API tokens: %w", err)
	}

	for _, line := range strings.Split(string(content), "\n") {
		token := strings.TrimSpace(line)
		if token != "" && !strings.HasPrefix(token, "#") {
			v.apiTokens[token] = true
		}
	}

	return nil
}

// Enabled reports whether any authentication method is configured.
func (v *Validator) Enabled() bool {
	return v.clientCALoaded || len(v.apiTokens) > 0
}

// Middleware returns Gin middleware for authentication. With nothing
// configured every request is let through.
func (v *Validator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !v.Enabled() {
			c.Next()
			return
		}

		if v.validateAPIToken(c) {
			c.Next()
			return
		}

		// Chains are only present once the TLS layer verified them against ClientCAs
		if tlsState := c.Request.TLS; tlsState != nil && len(tlsState.VerifiedChains) > 0 {
			c.Next()
			return
		}

		c.AbortWithStatusJSON(401, types.ErrorResponse{
			Error:   "authentication required",
			Message: "provide valid API token or client certificate",
			Code:    401,
		})
	}
}

// validateAPIToken validates API token from Authorization or X-API-Token headers
func (v *Validator) validateAPIToken(c *gin.Context) bool {
	authHeader := c.GetHeader("Authorization")

	if token, ok := strings.CutPrefix(authHeader, "Bearer "); ok && token != "" {
		return v.apiTokens[token]
	}

	token := c.GetHeader("X-API-Token")
	if token != "" {
		return v.apiTokens[token]
	}

	return false
}

// TLSConfig returns the server TLS settings. Client certificates are
// verified when presented if a client CA was loaded.
func (v *Validator) TLSConfig() *tls.Config {
	cfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if v.clientCALoaded {
		cfg.ClientAuth = tls.VerifyClientCertIfGiven
		cfg.ClientCAs = v.clientCAs
	}
	return cfg
}

// IsClientCALoaded returns whether client CA certificates were loaded
func (v *Validator) IsClientCALoaded() bool {
	return v.clientCALoaded
}
