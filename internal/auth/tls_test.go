package auth

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateECDSACA() ([]byte, *ecdsa.PrivateKey, error) {
	priv, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate ECDSA key: %w", err)
	}

	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject: pkix.Name{
			CommonName: "Test CA",
		},
		NotBefore:             time.Now(),
		NotAfter:              time.Now().Add(time.Hour),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		IsCA:                  true,
		BasicConstraintsValid: true,
	}

	caDER, err := x509.CreateCertificate(rand.Reader, &template, &template, &priv.PublicKey, priv)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create ECDSA CA certificate: %w", err)
	}

	caPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: caDER})

	return caPEM, priv, nil
}

// generateClientCert issues a client certificate signed by the given CA
func generateClientCert(caPEM []byte, caKey *ecdsa.PrivateKey) (tls.Certificate, error) {
	block, _ := pem.Decode(caPEM)
	if block == nil {
		return tls.Certificate{}, fmt.Errorf("failed to decode CA PEM")
	}
	caCert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to parse CA: %w", err)
	}

	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to generate ECDSA key: %w", err)
	}

	template := x509.Certificate{
		SerialNumber: big.NewInt(2),
		Subject: pkix.Name{
			CommonName: "irpctl",
		},
		NotBefore:   time.Now().Add(-time.Minute),
		NotAfter:    time.Now().Add(time.Hour),
		KeyUsage:    x509.KeyUsageDigitalSignature,
		ExtKeyUsage: []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
	}

	certDER, err := x509.CreateCertificate(rand.Reader, &template, caCert, &priv.PublicKey, caKey)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to create client certificate: %w", err)
	}

	keyDER, err := x509.MarshalECPrivateKey(priv)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to marshal ECDSA key: %w", err)
	}

	return tls.X509KeyPair(
		pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER}),
		pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}),
	)
}

func TestTLSConfig(t *testing.T) {
	open := &Validator{}
	assert.Equal(t, tls.NoClientCert, open.TLSConfig().ClientAuth)
	assert.Nil(t, open.TLSConfig().ClientCAs)

	caPEM, _, err := generateECDSACA()
	require.NoError(t, err)
	validator, err := NewValidator(Config{ClientCAFile: writeFile(t, "ca.pem", caPEM)})
	require.NoError(t, err)

	cfg := validator.TLSConfig()
	assert.Equal(t, tls.VerifyClientCertIfGiven, cfg.ClientAuth)
	assert.NotNil(t, cfg.ClientCAs)
	assert.Equal(t, uint16(tls.VersionTLS12), cfg.MinVersion)
}

func TestMiddleware_ClientCertificate(t *testing.T) {
	gin.SetMode(gin.TestMode)

	caPEM, caKey, err := generateECDSACA()
	require.NoError(t, err)
	clientCert, err := generateClientCert(caPEM, caKey)
	require.NoError(t, err)

	validator, err := NewValidator(Config{ClientCAFile: writeFile(t, "ca.pem", caPEM)})
	require.NoError(t, err)

	router := gin.New()
	router.Use(validator.Middleware())
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	srv := httptest.NewUnstartedServer(router)
	srv.TLS = validator.TLSConfig()
	srv.StartTLS()
	defer srv.Close()

	// Without a client certificate the request is rejected
	resp, err := srv.Client().Get(srv.URL + "/health")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	client := srv.Client()
	transport := client.Transport.(*http.Transport)
	transport.CloseIdleConnections()
	transport.TLSClientConfig.Certificates = []tls.Certificate{clientCert}

	resp, err = client.Get(srv.URL + "/health")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
