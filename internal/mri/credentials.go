package mri

import (
	"encoding/base64"
	"strings"
	"unicode/utf8"

	"github.com/rossigee/irp-integration/internal/irperr"
	"github.com/rossigee/irp-integration/pkg/types"
)

// CredentialFields names the five encoded fields of a credentials payload.
type CredentialFields struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	Path            string
	Region          string

	// Source names the payload in error messages.
	Source string
}

var (
	// FileCredentialFields is the layout of the file credentials response.
	FileCredentialFields = CredentialFields{
		AccessKeyID:     "accessKeyId",
		SecretAccessKey: "secretAccessKey",
		SessionToken:    "sessionToken",
		Path:            "s3Path",
		Region:          "s3Region",
		Source:          "MRI credentials response",
	}

	// PresignFields is the layout of presign parameters.
	PresignFields = CredentialFields{
		AccessKeyID:     "accessKeyId",
		SecretAccessKey: "secretAccessKey",
		SessionToken:    "sessionToken",
		Path:            "path",
		Region:          "region",
		Source:          "Presign params response",
	}
)

func (f CredentialFields) names() []string {
	return []string{f.AccessKeyID, f.SecretAccessKey, f.SessionToken, f.Path, f.Region}
}

// DecodeCredentials base64-decodes the five credential fields of raw.
// Presence of every field is checked before anything is decoded, and a
// failure on any field fails the whole decode.
func DecodeCredentials(raw map[string]any, fields CredentialFields) (types.Credentials, error) {
	var missing []string
	for _, name := range fields.names() {
		if _, ok := raw[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return types.Credentials{}, irperr.API("%s missing fields: %s", fields.Source, strings.Join(missing, ", "))
	}

	decoded := make([]string, 0, 5)
	for _, name := range fields.names() {
		v, err := decodeField(raw[name], name)
		if err != nil {
			return types.Credentials{}, err
		}
		decoded = append(decoded, v)
	}

	return types.Credentials{
		AccessKeyID:     decoded[0],
		SecretAccessKey: decoded[1],
		SessionToken:    decoded[2],
		Path:            decoded[3],
		Region:          decoded[4],
	}, nil
}

func decodeField(value any, name string) (string, error) {
	s, ok := value.(string)
	if !ok {
		return "", irperr.API("Failed to decode base64 field '%s': expected string, got %T", name, value)
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return "", irperr.Wrap(irperr.KindAPI, err, "Failed to decode base64 field '%s'", name)
	}
	if !utf8.Valid(b) {
		return "", irperr.API("Failed to decode base64 field '%s': %d bytes are not valid UTF-8", name, len(b))
	}
	return string(b), nil
}
