package manifest

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/opentdf/contextvault/pkg/vault"
)

const SchemaVersion = "1.0.0"

// Object is manifest.json of a sealed bundle.
type Object struct {
	SchemaVersion string               `json:"schemaVersion"`
	Listing       vault.Listing        `json:"listing"`
	Envelope      vault.AccessEnvelope `json:"envelope"`
	PayloadSize   int                  `json:"payloadSize"`
}

// Valid decodes m strictly and checks the schema version and the envelope
// encodings.
func Valid(m []byte) (Object, error) {
	if !json.Valid(m) {
		return Object{}, errors.New("manifest JSON invalid")
	}
	var manifest Object
	dec := json.NewDecoder(bytes.NewReader(m))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&manifest); err != nil {
		return Object{}, err
	}
	if manifest.SchemaVersion != SchemaVersion {
		return Object{}, fmt.Errorf("unsupported manifest schema version %q", manifest.SchemaVersion)
	}
	if err := manifest.Envelope.Validate(); err != nil {
		return Object{}, err
	}
	if manifest.PayloadSize < 0 {
		return Object{}, fmt.Errorf("negative payload size %d", manifest.PayloadSize)
	}
	return manifest, nil
}
