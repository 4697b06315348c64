package models

import (
	"bytes"
	"encoding/gob"
	"fmt"
)

func init() {
	gob.Register(&SmoothingModel{})
	gob.Register(&RidgeModel{})
	gob.Register(&HoltWintersModel{})
	gob.Register(&ARModel{})
}

// envelope carries the artifact through gob behind the interface type.
type envelope struct {
	Artifact Artifact
}

// Encode serializes an artifact to the opaque payload the model cache
// stores.
func Encode(artifact Artifact) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(envelope{Artifact: artifact}); err != nil {
		return nil, fmt.Errorf("encode %s model: %w", artifact.Name(), err)
	}
	return buf.Bytes(), nil
}

// Decode restores an artifact from a cached payload.
func Decode(blob []byte) (Artifact, error) {
	var env envelope
	if err := gob.NewDecoder(bytes.NewReader(blob)).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode model payload: %w", err)
	}
	if env.Artifact == nil {
		return nil, fmt.Errorf("model payload held no artifact")
	}
	return env.Artifact, nil
}
