package model

import (
	"encoding/gob"
	"io"
	"os"

	"github.com/airsift/airsift/pkg/errors"
)

// SaveModel writes a fitted estimator to filename with encoding/gob.
// The estimator must either expose exported fields or implement
// gob.GobEncoder; every airsift estimator does.
func SaveModel(m interface{}, filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return errors.Wrap(err, "failed to create file")
	}
	defer func() { _ = f.Close() }()

	return SaveModelToWriter(m, f)
}

// LoadModel reads a previously saved estimator from filename into m,
// which must be a pointer to the same concrete type that was saved.
func LoadModel(m interface{}, filename string) error {
	f, err := os.Open(filename)
	if err != nil {
		return errors.Wrap(err, "failed to open file")
	}
	defer func() { _ = f.Close() }()

	return LoadModelFromReader(m, f)
}

// SaveModelToWriter encodes m onto w with encoding/gob.
func SaveModelToWriter(m interface{}, w io.Writer) error {
	if err := gob.NewEncoder(w).Encode(m); err != nil {
		return errors.Wrap(err, "failed to encode model")
	}
	return nil
}

// LoadModelFromReader decodes a model from r into m.
func LoadModelFromReader(m interface{}, r io.Reader) error {
	if err := gob.NewDecoder(r).Decode(m); err != nil {
		return errors.Wrap(err, "failed to decode model")
	}
	return nil
}
