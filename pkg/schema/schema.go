// Package schema validates canonical records against the published record
// schema before they leave the process. Validation is advisory: a violation
// is logged upstream, never a reason to drop a participant's data.
package schema

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/fieldwork-labs/intake/pkg/record"
)

//go:embed storage_record.schema.json
var storageRecordSchema string

const schemaURL = "intake://schemas/storage_record.json"

var (
	once     sync.Once
	compiled *jsonschema.Schema
	loadErr  error
)

func load() (*jsonschema.Schema, error) {
	once.Do(func() {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		if err := c.AddResource(schemaURL, bytes.NewReader([]byte(storageRecordSchema))); err != nil {
			loadErr = fmt.Errorf("schema: add resource: %w", err)
			return
		}
		compiled, loadErr = c.Compile(schemaURL)
	})
	return compiled, loadErr
}

// Validate checks rec against the storage-record schema.
func Validate(rec *record.CanonicalRecord) error {
	s, err := load()
	if err != nil {
		return err
	}

	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("schema: record marshal: %w", err)
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return fmt.Errorf("schema: record decode: %w", err)
	}

	if err := s.Validate(generic); err != nil {
		return fmt.Errorf("schema: record invalid: %w", err)
	}
	return nil
}
