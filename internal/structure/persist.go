package structure

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/tablemap/tablemap/internal/models"
	"github.com/tablemap/tablemap/internal/storage"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFor picks the format from a file extension; anything but .yaml/.yml
// is JSON.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	}
	return FormatJSON
}

// ParseFormat accepts "json", "yaml" or "yml", case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unknown structure map format %q", s)
}

func (f Format) Ext() string {
	if f == FormatYAML {
		return ".yaml"
	}
	return ".json"
}

//go:embed schema.json
var schemaJSON []byte

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func structureSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("schema.json", bytes.NewReader(schemaJSON)); err != nil {
			schemaErr = fmt.Errorf("failed to load structure map schema: %w", err)
			return
		}
		compiledSchema, schemaErr = compiler.Compile("schema.json")
	})
	return compiledSchema, schemaErr
}

// Marshal encodes a structure map in the given format.
func Marshal(smap *models.StructureMap, format Format) ([]byte, error) {
	if format == FormatYAML {
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(smap); err != nil {
			return nil, err
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	return json.MarshalIndent(smap, "", "  ")
}

// Save writes the structure map atomically, retrying transient failures.
func Save(path string, smap *models.StructureMap, format Format, attempts int) error {
	data, err := Marshal(smap, format)
	if err != nil {
		return fmt.Errorf("encode structure map: %w", err)
	}
	if err := storage.WriteFileAtomic(path, data, 0644, attempts); err != nil {
		return fmt.Errorf("write structure map %s: %w", path, err)
	}
	Logger.Debug("structure map saved", "path", path, "format", format, "bytes", len(data))
	return nil
}

// Load reads a structure map written by Save. JSON documents are validated
// against the embedded schema before decoding.
func Load(path string) (*models.StructureMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Unmarshal(data, FormatFor(path))
}

func Unmarshal(data []byte, format Format) (*models.StructureMap, error) {
	var smap models.StructureMap
	if format == FormatYAML {
		if err := yaml.Unmarshal(data, &smap); err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrMalformedInput, err)
		}
		return &smap, nil
	}

	if err := Validate(data); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &smap); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrMalformedInput, err)
	}
	return &smap, nil
}

// Validate checks a JSON structure map against the embedded schema.
func Validate(data []byte) error {
	schema, err := structureSchema()
	if err != nil {
		return err
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%w: %v", models.ErrMalformedInput, err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("%w: structure map does not match schema: %v", models.ErrMalformedInput, err)
	}
	return nil
}
