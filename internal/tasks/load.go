package tasks

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/hashicorp/hcl/v2/hclsimple"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/nibzard/fanout-go/internal/utils"
)

//go:embed schema.json
var schemaJSON []byte

const schemaURL = "tasks.schema.json"

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

// Schema returns the embedded JSON Schema document.
func Schema() []byte {
	return bytes.Clone(schemaJSON)
}

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		compiler.AssertFormat = true
		if err := compiler.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
			schemaErr = fmt.Errorf("load task schema: %w", err)
			return
		}
		schema, schemaErr = compiler.Compile(schemaURL)
	})
	return schema, schemaErr
}

// Load reads and parses a task-set file from path. The format is chosen by
// the file extension.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read task file: %w", err)
	}
	return Decode(path, data)
}

// Decode parses a task-set document. filename only selects the format.
// Schema violations are returned as ValidationErrors.
func Decode(filename string, data []byte) (*File, error) {
	doc, err := normalize(filename, data)
	if err != nil {
		return nil, fmt.Errorf("parse task file: %w", err)
	}
	if errs := validateSchema(doc); len(errs) > 0 {
		return nil, errs
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("parse task file: %w", err)
	}
	var f File
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse task file: %w", err)
	}
	return &f, nil
}

// normalize decodes data in its own format and returns the equivalent JSON
// value (maps, slices, float64, string, bool).
func normalize(filename string, data []byte) (any, error) {
	var doc any
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".json", "":
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, err
		}
		return doc, nil
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, err
		}
	case ".toml":
		var table map[string]any
		if err := toml.Unmarshal(data, &table); err != nil {
			return nil, err
		}
		doc = table
	case ".hcl":
		var f File
		if err := hclsimple.Decode(filepath.Base(filename), data, nil, &f); err != nil {
			return nil, err
		}
		if f.Tasks == nil {
			f.Tasks = []TaskSpec{}
		}
		doc = f
	default:
		return nil, fmt.Errorf("unsupported task file format %q (use .json, .yaml, .toml or .hcl)", ext)
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func validateSchema(doc any) ValidationErrors {
	s, err := compiledSchema()
	if err != nil {
		return ValidationErrors{{Err: err}}
	}
	err = s.Validate(doc)
	if err == nil {
		return nil
	}
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return ValidationErrors{{Err: err}}
	}
	var errs ValidationErrors
	collectSchemaErrors(&errs, ve)
	sort.SliceStable(errs, func(i, j int) bool { return errs[i].Path < errs[j].Path })
	return errs
}

func collectSchemaErrors(errs *ValidationErrors, err *jsonschema.ValidationError) {
	if len(err.Causes) == 0 {
		*errs = append(*errs, &ValidationError{
			Path: utils.JSONPointerToPath(err.InstanceLocation),
			Err:  fmt.Errorf("%s", err.Message),
		})
		return
	}
	for _, cause := range err.Causes {
		collectSchemaErrors(errs, cause)
	}
}

// Save writes the task set to path as JSON with 2-space indentation.
func (f *File) Save(path string) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal task file: %w", err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write task file: %w", err)
	}
	return nil
}
