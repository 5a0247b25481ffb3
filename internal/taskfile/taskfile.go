package taskfile

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/natefinch/atomic"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/nibzard/tasklist-go/internal/document"
)

//go:embed schema.json
var embeddedSchema string

const embeddedSchemaURL = "https://tasklist.local/tasks.schema.json"

const filePerms = 0o644

// Extension is the file extension offered by pickers and used for downloads.
const Extension = ".json"

// sectionRecord and taskRecord are the on-disk layout. Document IDs are not
// persisted.
type sectionRecord struct {
	Name  string       `json:"name"`
	Tasks []taskRecord `json:"tasks"`
}

type taskRecord struct {
	Text      string `json:"text"`
	Completed bool   `json:"completed"`
}

// ValidationError represents a validation error with context.
type ValidationError struct {
	Path string // JSON path to the error location
	Err  error  // Underlying error
}

func (e *ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Err)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// ParseError reports content that is not a valid task list. Either Err is
// set (the content is not JSON) or Errors lists the shape violations.
type ParseError struct {
	Source string
	Err    error
	Errors []error
}

func (e *ParseError) Error() string {
	var b strings.Builder
	b.WriteString("parse task file")
	if e.Source != "" {
		b.WriteString(" " + e.Source)
	}
	if e.Err != nil {
		b.WriteString(": " + e.Err.Error())
		return b.String()
	}
	for i, err := range e.Errors {
		if i == 0 {
			b.WriteString(": ")
		} else {
			b.WriteString("; ")
		}
		b.WriteString(err.Error())
	}
	return b.String()
}

// Unwrap returns the decode error, or the first validation error.
func (e *ParseError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	if len(e.Errors) > 0 {
		return e.Errors[0]
	}
	return nil
}

// ValidationResult contains validation results.
type ValidationResult struct {
	Valid    bool
	Errors   []error
	Warnings []string
	// SchemaPath is the external schema used, empty for the embedded one.
	SchemaPath string
}

// Validator checks content against the task list schema.
type Validator struct {
	schema     *jsonschema.Schema
	schemaPath string
	warnings   []string
}

var (
	defaultValidator     *Validator
	defaultValidatorOnce sync.Once
)

// DefaultValidator returns a validator for the embedded schema.
func DefaultValidator() *Validator {
	defaultValidatorOnce.Do(func() {
		schema, err := compileEmbedded()
		if err != nil {
			panic(fmt.Sprintf("taskfile: embedded schema: %v", err))
		}
		defaultValidator = &Validator{schema: schema}
	})
	return defaultValidator
}

// NewValidator returns a validator for the schema at schemaPath. An empty
// path selects the embedded schema. A schema that cannot be read or compiled
// falls back to the embedded one and is reported by Warnings.
func NewValidator(schemaPath string) *Validator {
	if schemaPath == "" {
		return DefaultValidator()
	}

	fallback := func(msg string) *Validator {
		return &Validator{
			schema:   DefaultValidator().schema,
			warnings: []string{msg, "using embedded schema"},
		}
	}

	absPath, err := filepath.Abs(schemaPath)
	if err != nil {
		return fallback(fmt.Sprintf("invalid schema path: %v", err))
	}
	if _, err := os.Stat(absPath); err != nil {
		if os.IsNotExist(err) {
			return fallback(fmt.Sprintf("schema file not found: %s", absPath))
		}
		return fallback(fmt.Sprintf("failed to read schema file: %v", err))
	}

	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	schema, err := compiler.Compile(absPath)
	if err != nil {
		return fallback(fmt.Sprintf("invalid schema file: %v", err))
	}
	return &Validator{schema: schema, schemaPath: absPath}
}

func compileEmbedded() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource(embeddedSchemaURL, strings.NewReader(embeddedSchema)); err != nil {
		return nil, err
	}
	return compiler.Compile(embeddedSchemaURL)
}

// Warnings returns problems found while loading an external schema.
func (v *Validator) Warnings() []string {
	return v.warnings
}

// Validate checks raw content without building a document.
func (v *Validator) Validate(data []byte) *ValidationResult {
	result := &ValidationResult{
		Valid:      true,
		Errors:     make([]error, 0),
		Warnings:   append([]string(nil), v.warnings...),
		SchemaPath: v.schemaPath,
	}

	var instance interface{}
	if err := json.Unmarshal(data, &instance); err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, err)
		return result
	}

	if err := v.schema.Validate(instance); err != nil {
		result.Valid = false
		appendSchemaErrors(result, err)
	}
	return result
}

// Parse decodes and validates content and returns the sections it holds.
func (v *Validator) Parse(data []byte) ([]*document.Section, error) {
	result := v.Validate(data)
	if !result.Valid {
		// a single non-schema error means the content did not decode
		if len(result.Errors) == 1 && !isValidationError(result.Errors[0]) {
			return nil, &ParseError{Err: result.Errors[0]}
		}
		return nil, &ParseError{Errors: result.Errors}
	}

	var records []sectionRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, &ParseError{Err: err}
	}
	return toSections(records), nil
}

func isValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Parse decodes content using the embedded schema.
func Parse(data []byte) ([]*document.Section, error) {
	return DefaultValidator().Parse(data)
}

// Marshal encodes sections with 2-space indentation and a trailing newline.
func Marshal(sections []*document.Section) ([]byte, error) {
	records := make([]sectionRecord, 0, len(sections))
	for _, s := range sections {
		rec := sectionRecord{Name: s.Name, Tasks: make([]taskRecord, 0, len(s.Tasks))}
		for _, t := range s.Tasks {
			rec.Tasks = append(rec.Tasks, taskRecord{Text: t.Text, Completed: t.Completed})
		}
		records = append(records, rec)
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal task file: %w", err)
	}

	// Add trailing newline
	data = append(data, '\n')
	return data, nil
}

// Load reads and parses a task file from path.
func (v *Validator) Load(path string) ([]*document.Section, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read task file: %w", err)
	}
	sections, err := v.Parse(data)
	if err != nil {
		var pe *ParseError
		if errors.As(err, &pe) {
			pe.Source = path
		}
		return nil, err
	}
	return sections, nil
}

// Load reads and parses a task file using the embedded schema.
func Load(path string) ([]*document.Section, error) {
	return DefaultValidator().Load(path)
}

// Save atomically replaces the file at path with the encoded sections.
func Save(path string, sections []*document.Section) error {
	data, err := Marshal(sections)
	if err != nil {
		return err
	}

	_, statErr := os.Stat(path)
	isNew := os.IsNotExist(statErr)

	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write task file: %w", err)
	}

	// atomic.WriteFile keeps the mode of a replaced file but not for new ones
	if isNew {
		if err := os.Chmod(path, filePerms); err != nil {
			return fmt.Errorf("set task file permissions: %w", err)
		}
	}
	return nil
}

func toSections(records []sectionRecord) []*document.Section {
	sections := make([]*document.Section, 0, len(records))
	for _, rec := range records {
		s := document.NewSection(rec.Name)
		for _, tr := range rec.Tasks {
			t := document.NewTask(tr.Text)
			t.Completed = tr.Completed
			s.Tasks = append(s.Tasks, t)
		}
		sections = append(sections, s)
	}
	return sections
}

func appendSchemaErrors(result *ValidationResult, err error) {
	if err == nil {
		return
	}

	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		result.Errors = append(result.Errors, err)
		return
	}

	collectSchemaErrors(result, ve)
}

func collectSchemaErrors(result *ValidationResult, err *jsonschema.ValidationError) {
	if err == nil {
		return
	}

	if len(err.Causes) == 0 {
		result.Errors = append(result.Errors, &ValidationError{
			Path: jsonPointerToPath(err.InstanceLocation),
			Err:  errors.New(err.Message),
		})
		return
	}

	for _, cause := range err.Causes {
		collectSchemaErrors(result, cause)
	}
}

// jsonPointerToPath turns "/0/tasks/1/text" into "[0].tasks[1].text".
func jsonPointerToPath(ptr string) string {
	ptr = strings.TrimPrefix(ptr, "#")
	ptr = strings.TrimPrefix(ptr, "/")
	if ptr == "" {
		return ""
	}

	var b strings.Builder
	for _, part := range strings.Split(ptr, "/") {
		part = strings.ReplaceAll(part, "~1", "/")
		part = strings.ReplaceAll(part, "~0", "~")
		if part == "" {
			continue
		}
		if idx, err := strconv.Atoi(part); err == nil {
			fmt.Fprintf(&b, "[%d]", idx)
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(part)
	}
	return b.String()
}
