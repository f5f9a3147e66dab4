// Package schema validates incoming detection request bodies against the
// embedded JSON Schema before they reach the pipeline.
package schema

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed detect_request.schema.json
var detectRequestSchemaJSON []byte

const detectRequestSchemaURL = "https://horse.fit/dupscan/schema/detect_request.schema.json"

var (
	compileOnce   sync.Once
	compiledIndex *jsonschema.Schema
	compileErr    error
)

func compiledSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		compiler.AssertFormat = true

		if err := compiler.AddResource(detectRequestSchemaURL, bytes.NewReader(detectRequestSchemaJSON)); err != nil {
			compileErr = fmt.Errorf("add detect request schema: %w", err)
			return
		}
		compiledIndex, compileErr = compiler.Compile(detectRequestSchemaURL)
	})
	return compiledIndex, compileErr
}

// ValidationError carries the human-readable reasons a request body was
// rejected.
type ValidationError struct {
	Reasons []string
}

func (e *ValidationError) Error() string {
	return "invalid detect request: " + strings.Join(e.Reasons, "; ")
}

// ValidateDetectRequest strictly decodes the body and checks it against
// the detect request schema. Unknown fields, trailing content and schema
// violations are all rejected.
func ValidateDetectRequest(body []byte) error {
	schema, err := compiledSchema()
	if err != nil {
		return err
	}

	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()

	var document any
	if err := decoder.Decode(&document); err != nil {
		return &ValidationError{Reasons: []string{fmt.Sprintf("body is not valid JSON: %v", err)}}
	}
	if err := decoder.Decode(new(any)); err != io.EOF {
		return &ValidationError{Reasons: []string{"trailing content after JSON document"}}
	}

	if err := schema.Validate(document); err != nil {
		return &ValidationError{Reasons: validationReasons(err)}
	}
	return nil
}

// validationReasons flattens the nested cause tree into leaf messages.
func validationReasons(err error) []string {
	var validationErr *jsonschema.ValidationError
	if !errors.As(err, &validationErr) {
		return []string{err.Error()}
	}

	var reasons []string
	var walk func(*jsonschema.ValidationError)
	walk = func(ve *jsonschema.ValidationError) {
		if len(ve.Causes) == 0 {
			location := strings.TrimPrefix(ve.InstanceLocation, "/")
			if location == "" {
				location = "request"
			}
			reasons = append(reasons, fmt.Sprintf("%s: %s", location, ve.Message))
			return
		}
		for _, cause := range ve.Causes {
			walk(cause)
		}
	}
	walk(validationErr)
	return reasons
}
