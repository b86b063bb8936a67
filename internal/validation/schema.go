package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

var ErrInvalidPayload = errors.New("invalid timeline payload")

// payloadSchema describes the persisted project payload: three flat lists
// of items discriminated by "type".
const payloadSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "definitions": {
    "seconds": { "type": "number", "minimum": 0 },
    "item": {
      "type": "object",
      "required": ["source"],
      "properties": {
        "name":           { "type": "string", "maxLength": 255 },
        "source":         { "type": "string" },
        "type":           { "enum": ["video", "audio"] },
        "duration":       { "$ref": "#/definitions/seconds" },
        "sourceDuration": { "$ref": "#/definitions/seconds" },
        "startOffset":    { "$ref": "#/definitions/seconds" },
        "startTime":      { "$ref": "#/definitions/seconds" }
      }
    },
    "items": {
      "type": ["array", "null"],
      "items": { "$ref": "#/definitions/item" }
    }
  },
  "properties": {
    "media_files":  { "$ref": "#/definitions/items" },
    "clips":        { "$ref": "#/definitions/items" },
    "music_tracks": { "$ref": "#/definitions/items" }
  }
}`

const payloadSchemaURL = "timeline.schema.json"

var compiledPayload = mustCompilePayloadSchema()

func mustCompilePayloadSchema() *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(payloadSchemaURL, strings.NewReader(payloadSchema)); err != nil {
		panic(fmt.Sprintf("add timeline schema: %v", err))
	}
	schema, err := compiler.Compile(payloadSchemaURL)
	if err != nil {
		panic(fmt.Sprintf("compile timeline schema: %v", err))
	}
	return schema
}

// ValidatePayload checks a raw payload against the timeline schema.
func ValidatePayload(raw []byte) error {
	var instance any
	if err := json.Unmarshal(raw, &instance); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if err := compiledPayload.Validate(instance); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}
