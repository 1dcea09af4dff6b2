package transport

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/astromechza/teleprompter-sync/pkg/state"
)

const TypeStateUpdate = "STATE_UPDATE"

var ErrMalformed = errors.New("malformed envelope")

// Envelope is the unit exchanged between processes on every transport.
type Envelope struct {
	Type   string         `json:"type"`
	Origin string         `json:"origin"`
	State  state.Snapshot `json:"state"`
}

func NewStateUpdate(origin string, snapshot state.Snapshot) Envelope {
	return Envelope{Type: TypeStateUpdate, Origin: origin, State: snapshot.Clone()}
}

func Encode(env Envelope) ([]byte, error) {
	env.State = env.State.Clone()
	return json.Marshal(env)
}

// Decode parses and validates a raw envelope. Every failure wraps
// ErrMalformed.
func Decode(raw []byte) (Envelope, error) {
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := envelopeSchema.Validate(inst); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return env, nil
}

// DecodeSnapshot parses and validates a bare serialised snapshot, as found in
// a persisted slot. Every failure wraps ErrMalformed.
func DecodeSnapshot(raw []byte) (state.Snapshot, error) {
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return state.Snapshot{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := snapshotSchema.Validate(inst); err != nil {
		return state.Snapshot{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	var snapshot state.Snapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return state.Snapshot{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return snapshot, nil
}

const envelopeSchemaURL = "https://teleprompter-sync.local/envelope.schema.json"

var envelopeSchema, snapshotSchema = mustCompileSchemas()

func mustCompileSchemas() (*jsonschema.Schema, *jsonschema.Schema) {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(envelopeSchemaJSON))
	if err != nil {
		panic(fmt.Sprintf("envelope schema: %v", err))
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(envelopeSchemaURL, doc); err != nil {
		panic(fmt.Sprintf("envelope schema: %v", err))
	}
	return c.MustCompile(envelopeSchemaURL), c.MustCompile(envelopeSchemaURL + "#/$defs/snapshot")
}

const envelopeSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["type", "origin", "state"],
  "properties": {
    "type": {"const": "STATE_UPDATE"},
    "origin": {"type": "string"},
    "state": {"$ref": "#/$defs/snapshot"}
  },
  "$defs": {
    "snapshot": {
      "type": "object",
      "required": ["activeTabId", "displayTabId", "tabs", "categories", "items", "scrollSpeed", "autoScrolling", "fontSize"],
      "properties": {
        "activeTabId": {"type": "string"},
        "displayTabId": {"type": "string"},
        "tabs": {
          "type": "array",
          "items": {
            "type": "object",
            "required": ["id"],
            "properties": {
              "id": {"type": "string"},
              "label": {"type": "string"},
              "icon": {"type": "string"},
              "content": {"type": "string"},
              "placeholder": {"type": "string"}
            }
          }
        },
        "categories": {
          "type": "array",
          "items": {
            "type": "object",
            "required": ["id"],
            "properties": {
              "id": {"type": "string"},
              "label": {"type": "string"},
              "icon": {"type": "string"},
              "colorTag": {"type": "string"}
            }
          }
        },
        "items": {
          "type": "array",
          "items": {
            "type": "object",
            "required": ["id", "categoryId", "text"],
            "properties": {
              "id": {"type": "string"},
              "categoryId": {"type": "string"},
              "text": {"type": "string"},
              "detail": {"type": "string"},
              "completed": {"type": "boolean"},
              "createdAt": {"type": "integer"}
            }
          }
        },
        "scrollSpeed": {"type": "integer", "minimum": 0, "maximum": 100},
        "autoScrolling": {"type": "boolean"},
        "fontSize": {"enum": ["sm", "md", "lg", "xl", "2xl"]}
      }
    }
  }
}`
