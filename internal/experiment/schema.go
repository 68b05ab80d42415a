package experiment

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tidwall/gjson"
)

// documentSchema constrains spooled experiment documents before they reach
// config decoding, so an obviously malformed drop is rejected with a schema
// path instead of a decoder error.
const documentSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["traders"],
  "properties": {
    "session": {
      "type": "object",
      "properties": {
        "seed": {"type": "integer"},
        "duration_ticks": {"type": "integer", "minimum": 1},
        "price_min": {"type": "integer", "minimum": 1},
        "price_max": {"type": "integer", "minimum": 2},
        "snapshot_every": {"type": "integer", "minimum": 0},
        "activation": {"enum": ["random", "round_robin"]}
      }
    },
    "traders": {
      "type": "object",
      "required": ["buyers", "sellers"],
      "properties": {
        "buyers": {"$ref": "#/definitions/cohorts"},
        "sellers": {"$ref": "#/definitions/cohorts"}
      }
    },
    "oracle": {
      "type": "object",
      "properties": {
        "noise": {"enum": ["uniform", "gaussian"]},
        "withhold_prob": {"type": "number", "minimum": 0, "maximum": 1},
        "lag_ticks": {"type": "integer", "minimum": 0}
      }
    },
    "schedule": {
      "type": "object",
      "properties": {
        "timemode": {"enum": ["periodic", "drip-fixed", "drip-jitter", "drip-poisson"]},
        "stepmode": {"enum": ["fixed", "jittered", "random"]}
      }
    },
    "experiment": {
      "type": "object",
      "properties": {
        "name": {"type": "string"},
        "trials": {"type": "integer", "minimum": 1},
        "max_concurrent": {"type": "integer", "minimum": 1},
        "mutation_prob": {"type": "number", "minimum": 0, "maximum": 1}
      }
    }
  },
  "definitions": {
    "cohorts": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["strategy", "count"],
        "properties": {
          "strategy": {"enum": ["gvwy", "zic", "shvr", "snpr", "zip", "aa", "trnd"]},
          "count": {"type": "integer", "minimum": 1},
          "oracle": {"type": "boolean"},
          "params": {"type": "object"}
        }
      }
    }
  }
}`

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func loadSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("experiment.json", strings.NewReader(documentSchema)); err != nil {
			schemaErr = err
			return
		}
		compiledSchema, schemaErr = compiler.Compile("experiment.json")
	})
	return compiledSchema, schemaErr
}

// DocumentInfo is the quick peek at a document before full decoding.
type DocumentInfo struct {
	Name string
	Seed int64
}

// ValidateDocument checks raw JSON against the embedded schema and returns
// the peeked name and seed.
func ValidateDocument(raw []byte) (DocumentInfo, error) {
	if !gjson.ValidBytes(raw) {
		return DocumentInfo{}, fmt.Errorf("document is not valid json")
	}
	parsed := gjson.ParseBytes(raw)
	if !parsed.IsObject() {
		return DocumentInfo{}, fmt.Errorf("document root must be an object")
	}
	info := DocumentInfo{
		Name: parsed.Get("experiment.name").String(),
		Seed: parsed.Get("session.seed").Int(),
	}

	schema, err := loadSchema()
	if err != nil {
		return info, err
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return info, err
	}
	if err := schema.Validate(doc); err != nil {
		return info, fmt.Errorf("document rejected by schema: %w", err)
	}
	return info, nil
}
