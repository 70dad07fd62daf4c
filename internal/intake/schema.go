package intake

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/dineshreddykolli/mindcare-ai/internal/fault"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// Kind names an input document type with its own schema.
type Kind string

const (
	KindIntake   Kind = "intake"
	KindRoster   Kind = "roster"
	KindSessions Kind = "sessions"
	KindFeatures Kind = "features"
)

const schemaBase = "schema://intake/"

var compiled struct {
	once    sync.Once
	schemas map[Kind]*jsonschema.Schema
	err     error
}

func compileAll() {
	c := jsonschema.NewCompiler()
	c.AssertFormat()

	entries, err := schemaFS.ReadDir("schemas")
	if err != nil {
		compiled.err = fmt.Errorf("read embedded schemas: %w", err)
		return
	}
	for _, e := range entries {
		raw, err := schemaFS.ReadFile(path.Join("schemas", e.Name()))
		if err != nil {
			compiled.err = fmt.Errorf("read schema %s: %w", e.Name(), err)
			return
		}
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
		if err != nil {
			compiled.err = fmt.Errorf("parse schema %s: %w", e.Name(), err)
			return
		}
		if err := c.AddResource(schemaBase+e.Name(), doc); err != nil {
			compiled.err = fmt.Errorf("add schema %s: %w", e.Name(), err)
			return
		}
	}

	compiled.schemas = make(map[Kind]*jsonschema.Schema)
	for _, k := range []Kind{KindIntake, KindRoster, KindSessions, KindFeatures} {
		s, err := c.Compile(schemaBase + string(k) + ".schema.json")
		if err != nil {
			compiled.err = fmt.Errorf("compile %s schema: %w", k, err)
			return
		}
		compiled.schemas[k] = s
	}
}

func schemaFor(k Kind) (*jsonschema.Schema, error) {
	compiled.once.Do(compileAll)
	if compiled.err != nil {
		return nil, compiled.err
	}
	s, ok := compiled.schemas[k]
	if !ok {
		return nil, fmt.Errorf("no schema for document kind %q", k)
	}
	return s, nil
}

// Validate checks raw against the schema for kind. Malformed JSON and schema
// violations are both reported as *fault.ErrValidation.
func Validate(k Kind, raw []byte) error {
	s, err := schemaFor(k)
	if err != nil {
		return err
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return fault.Invalid(string(k), "malformed JSON: %v", err)
	}
	if err := s.Validate(doc); err != nil {
		return asValidation(k, err)
	}
	return nil
}

// asValidation reduces a schema failure to its most specific cause.
func asValidation(k Kind, err error) error {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return fault.Invalid(string(k), "%v", err)
	}

	out := ve.BasicOutput()
	field, reason, depth := "", "", -1
	for _, unit := range out.Errors {
		if unit.Error == nil || len(unit.InstanceLocation) <= depth {
			continue
		}
		msg, mErr := json.Marshal(unit.Error)
		if mErr != nil {
			continue
		}
		var s string
		if json.Unmarshal(msg, &s) != nil {
			continue
		}
		field, reason, depth = unit.InstanceLocation, s, len(unit.InstanceLocation)
	}
	if reason == "" {
		return fault.Invalid(string(k), "does not match schema")
	}
	if field == "" {
		field = "/"
	}
	return fault.Invalid(string(k)+field, "%s", reason)
}
