package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// compiled caches compiled validators by their JSON Schema document.
var compiled sync.Map

// Validate checks a JSON reply against s.
func (s *Schema) Validate(data []byte) error {
	doc, err := json.Marshal(s.JSONSchema())
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	v, err := compile(doc)
	if err != nil {
		return err
	}
	var reply any
	if err := json.Unmarshal(data, &reply); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := v.Validate(reply); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}

func compile(doc []byte) (*jsonschema.Schema, error) {
	key := string(doc)
	if v, ok := compiled.Load(key); ok {
		return v.(*jsonschema.Schema), nil
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("reply.json", bytes.NewReader(doc)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	v, err := compiler.Compile("reply.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	actual, _ := compiled.LoadOrStore(key, v)
	return actual.(*jsonschema.Schema), nil
}
