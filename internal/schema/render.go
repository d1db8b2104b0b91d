package schema

import (
	"fmt"

	"cloud.google.com/go/bigquery"
	"gopkg.in/yaml.v3"
)

// ToJSON renders the schema in the bq CLI JSON format.
func ToJSON(s bigquery.Schema) ([]byte, error) {
	data, err := s.ToJSONFields()
	if err != nil {
		return nil, fmt.Errorf("failed to encode schema: %w", err)
	}
	return data, nil
}

// ToYAML renders the schema as YAML with the same field layout as ToJSON.
func ToYAML(s bigquery.Schema) ([]byte, error) {
	data, err := ToJSON(s)
	if err != nil {
		return nil, err
	}
	return JSONToYAML(data)
}

// JSONToYAML re-encodes a JSON document as YAML, keeping key order.
func JSONToYAML(data []byte) ([]byte, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	clearStyle(&node)
	out, err := yaml.Marshal(&node)
	if err != nil {
		return nil, fmt.Errorf("failed to encode YAML: %w", err)
	}
	return out, nil
}

// clearStyle drops the flow and quoting styles inherited from JSON.
func clearStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		clearStyle(c)
	}
}
