package display

import (
	"encoding/json"
	"fmt"
)

// MarshalJSON pretty-prints for terminals and compacts for pipelines
func MarshalJSON(v interface{}, compact bool) ([]byte, error) {
	if compact {
		return json.Marshal(v)
	}
	return json.MarshalIndent(v, "", "  ")
}

// OutputJSON marshals and prints v on one line or indented
func OutputJSON(v interface{}, compact bool) error {
	data, err := MarshalJSON(v, compact)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	fmt.Println(string(data))
	return nil
}
