package repository

import (
	"encoding/json"
	"fmt"
)

// StateField is the document field holding the serialized record.
const StateField = "state"

// Decoder converts a document's state into a typed record.
// Returning (nil, nil) or an error both mean the document has no record.
type Decoder[T any] func(state map[string]any) (*T, error)

// JSONDecoder decodes the state map into T through JSON.
func JSONDecoder[T any]() Decoder[T] {
	return func(state map[string]any) (*T, error) {
		data, err := json.Marshal(state)
		if err != nil {
			return nil, fmt.Errorf("marshal state: %w", err)
		}
		var record T
		if err := json.Unmarshal(data, &record); err != nil {
			return nil, fmt.Errorf("unmarshal state: %w", err)
		}
		return &record, nil
	}
}

// StateMap returns the state map itself.
func StateMap(state map[string]any) (*map[string]any, error) {
	return &state, nil
}
