// Package codec encodes agency values for storage and for reports.
package codec

import "encoding/json"

type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// JSON is the compact encoding used for stored leaf values.
type JSON struct{}

func (JSON) Marshal(v any) ([]byte, error)   { return json.Marshal(v) }
func (JSON) Unmarshal(b []byte, v any) error { return json.Unmarshal(b, v) }

// IndentedJSON is JSON for humans.
type IndentedJSON struct{}

func (IndentedJSON) Marshal(v any) ([]byte, error)   { return json.MarshalIndent(v, "", "  ") }
func (IndentedJSON) Unmarshal(b []byte, v any) error { return json.Unmarshal(b, v) }
