package jsonx

import (
	"fmt"

	"github.com/goccy/go-json"
	"github.com/kaptinlin/jsonrepair"
)

// Thin wrapper so hot paths can swap JSON implementations in one place.
var (
	Marshal       = json.Marshal
	MarshalIndent = json.MarshalIndent
	Unmarshal     = json.Unmarshal
	NewDecoder    = json.NewDecoder
	NewEncoder    = json.NewEncoder
	Valid         = json.Valid
)

type RawMessage = json.RawMessage

// UnmarshalLenient decodes data, repairing it first when it is not strict JSON
// (single quotes, trailing commas, unquoted keys, truncated objects).
func UnmarshalLenient(data string, v any) error {
	if err := json.Unmarshal([]byte(data), v); err == nil {
		return nil
	}
	repaired, err := jsonrepair.JSONRepair(data)
	if err != nil {
		return fmt.Errorf("repair json: %w", err)
	}
	if err := json.Unmarshal([]byte(repaired), v); err != nil {
		return fmt.Errorf("decode repaired json: %w", err)
	}
	return nil
}
