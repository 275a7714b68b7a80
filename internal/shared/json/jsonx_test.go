package jsonx

import "testing"

func TestUnmarshalLenientRepairsSloppyJSON(t *testing.T) {
	var out struct {
		Language  string `json:"language"`
		Sentiment string `json:"sentiment"`
	}
	if err := UnmarshalLenient(`{'language': 'fr', "sentiment": "positive",}`, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Language != "fr" || out.Sentiment != "positive" {
		t.Fatalf("unexpected result: %+v", out)
	}
}

func TestUnmarshalLenientStrictPath(t *testing.T) {
	var out map[string]int
	if err := UnmarshalLenient(`{"a": 1}`, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out["a"] != 1 {
		t.Fatalf("unexpected result: %+v", out)
	}
}
