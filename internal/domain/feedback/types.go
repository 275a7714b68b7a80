package feedback

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"
)

// Sentiment is the classification assigned by the analyzer.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// Sentiments lists every valid label.
var Sentiments = []Sentiment{SentimentPositive, SentimentNegative, SentimentNeutral}

// ParseSentiment normalizes case, whitespace and trailing punctuation.
func ParseSentiment(raw string) (Sentiment, error) {
	cleaned := strings.ToLower(strings.TrimFunc(raw, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r)
	}))
	for _, s := range Sentiments {
		if cleaned == string(s) {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: unknown sentiment %q", ErrValidation, raw)
}

// Analysis is the analyzer output for one text.
type Analysis struct {
	Language       string    `json:"language"`
	TranslatedText string    `json:"translated_text"`
	Sentiment      Sentiment `json:"sentiment"`
}

// Record is a persisted feedback entry. An empty Product means none was chosen.
type Record struct {
	ID             int64     `json:"id"`
	OriginalText   string    `json:"original_text"`
	TranslatedText string    `json:"translated_text"`
	Sentiment      Sentiment `json:"sentiment"`
	Product        string    `json:"product,omitempty"`
	Language       string    `json:"language"`
	IdempotencyKey string    `json:"idempotency_key,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Product is a selectable feedback category.
type Product struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// UnspecifiedProduct filters records stored without a product.
const UnspecifiedProduct = "(unspecified)"

// Filter narrows list, stats and bulk delete. Empty fields do not filter.
type Filter struct {
	Product   string
	Language  string
	Sentiment Sentiment
}

const (
	DefaultPageLimit = 100
	MaxPageLimit     = 1000
)

// Page selects a window of records, newest first.
type Page struct {
	Skip  int
	Limit int
}

// Normalize applies the default limit and validates bounds.
func (p Page) Normalize() (Page, error) {
	if p.Limit == 0 {
		p.Limit = DefaultPageLimit
	}
	if p.Skip < 0 {
		return p, fmt.Errorf("%w: skip must be >= 0", ErrValidation)
	}
	if p.Limit < 1 || p.Limit > MaxPageLimit {
		return p, fmt.Errorf("%w: limit must be between 1 and %d", ErrValidation, MaxPageLimit)
	}
	return p, nil
}

// ListResult is one page of records plus the filtered total.
type ListResult struct {
	Total int      `json:"total"`
	Items []Record `json:"items"`
	Skip  int      `json:"skip"`
	Limit int      `json:"limit"`
}

// Stats aggregates sentiment counts. Percentages are rounded to two decimals.
type Stats struct {
	Total       int                   `json:"total"`
	Counts      map[Sentiment]int     `json:"counts"`
	Percentages map[Sentiment]float64 `json:"percentages"`
}

// Model describes an analysis model offered by the provider.
type Model struct {
	Name                       string   `json:"name"`
	DisplayName                string   `json:"display_name,omitempty"`
	Description                string   `json:"description,omitempty"`
	SupportedGenerationMethods []string `json:"supported_generation_methods,omitempty"`
}

// SettingCurrentModel holds the model used for analysis.
const SettingCurrentModel = "llm_model"

// EventType names a dashboard notification.
type EventType string

const (
	EventCreated EventType = "feedback.created"
	EventDeleted EventType = "feedback.deleted"
)

// Event is published after a successful write.
type Event struct {
	Type   EventType `json:"type"`
	Record *Record   `json:"record,omitempty"`
	IDs    []int64   `json:"ids,omitempty"`
	Count  int64     `json:"count,omitempty"`
	At     time.Time `json:"at"`
}

var (
	ErrValidation     = errors.New("validation failed")
	ErrUnknownProduct = errors.New("unknown product")
	ErrNotFound       = errors.New("not found")
	ErrConflict       = errors.New("already exists")
	ErrAnalysisFailed = errors.New("analysis failed")
)
