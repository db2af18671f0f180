package models

import (
	"database/sql/driver"
	"encoding/json"
)

// Engine identifiers for the supported AI answer engines
const (
	EngineChatGPT    = "chatgpt"
	EnginePerplexity = "perplexity"
	EngineGemini     = "gemini"
)

// AllEngines returns every supported engine name
func AllEngines() []string {
	return []string{EngineChatGPT, EnginePerplexity, EngineGemini}
}

// IsValidEngine reports whether name is a supported engine
func IsValidEngine(name string) bool {
	switch name {
	case EngineChatGPT, EnginePerplexity, EngineGemini:
		return true
	}
	return false
}

// StringSlice is a custom type for storing string arrays in JSON
type StringSlice []string

func (s StringSlice) Value() (driver.Value, error) {
	return json.Marshal(s)
}

func (s *StringSlice) Scan(value interface{}) error {
	if value == nil {
		*s = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	}
	return nil
}

// Contains reports whether the slice contains the given value
func (s StringSlice) Contains(value string) bool {
	for _, item := range s {
		if item == value {
			return true
		}
	}
	return false
}
