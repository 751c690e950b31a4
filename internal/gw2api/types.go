package gw2api

import "fmt"

// Item is the subset of the /v2/items payload the pipeline keeps.
type Item struct {
	ID          int      `json:"id"`
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Rarity      string   `json:"rarity"`
	Level       int      `json:"level"`
	Flags       []string `json:"flags"`
	Icon        string   `json:"icon"`
	Description string   `json:"description,omitempty"`
}

// Currency is a wallet currency from /v2/currencies.
type Currency struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Order       int    `json:"order"`
}

// APIError is a non-2xx response from the game API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gw2api: status %d: %s", e.StatusCode, e.Body)
}

// Retryable reports whether the request may succeed on retry: rate limiting
// or a server-side failure.
func (e *APIError) Retryable() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}

// NotFound reports whether the API has no record for the requested id.
func (e *APIError) NotFound() bool {
	return e.StatusCode == 404
}
