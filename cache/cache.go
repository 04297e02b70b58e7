// Package cache provides translation caching implementations.
//
// Keys are built by the orchestrator from the source hash, target language,
// model and prompt digest, so a cache can be shared between runs with
// different settings.
package cache

import (
	"context"

	"github.com/ZaguanLabs/potlai"
)

// TranslationCache is an alias to the main package interface for convenience.
type TranslationCache = potlai.TranslationCache

// Lister is a cache that can enumerate its live entries, which export needs.
type Lister interface {
	TranslationCache
	Entries(ctx context.Context) (map[string]string, error)
}

// DefaultKeyPrefix namespaces keys in shared stores.
const DefaultKeyPrefix = "potlai:"
