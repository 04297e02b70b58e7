// Package provider implements completion backends for the orchestrator.
package provider

import "github.com/ZaguanLabs/potlai"

// CompletionClient is an alias to the main package interface for convenience.
type CompletionClient = potlai.CompletionClient

// CompletionRequest is an alias to the main package type.
type CompletionRequest = potlai.CompletionRequest

// Completion is an alias to the main package type.
type Completion = potlai.Completion
