// Package models defines the domain types for Raido.
package models

import "time"

// AssetKind classifies a library file.
type AssetKind string

// Asset kinds.
const (
	KindLora      AssetKind = "lora"
	KindEmbedding AssetKind = "embedding"
	KindOther     AssetKind = "other"
)

// Asset represents one weight file in the library.
//
// Identity is the content fingerprint; Name is the filename stem and is what
// prompts reference. At most one Asset per fingerprint exists in an index.
type Asset struct {
	Fingerprint string    `json:"fingerprint"`
	Path        string    `json:"path"` // relative to library root
	Name        string    `json:"name"`
	Kind        AssetKind `json:"kind"`
	Size        int64     `json:"size"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// FileMeta is a lightweight representation returned by storage list operations.
type FileMeta struct {
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SidecarKind classifies a companion file by its registered suffix.
type SidecarKind string

// Sidecar kinds.
const (
	SidecarPreview  SidecarKind = "preview-image"
	SidecarInfo     SidecarKind = "info-json"
	SidecarMetadata SidecarKind = "metadata-json"
	SidecarOther    SidecarKind = "other"
)

// Sidecar is a companion file associated with an Asset purely by naming
// convention. It is recomputed on every resolution, never stored.
type Sidecar struct {
	Path   string      `json:"path"`
	Suffix string      `json:"suffix"`
	Kind   SidecarKind `json:"kind"`
}

// HistoryRecord is one past generation from the history store.
type HistoryRecord struct {
	ID        string    `json:"id"`
	ModelID   string    `json:"model_id,omitempty"`
	Prompt    string    `json:"prompt"`
	Params    string    `json:"params,omitempty"`
	Output    string    `json:"output,omitempty"`
	Metadata  string    `json:"metadata,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ReferenceKind distinguishes the two embedded reference forms.
type ReferenceKind string

// Reference kinds.
const (
	RefLoraTag          ReferenceKind = "lora-tag"
	RefEmbeddingTrigger ReferenceKind = "embedding-trigger"
)

// Reference is a parsed occurrence of an asset name inside prompt text.
// Derived on demand; not persisted.
type Reference struct {
	Kind   ReferenceKind `json:"kind"`
	Name   string        `json:"name"`
	Weight string        `json:"weight,omitempty"` // raw decimal text, lora tags only
	Start  int           `json:"start"`            // byte offset in the prompt
	End    int           `json:"end"`
}

// MatchCandidate is one resolver proposal for an unresolved reference name.
type MatchCandidate struct {
	Name     string  `json:"name"` // candidate asset display name
	Path     string  `json:"path"`
	Score    float64 `json:"score"`
	Distance int     `json:"distance"` // edit distance to the broken name
	Rank     int     `json:"rank"`
}
