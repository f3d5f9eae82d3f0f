// Package rename coordinates a rename across the filesystem, sidecar
// metadata, and the history store as an explicit saga: staged steps with
// compensating rollback actions, committed only when every step succeeds.
package rename

import (
	"github.com/starford/raido/internal/models"
	"github.com/starford/raido/internal/prompt"
)

// State is the lifecycle position of a Plan.
type State int

// Plan states. RolledBack is terminal and reachable from any non-terminal
// state; Committed is the other terminal state.
const (
	StatePlanned State = iota
	StateFilesStaged
	StateMetadataPatched
	StateHistoryRewritten
	StateCommitted
	StateRolledBack
)

func (s State) String() string {
	switch s {
	case StatePlanned:
		return "planned"
	case StateFilesStaged:
		return "files-staged"
	case StateMetadataPatched:
		return "metadata-patched"
	case StateHistoryRewritten:
		return "history-rewritten"
	case StateCommitted:
		return "committed"
	case StateRolledBack:
		return "rolled-back"
	default:
		return "unknown"
	}
}

// SidecarMove pairs a resolved sidecar with its destination path.
type SidecarMove struct {
	Sidecar models.Sidecar `json:"sidecar"`
	NewPath string         `json:"new_path"`
}

// Plan is a value object describing one proposed rename. It is consumed
// exactly once by the coordinator and discarded after commit or rollback —
// never partially applied and left alive.
type Plan struct {
	Fingerprint string           `json:"fingerprint,omitempty"`
	Kind        models.AssetKind `json:"kind"`
	OldPath     string           `json:"old_path,omitempty"`
	NewPath     string           `json:"new_path,omitempty"`
	OldName     string           `json:"old_name"`
	NewName     string           `json:"new_name"`
	Sidecars    []SidecarMove    `json:"sidecars,omitempty"`
	RecordIDs   []string         `json:"record_ids,omitempty"`
	// HistoryOnly marks an accepted resolver match: the rename is scoped to
	// history prompts, with no filesystem component.
	HistoryOnly bool `json:"history_only"`
	// Generation is the library index generation the plan was derived
	// against. Execution refuses a plan whose generation is stale.
	Generation uint64 `json:"generation"`

	state    State
	consumed bool
}

// State returns the plan's current lifecycle state.
func (p *Plan) State() State { return p.state }

// Result reports the outcome of executing one plan. Rollback actions are
// listed even when rollback succeeded, so a plan that did not apply is never
// silent.
type Result struct {
	Plan         *Plan            `json:"plan"`
	State        State            `json:"state"`
	FailedStep   string           `json:"failed_step,omitempty"`
	Err          error            `json:"-"`
	Error        string           `json:"error,omitempty"`
	Replacements int              `json:"replacements"`
	Rollback     []string         `json:"rollback,omitempty"`
	Warnings     []prompt.Warning `json:"warnings,omitempty"`
}
