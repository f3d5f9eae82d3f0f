package rename

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/history"
	"github.com/starford/raido/internal/library"
	"github.com/starford/raido/internal/models"
	"github.com/starford/raido/internal/prompt"
	"github.com/starford/raido/internal/sidecar"
	"github.com/starford/raido/internal/storage"
)

// Coordinator executes RenamePlans. Plans are processed strictly one at a
// time; the coordinator never interleaves filesystem work of two plans.
type Coordinator struct {
	store    storage.Provider
	history  history.Store
	index    *library.Index
	registry *sidecar.Registry
	filter   *library.ChangeFilter
	logger   *slog.Logger
}

// NewCoordinator wires a coordinator over its collaborators.
func NewCoordinator(store storage.Provider, hist history.Store, ix *library.Index, registry *sidecar.Registry, logger *slog.Logger) *Coordinator {
	return &Coordinator{store: store, history: hist, index: ix, registry: registry, logger: logger}
}

// TrackChanges registers a filter that is told about the coordinator's own
// file moves, so the library watcher does not rebuild the index over them.
func (c *Coordinator) TrackChanges(f *library.ChangeFilter) {
	c.filter = f
}

// announce marks both ends of a move as coordinator-owned before it happens.
func (c *Coordinator) announce(m move) {
	if c.filter != nil {
		c.filter.Expect(m.from, m.to)
	}
}

// PlanRename derives a full rename plan for asset: target path, affected
// sidecars, and the history records whose prompts reference the old name.
func (c *Coordinator) PlanRename(asset models.Asset, newFilename string) (*Plan, error) {
	oldFilename := filepath.Base(asset.Path)
	if newFilename == oldFilename {
		return nil, fmt.Errorf("rename: %s: new name equals old name: %w", asset.Path, apperr.ErrConflict)
	}
	newPath := filepath.Join(filepath.Dir(asset.Path), newFilename)
	newName := strings.TrimSuffix(newFilename, filepath.Ext(newFilename))

	var moves []SidecarMove
	for _, sc := range sidecar.Resolve(c.store, c.registry, asset.Path) {
		moves = append(moves, SidecarMove{Sidecar: sc, NewPath: sidecar.Rebase(sc, newPath)})
	}

	recordIDs, err := c.affectedRecords(asset.Name, newName)
	if err != nil {
		return nil, err
	}

	return &Plan{
		Fingerprint: asset.Fingerprint,
		Kind:        asset.Kind,
		OldPath:     asset.Path,
		NewPath:     newPath,
		OldName:     asset.Name,
		NewName:     newName,
		Sidecars:    moves,
		RecordIDs:   recordIDs,
		Generation:  c.index.Generation(),
	}, nil
}

// PlanHistoryRename derives a history-only plan: an accepted resolver match
// rewriting a broken reference name to an existing asset's name, with no
// filesystem component.
func (c *Coordinator) PlanHistoryRename(oldName, newName string, kind models.AssetKind) (*Plan, error) {
	recordIDs, err := c.affectedRecords(oldName, newName)
	if err != nil {
		return nil, err
	}
	return &Plan{
		Kind:        kind,
		OldName:     oldName,
		NewName:     newName,
		RecordIDs:   recordIDs,
		HistoryOnly: true,
		Generation:  c.index.Generation(),
	}, nil
}

// affectedRecords returns the ids of history records whose prompt would
// change under oldName → newName.
func (c *Coordinator) affectedRecords(oldName, newName string) ([]string, error) {
	recs, err := c.history.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("rename: scan history: %w", err)
	}
	mapping := map[string]string{oldName: newName}
	var ids []string
	for _, rec := range recs {
		if _, n, _ := prompt.Rewrite(rec.Prompt, mapping); n > 0 {
			ids = append(ids, rec.ID)
		}
	}
	return ids, nil
}

// move is one reversible filesystem action performed during staging.
type move struct {
	from, to string
}

// execution carries the mutable staging state of one plan.
type execution struct {
	plan     *Plan
	moves    []move            // performed file moves, in order
	original map[string][]byte // pre-patch bytes of rewritten metadata documents
	updates  map[string]string // staged history updates, id → new prompt
	result   *Result
}

// Execute runs one plan through the saga. The plan is consumed whether it
// commits or rolls back. Returns the result; Result.Err is non-nil on
// failure and the filesystem is back in its pre-plan state.
func (c *Coordinator) Execute(ctx context.Context, p *Plan) *Result {
	res := &Result{Plan: p}
	if p.consumed {
		res.Err = fmt.Errorf("rename: plan already consumed: %w", apperr.ErrConflict)
		return c.finish(res)
	}
	p.consumed = true

	if p.Generation != c.index.Generation() {
		res.FailedStep = "validate"
		res.Err = fmt.Errorf("rename: planned at generation %d, index at %d: %w",
			p.Generation, c.index.Generation(), apperr.ErrPlanInvalidated)
		return c.finish(res)
	}
	if err := ctx.Err(); err != nil {
		res.FailedStep = "validate"
		res.Err = err
		return c.finish(res)
	}

	ex := &execution{
		plan:     p,
		original: make(map[string][]byte),
		updates:  make(map[string]string),
		result:   res,
	}

	if !p.HistoryOnly {
		if err := c.stage(ex); err != nil {
			res.FailedStep = "stage"
			res.Err = err
			c.rollback(ex)
			return c.finish(res)
		}
		p.state = StateFilesStaged

		if err := c.patchMetadata(ex); err != nil {
			res.FailedStep = "patch"
			res.Err = err
			c.rollback(ex)
			return c.finish(res)
		}
		p.state = StateMetadataPatched
	}

	if err := c.rewriteHistory(ex); err != nil {
		res.FailedStep = "rewrite"
		res.Err = err
		c.rollback(ex)
		return c.finish(res)
	}
	p.state = StateHistoryRewritten

	// Commit: the batch write is the point of no return. If the store
	// rejects it, the filesystem must roll back too — the two domains are
	// never allowed to disagree about which name is current.
	if err := c.history.WriteBatch(ex.updates); err != nil {
		res.FailedStep = "commit"
		res.Err = fmt.Errorf("rename: %v: %w", err, apperr.ErrHistoryWrite)
		c.rollback(ex)
		return c.finish(res)
	}
	p.state = StateCommitted

	if !p.HistoryOnly {
		c.index.ApplyRename(p.Fingerprint, p.NewPath, p.NewName)
	}
	c.logger.Info("rename: committed",
		slog.String("old", p.OldName),
		slog.String("new", p.NewName),
		slog.Int("sidecars", len(p.Sidecars)),
		slog.Int("records", res.Replacements))
	return c.finish(res)
}

// ExecuteBatch runs plans one at a time. A failure in one plan rolls back
// that plan only and is reported in its result; sibling plans still run.
// Cancellation is honored between plans, never mid-plan.
func (c *Coordinator) ExecuteBatch(ctx context.Context, plans []*Plan) []*Result {
	out := make([]*Result, 0, len(plans))
	for _, p := range plans {
		if err := ctx.Err(); err != nil {
			res := &Result{Plan: p, State: p.state, FailedStep: "validate", Err: err, Error: err.Error()}
			out = append(out, res)
			continue
		}
		out = append(out, c.Execute(ctx, p))
	}
	return out
}

// stage moves the asset file and every sidecar to its new path, recording
// each performed move so it can be reversed until commit.
func (c *Coordinator) stage(ex *execution) error {
	p := ex.plan
	pending := []move{{from: p.OldPath, to: p.NewPath}}
	for _, sm := range p.Sidecars {
		pending = append(pending, move{from: sm.Sidecar.Path, to: sm.NewPath})
	}
	for _, m := range pending {
		// On a case-insensitive filesystem a case-only target resolves to
		// the source itself; Move handles those with a temp rename.
		if strings.EqualFold(m.from, m.to) {
			continue
		}
		if c.store.Exists(m.to) {
			return fmt.Errorf("rename: destination exists: %s: %w", m.to, apperr.ErrMoveFailed)
		}
	}

	for _, m := range pending {
		c.announce(m)
		if err := c.store.Move(m.from, m.to); err != nil {
			return fmt.Errorf("rename: move %s: %v: %w", m.from, err, apperr.ErrMoveFailed)
		}
		ex.moves = append(ex.moves, m)
	}
	return nil
}

// patchMetadata rewrites self-referential fields in staged metadata
// documents, keeping the pre-patch bytes for rollback.
func (c *Coordinator) patchMetadata(ex *execution) error {
	p := ex.plan
	oldFilename := filepath.Base(p.OldPath)
	newFilename := filepath.Base(p.NewPath)

	for _, sm := range p.Sidecars {
		if sm.Sidecar.Kind != models.SidecarMetadata {
			continue
		}
		doc, err := c.store.Read(sm.NewPath)
		if err != nil {
			return fmt.Errorf("rename: read metadata %s: %w", sm.NewPath, err)
		}
		patched, changed, err := sidecar.PatchMetadata(doc, oldFilename, newFilename)
		if err != nil {
			// An unparseable metadata document is a warning, not a plan
			// failure: the file was renamed, its contents stay as-is.
			c.logger.Warn("rename: metadata not patched",
				slog.String("path", sm.NewPath),
				slog.String("error", err.Error()))
			continue
		}
		if !changed {
			continue
		}
		ex.original[sm.NewPath] = doc
		if err := c.store.Write(sm.NewPath, patched); err != nil {
			return fmt.Errorf("rename: write metadata %s: %w", sm.NewPath, err)
		}
	}
	return nil
}

// rewriteHistory stages updated prompt text for every affected record.
// Nothing is written to the store until commit.
func (c *Coordinator) rewriteHistory(ex *execution) error {
	p := ex.plan
	mapping := map[string]string{p.OldName: p.NewName}
	for _, id := range p.RecordIDs {
		rec, err := c.history.Get(id)
		if err != nil {
			return fmt.Errorf("rename: read record %s: %w", id, err)
		}
		text, n, warns := prompt.Rewrite(rec.Prompt, mapping)
		ex.result.Warnings = append(ex.result.Warnings, warns...)
		for _, w := range warns {
			c.logger.Warn("rename: malformed reference",
				slog.String("record", id),
				slog.String("detail", w.String()))
		}
		if n == 0 {
			continue // record changed since planning; nothing to rewrite
		}
		ex.updates[id] = text
		ex.result.Replacements += n
	}
	return nil
}

// rollback reverses every performed action in reverse order and discards
// staged history updates. Each compensating action is reported even when it
// succeeds, so the caller knows the plan did not apply.
func (c *Coordinator) rollback(ex *execution) {
	p := ex.plan

	for i := len(ex.moves) - 1; i >= 0; i-- {
		m := ex.moves[i]
		c.announce(m)
		if err := c.store.Move(m.to, m.from); err != nil {
			act := fmt.Sprintf("restore %s -> %s FAILED: %v", m.to, m.from, err)
			ex.result.Rollback = append(ex.result.Rollback, act)
			c.logger.Error("rollback: move failed",
				slog.String("from", m.to),
				slog.String("to", m.from),
				slog.String("error", err.Error()))
			continue
		}
		ex.result.Rollback = append(ex.result.Rollback, fmt.Sprintf("restored %s", m.from))
		c.logger.Info("rollback: restored", slog.String("path", m.from))
	}

	// Patched metadata documents were moved back above; restore their
	// pre-patch bytes at the original path.
	for newPath, doc := range ex.original {
		orig := newPath
		for _, sm := range p.Sidecars {
			if sm.NewPath == newPath {
				orig = sm.Sidecar.Path
				break
			}
		}
		if err := c.store.Write(orig, doc); err != nil {
			ex.result.Rollback = append(ex.result.Rollback, fmt.Sprintf("restore bytes of %s FAILED: %v", orig, err))
			c.logger.Error("rollback: write failed", slog.String("path", orig), slog.String("error", err.Error()))
			continue
		}
		ex.result.Rollback = append(ex.result.Rollback, fmt.Sprintf("restored contents of %s", orig))
		c.logger.Info("rollback: restored contents", slog.String("path", orig))
	}

	if n := len(ex.updates); n > 0 {
		ex.result.Rollback = append(ex.result.Rollback, fmt.Sprintf("discarded %d staged history updates", n))
	}
	ex.updates = nil
	p.state = StateRolledBack
}

// finish freezes the result for reporting.
func (c *Coordinator) finish(res *Result) *Result {
	res.State = res.Plan.state
	if res.Err != nil {
		res.Error = res.Err.Error()
		c.logger.Warn("rename: plan failed",
			slog.String("old", res.Plan.OldPath),
			slog.String("new", res.Plan.NewPath),
			slog.String("step", res.FailedStep),
			slog.String("error", res.Err.Error()))
	}
	return res
}
