// Package maintenance orchestrates the two library runs: sanitizing asset
// filenames (with full rename propagation) and reconciling history prompts
// whose references no longer resolve against the index.
package maintenance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/history"
	"github.com/starford/raido/internal/library"
	"github.com/starford/raido/internal/models"
	"github.com/starford/raido/internal/prompt"
	"github.com/starford/raido/internal/rename"
	"github.com/starford/raido/internal/resolve"
	"github.com/starford/raido/internal/sanitize"
	"github.com/starford/raido/internal/storage"
)

// Service coordinates scans, sanitization runs, and missing-reference
// resolution over one library and one history store.
type Service struct {
	store    storage.Provider
	history  history.Store
	index    *library.Index
	scanner  *library.Scanner
	co       *rename.Coordinator
	resolver *resolve.Resolver
	logger   *slog.Logger
}

// NewService wires a maintenance service over its collaborators.
func NewService(store storage.Provider, hist history.Store, ix *library.Index, scanner *library.Scanner, co *rename.Coordinator, resolver *resolve.Resolver, logger *slog.Logger) *Service {
	return &Service{
		store:    store,
		history:  hist,
		index:    ix,
		scanner:  scanner,
		co:       co,
		resolver: resolver,
		logger:   logger,
	}
}

// Rescan rebuilds the library index from the filesystem.
func (s *Service) Rescan(ctx context.Context) error {
	return s.scanner.Rebuild(ctx, s.index)
}

// ScanForChanges walks the index and derives a rename plan for every asset
// whose filename is not already in portable form. An asset whose
// disambiguation space is exhausted is skipped and reported, never fatal for
// the run. Plans are derived against the current index generation.
func (s *Service) ScanForChanges(ctx context.Context) ([]*rename.Plan, error) {
	assets := s.index.All()
	sort.Slice(assets, func(i, j int) bool { return assets[i].Path < assets[j].Path })

	// Destinations claimed by earlier plans in this run. Two assets may
	// sanitize to the same stem; the second must disambiguate against the
	// first's target even though that file does not exist yet.
	claimed := make(map[string]struct{})

	var plans []*rename.Plan
	for _, a := range assets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		oldFilename := filepath.Base(a.Path)
		want := sanitize.Portable(oldFilename)
		if want == oldFilename {
			continue
		}
		dir := filepath.Dir(a.Path)
		unique, err := sanitize.Unique(want, func(candidate string) bool {
			p := filepath.Join(dir, candidate)
			if _, taken := claimed[p]; taken {
				return true
			}
			return s.store.Exists(p)
		})
		if err != nil {
			if errors.Is(err, apperr.ErrCollisionUnresolved) {
				s.logger.Warn("scan: disambiguation exhausted",
					slog.String("path", a.Path),
					slog.String("wanted", want))
				continue
			}
			return nil, err
		}
		plan, err := s.co.PlanRename(a, unique)
		if err != nil {
			return nil, err
		}
		claimed[plan.NewPath] = struct{}{}
		plans = append(plans, plan)
	}
	s.logger.Info("scan: proposals derived",
		slog.Int("assets", len(assets)),
		slog.Int("plans", len(plans)))
	return plans, nil
}

// SanitizeLibrary derives and executes every sanitization rename in one run.
// The returned results are the per-plan report; a failed plan rolls back
// alone and does not abort its siblings.
func (s *Service) SanitizeLibrary(ctx context.Context) ([]*rename.Result, error) {
	plans, err := s.ScanForChanges(ctx)
	if err != nil {
		return nil, err
	}
	return s.co.ExecuteBatch(ctx, plans), nil
}

// ExecuteBatch applies previously derived plans, one at a time.
func (s *Service) ExecuteBatch(ctx context.Context, plans []*rename.Plan) []*rename.Result {
	return s.co.ExecuteBatch(ctx, plans)
}

// MissingReference is one distinct broken name found in history prompts,
// with the records carrying it and the resolver's ranked candidates.
type MissingReference struct {
	Name       string                  `json:"name"`
	Records    []string                `json:"records"`
	Candidates []models.MatchCandidate `json:"candidates"`
}

// MissingReferences scans every history prompt for parameterized references
// whose name fails to resolve against the index, grouped by distinct name.
// The pass is cancellable between records.
func (s *Service) MissingReferences(ctx context.Context) ([]MissingReference, error) {
	recs, err := s.history.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("maintenance: scan history: %w", err)
	}

	byName := make(map[string][]string)
	for _, rec := range recs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		refs, warns := prompt.Parse(rec.Prompt, nil)
		for _, w := range warns {
			s.logger.Warn("missing-ref scan: malformed reference",
				slog.String("record", rec.ID),
				slog.String("detail", w.String()))
		}
		seen := make(map[string]struct{})
		for _, ref := range refs {
			if ref.Kind != models.RefLoraTag {
				continue
			}
			if _, ok := s.index.LookupByName(ref.Name); ok {
				continue
			}
			if _, dup := seen[ref.Name]; dup {
				continue
			}
			seen[ref.Name] = struct{}{}
			byName[ref.Name] = append(byName[ref.Name], rec.ID)
		}
	}

	assets := s.index.All()
	out := make([]MissingReference, 0, len(byName))
	for name, ids := range byName {
		sort.Strings(ids)
		out = append(out, MissingReference{
			Name:       name,
			Records:    ids,
			Candidates: s.resolver.Candidates(name, assets),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// ResolveMissing applies explicit broken-name → asset-name decisions as
// history-only renames. Every target must name an asset currently in the
// index. Per-decision failures are isolated in the results.
func (s *Service) ResolveMissing(ctx context.Context, decisions map[string]string) ([]*rename.Result, error) {
	names := make([]string, 0, len(decisions))
	for broken := range decisions {
		names = append(names, broken)
	}
	sort.Strings(names)

	var plans []*rename.Plan
	for _, broken := range names {
		target := decisions[broken]
		a, ok := s.index.LookupByName(target)
		if !ok {
			return nil, fmt.Errorf("maintenance: resolve %q: target %q: %w", broken, target, apperr.ErrNotFound)
		}
		plan, err := s.co.PlanHistoryRename(broken, a.Name, a.Kind)
		if err != nil {
			return nil, err
		}
		plans = append(plans, plan)
	}
	return s.co.ExecuteBatch(ctx, plans), nil
}

// AutoResolve walks the missing references and applies every one whose top
// candidate clears the auto-accept threshold. One decision is made per
// distinct broken name per run; names without an auto-acceptable candidate
// are returned for manual selection, which is not an error.
func (s *Service) AutoResolve(ctx context.Context) ([]*rename.Result, []MissingReference, error) {
	missing, err := s.MissingReferences(ctx)
	if err != nil {
		return nil, nil, err
	}

	decisions := make(map[string]string)
	var ambiguous []MissingReference
	for _, m := range missing {
		cand, ok := s.resolver.AutoAcceptable(m.Candidates)
		if !ok {
			ambiguous = append(ambiguous, m)
			continue
		}
		decisions[m.Name] = cand.Name
		s.logger.Info("auto-resolve: accepted",
			slog.String("broken", m.Name),
			slog.String("target", cand.Name),
			slog.Float64("score", cand.Score))
	}
	if len(decisions) == 0 {
		return nil, ambiguous, nil
	}
	results, err := s.ResolveMissing(ctx, decisions)
	if err != nil {
		return nil, ambiguous, err
	}
	return results, ambiguous, nil
}
