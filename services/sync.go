package services

import (
	"context"
	"fmt"

	"benefit-scraper/canonical"
	"benefit-scraper/models"
	"benefit-scraper/storage"
	"benefit-scraper/utils"
)

// SyncOptions controls how a run is reflected in the store.
type SyncOptions struct {
	Provenance  string
	DryRun      bool
	KeepMissing bool
	Canonical   canonical.Options
}

// SyncPlan is the delta between the current run and the stored snapshot.
type SyncPlan struct {
	Additions []*models.CanonicalListing
	Updates   []*models.CanonicalListing
	Prune     []*models.StoredRecord
}

// Upserts returns additions followed by updates.
func (p *SyncPlan) Upserts() []*models.CanonicalListing {
	out := make([]*models.CanonicalListing, 0, len(p.Additions)+len(p.Updates))
	out = append(out, p.Additions...)
	return append(out, p.Updates...)
}

// PruneIDs returns the ids of records to delete.
func (p *SyncPlan) PruneIDs() []string {
	ids := make([]string, 0, len(p.Prune))
	for _, r := range p.Prune {
		ids = append(ids, r.ID)
	}
	return ids
}

// SyncService plans and applies upserts and prunes against a ListingStore.
type SyncService struct {
	store  storage.ListingStore
	logger *utils.Logger
	opts   SyncOptions
}

// NewSyncService creates a SyncService over store.
func NewSyncService(store storage.ListingStore, logger *utils.Logger, opts SyncOptions) *SyncService {
	return &SyncService{store: store, logger: logger, opts: opts}
}

// Plan classifies listings into additions and updates and, unless pruning
// is disabled, finds previously written records missing from this run.
func (s *SyncService) Plan(ctx context.Context, listings []*models.CanonicalListing) (*SyncPlan, error) {
	plan := &SyncPlan{}

	ids := make([]string, 0, len(listings))
	currentIDs := make(map[string]struct{}, len(listings))
	current := make(map[string]struct{}, len(listings))
	for _, l := range listings {
		ids = append(ids, l.ID)
		currentIDs[l.ID] = struct{}{}
		current[l.CanonicalURL] = struct{}{}
	}

	existing, err := s.store.ExistingIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("sync: plan: %w", err)
	}
	for _, l := range listings {
		if _, ok := existing[l.ID]; ok {
			plan.Updates = append(plan.Updates, l)
		} else {
			plan.Additions = append(plan.Additions, l)
		}
	}

	switch {
	case s.opts.KeepMissing:
		s.logger.Info("[sync] Keep-missing set, skipping prune")
	case len(current) == 0:
		s.logger.Warn("[sync] Empty run, skipping prune")
	default:
		prior, err := s.store.FetchBySource(ctx, s.opts.Provenance)
		if err != nil {
			return nil, fmt.Errorf("sync: plan: %w", err)
		}
		for _, rec := range canonical.ComputePrune(current, prior, s.opts.Provenance, s.opts.Canonical) {
			if _, ok := currentIDs[rec.ID]; ok {
				continue
			}
			plan.Prune = append(plan.Prune, rec)
		}
	}

	s.logger.Info("[sync] Plan: %d additions, %d updates, %d prunes",
		len(plan.Additions), len(plan.Updates), len(plan.Prune))
	return plan, nil
}

// Apply writes the plan. In dry-run mode it only logs what would change.
func (s *SyncService) Apply(ctx context.Context, plan *SyncPlan, runID string) error {
	if s.opts.DryRun {
		for _, l := range plan.Additions {
			s.logger.Info("[sync] (dry-run) add %s %q", l.ID, l.Title)
		}
		for _, r := range plan.Prune {
			s.logger.Info("[sync] (dry-run) prune %s %q", r.ID, r.Title)
		}
		s.logger.Info("[sync] Dry run, nothing written")
		return nil
	}

	if upserts := plan.Upserts(); len(upserts) > 0 {
		if err := s.store.Upsert(ctx, upserts, runID); err != nil {
			return fmt.Errorf("sync: apply: %w", err)
		}
	}
	if ids := plan.PruneIDs(); len(ids) > 0 {
		if err := s.store.Delete(ctx, ids); err != nil {
			return fmt.Errorf("sync: apply: %w", err)
		}
	}
	s.logger.Info("[sync] Run %s: wrote %d listings, pruned %d", runID, len(plan.Additions)+len(plan.Updates), len(plan.Prune))
	return nil
}

// Sync plans and applies in one step.
func (s *SyncService) Sync(ctx context.Context, listings []*models.CanonicalListing, runID string) (*SyncPlan, error) {
	plan, err := s.Plan(ctx, listings)
	if err != nil {
		return nil, err
	}
	return plan, s.Apply(ctx, plan, runID)
}
