package celebration

import (
	"context"
	"fmt"

	"birthdaybot/internal/types"
)

// DefaultRegenerateThreshold is the invalid fraction above which a draft is
// regenerated instead of filtered.
const DefaultRegenerateThreshold = 0.3

// RegenerateFunc produces a fresh draft for the people still valid.
type RegenerateFunc func(ctx context.Context, valid []types.BirthdayPerson) (types.GeneratedContent, error)

// Reconciler adjusts a draft to the validation outcome.
type Reconciler struct {
	threshold float64
}

// NewReconciler creates a Reconciler. A non-positive threshold selects
// DefaultRegenerateThreshold.
func NewReconciler(threshold float64) *Reconciler {
	if threshold <= 0 {
		threshold = DefaultRegenerateThreshold
	}
	return &Reconciler{threshold: threshold}
}

// Reconcile picks what to post:
//
//	no invalid people           -> draft unchanged        (proceeded)
//	invalid fraction <= limit   -> draft minus images of  (filtered)
//	                               invalid people
//	invalid fraction >  limit   -> regenerate(valid)      (regenerated)
//
// The regenerated draft is used as returned. Callers must not invoke
// Reconcile with zero valid people.
func (r *Reconciler) Reconcile(ctx context.Context, draft types.GeneratedContent, outcome types.ValidationOutcome, regenerate RegenerateFunc) (types.GeneratedContent, types.ReconcileAction, error) {
	if outcome.Summary.Invalid == 0 {
		return draft, types.ActionProceeded, nil
	}

	if outcome.Summary.InvalidFraction() <= r.threshold {
		filtered := draft
		filtered.Images = FilterImages(draft.Images, outcome.ValidIDs())
		return filtered, types.ActionFiltered, nil
	}

	content, err := regenerate(ctx, outcome.Valid)
	if err != nil {
		return types.GeneratedContent{}, types.ActionRegenerated, fmt.Errorf("regenerate for %d valid people: %w", len(outcome.Valid), err)
	}
	return content, types.ActionRegenerated, nil
}

// FilterImages keeps the images whose person is in valid, in order.
func FilterImages(images []types.ImageRef, valid map[string]struct{}) []types.ImageRef {
	if len(images) == 0 {
		return nil
	}
	kept := make([]types.ImageRef, 0, len(images))
	for _, img := range images {
		if _, ok := valid[img.PersonID]; ok {
			kept = append(kept, img)
		}
	}
	return kept
}
