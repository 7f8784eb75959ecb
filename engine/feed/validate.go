package feed

import "time"

// ClockSkewTolerance is how far in the future a publish date may be before
// the item is considered invalid.
const ClockSkewTolerance = 5 * time.Minute

// ValidateItem checks a single item against the snapshot invariants.
// Callers drop the offending item and continue the batch.
func ValidateItem(it Item, now time.Time) error {
	if !it.Source.Valid() {
		return NewValidationError("source", string(it.Source), ErrUnknownSource)
	}
	if it.Title == "" {
		return NewValidationError("title", "", ErrMissingTitle)
	}
	if it.URL == "" {
		return NewValidationError("url", "", ErrMissingURL)
	}
	if it.PublishedAt.IsZero() {
		return NewValidationError("publishedAt", "", ErrMissingDate)
	}
	if it.PublishedAt.After(now.Add(ClockSkewTolerance)) {
		return NewValidationError("publishedAt", it.PublishedAt.Format(time.RFC3339), ErrFutureDate)
	}
	if it.TractionScore < 0 {
		return NewValidationError("tractionScore", "", ErrNegativeScore)
	}
	return nil
}

// ValidateSnapshot checks snapshot-wide invariants: unique ids, consistent
// counts, non-negative scores.
func ValidateSnapshot(s Snapshot) error {
	if s.TotalItems != len(s.Items) {
		return NewValidationError("totalItems", "", ErrCountMismatch)
	}
	seen := make(map[string]struct{}, len(s.Items))
	for _, it := range s.Items {
		if _, dup := seen[it.ID]; dup {
			return NewValidationError("id", it.ID, ErrDuplicateItemID)
		}
		seen[it.ID] = struct{}{}
		if it.TractionScore < 0 {
			return NewValidationError("tractionScore", it.ID, ErrNegativeScore)
		}
	}
	return nil
}
