// Package filter evaluates marker filter criteria. Matching is a pure
// function; the criteria value is a snapshot rebuilt on every filter change.
package filter

import (
	"strings"
	"time"

	"github.com/mapmarks/engine/internal/model"
)

// Criteria is a snapshot of the active filters. A zero-valued field means "no
// constraint", never "matches nothing".
type Criteria struct {
	TitleSubstring string
	MemoSubstring  string
	StartDate      *time.Time
	EndDate        *time.Time

	// SimilarityIDs holds marker ids resolved by the semantic search. nil or
	// empty applies no constraint; a failed or never-run search therefore
	// filters nothing (fail-open).
	SimilarityIDs []string
}

// Empty reports whether no constraint is set.
func (c Criteria) Empty() bool {
	return c.TitleSubstring == "" && c.MemoSubstring == "" &&
		c.StartDate == nil && c.EndDate == nil && len(c.SimilarityIDs) == 0
}

// Matches reports whether the marker satisfies every present criterion.
func Matches(m model.Marker, c Criteria) bool {
	if c.TitleSubstring != "" && !containsFold(m.Title, c.TitleSubstring) {
		return false
	}
	if c.MemoSubstring != "" && !containsFold(m.Memo, c.MemoSubstring) {
		return false
	}
	if c.StartDate != nil || c.EndDate != nil {
		created, ok := m.CreatedTime()
		// A marker whose stamp cannot be parsed fails the date filter; it is
		// excluded, not treated as a wildcard.
		if !ok {
			return false
		}
		if c.StartDate != nil && created.Before(*c.StartDate) {
			return false
		}
		if c.EndDate != nil && created.After(*c.EndDate) {
			return false
		}
	}
	if len(c.SimilarityIDs) > 0 && !containsID(c.SimilarityIDs, m.ID) {
		return false
	}
	return true
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func containsID(ids []string, id string) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
