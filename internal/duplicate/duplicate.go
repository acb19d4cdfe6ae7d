// Package duplicate finds records that share an order ID.
//
// Submission checks for a duplicate and then appends in two separate store
// calls, so two agents submitting the same ID at once can both succeed.
// Find exists to surface those after the fact.
package duplicate

import (
	"sort"
	"strings"

	"github.com/Veraticus/chargedesk/internal/model"
)

// NormalizeID is the form IDs are compared in: exact text after trimming.
func NormalizeID(id string) string {
	return strings.TrimSpace(id)
}

// IsDuplicateID reports whether any record already carries candidate.
func IsDuplicateID(records []model.Record, candidate string) bool {
	key := NormalizeID(candidate)
	for _, rec := range records {
		if NormalizeID(rec.ID) == key {
			return true
		}
	}
	return false
}

// Find groups records by ID and keeps only IDs seen more than once. Members
// of each group stay in row order. Blank IDs are never grouped.
func Find(records []model.Record) map[string][]model.Record {
	all := make(map[string][]model.Record)
	for _, rec := range records {
		key := NormalizeID(rec.ID)
		if key == "" {
			continue
		}
		all[key] = append(all[key], rec)
	}
	for key, members := range all {
		if len(members) < 2 {
			delete(all, key)
		}
	}
	return all
}

// Group is one duplicated ID and its records.
type Group struct {
	ID      string
	Records []model.Record
}

// Groups returns Find's result sorted by ID.
func Groups(records []model.Record) []Group {
	found := Find(records)
	out := make([]Group, 0, len(found))
	for id, members := range found {
		out = append(out, Group{ID: id, Records: members})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
