package duplicate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/chargedesk/internal/model"
)

func records(ids ...string) []model.Record {
	out := make([]model.Record, len(ids))
	for i, id := range ids {
		out[i] = model.Record{ID: id, Position: model.RowPosition(i)}
	}
	return out
}

func TestIsDuplicateID(t *testing.T) {
	recs := records("A1", " B2 ", "c3")

	tests := []struct {
		candidate string
		want      bool
	}{
		{"A1", true},
		{"  A1", true},
		{"B2", true},
		{"C3", false},
		{"a1", false},
		{"D4", false},
	}

	for _, tt := range tests {
		t.Run(tt.candidate, func(t *testing.T) {
			assert.Equal(t, tt.want, IsDuplicateID(recs, tt.candidate))
		})
	}

	assert.False(t, IsDuplicateID(nil, "A1"))
}

func TestFind(t *testing.T) {
	recs := records("A", "B", "A ", "C", "B", "A", "", "")

	found := Find(recs)
	require.Len(t, found, 2)

	require.Len(t, found["A"], 3)
	assert.Equal(t, []int{2, 4, 7}, positions(found["A"]))
	assert.Equal(t, []int{3, 6}, positions(found["B"]))
	assert.NotContains(t, found, "C")
	assert.NotContains(t, found, "")
}

func TestFindNoDuplicates(t *testing.T) {
	assert.Empty(t, Find(records("A", "B", "C")))
	assert.Empty(t, Find(nil))
}

func TestGroupsSorted(t *testing.T) {
	groups := Groups(records("Z", "M", "Z", "M", "A"))
	require.Len(t, groups, 2)
	assert.Equal(t, "M", groups[0].ID)
	assert.Equal(t, "Z", groups[1].ID)
}

func positions(recs []model.Record) []int {
	out := make([]int, len(recs))
	for i, r := range recs {
		out[i] = r.Position
	}
	return out
}
