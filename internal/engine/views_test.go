package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/chargedesk/internal/aggregate"
	"github.com/Veraticus/chargedesk/internal/model"
)

func ids(records []model.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}

func TestRecent(t *testing.T) {
	f := newFixture(t, testConfig(),
		record("OLD-PENDING", "Ali", "$1.00", model.StatusPending, testNow.Add(-48*time.Hour)),
		record("OLD-DECLINED", "Ali", "$2.00", model.StatusDeclined, testNow.Add(-30*time.Minute)),
		record("EDGE", "Ali", "$3.00", model.StatusCharged, testNow.Add(-5*time.Minute)),
		record("FRESH", "Sara", "$4.00", model.StatusCharged, testNow.Add(-time.Minute)),
	)

	got, err := f.desk.Recent(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"FRESH", "EDGE", "OLD-PENDING"}, ids(got))
}

func TestRecordsAndPending(t *testing.T) {
	f := newFixture(t, testConfig(),
		record("A1", "Ali", "$1.00", model.StatusPending, testNow),
		record("B2", "Sara", "$2.00", model.StatusCharged, testNow),
		record("C3", "ali", "$3.00", model.StatusPending, testNow),
	)
	ctx := context.Background()

	pending, err := f.desk.Pending(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"A1", "C3"}, ids(pending))

	byAgent, err := f.desk.Records(ctx, aggregate.Filter{Agent: "Ali"})
	require.NoError(t, err)
	assert.Equal(t, []string{"A1"}, ids(byAgent), "agent names are matched exactly")

	all, err := f.desk.Records(ctx, aggregate.Filter{})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3, 4}, []int{all[0].Position, all[1].Position, all[2].Position})
}

func TestDuplicates(t *testing.T) {
	f := newFixture(t, testConfig(),
		record("A1", "Ali", "$1.00", model.StatusPending, testNow),
		record("B2", "Sara", "$2.00", model.StatusCharged, testNow),
		record("A1 ", "Sara", "$3.00", model.StatusDeclined, testNow),
	)

	groups, err := f.desk.Duplicates(context.Background())
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "A1", groups[0].ID)
	assert.Len(t, groups[0].Records, 2)
}

func TestFindReturnsFirstMatch(t *testing.T) {
	f := newFixture(t, testConfig(),
		record("A1", "Ali", "$1.00", model.StatusPending, testNow),
		record("A1", "Sara", "$3.00", model.StatusDeclined, testNow),
	)

	rec, err := f.desk.Find(context.Background(), "A1")
	require.NoError(t, err)
	assert.Equal(t, "Ali", rec.Agent)
	assert.Equal(t, 2, rec.Position)
}
