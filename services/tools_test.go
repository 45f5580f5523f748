package servicessurvey_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MerleBarney/encrypted-survey/lib"
	"github.com/MerleBarney/encrypted-survey/services"
)

func exportRows() []servicessurvey.ResultRow {
	return []servicessurvey.ResultRow{
		{Question: "first", Type: libsurvey.SingleChoice, Labels: []string{"a", "b"}, Counts: []int64{4, 1}},
		{Question: "second", Type: libsurvey.SingleChoice, Labels: []string{"c", "d"}, Counts: []int64{0, 5}},
	}
}

// TestFilterRows checks predicate evaluation over row counts and the total.
func TestFilterRows(t *testing.T) {
	rows := exportRows()

	kept, err := servicessurvey.FilterRows(rows, 5, "")
	require.NoError(t, err)
	assert.Equal(t, 2, len(kept))

	kept, err = servicessurvey.FilterRows(rows, 5, "v0 > 2")
	require.NoError(t, err)
	require.Equal(t, 1, len(kept))
	assert.Equal(t, "first", kept[0].Question)

	kept, err = servicessurvey.FilterRows(rows, 5, "v0 + v1 == total")
	require.NoError(t, err)
	assert.Equal(t, 2, len(kept))

	kept, err = servicessurvey.FilterRows(rows, 5, "v1 == 5 && total == 5")
	require.NoError(t, err)
	require.Equal(t, 1, len(kept))
	assert.Equal(t, "second", kept[0].Question)

	// malformed predicates are reported, not evaluated
	_, err = servicessurvey.FilterRows(rows, 5, "v0 ++")
	assert.Error(t, err)

	// a predicate must yield a boolean
	_, err = servicessurvey.FilterRows(rows, 5, "v0 + v1")
	assert.Error(t, err)
}

// TestNoiseRows checks the noised output keeps the shape and never goes
// negative.
func TestNoiseRows(t *testing.T) {
	rows := exportRows()
	noisy, total := servicessurvey.NoiseRows(rows, 5)

	require.Equal(t, len(rows), len(noisy))
	assert.True(t, total >= 0)
	for i, row := range noisy {
		assert.Equal(t, rows[i].Question, row.Question)
		assert.Equal(t, rows[i].Labels, row.Labels)
		require.Equal(t, len(rows[i].Counts), len(row.Counts))
		for _, c := range row.Counts {
			assert.True(t, c >= 0)
		}
	}

	// inputs stay untouched
	assert.Equal(t, []int64{4, 1}, rows[0].Counts)
}
