package libsurveyaccess_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/MerleBarney/encrypted-survey/lib"
	"github.com/MerleBarney/encrypted-survey/lib/access"
)

// TestAllowIsAllowed checks grants, their accumulation and the zero sentinel.
func TestAllowIsAllowed(t *testing.T) {
	table := libsurveyaccess.NewTable()

	h := libsurvey.NewHandle()
	alice := libsurvey.Address("alice")
	bob := libsurvey.Address("bob")
	carol := libsurvey.Address("carol")

	assert.False(t, table.IsAllowed(h, alice))

	table.Allow(h, alice, bob)
	assert.True(t, table.IsAllowed(h, alice))
	assert.True(t, table.IsAllowed(h, bob))
	assert.False(t, table.IsAllowed(h, carol))

	// grants accumulate, they are never replaced
	table.Allow(h, carol)
	assert.True(t, table.IsAllowed(h, alice))
	assert.True(t, table.IsAllowed(h, carol))

	// the zero sentinel never carries grants
	table.Allow(libsurvey.ZeroHandle, alice)
	assert.False(t, table.IsAllowed(libsurvey.ZeroHandle, alice))
}

// TestGrantsSorted checks the stable listing used by log output.
func TestGrantsSorted(t *testing.T) {
	table := libsurveyaccess.NewTable()

	h := libsurvey.NewHandle()
	table.Allow(h, "zoe", "al", "mia")

	assert.Equal(t, []libsurvey.Address{"al", "mia", "zoe"}, table.Grants(h))
	assert.Empty(t, table.Grants(libsurvey.NewHandle()))
}

// TestGrantsPerHandle checks that grants on one handle never leak to another.
func TestGrantsPerHandle(t *testing.T) {
	table := libsurveyaccess.NewTable()

	h1 := libsurvey.NewHandle()
	h2 := libsurvey.NewHandle()
	alice := libsurvey.Address("alice")

	table.Allow(h1, alice)
	assert.True(t, table.IsAllowed(h1, alice))
	assert.False(t, table.IsAllowed(h2, alice))
}
