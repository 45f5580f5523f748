package libsurveystore_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/xerrors"

	"github.com/MerleBarney/encrypted-survey/lib"
	"github.com/MerleBarney/encrypted-survey/lib/store"
)

// TestGrantPermission checks the creator-only rule, the full overwrite and the
// convenience grant on the current total.
func TestGrantPermission(t *testing.T) {
	rig := newTestRig()

	id, err := rig.reg.CreateSurvey(alice, defaultDef())
	require.NoError(t, err)

	err = rig.reg.GrantPermission(bob, id, carol, true, false, false)
	assert.True(t, xerrors.Is(err, libsurveystore.ErrNotCreator))

	require.NoError(t, rig.reg.GrantPermission(alice, id, bob, true, true, false))
	perm, err := rig.reg.PermissionOf(id, bob)
	require.NoError(t, err)
	assert.Equal(t, libsurvey.Permission{CanView: true, CanExport: true, Configured: true}, perm)

	// granting covers the total handle that exists right now
	total, err := rig.reg.TotalResponses(id)
	require.NoError(t, err)
	assert.True(t, rig.acl.IsAllowed(total, bob))

	// a second grant is a full overwrite, not a merge
	require.NoError(t, rig.reg.GrantPermission(alice, id, bob, false, false, true))
	perm, err = rig.reg.PermissionOf(id, bob)
	require.NoError(t, err)
	assert.Equal(t, libsurvey.Permission{CanManage: true, Configured: true}, perm)

	// the grant does not follow the total through a submission
	require.NoError(t, rig.submit(carol, id, 0))
	rotated, err := rig.reg.TotalResponses(id)
	require.NoError(t, err)
	assert.False(t, rig.acl.IsAllowed(rotated, bob))

	err = rig.reg.GrantPermission(alice, 42, bob, true, false, false)
	assert.True(t, xerrors.Is(err, libsurveystore.ErrSurveyNotFound))
}

// TestRevokePermission checks the revoke quirk: flags cleared, configured kept,
// no retraction of issued grants, and no further authorize calls.
func TestRevokePermission(t *testing.T) {
	rig := newTestRig()

	id, err := rig.reg.CreateSurvey(alice, defaultDef())
	require.NoError(t, err)

	require.NoError(t, rig.reg.GrantPermission(alice, id, bob, true, false, false))
	granted, err := rig.reg.AuthorizeMyDecryption(bob, id)
	require.NoError(t, err)
	assert.True(t, rig.acl.IsAllowed(granted, bob))

	err = rig.reg.RevokePermission(carol, id, bob)
	assert.True(t, xerrors.Is(err, libsurveystore.ErrNotCreator))

	require.NoError(t, rig.reg.RevokePermission(alice, id, bob))

	perm, err := rig.reg.PermissionOf(id, bob)
	require.NoError(t, err)
	assert.Equal(t, libsurvey.Permission{Configured: true}, perm)

	// authorize stops working after the revocation
	_, err = rig.reg.AuthorizeMyDecryption(bob, id)
	assert.True(t, xerrors.Is(err, libsurveystore.ErrNotViewer))

	// but the previously issued grant stays usable
	assert.True(t, rig.acl.IsAllowed(granted, bob))

	// revoking an address that was never granted leaves it unconfigured
	require.NoError(t, rig.reg.RevokePermission(alice, id, carol))
	perm, err = rig.reg.PermissionOf(id, carol)
	require.NoError(t, err)
	assert.Equal(t, libsurvey.Permission{}, perm)

	last := rig.sink.events[len(rig.sink.events)-1]
	assert.Equal(t, libsurvey.EventPermissionRevoked, last.Kind)
	assert.Equal(t, alice, last.Actor)
	assert.Equal(t, carol, last.Subject)
}

// TestAuthorizeMyDecryption checks who may self-authorize on the total.
func TestAuthorizeMyDecryption(t *testing.T) {
	rig := newTestRig()

	id, err := rig.reg.CreateSurvey(alice, defaultDef())
	require.NoError(t, err)

	_, err = rig.reg.AuthorizeMyDecryption(bob, id)
	assert.True(t, xerrors.Is(err, libsurveystore.ErrNotViewer))

	// the creator always may
	h, err := rig.reg.AuthorizeMyDecryption(alice, id)
	require.NoError(t, err)
	total, err := rig.reg.TotalResponses(id)
	require.NoError(t, err)
	assert.Equal(t, total, h)

	// a canView holder may, and the grant lands on the current handle
	require.NoError(t, rig.reg.GrantPermission(alice, id, bob, true, false, false))
	require.NoError(t, rig.submit(carol, id, 1))
	h, err = rig.reg.AuthorizeMyDecryption(bob, id)
	require.NoError(t, err)
	rotated, err := rig.reg.TotalResponses(id)
	require.NoError(t, err)
	assert.Equal(t, rotated, h)
	assert.True(t, rig.acl.IsAllowed(rotated, bob))

	_, err = rig.reg.AuthorizeMyDecryption(alice, 42)
	assert.True(t, xerrors.Is(err, libsurveystore.ErrSurveyNotFound))
}

// TestAuthorizeAllResultsDecryption checks that the bulk grant covers exactly
// the current total and every touched counter handle.
func TestAuthorizeAllResultsDecryption(t *testing.T) {
	rig := newTestRig()

	def := defaultDef()
	def.Questions = append(def.Questions, libsurvey.Question{Text: "Rate it", Type: libsurvey.Rating})
	id, err := rig.reg.CreateSurvey(alice, def)
	require.NoError(t, err)

	require.NoError(t, rig.reg.GrantPermission(alice, id, bob, true, false, false))
	require.NoError(t, rig.submit(carol, id, 1, 4))

	granted, err := rig.reg.AuthorizeAllResultsDecryption(bob, id)
	require.NoError(t, err)

	// expected coverage: the total plus every non-sentinel counter handle
	total, err := rig.reg.TotalResponses(id)
	require.NoError(t, err)
	expected := map[libsurvey.Handle]bool{total: true}
	for q := 0; q < 2; q++ {
		handles, err := rig.reg.QuestionOptionCounts(id, q)
		require.NoError(t, err)
		for _, h := range handles {
			if !h.IsZero() {
				expected[h] = true
			}
		}
	}

	assert.Equal(t, len(expected), len(granted))
	for _, h := range granted {
		assert.True(t, expected[h], "granted handle outside the current result set")
		assert.True(t, rig.acl.IsAllowed(h, bob))
		assert.False(t, rig.acl.IsAllowed(h, carol))
	}

	_, err = rig.reg.AuthorizeAllResultsDecryption(carol, id)
	assert.True(t, xerrors.Is(err, libsurveystore.ErrNotViewer))
}

// TestCanExportResults checks the export capability helper.
func TestCanExportResults(t *testing.T) {
	rig := newTestRig()

	id, err := rig.reg.CreateSurvey(alice, defaultDef())
	require.NoError(t, err)

	ok, err := rig.reg.CanExportResults(id, alice)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = rig.reg.CanExportResults(id, bob)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, rig.reg.GrantPermission(alice, id, bob, false, true, false))
	ok, err = rig.reg.CanExportResults(id, bob)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = rig.reg.CanExportResults(42, alice)
	assert.True(t, xerrors.Is(err, libsurveystore.ErrSurveyNotFound))
}
