package libsurveystore

import (
	"github.com/MerleBarney/encrypted-survey/lib"
)

// GrantPermission writes the viewer's capability flags, creator only. The write
// is a full overwrite and marks the entry as configured. As a convenience the
// viewer is also allowed on the current total handle; question counters, and
// any total handle derived by later submissions, still go through the
// authorize endpoints.
func (r *Registry) GrantPermission(caller libsurvey.Address, id uint64, viewer libsurvey.Address, canView, canExport, canManage bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, err := r.getSurvey(id)
	if err != nil {
		return err
	}
	if caller != s.creator {
		return ErrNotCreator
	}

	s.perms[viewer] = libsurvey.Permission{
		CanView:    canView,
		CanExport:  canExport,
		CanManage:  canManage,
		Configured: true,
	}
	r.acl.Allow(s.total, viewer)

	r.emit(libsurvey.Event{
		Kind:     libsurvey.EventPermissionGranted,
		SurveyID: s.id,
		Actor:    caller,
		Subject:  viewer,
	})
	return nil
}

// RevokePermission clears the viewer's three capability flags, creator only.
// The configured flag stays as it is, which keeps "revoked" distinguishable
// from "never granted". Grants already issued in the ciphertext access list are
// not retracted; revocation only blocks future authorize calls.
func (r *Registry) RevokePermission(caller libsurvey.Address, id uint64, viewer libsurvey.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, err := r.getSurvey(id)
	if err != nil {
		return err
	}
	if caller != s.creator {
		return ErrNotCreator
	}

	p := s.perms[viewer]
	p.CanView = false
	p.CanExport = false
	p.CanManage = false
	s.perms[viewer] = p

	r.emit(libsurvey.Event{
		Kind:     libsurvey.EventPermissionRevoked,
		SurveyID: s.id,
		Actor:    caller,
		Subject:  viewer,
	})
	return nil
}

// PermissionOf returns the stored permission entry, zero-valued if the address
// was never configured.
func (r *Registry) PermissionOf(id uint64, addr libsurvey.Address) (libsurvey.Permission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, err := r.getSurvey(id)
	if err != nil {
		return libsurvey.Permission{}, err
	}
	return s.perms[addr], nil
}

// AuthorizeMyDecryption grants the caller access to the current total handle.
// The caller must be the creator or hold canView. Submissions derive fresh
// total handles, so this must be re-invoked after any submission the caller
// cares about.
func (r *Registry) AuthorizeMyDecryption(caller libsurvey.Address, id uint64) (libsurvey.Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, err := r.getSurvey(id)
	if err != nil {
		return libsurvey.ZeroHandle, err
	}
	if !r.viewable(s, caller) {
		return libsurvey.ZeroHandle, ErrNotViewer
	}

	r.acl.Allow(s.total, caller)
	return s.total, nil
}

// AuthorizeAllResultsDecryption grants the caller access to the current total
// handle and every current counter handle across all questions, and returns
// the granted handles. Untouched counters have no handle to grant; they
// decrypt to zero for everyone anyway.
func (r *Registry) AuthorizeAllResultsDecryption(caller libsurvey.Address, id uint64) ([]libsurvey.Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, err := r.getSurvey(id)
	if err != nil {
		return nil, err
	}
	if !r.viewable(s, caller) {
		return nil, ErrNotViewer
	}

	r.acl.Allow(s.total, caller)
	granted := []libsurvey.Handle{s.total}
	for q := range s.def.Questions {
		for _, h := range s.bucketHandles(q) {
			if h.IsZero() {
				continue
			}
			r.acl.Allow(h, caller)
			granted = append(granted, h)
		}
	}
	return granted, nil
}
