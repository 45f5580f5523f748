package libsurveystore

import (
	"go.dedis.ch/kyber/v3"
	"golang.org/x/xerrors"

	"github.com/MerleBarney/encrypted-survey/lib"
)

// stagedGrant is an access grant recorded during staging and applied at commit.
type stagedGrant struct {
	handle libsurvey.Handle
	addrs  []libsurvey.Address
}

// stagedResponse collects everything a submission derives. Nothing in it
// touches the survey record until commit, so a failing step rejects the whole
// submission with no partial state.
type stagedResponse struct {
	answers []libsurvey.Handle
	counts  map[int]map[int]libsurvey.Handle
	total   libsurvey.Handle
	grants  []stagedGrant
}

func (st *stagedResponse) allow(h libsurvey.Handle, addrs ...libsurvey.Address) {
	st.grants = append(st.grants, stagedGrant{handle: h, addrs: addrs})
}

// SubmitResponse records one respondent's encrypted answers and folds them into
// the survey's encrypted counters. The survey must be active, the current time
// must lie within [start, end] and the caller must not have answered before.
// Answers are bound to the sender key through their proofs.
func (r *Registry) SubmitResponse(caller libsurvey.Address, sender kyber.Point, id uint64, answers, proofs [][]byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, err := r.getSurvey(id)
	if err != nil {
		return err
	}
	if !s.active {
		return ErrSurveyInactive
	}
	now := r.now().Unix()
	if now < s.def.Start || now > s.def.End {
		return ErrOutsideWindow
	}
	if len(answers) != len(s.def.Questions) || len(proofs) != len(s.def.Questions) {
		return xerrors.Errorf("survey %d expects %d answers and proofs, got %d and %d",
			id, len(s.def.Questions), len(answers), len(proofs))
	}
	if _, ok := s.responses[caller]; ok {
		return ErrDuplicateResponse
	}

	st, err := r.stageResponse(s, sender, answers, proofs)
	if err != nil {
		return xerrors.Errorf("staging response: %w", err)
	}
	r.commitResponse(s, caller, st, now)

	r.emit(libsurvey.Event{
		Kind:     libsurvey.EventResponseSubmitted,
		SurveyID: s.id,
		Actor:    caller,
	})
	return nil
}

// stageResponse runs every engine operation of a submission without touching
// the survey record. Handles minted for a submission that later fails are
// simply never referenced again.
func (r *Registry) stageResponse(s *survey, sender kyber.Point, answers, proofs [][]byte) (*stagedResponse, error) {
	st := &stagedResponse{
		answers: make([]libsurvey.Handle, len(answers)),
		counts:  make(map[int]map[int]libsurvey.Handle),
	}

	for q, question := range s.def.Questions {
		answer, err := r.algebra.VerifyCiphertext(answers[q], proofs[q], sender, libsurvey.AnswerTag(s.id, q))
		if err != nil {
			return nil, xerrors.Errorf("importing answer %d: %w", q, err)
		}
		st.answers[q] = answer
		st.allow(answer, r.contract)

		switch question.Type {
		case libsurvey.SingleChoice:
			err = r.tallyEquality(s, st, q, answer, 0, len(question.Options))
		case libsurvey.MultipleChoice:
			err = r.tallyBitmask(s, st, q, answer, len(question.Options))
		case libsurvey.Rating:
			err = r.tallyEquality(s, st, q, answer, 1, libsurvey.RatingBuckets)
		}
		if err != nil {
			return nil, xerrors.Errorf("tallying question %d: %w", q, err)
		}
	}

	one, err := r.algebra.Encrypt(1)
	if err != nil {
		return nil, xerrors.Errorf("encrypting increment: %w", err)
	}
	total, err := r.algebra.Add(s.total, one)
	if err != nil {
		return nil, xerrors.Errorf("bumping total: %w", err)
	}
	st.total = total
	st.allow(total, r.contract, s.creator)
	return st, nil
}

// tallyEquality bumps, for every bucket o, the counter of "answer == first+o".
// Choice indices start at 0, rating values at 1. A value matching no bucket
// bumps nothing but is still recorded as the respondent's answer.
func (r *Registry) tallyEquality(s *survey, st *stagedResponse, q int, answer libsurvey.Handle, first, buckets int) error {
	for o := 0; o < buckets; o++ {
		wanted, err := r.algebra.Encrypt(int64(first + o))
		if err != nil {
			return err
		}
		cond, err := r.algebra.Eq(answer, wanted)
		if err != nil {
			return err
		}
		inc, err := r.indicator(cond)
		if err != nil {
			return err
		}
		if err := r.bump(s, st, q, o, inc); err != nil {
			return err
		}
	}
	return nil
}

// tallyBitmask bumps, for every bucket o, the counter of "answer has bit o set".
func (r *Registry) tallyBitmask(s *survey, st *stagedResponse, q int, answer libsurvey.Handle, buckets int) error {
	for o := 0; o < buckets; o++ {
		mask, err := r.algebra.Encrypt(int64(1) << uint(o))
		if err != nil {
			return err
		}
		masked, err := r.algebra.And(answer, mask)
		if err != nil {
			return err
		}
		zero, err := r.algebra.Encrypt(0)
		if err != nil {
			return err
		}
		cond, err := r.algebra.Gt(masked, zero)
		if err != nil {
			return err
		}
		inc, err := r.indicator(cond)
		if err != nil {
			return err
		}
		if err := r.bump(s, st, q, o, inc); err != nil {
			return err
		}
	}
	return nil
}

// indicator turns an encrypted condition into an encrypted 0/1 through select,
// so the increment added to a counter cannot be linked to the answer.
func (r *Registry) indicator(cond libsurvey.Handle) (libsurvey.Handle, error) {
	one, err := r.algebra.Encrypt(1)
	if err != nil {
		return libsurvey.ZeroHandle, err
	}
	zero, err := r.algebra.Encrypt(0)
	if err != nil {
		return libsurvey.ZeroHandle, err
	}
	return r.algebra.Select(cond, one, zero)
}

// bump stages counts[q][o] += inc. An untouched counter is materialized as an
// encryption of zero first. The resulting fresh handle gets its grants staged
// for the contract and the creator, since grants never follow a derivation.
func (r *Registry) bump(s *survey, st *stagedResponse, q, o int, inc libsurvey.Handle) error {
	cur := s.counts[q][o]
	if cur.IsZero() {
		var err error
		cur, err = r.algebra.Encrypt(0)
		if err != nil {
			return err
		}
	}
	next, err := r.algebra.Add(cur, inc)
	if err != nil {
		return err
	}
	if st.counts[q] == nil {
		st.counts[q] = make(map[int]libsurvey.Handle)
	}
	st.counts[q][o] = next
	st.allow(next, r.contract, s.creator)
	return nil
}

// commitResponse applies a fully staged submission to the survey record and the
// access control list in one step.
func (r *Registry) commitResponse(s *survey, caller libsurvey.Address, st *stagedResponse, now int64) {
	s.responses[caller] = &response{submitted: now, answers: st.answers}
	for q, slots := range st.counts {
		if s.counts[q] == nil {
			s.counts[q] = make(map[int]libsurvey.Handle)
		}
		for o, h := range slots {
			s.counts[q][o] = h
		}
	}
	s.total = st.total
	for _, g := range st.grants {
		r.acl.Allow(g.handle, g.addrs...)
	}
}
