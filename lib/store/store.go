// Package libsurveystore implements the survey registry: survey definitions,
// encrypted per-option counters, one-response-per-respondent bookkeeping, the
// permission table and the bridge into the ciphertext access control list.
// Counters live in the aggregation engine and are referenced by handles only;
// the registry never sees a plaintext count.
package libsurveystore

import (
	"strconv"
	"sync"
	"time"

	"github.com/fanliao/go-concurrentMap"
	"golang.org/x/xerrors"

	"github.com/MerleBarney/encrypted-survey/lib"
	"github.com/MerleBarney/encrypted-survey/lib/access"
	"github.com/MerleBarney/encrypted-survey/lib/algebra"
)

// Registry errors. Callers match on these to map rejections onto their own
// error surface.
var (
	ErrSurveyNotFound    = xerrors.New("survey not found")
	ErrQuestionNotFound  = xerrors.New("question not found")
	ErrResponseNotFound  = xerrors.New("response not found")
	ErrDuplicateResponse = xerrors.New("respondent already answered this survey")
	ErrSurveyInactive    = xerrors.New("survey is not active")
	ErrOutsideWindow     = xerrors.New("current time is outside the response window")
	ErrNotCreator        = xerrors.New("caller is not the survey creator")
	ErrNotManager        = xerrors.New("caller may not manage this survey")
	ErrNotViewer         = xerrors.New("caller may not view results of this survey")
	ErrNotExporter       = xerrors.New("caller may not export results of this survey")
)

// EventSink receives one event per committed state change. The service plugs
// its persistent event log in here.
type EventSink interface {
	Emit(libsurvey.Event)
}

// Config carries the registry collaborators.
type Config struct {
	Algebra libsurveyalgebra.Algebra
	ACL     *libsurveyaccess.Table
	Sink    EventSink
	// Contract is the registry's own address, granted on every counter handle
	// so re-derivations keep working.
	Contract libsurvey.Address
	// Now is the clock used for response windows and event stamps. Defaults to
	// time.Now.
	Now func() time.Time
}

// survey is the registry record of one survey. counts[q][o] missing means the
// counter was never touched and stands for an encrypted zero.
type survey struct {
	id      uint64
	creator libsurvey.Address
	def     libsurvey.SurveyDef
	created int64
	active  bool

	total     libsurvey.Handle
	counts    map[int]map[int]libsurvey.Handle
	responses map[libsurvey.Address]*response
	perms     map[libsurvey.Address]libsurvey.Permission
}

// response is one accepted submission.
type response struct {
	submitted int64
	answers   []libsurvey.Handle
}

// Registry is the survey ledger. Every mutating call is all-or-nothing: it
// validates and stages all engine work first and only then commits, so a
// rejection never leaves partial state behind.
type Registry struct {
	mu      sync.Mutex
	surveys *concurrent.ConcurrentMap
	counter uint64

	algebra  libsurveyalgebra.Algebra
	acl      *libsurveyaccess.Table
	sink     EventSink
	contract libsurvey.Address
	now      func() time.Time
}

// NewRegistry creates a registry around the given collaborators.
func NewRegistry(cfg Config) *Registry {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Registry{
		surveys:  concurrent.NewConcurrentMap(),
		algebra:  cfg.Algebra,
		acl:      cfg.ACL,
		sink:     cfg.Sink,
		contract: cfg.Contract,
		now:      now,
	}
}

func (r *Registry) getSurvey(id uint64) (*survey, error) {
	surv, err := r.surveys.Get(strconv.FormatUint(id, 10))
	if err != nil {
		return nil, xerrors.Errorf("getting survey %d: %v", id, err)
	}
	if surv == nil {
		return nil, ErrSurveyNotFound
	}
	return surv.(*survey), nil
}

func (r *Registry) putSurvey(s *survey) error {
	_, err := r.surveys.Put(strconv.FormatUint(s.id, 10), s)
	if err != nil {
		return xerrors.Errorf("storing survey %d: %v", s.id, err)
	}
	return nil
}

func (r *Registry) emit(ev libsurvey.Event) {
	if r.sink == nil {
		return
	}
	ev.When = r.now().Unix()
	r.sink.Emit(ev)
}

// Survey Lifecycle
//______________________________________________________________________________________________________________________

// CreateSurvey registers a survey under the next sequential identifier, starting
// at 0. The encrypted response total starts as a fresh encryption of zero with
// access granted to the contract and the creator, and the creator receives a
// full-capability permission record.
func (r *Registry) CreateSurvey(creator libsurvey.Address, def libsurvey.SurveyDef) (uint64, error) {
	if err := def.Check(); err != nil {
		return 0, xerrors.Errorf("checking survey definition: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	total, err := r.algebra.Encrypt(0)
	if err != nil {
		return 0, xerrors.Errorf("encrypting initial total: %w", err)
	}

	s := &survey{
		id:        r.counter,
		creator:   creator,
		def:       def,
		created:   r.now().Unix(),
		active:    true,
		total:     total,
		counts:    make(map[int]map[int]libsurvey.Handle),
		responses: make(map[libsurvey.Address]*response),
		perms:     make(map[libsurvey.Address]libsurvey.Permission),
	}
	s.perms[creator] = libsurvey.Permission{CanView: true, CanExport: true, CanManage: true, Configured: true}

	if err := r.putSurvey(s); err != nil {
		return 0, err
	}
	r.counter++

	r.acl.Allow(total, r.contract, creator)
	r.emit(libsurvey.Event{
		Kind:      libsurvey.EventSurveyCreated,
		SurveyID:  s.id,
		Actor:     creator,
		Title:     def.Title,
		Category:  def.Category,
		Questions: int64(len(def.Questions)),
		Active:    true,
	})
	return s.id, nil
}

// SetSurveyStatus toggles whether a survey accepts responses. The flag and the
// time window gate submissions independently, so toggling is allowed outside
// the window too.
func (r *Registry) SetSurveyStatus(caller libsurvey.Address, id uint64, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, err := r.getSurvey(id)
	if err != nil {
		return err
	}
	if !r.manageable(s, caller) {
		return ErrNotManager
	}

	s.active = active
	r.emit(libsurvey.Event{
		Kind:     libsurvey.EventSurveyStatusChanged,
		SurveyID: s.id,
		Actor:    caller,
		Active:   active,
	})
	return nil
}

// manageable is true for the creator and for canManage holders.
func (r *Registry) manageable(s *survey, caller libsurvey.Address) bool {
	return caller == s.creator || s.perms[caller].CanManage
}

// viewable is true for the creator and for canView holders.
func (r *Registry) viewable(s *survey, caller libsurvey.Address) bool {
	return caller == s.creator || s.perms[caller].CanView
}

// exportable is true for the creator and for canExport holders.
func (r *Registry) exportable(s *survey, caller libsurvey.Address) bool {
	return caller == s.creator || s.perms[caller].CanExport
}

// Read Accessors
//______________________________________________________________________________________________________________________

// SurveyInfo is the metadata snapshot returned by lookups.
type SurveyInfo struct {
	ID            uint64
	Creator       libsurvey.Address
	Title         string
	Category      string
	Created       int64
	Start         int64
	End           int64
	Active        bool
	QuestionCount int64
}

// ResponseInfo is one respondent's submission record.
type ResponseInfo struct {
	Submitted int64
	Answers   []libsurvey.Handle
}

// SurveyCounter returns the number of surveys ever created.
func (r *Registry) SurveyCounter() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counter
}

// GetSurveyInfo returns the metadata of one survey.
func (r *Registry) GetSurveyInfo(id uint64) (SurveyInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, err := r.getSurvey(id)
	if err != nil {
		return SurveyInfo{}, err
	}
	return SurveyInfo{
		ID:            s.id,
		Creator:       s.creator,
		Title:         s.def.Title,
		Category:      s.def.Category,
		Created:       s.created,
		Start:         s.def.Start,
		End:           s.def.End,
		Active:        s.active,
		QuestionCount: int64(len(s.def.Questions)),
	}, nil
}

// GetQuestionInfo returns one question of a survey.
func (r *Registry) GetQuestionInfo(id uint64, question int) (libsurvey.Question, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, err := r.getSurvey(id)
	if err != nil {
		return libsurvey.Question{}, err
	}
	if question < 0 || question >= len(s.def.Questions) {
		return libsurvey.Question{}, ErrQuestionNotFound
	}
	return s.def.Questions[question], nil
}

// GetSurveyTags returns the tag list of a survey.
func (r *Registry) GetSurveyTags(id uint64) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, err := r.getSurvey(id)
	if err != nil {
		return nil, err
	}
	return append([]string{}, s.def.Tags...), nil
}

// HasResponded reports whether the address already answered the survey.
func (r *Registry) HasResponded(id uint64, respondent libsurvey.Address) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, err := r.getSurvey(id)
	if err != nil {
		return false, err
	}
	_, ok := s.responses[respondent]
	return ok, nil
}

// GetResponse returns the submission record of one respondent.
func (r *Registry) GetResponse(id uint64, respondent libsurvey.Address) (ResponseInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, err := r.getSurvey(id)
	if err != nil {
		return ResponseInfo{}, err
	}
	resp, ok := s.responses[respondent]
	if !ok {
		return ResponseInfo{}, ErrResponseNotFound
	}
	return ResponseInfo{
		Submitted: resp.submitted,
		Answers:   append([]libsurvey.Handle{}, resp.answers...),
	}, nil
}

// TotalResponses returns the handle of the current encrypted response total.
// Decrypting it requires a separate access grant.
func (r *Registry) TotalResponses(id uint64) (libsurvey.Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, err := r.getSurvey(id)
	if err != nil {
		return libsurvey.ZeroHandle, err
	}
	return s.total, nil
}

// QuestionOptionCounts returns the current counter handles of one question,
// always 5 of them for Rating questions. Untouched slots come back as the zero
// sentinel, which decrypts to zero for everyone.
func (r *Registry) QuestionOptionCounts(id uint64, question int) ([]libsurvey.Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, err := r.getSurvey(id)
	if err != nil {
		return nil, err
	}
	if question < 0 || question >= len(s.def.Questions) {
		return nil, ErrQuestionNotFound
	}
	return s.bucketHandles(question), nil
}

// bucketHandles assembles the dense handle slice of one question from the
// sparse counter map.
func (s *survey) bucketHandles(question int) []libsurvey.Handle {
	buckets := s.def.Questions[question].Buckets()
	out := make([]libsurvey.Handle, buckets)
	for o := 0; o < buckets; o++ {
		out[o] = s.counts[question][o]
	}
	return out
}

// CanExportResults reports whether the caller may pull cleartext exports.
func (r *Registry) CanExportResults(id uint64, caller libsurvey.Address) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, err := r.getSurvey(id)
	if err != nil {
		return false, err
	}
	return r.exportable(s, caller), nil
}

// Questions returns a copy of the survey's question list.
func (r *Registry) Questions(id uint64) ([]libsurvey.Question, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, err := r.getSurvey(id)
	if err != nil {
		return nil, err
	}
	return append([]libsurvey.Question{}, s.def.Questions...), nil
}
