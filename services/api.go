package servicessurvey

import (
	"time"

	"github.com/satori/go.uuid"
	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/sign/schnorr"
	"go.dedis.ch/kyber/v3/util/key"
	"go.dedis.ch/onet/v3"
	"go.dedis.ch/onet/v3/network"
	"golang.org/x/xerrors"

	"github.com/MerleBarney/encrypted-survey/lib"
	"github.com/MerleBarney/encrypted-survey/lib/store"
)

// API is a client bound to one survey node. Its key pair signs every
// mutating request and doubles as its address.
type API struct {
	*onet.Client
	ClientID   string
	entryPoint *network.ServerIdentity
	public     kyber.Point
	private    kyber.Scalar

	servicePublic kyber.Point
}

// NewClient builds a client talking to the service at entryPoint, with a
// fresh key pair.
func NewClient(entryPoint *network.ServerIdentity) *API {
	keys := key.NewKeyPair(libsurvey.SuiTe)
	return NewClientFromKey(entryPoint, keys.Private, keys.Public)
}

// NewClientFromKey builds a client reusing an existing key pair, keeping its
// address stable between invocations.
func NewClientFromKey(entryPoint *network.ServerIdentity, private kyber.Scalar, public kyber.Point) *API {
	return &API{
		Client:     onet.NewClient(libsurvey.SuiTe, ServiceName),
		ClientID:   uuid.NewV4().String(),
		entryPoint: entryPoint,
		public:     public,
		private:    private,
	}
}

// Public returns the client's signing key.
func (c *API) Public() kyber.Point {
	return c.public
}

// Address returns the address the client acts under.
func (c *API) Address() libsurvey.Address {
	return libsurvey.AddressFromPoint(c.public)
}

func (c *API) String() string {
	return "[Client-" + c.ClientID[:8] + "]"
}

func (c *API) sign(digest []byte) ([]byte, error) {
	return schnorr.Sign(libsurvey.SuiTe, c.private, digest)
}

// ServicePublic returns the service encryption key, fetched once and cached.
func (c *API) ServicePublic() (kyber.Point, error) {
	if c.servicePublic != nil {
		return c.servicePublic, nil
	}
	reply := &ServiceInfoReply{}
	if err := c.SendProtobuf(c.entryPoint, &ServiceInfoRequest{}, reply); err != nil {
		return nil, err
	}
	c.servicePublic = reply.Public
	return c.servicePublic, nil
}

// Mutating Calls
//______________________________________________________________________________________________________________________

// CreateSurvey registers a survey and returns its sequential identifier.
func (c *API) CreateSurvey(def libsurvey.SurveyDef) (uint64, error) {
	req := &CreateSurveyRequest{
		Title:     def.Title,
		Category:  def.Category,
		Tags:      def.Tags,
		Start:     def.Start,
		End:       def.End,
		Questions: def.Questions,
		Public:    c.public,
	}
	var err error
	req.Signature, err = c.sign(req.digest())
	if err != nil {
		return 0, err
	}
	reply := &CreateSurveyReply{}
	if err := c.SendProtobuf(c.entryPoint, req, reply); err != nil {
		return 0, err
	}
	return reply.SurveyID, nil
}

// SetStatus toggles whether the survey accepts responses.
func (c *API) SetStatus(surveyID uint64, active bool) error {
	req := &SetSurveyStatusRequest{SurveyID: surveyID, Active: active, Public: c.public}
	var err error
	req.Signature, err = c.sign(req.digest())
	if err != nil {
		return err
	}
	return c.SendProtobuf(c.entryPoint, req, nil)
}

// SubmitAnswers encrypts one answer per question under the service key,
// proves each ciphertext and submits the batch.
func (c *API) SubmitAnswers(surveyID uint64, answers []int64) error {
	servicePublic, err := c.ServicePublic()
	if err != nil {
		return err
	}
	req := &SubmitResponseRequest{
		SurveyID: surveyID,
		Answers:  make([][]byte, len(answers)),
		Proofs:   make([][]byte, len(answers)),
		Public:   c.public,
	}
	for q, answer := range answers {
		ctb, err := libsurvey.EncryptInt(servicePublic, answer).ToBytes()
		if err != nil {
			return err
		}
		tag := libsurvey.AnswerTag(surveyID, q)
		msg := make([]byte, 0, len(tag)+len(ctb))
		msg = append(msg, tag...)
		msg = append(msg, ctb...)
		proof, err := schnorr.Sign(libsurvey.SuiTe, c.private, msg)
		if err != nil {
			return err
		}
		req.Answers[q] = ctb
		req.Proofs[q] = proof
	}
	req.Signature, err = c.sign(req.digest())
	if err != nil {
		return err
	}
	return c.SendProtobuf(c.entryPoint, req, nil)
}

// Grant overwrites the viewer's capability flags on the survey.
func (c *API) Grant(surveyID uint64, viewer libsurvey.Address, canView, canExport, canManage bool) error {
	req := &GrantPermissionRequest{
		SurveyID:  surveyID,
		Viewer:    viewer,
		CanView:   canView,
		CanExport: canExport,
		CanManage: canManage,
		Public:    c.public,
	}
	var err error
	req.Signature, err = c.sign(req.digest())
	if err != nil {
		return err
	}
	return c.SendProtobuf(c.entryPoint, req, nil)
}

// Revoke clears the viewer's capability flags on the survey.
func (c *API) Revoke(surveyID uint64, viewer libsurvey.Address) error {
	req := &RevokePermissionRequest{SurveyID: surveyID, Viewer: viewer, Public: c.public}
	var err error
	req.Signature, err = c.sign(req.digest())
	if err != nil {
		return err
	}
	return c.SendProtobuf(c.entryPoint, req, nil)
}

// Decryption Calls
//______________________________________________________________________________________________________________________

// Authorize asks for decryption grants, on the running total alone or on the
// full result set, and returns the handles granted.
func (c *API) Authorize(surveyID uint64, allResults bool) ([][]byte, error) {
	req := &AuthorizeDecryptionRequest{SurveyID: surveyID, AllResults: allResults, Public: c.public}
	var err error
	req.Signature, err = c.sign(req.digest())
	if err != nil {
		return nil, err
	}
	reply := &AuthorizeDecryptionReply{}
	if err := c.SendProtobuf(c.entryPoint, req, reply); err != nil {
		return nil, err
	}
	return reply.Handles, nil
}

// UserDecrypt fetches the values behind the handles, re-encrypted under the
// client's key, and decrypts them locally. The request carries a fresh
// identifier and must reach the node within the connection timeout.
func (c *API) UserDecrypt(handles [][]byte) ([]int64, error) {
	now := time.Now()
	req := &UserDecryptRequest{
		Handles:   handles,
		RequestID: uuid.NewV4().Bytes(),
		NotBefore: now.Add(-time.Minute).Unix(),
		NotAfter:  now.Add(libsurvey.TIMEOUT).Unix(),
		Public:    c.public,
	}
	var err error
	req.Signature, err = c.sign(req.digest())
	if err != nil {
		return nil, err
	}
	reply := &UserDecryptReply{}
	if err := c.SendProtobuf(c.entryPoint, req, reply); err != nil {
		return nil, err
	}
	values := make([]int64, len(reply.Values))
	for i, ct := range reply.Values {
		values[i] = libsurvey.DecryptInt(c.private, ct)
	}
	return values, nil
}

// DecryptTotal authorizes the client on the running total and decrypts it.
func (c *API) DecryptTotal(surveyID uint64) (int64, error) {
	handles, err := c.Authorize(surveyID, false)
	if err != nil {
		return 0, err
	}
	values, err := c.UserDecrypt(handles)
	if err != nil {
		return 0, err
	}
	if len(values) != 1 {
		return 0, xerrors.Errorf("expected one value, got %d", len(values))
	}
	return values[0], nil
}

// DecryptCounts authorizes the client on the full result set and decrypts
// every per-option counter plus the running total. Counters never touched by
// a submission decrypt to zero.
func (c *API) DecryptCounts(surveyID uint64) ([][]int64, int64, error) {
	if _, err := c.Authorize(surveyID, true); err != nil {
		return nil, 0, err
	}
	info, err := c.SurveyInfo(surveyID)
	if err != nil {
		return nil, 0, err
	}
	counts := make([][]int64, info.QuestionCount)
	for q := range counts {
		handles, err := c.OptionCounts(surveyID, int64(q))
		if err != nil {
			return nil, 0, err
		}
		counts[q], err = c.UserDecrypt(handles)
		if err != nil {
			return nil, 0, err
		}
	}
	total, err := c.DecryptTotal(surveyID)
	if err != nil {
		return nil, 0, err
	}
	return counts, total, nil
}

// Export fetches the cleartext aggregates, filtered by the predicate and
// noised when asked for.
func (c *API) Export(surveyID uint64, predicate string, noise bool) ([]ResultRow, int64, error) {
	req := &ExportRequest{SurveyID: surveyID, Predicate: predicate, Noise: noise, Public: c.public}
	var err error
	req.Signature, err = c.sign(req.digest())
	if err != nil {
		return nil, 0, err
	}
	reply := &ExportReply{}
	if err := c.SendProtobuf(c.entryPoint, req, reply); err != nil {
		return nil, 0, err
	}
	return reply.Rows, reply.Total, nil
}

// Read Calls
//______________________________________________________________________________________________________________________

// SurveyInfo returns the survey's metadata.
func (c *API) SurveyInfo(surveyID uint64) (libsurveystore.SurveyInfo, error) {
	reply := &SurveyInfoReply{}
	err := c.SendProtobuf(c.entryPoint, &SurveyInfoRequest{SurveyID: surveyID}, reply)
	return reply.Info, err
}

// QuestionInfo returns one question of the survey.
func (c *API) QuestionInfo(surveyID uint64, question int64) (libsurvey.Question, error) {
	reply := &QuestionInfoReply{}
	err := c.SendProtobuf(c.entryPoint, &QuestionInfoRequest{SurveyID: surveyID, Question: question}, reply)
	return reply.Question, err
}

// SurveyTags returns the survey's tags.
func (c *API) SurveyTags(surveyID uint64) ([]string, error) {
	reply := &SurveyTagsReply{}
	err := c.SendProtobuf(c.entryPoint, &SurveyTagsRequest{SurveyID: surveyID}, reply)
	return reply.Tags, err
}

// SurveyCounter returns the number of surveys ever created on the node.
func (c *API) SurveyCounter() (uint64, error) {
	reply := &SurveyCounterReply{}
	err := c.SendProtobuf(c.entryPoint, &SurveyCounterRequest{}, reply)
	return reply.Count, err
}

// TotalResponses returns the current handle of the encrypted total.
func (c *API) TotalResponses(surveyID uint64) ([]byte, error) {
	reply := &TotalResponsesReply{}
	err := c.SendProtobuf(c.entryPoint, &TotalResponsesRequest{SurveyID: surveyID}, reply)
	return reply.Handle, err
}

// OptionCounts returns the counter handles of one question.
func (c *API) OptionCounts(surveyID uint64, question int64) ([][]byte, error) {
	reply := &OptionCountsReply{}
	err := c.SendProtobuf(c.entryPoint, &OptionCountsRequest{SurveyID: surveyID, Question: question}, reply)
	return reply.Handles, err
}

// HasResponded reports whether the address answered the survey.
func (c *API) HasResponded(surveyID uint64, respondent libsurvey.Address) (bool, error) {
	reply := &HasRespondedReply{}
	err := c.SendProtobuf(c.entryPoint, &HasRespondedRequest{SurveyID: surveyID, Respondent: respondent}, reply)
	return reply.Responded, err
}

// ResponseInfo returns the submission time and answer handles of one
// respondent.
func (c *API) ResponseInfo(surveyID uint64, respondent libsurvey.Address) (int64, [][]byte, error) {
	reply := &ResponseInfoReply{}
	err := c.SendProtobuf(c.entryPoint, &ResponseInfoRequest{SurveyID: surveyID, Respondent: respondent}, reply)
	return reply.Submitted, reply.Answers, err
}

// Permission returns the stored entry of the address, zero-valued if never
// configured.
func (c *API) Permission(surveyID uint64, addr libsurvey.Address) (libsurvey.Permission, error) {
	reply := &PermissionReply{}
	err := c.SendProtobuf(c.entryPoint, &PermissionRequest{SurveyID: surveyID, Address: addr}, reply)
	return reply.Permission, err
}

// Events returns the audit events of the survey from a global sequence
// number on.
func (c *API) Events(surveyID, fromSeq uint64) ([]libsurvey.Event, error) {
	reply := &GetEventsReply{}
	err := c.SendProtobuf(c.entryPoint, &GetEventsRequest{SurveyID: surveyID, FromSeq: fromSeq}, reply)
	return reply.Events, err
}
