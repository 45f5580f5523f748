// Package servicessurvey exposes the encrypted survey registry as an onet
// service. One node holds the evaluation key, tallies encrypted answers and
// hands out re-encrypted results to addresses holding access grants.
package servicessurvey

import (
	"sync"
	"time"

	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/sign/schnorr"
	"go.dedis.ch/onet/v3"
	"go.dedis.ch/onet/v3/log"
	"go.dedis.ch/onet/v3/network"
	"golang.org/x/xerrors"

	"github.com/MerleBarney/encrypted-survey/lib"
	"github.com/MerleBarney/encrypted-survey/lib/access"
	"github.com/MerleBarney/encrypted-survey/lib/algebra"
	"github.com/MerleBarney/encrypted-survey/lib/store"
)

// ServiceName is the registered name of the survey service.
const ServiceName = "EncryptedSurvey"

var storageKey = []byte("storage")
var eventBucketName = []byte("events")

const dbVersion = 1

var serviceID onet.ServiceID

func init() {
	var err error
	serviceID, err = onet.RegisterNewService(ServiceName, newService)
	log.ErrFatal(err)
	network.RegisterMessages(
		&storage{},
		&CreateSurveyRequest{}, &CreateSurveyReply{},
		&SetSurveyStatusRequest{}, &SetSurveyStatusReply{},
		&SubmitResponseRequest{}, &SubmitResponseReply{},
		&GrantPermissionRequest{}, &GrantPermissionReply{},
		&RevokePermissionRequest{}, &RevokePermissionReply{},
		&PermissionRequest{}, &PermissionReply{},
		&AuthorizeDecryptionRequest{}, &AuthorizeDecryptionReply{},
		&UserDecryptRequest{}, &UserDecryptReply{},
		&ExportRequest{}, &ExportReply{},
		&SurveyInfoRequest{}, &SurveyInfoReply{},
		&QuestionInfoRequest{}, &QuestionInfoReply{},
		&SurveyTagsRequest{}, &SurveyTagsReply{},
		&SurveyCounterRequest{}, &SurveyCounterReply{},
		&TotalResponsesRequest{}, &TotalResponsesReply{},
		&OptionCountsRequest{}, &OptionCountsReply{},
		&HasRespondedRequest{}, &HasRespondedReply{},
		&ResponseInfoRequest{}, &ResponseInfoReply{},
		&ServiceInfoRequest{}, &ServiceInfoReply{},
		&GetEventsRequest{}, &GetEventsReply{},
	)
}

// storage is persisted through the onet service database so the evaluation
// key survives restarts.
type storage struct {
	Private kyber.Scalar
}

// Service holds one node's survey state.
type Service struct {
	*onet.ServiceProcessor

	engine   *libsurveyalgebra.Engine
	acl      *libsurveyaccess.Table
	registry *libsurveystore.Registry
	events   *eventLog
	contract libsurvey.Address

	storage      *storage
	storageMutex sync.Mutex
}

func newService(c *onet.Context) (onet.Service, error) {
	s := &Service{
		ServiceProcessor: onet.NewServiceProcessor(c),
		acl:              libsurveyaccess.NewTable(),
	}
	if err := s.tryLoad(); err != nil {
		return nil, err
	}
	if s.storage.Private == nil {
		s.storage.Private, _ = libsurvey.GenKey()
		s.save()
	}
	s.engine = libsurveyalgebra.NewEngine(s.storage.Private)
	s.contract = libsurvey.AddressFromPoint(s.engine.Public())

	db, bucket := c.GetAdditionalBucket(eventBucketName)
	s.events = newEventLog(db, bucket)

	s.registry = libsurveystore.NewRegistry(libsurveystore.Config{
		Algebra:  s.engine,
		ACL:      s.acl,
		Sink:     s.events,
		Contract: s.contract,
		Now:      time.Now,
	})

	if err := s.RegisterHandlers(
		s.HandleCreateSurvey,
		s.HandleSetSurveyStatus,
		s.HandleSubmitResponse,
		s.HandleGrantPermission,
		s.HandleRevokePermission,
		s.HandlePermission,
		s.HandleAuthorizeDecryption,
		s.HandleUserDecrypt,
		s.HandleExport,
		s.HandleSurveyInfo,
		s.HandleQuestionInfo,
		s.HandleSurveyTags,
		s.HandleSurveyCounter,
		s.HandleTotalResponses,
		s.HandleOptionCounts,
		s.HandleHasResponded,
		s.HandleResponseInfo,
		s.HandleServiceInfo,
		s.HandleGetEvents,
	); err != nil {
		return nil, xerrors.Errorf("registering handlers: %v", err)
	}
	return s, nil
}

// verify checks the signature over digest and derives the caller's address
// from the signing key.
func (s *Service) verify(public kyber.Point, signature, digest []byte) (libsurvey.Address, error) {
	if public == nil {
		return "", xerrors.New("missing public key")
	}
	if err := schnorr.Verify(libsurvey.SuiTe, public, digest, signature); err != nil {
		return "", xerrors.Errorf("verifying request signature: %v", err)
	}
	return libsurvey.AddressFromPoint(public), nil
}

// Survey Lifecycle Handlers
//______________________________________________________________________________________________________________________

// HandleCreateSurvey registers a new survey under the next sequential
// identifier and seeds its encrypted total.
func (s *Service) HandleCreateSurvey(req *CreateSurveyRequest) (*CreateSurveyReply, error) {
	creator, err := s.verify(req.Public, req.Signature, req.digest())
	if err != nil {
		return nil, err
	}
	id, err := s.registry.CreateSurvey(creator, req.Def())
	if err != nil {
		return nil, err
	}
	log.Lvl2(s.ServerIdentity(), "created survey", id, "for", creator)
	return &CreateSurveyReply{SurveyID: id}, nil
}

// HandleSetSurveyStatus toggles whether a survey accepts responses.
func (s *Service) HandleSetSurveyStatus(req *SetSurveyStatusRequest) (*SetSurveyStatusReply, error) {
	caller, err := s.verify(req.Public, req.Signature, req.digest())
	if err != nil {
		return nil, err
	}
	if err := s.registry.SetSurveyStatus(caller, req.SurveyID, req.Active); err != nil {
		return nil, err
	}
	return &SetSurveyStatusReply{}, nil
}

// HandleSubmitResponse verifies and tallies one respondent's encrypted
// answers.
func (s *Service) HandleSubmitResponse(req *SubmitResponseRequest) (*SubmitResponseReply, error) {
	respondent, err := s.verify(req.Public, req.Signature, req.digest())
	if err != nil {
		return nil, err
	}
	if err := s.registry.SubmitResponse(respondent, req.Public, req.SurveyID, req.Answers, req.Proofs); err != nil {
		return nil, err
	}
	log.Lvl2(s.ServerIdentity(), "tallied response of", respondent, "for survey", req.SurveyID)
	return &SubmitResponseReply{}, nil
}

// Permission Handlers
//______________________________________________________________________________________________________________________

// HandleGrantPermission overwrites a viewer's capability flags.
func (s *Service) HandleGrantPermission(req *GrantPermissionRequest) (*GrantPermissionReply, error) {
	caller, err := s.verify(req.Public, req.Signature, req.digest())
	if err != nil {
		return nil, err
	}
	err = s.registry.GrantPermission(caller, req.SurveyID, req.Viewer, req.CanView, req.CanExport, req.CanManage)
	if err != nil {
		return nil, err
	}
	return &GrantPermissionReply{}, nil
}

// HandleRevokePermission clears a viewer's capability flags.
func (s *Service) HandleRevokePermission(req *RevokePermissionRequest) (*RevokePermissionReply, error) {
	caller, err := s.verify(req.Public, req.Signature, req.digest())
	if err != nil {
		return nil, err
	}
	if err := s.registry.RevokePermission(caller, req.SurveyID, req.Viewer); err != nil {
		return nil, err
	}
	return &RevokePermissionReply{}, nil
}

// HandlePermission returns the stored entry of one address.
func (s *Service) HandlePermission(req *PermissionRequest) (*PermissionReply, error) {
	perm, err := s.registry.PermissionOf(req.SurveyID, req.Address)
	if err != nil {
		return nil, err
	}
	return &PermissionReply{Permission: perm}, nil
}

// Decryption Handlers
//______________________________________________________________________________________________________________________

// HandleAuthorizeDecryption extends access grants to the caller and returns
// the handles covered.
func (s *Service) HandleAuthorizeDecryption(req *AuthorizeDecryptionRequest) (*AuthorizeDecryptionReply, error) {
	caller, err := s.verify(req.Public, req.Signature, req.digest())
	if err != nil {
		return nil, err
	}
	var handles []libsurvey.Handle
	if req.AllResults {
		handles, err = s.registry.AuthorizeAllResultsDecryption(caller, req.SurveyID)
	} else {
		var total libsurvey.Handle
		total, err = s.registry.AuthorizeMyDecryption(caller, req.SurveyID)
		handles = []libsurvey.Handle{total}
	}
	if err != nil {
		return nil, err
	}
	raw := make([][]byte, len(handles))
	for i, h := range handles {
		raw[i] = h.Slice()
	}
	return &AuthorizeDecryptionReply{Handles: raw}, nil
}

// HandleUserDecrypt re-encrypts the values behind granted handles under the
// caller's key. Zero handles stand for untouched counters and come back as a
// fresh encryption of zero.
func (s *Service) HandleUserDecrypt(req *UserDecryptRequest) (*UserDecryptReply, error) {
	caller, err := s.verify(req.Public, req.Signature, req.digest())
	if err != nil {
		return nil, err
	}
	if len(req.RequestID) == 0 {
		return nil, xerrors.New("missing request identifier")
	}
	now := time.Now().Unix()
	if now < req.NotBefore || now > req.NotAfter {
		return nil, xerrors.New("decryption request outside its validity window")
	}

	values := make([]libsurvey.CipherText, len(req.Handles))
	for i, raw := range req.Handles {
		handle, err := libsurvey.HandleFromSlice(raw)
		if err != nil {
			return nil, err
		}
		if handle.IsZero() {
			values[i] = *libsurvey.EncryptInt(req.Public, 0)
			continue
		}
		if !s.acl.IsAllowed(handle, caller) {
			return nil, xerrors.Errorf("%v holds no grant on handle %v", caller, handle)
		}
		ct, err := s.engine.Switch(handle, req.Public)
		if err != nil {
			return nil, err
		}
		values[i] = *ct
	}
	log.Lvl2(s.ServerIdentity(), "switched", len(values), "handles for", caller)
	return &UserDecryptReply{Values: values}, nil
}

// HandleExport decrypts the aggregates for a caller holding the export
// capability, applying the optional predicate and noise.
func (s *Service) HandleExport(req *ExportRequest) (*ExportReply, error) {
	caller, err := s.verify(req.Public, req.Signature, req.digest())
	if err != nil {
		return nil, err
	}
	ok, err := s.registry.CanExportResults(req.SurveyID, caller)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, libsurveystore.ErrNotExporter
	}

	rows, total, err := s.buildResults(req.SurveyID)
	if err != nil {
		return nil, err
	}
	rows, err = FilterRows(rows, total, req.Predicate)
	if err != nil {
		return nil, err
	}
	if req.Noise {
		rows, total = NoiseRows(rows, total)
	}
	log.Lvl2(s.ServerIdentity(), "exported", len(rows), "rows of survey", req.SurveyID)
	return &ExportReply{Total: total, Rows: rows}, nil
}

// Read Handlers
//______________________________________________________________________________________________________________________

// HandleSurveyInfo returns a survey's metadata.
func (s *Service) HandleSurveyInfo(req *SurveyInfoRequest) (*SurveyInfoReply, error) {
	info, err := s.registry.GetSurveyInfo(req.SurveyID)
	if err != nil {
		return nil, err
	}
	return &SurveyInfoReply{Info: info}, nil
}

// HandleQuestionInfo returns one question.
func (s *Service) HandleQuestionInfo(req *QuestionInfoRequest) (*QuestionInfoReply, error) {
	question, err := s.registry.GetQuestionInfo(req.SurveyID, int(req.Question))
	if err != nil {
		return nil, err
	}
	return &QuestionInfoReply{Question: question}, nil
}

// HandleSurveyTags returns a survey's tags.
func (s *Service) HandleSurveyTags(req *SurveyTagsRequest) (*SurveyTagsReply, error) {
	tags, err := s.registry.GetSurveyTags(req.SurveyID)
	if err != nil {
		return nil, err
	}
	return &SurveyTagsReply{Tags: tags}, nil
}

// HandleSurveyCounter returns the number of surveys ever created.
func (s *Service) HandleSurveyCounter(req *SurveyCounterRequest) (*SurveyCounterReply, error) {
	return &SurveyCounterReply{Count: s.registry.SurveyCounter()}, nil
}

// HandleTotalResponses returns the current handle of the encrypted total.
func (s *Service) HandleTotalResponses(req *TotalResponsesRequest) (*TotalResponsesReply, error) {
	handle, err := s.registry.TotalResponses(req.SurveyID)
	if err != nil {
		return nil, err
	}
	return &TotalResponsesReply{Handle: handle.Slice()}, nil
}

// HandleOptionCounts returns the counter handles of one question.
func (s *Service) HandleOptionCounts(req *OptionCountsRequest) (*OptionCountsReply, error) {
	handles, err := s.registry.QuestionOptionCounts(req.SurveyID, int(req.Question))
	if err != nil {
		return nil, err
	}
	raw := make([][]byte, len(handles))
	for i, h := range handles {
		raw[i] = h.Slice()
	}
	return &OptionCountsReply{Handles: raw}, nil
}

// HandleHasResponded reports whether an address answered a survey.
func (s *Service) HandleHasResponded(req *HasRespondedRequest) (*HasRespondedReply, error) {
	responded, err := s.registry.HasResponded(req.SurveyID, req.Respondent)
	if err != nil {
		return nil, err
	}
	return &HasRespondedReply{Responded: responded}, nil
}

// HandleResponseInfo returns one respondent's submission record.
func (s *Service) HandleResponseInfo(req *ResponseInfoRequest) (*ResponseInfoReply, error) {
	info, err := s.registry.GetResponse(req.SurveyID, req.Respondent)
	if err != nil {
		return nil, err
	}
	answers := make([][]byte, len(info.Answers))
	for i, h := range info.Answers {
		answers[i] = h.Slice()
	}
	return &ResponseInfoReply{Submitted: info.Submitted, Answers: answers}, nil
}

// HandleServiceInfo returns the key respondents encrypt against and the
// address counters are held under.
func (s *Service) HandleServiceInfo(req *ServiceInfoRequest) (*ServiceInfoReply, error) {
	return &ServiceInfoReply{Public: s.engine.Public(), Address: s.contract}, nil
}

// HandleGetEvents returns the audit events of one survey.
func (s *Service) HandleGetEvents(req *GetEventsRequest) (*GetEventsReply, error) {
	events, err := s.events.Events(req.SurveyID, req.FromSeq)
	if err != nil {
		return nil, err
	}
	return &GetEventsReply{Events: events}, nil
}

// Persistence
//______________________________________________________________________________________________________________________

func (s *Service) save() {
	s.storageMutex.Lock()
	defer s.storageMutex.Unlock()
	if err := s.Save(storageKey, s.storage); err != nil {
		log.Error("could not save service state:", err)
	}
	if err := s.SaveVersion(dbVersion); err != nil {
		log.Error("could not save db version:", err)
	}
}

func (s *Service) tryLoad() error {
	s.storage = &storage{}
	msg, err := s.Load(storageKey)
	if err != nil {
		return xerrors.Errorf("loading service state: %v", err)
	}
	if msg == nil {
		return nil
	}
	var ok bool
	s.storage, ok = msg.(*storage)
	if !ok {
		return xerrors.New("service state of wrong type")
	}
	return nil
}
