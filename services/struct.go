package servicessurvey

import (
	"crypto/sha256"
	"encoding/binary"
	"hash"

	"go.dedis.ch/kyber/v3"

	"github.com/MerleBarney/encrypted-survey/lib"
	"github.com/MerleBarney/encrypted-survey/lib/store"
)

// Digest helpers. Signed requests are authenticated over a digest of an
// operation tag plus every field, length-prefixed so field boundaries cannot
// be shifted.
//______________________________________________________________________________________________________________________

func writeUint64(h hash.Hash, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	h.Write(b[:])
}

func writeInt64(h hash.Hash, v int64) {
	writeUint64(h, uint64(v))
}

func writeString(h hash.Hash, s string) {
	writeUint64(h, uint64(len(s)))
	h.Write([]byte(s))
}

func writeBytes(h hash.Hash, b []byte) {
	writeUint64(h, uint64(len(b)))
	h.Write(b)
}

func writeBool(h hash.Hash, v bool) {
	if v {
		h.Write([]byte{1})
		return
	}
	h.Write([]byte{0})
}

// Survey Lifecycle Messages
//______________________________________________________________________________________________________________________

// CreateSurveyRequest registers a new survey. Signed by the creator.
type CreateSurveyRequest struct {
	Title     string
	Category  string
	Tags      []string
	Start     int64
	End       int64
	Questions []libsurvey.Question
	Public    kyber.Point
	Signature []byte
}

// Def assembles the survey definition carried by the request.
func (r *CreateSurveyRequest) Def() libsurvey.SurveyDef {
	return libsurvey.SurveyDef{
		Title:     r.Title,
		Category:  r.Category,
		Tags:      r.Tags,
		Start:     r.Start,
		End:       r.End,
		Questions: r.Questions,
	}
}

func (r *CreateSurveyRequest) digest() []byte {
	h := sha256.New()
	writeString(h, "create-survey")
	writeString(h, r.Title)
	writeString(h, r.Category)
	writeUint64(h, uint64(len(r.Tags)))
	for _, tag := range r.Tags {
		writeString(h, tag)
	}
	writeInt64(h, r.Start)
	writeInt64(h, r.End)
	writeUint64(h, uint64(len(r.Questions)))
	for _, q := range r.Questions {
		writeString(h, q.Text)
		writeInt64(h, int64(q.Type))
		writeUint64(h, uint64(len(q.Options)))
		for _, o := range q.Options {
			writeString(h, o)
		}
	}
	return h.Sum(nil)
}

// CreateSurveyReply returns the allocated sequential identifier.
type CreateSurveyReply struct {
	SurveyID uint64
}

// SetSurveyStatusRequest toggles whether a survey accepts responses. Signed by
// the creator or a manager.
type SetSurveyStatusRequest struct {
	SurveyID  uint64
	Active    bool
	Public    kyber.Point
	Signature []byte
}

func (r *SetSurveyStatusRequest) digest() []byte {
	h := sha256.New()
	writeString(h, "set-survey-status")
	writeUint64(h, r.SurveyID)
	writeBool(h, r.Active)
	return h.Sum(nil)
}

// SetSurveyStatusReply acknowledges the toggle.
type SetSurveyStatusReply struct{}

// Response Messages
//______________________________________________________________________________________________________________________

// SubmitResponseRequest carries one respondent's encrypted answers, one
// ciphertext and one proof per question. Signed by the respondent.
type SubmitResponseRequest struct {
	SurveyID  uint64
	Answers   [][]byte
	Proofs    [][]byte
	Public    kyber.Point
	Signature []byte
}

func (r *SubmitResponseRequest) digest() []byte {
	h := sha256.New()
	writeString(h, "submit-response")
	writeUint64(h, r.SurveyID)
	writeUint64(h, uint64(len(r.Answers)))
	for i := range r.Answers {
		writeBytes(h, r.Answers[i])
	}
	writeUint64(h, uint64(len(r.Proofs)))
	for i := range r.Proofs {
		writeBytes(h, r.Proofs[i])
	}
	return h.Sum(nil)
}

// SubmitResponseReply acknowledges an accepted submission.
type SubmitResponseReply struct{}

// Permission Messages
//______________________________________________________________________________________________________________________

// GrantPermissionRequest writes a viewer's capability flags. Signed by the
// creator.
type GrantPermissionRequest struct {
	SurveyID  uint64
	Viewer    libsurvey.Address
	CanView   bool
	CanExport bool
	CanManage bool
	Public    kyber.Point
	Signature []byte
}

func (r *GrantPermissionRequest) digest() []byte {
	h := sha256.New()
	writeString(h, "grant-permission")
	writeUint64(h, r.SurveyID)
	writeString(h, string(r.Viewer))
	writeBool(h, r.CanView)
	writeBool(h, r.CanExport)
	writeBool(h, r.CanManage)
	return h.Sum(nil)
}

// GrantPermissionReply acknowledges the grant.
type GrantPermissionReply struct{}

// RevokePermissionRequest clears a viewer's capability flags. Signed by the
// creator.
type RevokePermissionRequest struct {
	SurveyID  uint64
	Viewer    libsurvey.Address
	Public    kyber.Point
	Signature []byte
}

func (r *RevokePermissionRequest) digest() []byte {
	h := sha256.New()
	writeString(h, "revoke-permission")
	writeUint64(h, r.SurveyID)
	writeString(h, string(r.Viewer))
	return h.Sum(nil)
}

// RevokePermissionReply acknowledges the revocation.
type RevokePermissionReply struct{}

// PermissionRequest looks up the stored entry of one address.
type PermissionRequest struct {
	SurveyID uint64
	Address  libsurvey.Address
}

// PermissionReply returns the entry, zero-valued if never configured.
type PermissionReply struct {
	Permission libsurvey.Permission
}

// Authorization Messages
//______________________________________________________________________________________________________________________

// AuthorizeDecryptionRequest extends access grants to the caller, on the
// current total handle alone or on the full result set. Signed by the caller.
type AuthorizeDecryptionRequest struct {
	SurveyID   uint64
	AllResults bool
	Public     kyber.Point
	Signature  []byte
}

func (r *AuthorizeDecryptionRequest) digest() []byte {
	h := sha256.New()
	writeString(h, "authorize-decryption")
	writeUint64(h, r.SurveyID)
	writeBool(h, r.AllResults)
	return h.Sum(nil)
}

// AuthorizeDecryptionReply lists the handles the caller was granted on.
type AuthorizeDecryptionReply struct {
	Handles [][]byte
}

// UserDecryptRequest asks for the values behind handles the caller holds
// grants on, re-encrypted under the caller's key. The request is bound to a
// validity window and a unique identifier, and signed by the caller.
type UserDecryptRequest struct {
	Handles   [][]byte
	RequestID []byte
	NotBefore int64
	NotAfter  int64
	Public    kyber.Point
	Signature []byte
}

func (r *UserDecryptRequest) digest() []byte {
	h := sha256.New()
	writeString(h, "user-decrypt")
	writeUint64(h, uint64(len(r.Handles)))
	for i := range r.Handles {
		writeBytes(h, r.Handles[i])
	}
	writeBytes(h, r.RequestID)
	writeInt64(h, r.NotBefore)
	writeInt64(h, r.NotAfter)
	return h.Sum(nil)
}

// UserDecryptReply returns one ciphertext per requested handle, in request
// order, decryptable by the caller's private key.
type UserDecryptReply struct {
	Values []libsurvey.CipherText
}

// Export Messages
//______________________________________________________________________________________________________________________

// ResultRow is one question's cleartext aggregate in an export.
type ResultRow struct {
	Question string
	Type     libsurvey.QuestionType
	Labels   []string
	Counts   []int64
}

// ExportRequest asks for a cleartext result dump, optionally filtered by a
// predicate over the per-row counts and optionally noised. Signed by the
// caller, who must hold the export capability.
type ExportRequest struct {
	SurveyID  uint64
	Predicate string
	Noise     bool
	Public    kyber.Point
	Signature []byte
}

func (r *ExportRequest) digest() []byte {
	h := sha256.New()
	writeString(h, "export-results")
	writeUint64(h, r.SurveyID)
	writeString(h, r.Predicate)
	writeBool(h, r.Noise)
	return h.Sum(nil)
}

// ExportReply carries the decrypted totals.
type ExportReply struct {
	Total int64
	Rows  []ResultRow
}

// Read Messages
//______________________________________________________________________________________________________________________

// SurveyInfoRequest looks up a survey's metadata.
type SurveyInfoRequest struct {
	SurveyID uint64
}

// SurveyInfoReply returns the metadata snapshot.
type SurveyInfoReply struct {
	Info libsurveystore.SurveyInfo
}

// QuestionInfoRequest looks up one question.
type QuestionInfoRequest struct {
	SurveyID uint64
	Question int64
}

// QuestionInfoReply returns the question.
type QuestionInfoReply struct {
	Question libsurvey.Question
}

// SurveyTagsRequest looks up a survey's tags.
type SurveyTagsRequest struct {
	SurveyID uint64
}

// SurveyTagsReply returns the tag list.
type SurveyTagsReply struct {
	Tags []string
}

// SurveyCounterRequest asks how many surveys were ever created.
type SurveyCounterRequest struct{}

// SurveyCounterReply returns the count.
type SurveyCounterReply struct {
	Count uint64
}

// TotalResponsesRequest looks up the current encrypted total's handle.
type TotalResponsesRequest struct {
	SurveyID uint64
}

// TotalResponsesReply returns the handle.
type TotalResponsesReply struct {
	Handle []byte
}

// OptionCountsRequest looks up the counter handles of one question.
type OptionCountsRequest struct {
	SurveyID uint64
	Question int64
}

// OptionCountsReply returns the handles, zero sentinels included.
type OptionCountsReply struct {
	Handles [][]byte
}

// HasRespondedRequest asks whether an address answered a survey.
type HasRespondedRequest struct {
	SurveyID   uint64
	Respondent libsurvey.Address
}

// HasRespondedReply returns the answer.
type HasRespondedReply struct {
	Responded bool
}

// ResponseInfoRequest looks up one respondent's submission record.
type ResponseInfoRequest struct {
	SurveyID   uint64
	Respondent libsurvey.Address
}

// ResponseInfoReply returns the submission time and answer handles.
type ResponseInfoReply struct {
	Submitted int64
	Answers   [][]byte
}

// ServiceInfoRequest asks for the service encryption key and address.
type ServiceInfoRequest struct{}

// ServiceInfoReply returns the key respondents encrypt against and the
// address counters are held under.
type ServiceInfoReply struct {
	Public  kyber.Point
	Address libsurvey.Address
}

// GetEventsRequest reads the event log of one survey from a global sequence
// number on.
type GetEventsRequest struct {
	SurveyID uint64
	FromSeq  uint64
}

// GetEventsReply returns the matching events in log order.
type GetEventsReply struct {
	Events []libsurvey.Event
}
