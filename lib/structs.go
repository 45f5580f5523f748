// Package libsurvey contains the structures shared between the survey service, its
// client API and the encrypted aggregation engine, built on the ElGamal primitives
// defined in crypto.go.
package libsurvey

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"

	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/util/random"
	"golang.org/x/xerrors"
)

// Handles
//______________________________________________________________________________________________________________________

// HandleLength is the size in bytes of a ciphertext handle.
const HandleLength = 32

// Handle references one ciphertext held by the aggregation engine. Handles are
// opaque and single-use: every homomorphic operation mints a fresh one.
type Handle [HandleLength]byte

// ZeroHandle is the sentinel for a counter that was never touched. It decrypts
// to zero for everyone and carries no access grants.
var ZeroHandle = Handle{}

// NewHandle draws a fresh random handle.
func NewHandle() Handle {
	h := Handle{}
	random.Bytes(h[:], random.New())
	return h
}

// IsZero returns true for the zero sentinel.
func (h Handle) IsZero() bool {
	return h == ZeroHandle
}

// Slice returns the handle as a byte slice.
func (h Handle) Slice() []byte {
	return h[:]
}

func (h Handle) String() string {
	return hex.EncodeToString(h[:8])
}

// HandleFromSlice converts a byte slice back into a Handle.
func HandleFromSlice(b []byte) (Handle, error) {
	if len(b) != HandleLength {
		return ZeroHandle, xerrors.Errorf("handle is %d bytes, expected %d", len(b), HandleLength)
	}
	h := Handle{}
	copy(h[:], b)
	return h, nil
}

// Addresses
//______________________________________________________________________________________________________________________

// AddressLength is the size in bytes of a caller address.
const AddressLength = 20

// Address identifies a caller. It is derived from the caller's public key and
// is what the permission table and the access control list are keyed on.
type Address string

// AddressFromPoint derives the address of a public key.
func AddressFromPoint(p kyber.Point) (Address, error) {
	b, err := p.MarshalBinary()
	if err != nil {
		return "", xerrors.Errorf("marshalling public key: %v", err)
	}
	sum := sha256.Sum256(b)
	return Address(hex.EncodeToString(sum[:AddressLength])), nil
}

// Questions and Surveys
//______________________________________________________________________________________________________________________

// QuestionType selects how a question's encrypted answers are tallied.
type QuestionType int64

const (
	// SingleChoice answers carry the chosen option index.
	SingleChoice QuestionType = iota
	// MultipleChoice answers carry a bitmask of chosen option indices.
	MultipleChoice
	// Rating answers carry a value between 1 and 5.
	Rating
)

func (qt QuestionType) String() string {
	switch qt {
	case SingleChoice:
		return "single"
	case MultipleChoice:
		return "multiple"
	case Rating:
		return "rating"
	}
	return "unknown"
}

// Question is one survey question.
type Question struct {
	Text    string
	Type    QuestionType
	Options []string
}

// Buckets is the number of per-option counters kept for the question. Rating
// questions always keep RatingBuckets counters regardless of their options.
func (q Question) Buckets() int {
	if q.Type == Rating {
		return RatingBuckets
	}
	return len(q.Options)
}

// SurveyDef is the immutable definition of a survey as given at creation time.
type SurveyDef struct {
	Title     string
	Category  string
	Tags      []string
	Start     int64
	End       int64
	Questions []Question
}

// Check validates a survey definition before registration.
func (sd *SurveyDef) Check() error {
	if sd.Title == "" {
		return xerrors.New("survey title is empty")
	}
	if sd.End <= sd.Start {
		return xerrors.Errorf("survey window [%d, %d] is empty", sd.Start, sd.End)
	}
	if len(sd.Questions) == 0 || len(sd.Questions) > MaxQuestions {
		return xerrors.Errorf("survey has %d questions, expected between 1 and %d", len(sd.Questions), MaxQuestions)
	}
	for i, q := range sd.Questions {
		if q.Text == "" {
			return xerrors.Errorf("question %d has no text", i)
		}
		if q.Type < SingleChoice || q.Type > Rating {
			return xerrors.Errorf("question %d has unknown type %d", i, q.Type)
		}
		if q.Type != Rating && len(q.Options) == 0 {
			return xerrors.Errorf("question %d has no options", i)
		}
	}
	return nil
}

// Permissions
//______________________________________________________________________________________________________________________

// Permission is the per-address entry of a survey's permission table. Configured
// stays true once an entry has been written, even after all flags are revoked.
type Permission struct {
	CanView    bool
	CanExport  bool
	CanManage  bool
	Configured bool
}

// Events
//______________________________________________________________________________________________________________________

// EventKind tags an entry of the survey event log.
type EventKind int64

const (
	// EventSurveyCreated is logged once per survey registration.
	EventSurveyCreated EventKind = iota
	// EventResponseSubmitted is logged for every accepted response.
	EventResponseSubmitted
	// EventPermissionGranted is logged when a permission entry is written.
	EventPermissionGranted
	// EventPermissionRevoked is logged when a permission entry is cleared.
	EventPermissionRevoked
	// EventSurveyStatusChanged is logged when a survey is toggled.
	EventSurveyStatusChanged
)

func (ek EventKind) String() string {
	switch ek {
	case EventSurveyCreated:
		return "survey-created"
	case EventResponseSubmitted:
		return "response-submitted"
	case EventPermissionGranted:
		return "permission-granted"
	case EventPermissionRevoked:
		return "permission-revoked"
	case EventSurveyStatusChanged:
		return "survey-status-changed"
	}
	return "unknown"
}

// Event is one entry of the survey event log. Only the fields that make sense
// for the given kind are filled in.
type Event struct {
	Seq       uint64
	When      int64
	Kind      EventKind
	SurveyID  uint64
	Actor     Address
	Subject   Address
	Title     string
	Category  string
	Questions int64
	Active    bool
}

// Signing Tags
//______________________________________________________________________________________________________________________

// AnswerTag is the domain separation tag signed together with an encrypted
// answer, binding it to one question of one survey.
func AnswerTag(surveyID uint64, question int) []byte {
	tag := make([]byte, 0, 23)
	tag = append(tag, []byte("answer:")...)
	tag = appendUint64(tag, surveyID)
	tag = appendUint64(tag, uint64(question))
	return tag
}

func appendUint64(b []byte, v uint64) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, v)
	return append(b, buf...)
}
