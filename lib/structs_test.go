package libsurvey_test

import (
	"testing"

	"github.com/MerleBarney/encrypted-survey/lib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestHandles checks handle creation, the zero sentinel and the slice roundtrip.
func TestHandles(t *testing.T) {
	h1 := libsurvey.NewHandle()
	h2 := libsurvey.NewHandle()

	assert.False(t, h1.IsZero())
	assert.NotEqual(t, h1, h2, "two fresh handles should not collide")
	assert.True(t, libsurvey.ZeroHandle.IsZero())

	back, err := libsurvey.HandleFromSlice(h1.Slice())
	require.NoError(t, err)
	assert.Equal(t, h1, back)

	_, err = libsurvey.HandleFromSlice([]byte{1, 2, 3})
	assert.Error(t, err)
}

// TestAddressFromPoint checks that addresses are deterministic and distinct per key.
func TestAddressFromPoint(t *testing.T) {
	_, pub1 := libsurvey.GenKey()
	_, pub2 := libsurvey.GenKey()

	a1, err := libsurvey.AddressFromPoint(pub1)
	require.NoError(t, err)
	a1bis, err := libsurvey.AddressFromPoint(pub1)
	require.NoError(t, err)
	a2, err := libsurvey.AddressFromPoint(pub2)
	require.NoError(t, err)

	assert.Equal(t, a1, a1bis)
	assert.NotEqual(t, a1, a2)
	assert.Equal(t, 2*libsurvey.AddressLength, len(a1))
}

// TestQuestionBuckets checks the per-type counter layout.
func TestQuestionBuckets(t *testing.T) {
	single := libsurvey.Question{Text: "q", Type: libsurvey.SingleChoice, Options: []string{"A", "B", "C"}}
	multiple := libsurvey.Question{Text: "q", Type: libsurvey.MultipleChoice, Options: []string{"A", "B"}}
	rating := libsurvey.Question{Text: "q", Type: libsurvey.Rating}

	assert.Equal(t, 3, single.Buckets())
	assert.Equal(t, 2, multiple.Buckets())
	assert.Equal(t, libsurvey.RatingBuckets, rating.Buckets())
}

// TestSurveyDefCheck walks the validation rules for survey definitions.
func TestSurveyDefCheck(t *testing.T) {
	good := libsurvey.SurveyDef{
		Title:    "Health habits",
		Category: "health",
		Tags:     []string{"pilot"},
		Start:    100,
		End:      200,
		Questions: []libsurvey.Question{
			{Text: "Do you smoke?", Type: libsurvey.SingleChoice, Options: []string{"yes", "no"}},
			{Text: "How do you feel?", Type: libsurvey.Rating},
		},
	}
	require.NoError(t, good.Check())

	noTitle := good
	noTitle.Title = ""
	assert.Error(t, noTitle.Check())

	emptyWindow := good
	emptyWindow.End = good.Start
	assert.Error(t, emptyWindow.Check())

	noQuestions := good
	noQuestions.Questions = nil
	assert.Error(t, noQuestions.Check())

	tooMany := good
	tooMany.Questions = make([]libsurvey.Question, libsurvey.MaxQuestions+1)
	for i := range tooMany.Questions {
		tooMany.Questions[i] = good.Questions[0]
	}
	assert.Error(t, tooMany.Check())

	noText := good
	noText.Questions = []libsurvey.Question{{Type: libsurvey.SingleChoice, Options: []string{"a"}}}
	assert.Error(t, noText.Check())

	noOptions := good
	noOptions.Questions = []libsurvey.Question{{Text: "q", Type: libsurvey.MultipleChoice}}
	assert.Error(t, noOptions.Check())

	badType := good
	badType.Questions = []libsurvey.Question{{Text: "q", Type: libsurvey.QuestionType(9), Options: []string{"a"}}}
	assert.Error(t, badType.Check())
}

// TestAnswerTag checks that tags separate surveys and questions.
func TestAnswerTag(t *testing.T) {
	t00 := libsurvey.AnswerTag(0, 0)
	t01 := libsurvey.AnswerTag(0, 1)
	t10 := libsurvey.AnswerTag(1, 0)

	assert.NotEqual(t, t00, t01)
	assert.NotEqual(t, t00, t10)
	assert.Equal(t, t00, libsurvey.AnswerTag(0, 0))
}

// TestStringers keeps the log-facing names stable.
func TestStringers(t *testing.T) {
	assert.Equal(t, "single", libsurvey.SingleChoice.String())
	assert.Equal(t, "multiple", libsurvey.MultipleChoice.String())
	assert.Equal(t, "rating", libsurvey.Rating.String())
	assert.Equal(t, "unknown", libsurvey.QuestionType(42).String())

	assert.Equal(t, "survey-created", libsurvey.EventSurveyCreated.String())
	assert.Equal(t, "response-submitted", libsurvey.EventResponseSubmitted.String())
	assert.Equal(t, "permission-granted", libsurvey.EventPermissionGranted.String())
	assert.Equal(t, "permission-revoked", libsurvey.EventPermissionRevoked.String())
	assert.Equal(t, "survey-status-changed", libsurvey.EventSurveyStatusChanged.String())
}
