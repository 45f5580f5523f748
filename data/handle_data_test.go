package datasurvey_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"

	datasurvey "github.com/MerleBarney/encrypted-survey/data"
	libsurvey "github.com/MerleBarney/encrypted-survey/lib"
)

const filename = "survey_test_data.txt"
const numQuestions = 5
const numOptions = 4
const numRespondents = 10

var testDef libsurvey.SurveyDef
var testAnswers [][]int64

func TestGenerateSurveyDef(t *testing.T) {
	testDef = datasurvey.GenerateSurveyDef(numQuestions, numOptions)

	assert.NoError(t, testDef.Check())
	assert.Equal(t, numQuestions, len(testDef.Questions))
	for i, q := range testDef.Questions {
		assert.Equal(t, libsurvey.QuestionType(int64(i%3)), q.Type)
		if q.Type == libsurvey.Rating {
			assert.Empty(t, q.Options)
			assert.Equal(t, libsurvey.RatingBuckets, q.Buckets())
		} else {
			assert.Equal(t, numOptions, len(q.Options))
		}
	}
}

func TestGenerateAnswers(t *testing.T) {
	testAnswers = datasurvey.GenerateAnswers(testDef, numRespondents)

	assert.Equal(t, numRespondents, len(testAnswers))
	for _, row := range testAnswers {
		assert.Equal(t, numQuestions, len(row))
		for i, q := range testDef.Questions {
			switch q.Type {
			case libsurvey.SingleChoice:
				assert.True(t, row[i] >= 0 && row[i] < numOptions, "choice out of range")
			case libsurvey.MultipleChoice:
				assert.True(t, row[i] >= 0 && row[i] < 1<<numOptions, "mask out of range")
			case libsurvey.Rating:
				assert.True(t, row[i] >= 1 && row[i] <= libsurvey.RatingBuckets, "rating out of range")
			}
		}
	}
}

func TestExpectedCounts(t *testing.T) {
	def := libsurvey.SurveyDef{
		Title: "Tally check",
		Start: 0,
		End:   1,
		Questions: []libsurvey.Question{
			{Text: "Transport", Type: libsurvey.SingleChoice, Options: []string{"Bike", "Car", "Transit"}},
			{Text: "Channels", Type: libsurvey.MultipleChoice, Options: []string{"Mail", "Phone"}},
			{Text: "Satisfaction", Type: libsurvey.Rating},
		},
	}
	answers := [][]int64{
		{0, 0b11, 5},
		{2, 0b01, 9},
		{0, 0b00, 1},
	}

	total, counts := datasurvey.ExpectedCounts(def, answers)
	assert.Equal(t, int64(3), total, "every row counts towards the total, even with an out of range rating")
	assert.Equal(t, []int64{2, 0, 1}, counts[0])
	assert.Equal(t, []int64{2, 1}, counts[1])
	assert.Equal(t, []int64{1, 0, 0, 0, 1}, counts[2], "rating 9 should not land in any bucket")
}

func TestWriteReadAnswers(t *testing.T) {
	datasurvey.WriteAnswersToFile(filename, testAnswers)
	defer os.Remove(filename)

	read := datasurvey.ReadAnswersFromFile(filename)
	assert.Equal(t, testAnswers, read, "answers should survive the file roundtrip")

	_, wantCounts := datasurvey.ExpectedCounts(testDef, testAnswers)
	_, gotCounts := datasurvey.ExpectedCounts(testDef, read)
	assert.True(t, datasurvey.CompareCounts(wantCounts, gotCounts), "tallies should be the same")
}

func TestCompareCounts(t *testing.T) {
	x := [][]int64{{1, 2}, {0, 0, 3}}
	y := [][]int64{{1, 2}, {0, 0, 3}}
	assert.True(t, datasurvey.CompareCounts(x, y))

	y[1][2] = 4
	assert.False(t, datasurvey.CompareCounts(x, y))
}

func TestSeed(t *testing.T) {
	datasurvey.Seed(42)
	first := datasurvey.GenerateAnswers(testDef, numRespondents)

	datasurvey.Seed(42)
	second := datasurvey.GenerateAnswers(testDef, numRespondents)

	assert.Equal(t, first, second, "the same seed should reproduce the data set")
}
