// Package datasurvey generates random survey definitions and answer sets for
// tests and simulations, together with the clear-text tallies they should
// produce once aggregated.
package datasurvey

import (
	"bufio"
	"math/rand"
	"os"
	"reflect"
	"strconv"
	"time"

	"go.dedis.ch/onet/v3/log"

	libsurvey "github.com/MerleBarney/encrypted-survey/lib"
	libsurveytools "github.com/MerleBarney/encrypted-survey/lib/tools"
)

var rng = rand.New(rand.NewSource(time.Now().UTC().UnixNano()))

// Seed makes the generator deterministic so a data set can be reproduced.
func Seed(seed int64) {
	rng = rand.New(rand.NewSource(seed))
}

// random generates a random number between min and max
func random(min, max int) int {
	return rng.Intn(max-min) + min
}

// GenerateSurveyDef builds a survey definition with numQuestions questions
// cycling through the three question types. Choice questions carry numOptions
// options, rating questions none. The response window opens a minute in the
// past and stays open for a day so generated answers are always submittable.
func GenerateSurveyDef(numQuestions, numOptions int) libsurvey.SurveyDef {
	now := time.Now().Unix()

	questions := make([]libsurvey.Question, numQuestions)
	for i := 0; i < numQuestions; i++ {
		q := libsurvey.Question{
			Text: "Question " + strconv.Itoa(i+1),
			Type: libsurvey.QuestionType(int64(i % 3)),
		}
		if q.Type != libsurvey.Rating {
			q.Options = make([]string, numOptions)
			for o := 0; o < numOptions; o++ {
				q.Options[o] = "Option " + strconv.Itoa(o+1)
			}
		}
		questions[i] = q
	}

	return libsurvey.SurveyDef{
		Title:     "Generated survey",
		Category:  "testing",
		Tags:      []string{"generated"},
		Start:     now - 60,
		End:       now + 24*3600,
		Questions: questions,
	}
}

// GenerateAnswers draws one valid answer vector per respondent. Single choice
// answers are option indices, multiple choice answers are option bitmasks and
// rating answers lie between 1 and 5.
func GenerateAnswers(def libsurvey.SurveyDef, numRespondents int) [][]int64 {
	answers := make([][]int64, numRespondents)
	for r := 0; r < numRespondents; r++ {
		row := make([]int64, len(def.Questions))
		for i, q := range def.Questions {
			switch q.Type {
			case libsurvey.SingleChoice:
				row[i] = int64(random(0, len(q.Options)))
			case libsurvey.MultipleChoice:
				row[i] = int64(random(0, 1<<uint(len(q.Options))))
			case libsurvey.Rating:
				row[i] = int64(random(1, libsurvey.RatingBuckets+1))
			}
		}
		answers[r] = row
	}
	return answers
}

// ExpectedCounts tallies the answer set in clear. It returns the total number
// of responses and one counter slice per question, mirroring what decrypting
// the aggregated survey state should yield.
func ExpectedCounts(def libsurvey.SurveyDef, answers [][]int64) (int64, [][]int64) {
	counts := make([][]int64, len(def.Questions))
	for i, q := range def.Questions {
		counts[i] = make([]int64, q.Buckets())
	}

	for _, row := range answers {
		for i, q := range def.Questions {
			ans := row[i]
			switch q.Type {
			case libsurvey.SingleChoice:
				if ans >= 0 && ans < int64(len(counts[i])) {
					counts[i][ans]++
				}
			case libsurvey.MultipleChoice:
				for o := range counts[i] {
					if ans&(1<<uint(o)) != 0 {
						counts[i][o]++
					}
				}
			case libsurvey.Rating:
				if ans >= 1 && ans <= libsurvey.RatingBuckets {
					counts[i][ans-1]++
				}
			}
		}
	}

	return int64(len(answers)), counts
}

// WriteAnswersToFile writes one answer vector per line to 'filename'
func WriteAnswersToFile(filename string, answers [][]int64) {
	fileHandle, err := os.Create(filename)

	if err != nil {
		log.Fatal(err)
	}

	writer := bufio.NewWriter(fileHandle)
	defer fileHandle.Close()

	for _, row := range answers {
		if _, err := writer.WriteString(libsurveytools.Int64ArrayToString(row) + "\n"); err != nil {
			log.Fatal(err)
		}
		if err := writer.Flush(); err != nil {
			log.Fatal(err)
		}
	}
}

// ReadAnswersFromFile reads the answer vectors back from 'filename'
func ReadAnswersFromFile(filename string) [][]int64 {
	fileHandle, err := os.Open(filename)
	if err != nil {
		log.Fatal(err)
		return nil
	}
	defer fileHandle.Close()

	answers := make([][]int64, 0)

	scanner := bufio.NewScanner(fileHandle)
	for scanner.Scan() {
		line := scanner.Text()
		if len(line) == 0 {
			continue
		}
		answers = append(answers, libsurveytools.StringToInt64Array(line))
	}

	if err := scanner.Err(); err != nil {
		log.Fatal(err)
		return nil
	}

	return answers
}

// CompareCounts compares two tally sets and returns true if they are the same
// or false otherwise
func CompareCounts(x, y [][]int64) bool {
	return reflect.DeepEqual(x, y)
}
