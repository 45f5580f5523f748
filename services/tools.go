package servicessurvey

import (
	"math/rand"
	"strconv"

	"github.com/Knetic/govaluate"
	"golang.org/x/xerrors"

	"github.com/MerleBarney/encrypted-survey/lib"
)

const (
	// exportNoiseScale is the b parameter of the Laplace distribution noise
	// values are drawn from.
	exportNoiseScale = 1.0
	// exportNoiseQuanta controls how finely the distribution is sampled.
	exportNoiseQuanta = 0.01
	// exportNoisePool is the number of precomputed noise values to draw from.
	exportNoisePool = 1000
)

// buildResults decrypts the aggregate state of one survey into result rows.
// Counter slots never touched by a submission decrypt to zero.
func (s *Service) buildResults(id uint64) ([]ResultRow, int64, error) {
	questions, err := s.registry.Questions(id)
	if err != nil {
		return nil, 0, err
	}
	rows := make([]ResultRow, len(questions))
	for q, question := range questions {
		handles, err := s.registry.QuestionOptionCounts(id, q)
		if err != nil {
			return nil, 0, err
		}
		counts := make([]int64, len(handles))
		for o, handle := range handles {
			counts[o], err = s.revealHandle(handle)
			if err != nil {
				return nil, 0, err
			}
		}
		rows[q] = ResultRow{
			Question: question.Text,
			Type:     question.Type,
			Labels:   resultLabels(question),
			Counts:   counts,
		}
	}
	totalHandle, err := s.registry.TotalResponses(id)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.revealHandle(totalHandle)
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func (s *Service) revealHandle(h libsurvey.Handle) (int64, error) {
	if h.IsZero() {
		return 0, nil
	}
	return s.engine.Reveal(h)
}

func resultLabels(q libsurvey.Question) []string {
	if q.Type == libsurvey.Rating {
		labels := make([]string, libsurvey.RatingBuckets)
		for i := range labels {
			labels[i] = strconv.Itoa(i + 1)
		}
		return labels
	}
	labels := make([]string, len(q.Options))
	copy(labels, q.Options)
	return labels
}

// Support Functions
//______________________________________________________________________________________________________________________

// FilterRows evaluates the predicate against each row and keeps the rows it
// accepts. Counts are bound as v0, v1, ... and the response total as total.
// An empty predicate keeps everything.
func FilterRows(rows []ResultRow, total int64, predicate string) ([]ResultRow, error) {
	if predicate == "" {
		return rows, nil
	}
	expression, err := govaluate.NewEvaluableExpression(predicate)
	if err != nil {
		return nil, xerrors.Errorf("parsing predicate: %v", err)
	}
	var filtered []ResultRow
	for _, row := range rows {
		parameters := make(map[string]interface{})
		for i, c := range row.Counts {
			parameters["v"+strconv.Itoa(i)] = float64(c)
		}
		parameters["total"] = float64(total)
		keep, err := expression.Evaluate(parameters)
		if err != nil {
			return nil, xerrors.Errorf("evaluating predicate: %v", err)
		}
		b, ok := keep.(bool)
		if !ok {
			return nil, xerrors.New("predicate did not evaluate to a boolean")
		}
		if b {
			filtered = append(filtered, row)
		}
	}
	return filtered, nil
}

// NoiseRows perturbs every count, and the total, with values drawn from a
// precomputed Laplace noise pool. Counts never go below zero.
func NoiseRows(rows []ResultRow, total int64) ([]ResultRow, int64) {
	pool := libsurvey.GenerateNoiseValues(exportNoisePool, 0, exportNoiseScale, exportNoiseQuanta)
	draw := func(v int64) int64 {
		noised := v + int64(pool[rand.Intn(len(pool))])
		if noised < 0 {
			return 0
		}
		return noised
	}
	noisy := make([]ResultRow, len(rows))
	for i, row := range rows {
		counts := make([]int64, len(row.Counts))
		for o, c := range row.Counts {
			counts[o] = draw(c)
		}
		noisy[i] = ResultRow{
			Question: row.Question,
			Type:     row.Type,
			Labels:   row.Labels,
			Counts:   counts,
		}
	}
	return noisy, draw(total)
}
