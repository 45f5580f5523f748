package main

import (
	"strconv"

	"github.com/BurntSushi/toml"
	"go.dedis.ch/onet/v3"
	"go.dedis.ch/onet/v3/log"
	"go.dedis.ch/onet/v3/simul/monitor"

	datasurvey "github.com/MerleBarney/encrypted-survey/data"
	libsurvey "github.com/MerleBarney/encrypted-survey/lib"
	servicessurvey "github.com/MerleBarney/encrypted-survey/services"
)

// Defines the simulation of a full survey round to be run with onet/simul.
func init() {
	onet.SimulationRegister("EncryptedSurvey", NewSurveySimulation)
}

// SurveySimulation holds the state of a survey simulation.
type SurveySimulation struct {
	onet.SimulationBFTree

	NbrQuestions   int //number of questions per survey
	NbrOptions     int //number of options per choice question
	NbrRespondents int //number of respondents submitting answers
}

// NewSurveySimulation constructs a full survey service simulation.
func NewSurveySimulation(config string) (onet.Simulation, error) {
	sim := &SurveySimulation{}
	_, err := toml.Decode(config, sim)
	if err != nil {
		return nil, err
	}
	return sim, nil
}

// Setup creates the tree used for that simulation
func (sim *SurveySimulation) Setup(dir string, hosts []string) (*onet.SimulationConfig, error) {
	sc := &onet.SimulationConfig{}
	sim.CreateRoster(sc, hosts, 2000)
	err := sim.CreateTree(sc)
	if err != nil {
		return nil, err
	}

	log.Lvl1("Setup done")

	return sc, nil
}

// Run starts the simulation. Each round registers a fresh survey, submits one
// answer set per respondent and checks the decrypted tallies against the
// clear-text expectation.
func (sim *SurveySimulation) Run(config *onet.SimulationConfig) error {
	nbrHosts := config.Tree.Size()
	log.Lvl1("Size:", nbrHosts, ", Rounds:", sim.Rounds)

	el := config.Tree.Roster

	// A survey lives on the node its creator registered it with, so every
	// client of a round talks to the same leader.
	leader := el.List[0]

	for round := 0; round < sim.Rounds; round++ {
		log.Lvl1("Starting round", round, el)
		creator := servicessurvey.NewClient(leader)

		def := datasurvey.GenerateSurveyDef(sim.NbrQuestions, sim.NbrOptions)
		answers := datasurvey.GenerateAnswers(def, sim.NbrRespondents)

		surveyID, err := creator.CreateSurvey(def)
		if err != nil {
			log.Fatal("Service did not register the survey.", err)
		}

		log.Lvl1("Sending answer data... ")
		sending := monitor.NewTimeMeasure("SendingAnswers")
		for i := 0; i < sim.NbrRespondents; i++ {
			individual := libsurvey.StartTimer(strconv.Itoa(i) + "_IndividualSendingAnswers")

			respondent := servicessurvey.NewClient(leader)
			if err := respondent.SubmitAnswers(surveyID, answers[i]); err != nil {
				log.Fatal("Service refused an answer set.", err)
			}

			libsurvey.EndTimer(individual)
		}
		sending.Record()

		tally := monitor.NewTimeMeasure("Tally")
		counts, total, err := creator.DecryptCounts(surveyID)
		if err != nil {
			log.Fatal("Service could not output the results.", err)
		}
		tally.Record()

		// Print Output
		log.Lvl1("Service output:", total, "responses")
		for i := range counts {
			log.Lvl1(i, ")", def.Questions[i].Text, "->", counts[i])
		}

		// Test Service Simulation
		expectedTotal, expectedCounts := datasurvey.ExpectedCounts(def, answers)
		if total == expectedTotal && datasurvey.CompareCounts(expectedCounts, counts) {
			log.Lvl1("Result is right! :)")
		} else {
			log.Lvl1("Result is wrong! :(")
		}
	}

	return nil
}
