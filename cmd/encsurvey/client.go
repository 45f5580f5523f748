package main

import (
	"encoding/hex"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/urfave/cli"
	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/util/key"
	"go.dedis.ch/onet/v3"
	"go.dedis.ch/onet/v3/app"
	"go.dedis.ch/onet/v3/log"
	"golang.org/x/xerrors"

	"github.com/MerleBarney/encrypted-survey/lib"
	"github.com/MerleBarney/encrypted-survey/lib/tools"
	"github.com/MerleBarney/encrypted-survey/services"
)

// clientKey is the on-disk form of a client key pair.
type clientKey struct {
	Private string `toml:"private"`
	Public  string `toml:"public"`
}

// surveyDefFile is the on-disk form of a survey definition.
type surveyDefFile struct {
	Title     string             `toml:"title"`
	Category  string             `toml:"category"`
	Tags      []string           `toml:"tags"`
	Start     int64              `toml:"start"`
	End       int64              `toml:"end"`
	Questions []questionDefEntry `toml:"questions"`
}

type questionDefEntry struct {
	Text    string   `toml:"text"`
	Type    string   `toml:"type"`
	Options []string `toml:"options"`
}

func openGroupToml(tomlFileName string) (*onet.Roster, error) {
	f, err := os.Open(tomlFileName)
	if err != nil {
		return nil, err
	}
	el, err := app.ReadGroupDescToml(f)
	if err != nil {
		return nil, err
	}
	if len(el.Roster.List) <= 0 {
		return nil, xerrors.Errorf("empty or invalid group file: %v", tomlFileName)
	}
	return el.Roster, nil
}

// loadOrCreateKeys reads the key pair stored at keyFile, minting and storing
// a fresh one on first use so the client's address stays stable.
func loadOrCreateKeys(keyFile string) (kyber.Scalar, kyber.Point, error) {
	if _, err := os.Stat(keyFile); err == nil {
		var stored clientKey
		if _, err := toml.DecodeFile(keyFile, &stored); err != nil {
			return nil, nil, xerrors.Errorf("reading key file: %v", err)
		}
		private, err := libsurvey.DeserializeScalar(stored.Private)
		if err != nil {
			return nil, nil, err
		}
		public, err := libsurvey.DeserializePoint(stored.Public)
		if err != nil {
			return nil, nil, err
		}
		return private, public, nil
	}

	keys := key.NewKeyPair(libsurvey.SuiTe)
	encodedPrivate, err := libsurvey.SerializeScalar(keys.Private)
	if err != nil {
		return nil, nil, err
	}
	encodedPublic, err := libsurvey.SerializePoint(keys.Public)
	if err != nil {
		return nil, nil, err
	}
	f, err := os.OpenFile(keyFile, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return nil, nil, xerrors.Errorf("writing key file: %v", err)
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(clientKey{Private: encodedPrivate, Public: encodedPublic}); err != nil {
		return nil, nil, xerrors.Errorf("encoding key file: %v", err)
	}
	log.Lvl1("New client key pair stored in", keyFile, "- address", libsurvey.AddressFromPoint(keys.Public))
	return keys.Private, keys.Public, nil
}

func loadClient(c *cli.Context) (*servicessurvey.API, error) {
	el, err := openGroupToml(c.String(optionGroupFile))
	if err != nil {
		return nil, err
	}
	private, public, err := loadOrCreateKeys(c.String(optionKeyFile))
	if err != nil {
		return nil, err
	}
	return servicessurvey.NewClientFromKey(el.List[0], private, public), nil
}

func parseQuestionType(s string) (libsurvey.QuestionType, error) {
	switch s {
	case "single":
		return libsurvey.SingleChoice, nil
	case "multiple":
		return libsurvey.MultipleChoice, nil
	case "rating":
		return libsurvey.Rating, nil
	}
	return 0, xerrors.Errorf("unknown question type %q", s)
}

func readSurveyDef(path string) (libsurvey.SurveyDef, error) {
	var file surveyDefFile
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return libsurvey.SurveyDef{}, xerrors.Errorf("reading survey definition: %v", err)
	}

	def := libsurvey.SurveyDef{
		Title:    file.Title,
		Category: file.Category,
		Tags:     file.Tags,
		Start:    file.Start,
		End:      file.End,
	}
	// an omitted window opens now and runs for thirty days
	if def.Start == 0 && def.End == 0 {
		now := time.Now().Unix()
		def.Start = now - 60
		def.End = now + 30*24*3600
	}
	for _, q := range file.Questions {
		qt, err := parseQuestionType(q.Type)
		if err != nil {
			return libsurvey.SurveyDef{}, err
		}
		def.Questions = append(def.Questions, libsurvey.Question{Text: q.Text, Type: qt, Options: q.Options})
	}
	return def, nil
}

// BEGIN CLIENT ----------

func createSurvey(c *cli.Context) error {
	defFile := c.String(optionDefinition)
	if defFile == "" {
		return xerrors.New("missing survey definition file, see --definition")
	}
	def, err := readSurveyDef(defFile)
	if err != nil {
		return err
	}
	client, err := loadClient(c)
	if err != nil {
		return err
	}
	id, err := client.CreateSurvey(def)
	if err != nil {
		return err
	}
	log.Lvl1("Created survey", id, "-", def.Title)
	return nil
}

func setSurveyStatus(c *cli.Context) error {
	client, err := loadClient(c)
	if err != nil {
		return err
	}
	id := c.Uint64(optionSurvey)
	active := c.Bool(optionActive)
	if err := client.SetStatus(id, active); err != nil {
		return err
	}
	log.Lvl1("Survey", id, "active:", active)
	return nil
}

func submitAnswers(c *cli.Context) error {
	answers, err := libsurveytools.StringToInt64Array(c.String(optionAnswers))
	if err != nil {
		return xerrors.Errorf("parsing answers: %v", err)
	}
	client, err := loadClient(c)
	if err != nil {
		return err
	}
	id := c.Uint64(optionSurvey)
	if err := client.SubmitAnswers(id, answers); err != nil {
		return err
	}
	log.Lvl1("Submitted", len(answers), "answers to survey", id)
	return nil
}

func grantPermission(c *cli.Context) error {
	viewer := libsurvey.Address(c.String(optionViewer))
	if viewer == "" {
		return xerrors.New("missing viewer address, see --viewer")
	}
	client, err := loadClient(c)
	if err != nil {
		return err
	}
	canView := c.Bool(optionCanView)
	canExport := c.Bool(optionCanExport)
	canManage := c.Bool(optionCanManage)
	if err := client.Grant(c.Uint64(optionSurvey), viewer, canView, canExport, canManage); err != nil {
		return err
	}
	log.Lvl1("Granted", viewer, "view:", canView, "export:", canExport, "manage:", canManage)
	return nil
}

func revokePermission(c *cli.Context) error {
	viewer := libsurvey.Address(c.String(optionViewer))
	if viewer == "" {
		return xerrors.New("missing viewer address, see --viewer")
	}
	client, err := loadClient(c)
	if err != nil {
		return err
	}
	if err := client.Revoke(c.Uint64(optionSurvey), viewer); err != nil {
		return err
	}
	log.Lvl1("Revoked all capabilities of", viewer)
	return nil
}

func authorizeDecryption(c *cli.Context) error {
	client, err := loadClient(c)
	if err != nil {
		return err
	}
	handles, err := client.Authorize(c.Uint64(optionSurvey), c.Bool(optionAll))
	if err != nil {
		return err
	}
	log.Lvl1("Authorized on", len(handles), "handle(s):")
	for _, h := range handles {
		log.Lvl1(hex.EncodeToString(h))
	}
	return nil
}

func surveyInfo(c *cli.Context) error {
	client, err := loadClient(c)
	if err != nil {
		return err
	}
	id := c.Uint64(optionSurvey)
	info, err := client.SurveyInfo(id)
	if err != nil {
		return err
	}
	tags, err := client.SurveyTags(id)
	if err != nil {
		return err
	}

	log.Lvl1("Survey", info.ID, "-", info.Title, "("+info.Category+")")
	log.Lvl1("Creator:", info.Creator)
	log.Lvl1("Active:", info.Active, "- window", time.Unix(info.Start, 0).UTC(), "to", time.Unix(info.End, 0).UTC())
	log.Lvl1("Tags:", tags)
	for q := int64(0); q < info.QuestionCount; q++ {
		question, err := client.QuestionInfo(id, q)
		if err != nil {
			return err
		}
		log.Lvl1(q, ")", question.Text, "["+question.Type.String()+"]", question.Options)
	}
	return nil
}

func surveyResults(c *cli.Context) error {
	client, err := loadClient(c)
	if err != nil {
		return err
	}
	id := c.Uint64(optionSurvey)
	counts, total, err := client.DecryptCounts(id)
	if err != nil {
		return err
	}

	log.Lvl1("Survey", id, "-", total, "response(s)")
	for q, row := range counts {
		question, err := client.QuestionInfo(id, int64(q))
		if err != nil {
			return err
		}
		log.Lvl1(q, ")", question.Text, "->", row)
	}
	return nil
}

func exportResults(c *cli.Context) error {
	client, err := loadClient(c)
	if err != nil {
		return err
	}
	rows, total, err := client.Export(c.Uint64(optionSurvey), c.String(optionPredicate), c.Bool(optionNoise))
	if err != nil {
		return err
	}

	log.Lvl1("Total responses:", total)
	for i, row := range rows {
		log.Lvl1(i, ")", row.Question)
		for o, label := range row.Labels {
			log.Lvl1("   ", label, "->", row.Counts[o])
		}
	}
	return nil
}

func surveyEvents(c *cli.Context) error {
	client, err := loadClient(c)
	if err != nil {
		return err
	}
	events, err := client.Events(c.Uint64(optionSurvey), c.Uint64(optionFrom))
	if err != nil {
		return err
	}
	for _, ev := range events {
		log.Lvl1(ev.Seq, time.Unix(ev.When, 0).UTC(), ev.Kind.String(), "actor:", ev.Actor)
	}
	return nil
}

func showAddress(c *cli.Context) error {
	_, public, err := loadOrCreateKeys(c.String(optionKeyFile))
	if err != nil {
		return err
	}
	log.Lvl1("Client address:", libsurvey.AddressFromPoint(public))
	return nil
}

// CLIENT END ------------
