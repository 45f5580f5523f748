package main

import (
	"os"

	"github.com/urfave/cli"
	"go.dedis.ch/onet/v3/app"
	"go.dedis.ch/onet/v3/log"
	"golang.org/x/xerrors"

	"github.com/MerleBarney/encrypted-survey/lib"
)

const (
	// BinaryName is the name of the encrypted survey app
	BinaryName = "encsurvey"

	// Version of the binary
	Version = "1.00"

	// DefaultGroupFile is the name of the default file to lookup for group
	// definition
	DefaultGroupFile = "group.toml"

	// DefaultKeyFile is the name of the default file holding the client key
	// pair
	DefaultKeyFile = "survey-key.toml"

	optionConfig      = "config"
	optionConfigShort = "c"

	optionGroupFile      = "file"
	optionGroupFileShort = "f"

	optionKeyFile      = "key"
	optionKeyFileShort = "k"

	// survey flags

	optionDefinition      = "definition"
	optionDefinitionShort = "d"

	optionSurvey      = "survey"
	optionSurveyShort = "s"

	optionActive = "active"

	optionAnswers      = "answers"
	optionAnswersShort = "a"

	optionViewer = "viewer"

	optionCanView   = "view"
	optionCanExport = "export"
	optionCanManage = "manage"

	optionAll = "all"

	optionPredicate      = "predicate"
	optionPredicateShort = "p"

	optionNoise = "noise"

	optionFrom = "from"
)

// withClientFlags prepends the group and key file flags every client command
// needs.
func withClientFlags(flags ...cli.Flag) []cli.Flag {
	base := []cli.Flag{
		cli.StringFlag{
			Name:  optionGroupFile + ", " + optionGroupFileShort,
			Value: DefaultGroupFile,
			Usage: "Survey group definition file",
		},
		cli.StringFlag{
			Name:  optionKeyFile + ", " + optionKeyFileShort,
			Value: DefaultKeyFile,
			Usage: "Client key file, created on first use",
		},
	}
	return append(base, flags...)
}

func main() {
	cliApp := cli.NewApp()
	cliApp.Name = BinaryName
	cliApp.Usage = "Run and query surveys whose answers stay encrypted"
	cliApp.Version = Version

	binaryFlags := []cli.Flag{
		cli.IntFlag{
			Name:  "debug, d",
			Value: 0,
			Usage: "debug-level: 1 for terse, 5 for maximal",
		},
	}

	surveyFlag := cli.Uint64Flag{
		Name:  optionSurvey + ", " + optionSurveyShort,
		Usage: "Survey identifier",
	}
	viewerFlag := cli.StringFlag{
		Name:  optionViewer,
		Usage: "Address of the affected viewer",
	}

	serverFlags := []cli.Flag{
		cli.StringFlag{
			Name:  optionConfig + ", " + optionConfigShort,
			Usage: "Configuration file of the server",
		},
	}

	cliApp.Commands = []cli.Command{
		// BEGIN CLIENT ----------
		{
			Name:    "create",
			Aliases: []string{"c"},
			Usage:   "Create a survey from a definition file",
			Action:  createSurvey,
			Flags: withClientFlags(cli.StringFlag{
				Name:  optionDefinition + ", " + optionDefinitionShort,
				Usage: "Survey definition file (toml)",
			}),
		},
		{
			Name:   "status",
			Usage:  "Open or close a survey for responses",
			Action: setSurveyStatus,
			Flags: withClientFlags(surveyFlag, cli.BoolFlag{
				Name:  optionActive,
				Usage: "Accept responses",
			}),
		},
		{
			Name:    "submit",
			Aliases: []string{"sb"},
			Usage:   "Submit encrypted answers, one per question",
			Action:  submitAnswers,
			Flags: withClientFlags(surveyFlag, cli.StringFlag{
				Name:  optionAnswers + ", " + optionAnswersShort,
				Usage: "Space separated answers -> \"1 5 0\"",
			}),
		},
		{
			Name:   "grant",
			Usage:  "Overwrite a viewer's capabilities on a survey",
			Action: grantPermission,
			Flags: withClientFlags(surveyFlag, viewerFlag,
				cli.BoolFlag{Name: optionCanView, Usage: "Allow viewing aggregates"},
				cli.BoolFlag{Name: optionCanExport, Usage: "Allow exporting results"},
				cli.BoolFlag{Name: optionCanManage, Usage: "Allow toggling the survey status"},
			),
		},
		{
			Name:   "revoke",
			Usage:  "Clear a viewer's capabilities on a survey",
			Action: revokePermission,
			Flags:  withClientFlags(surveyFlag, viewerFlag),
		},
		{
			Name:   "authorize",
			Usage:  "Obtain decryption grants on the survey results",
			Action: authorizeDecryption,
			Flags: withClientFlags(surveyFlag, cli.BoolFlag{
				Name:  optionAll,
				Usage: "Cover every counter, not just the response total",
			}),
		},
		{
			Name:    "info",
			Aliases: []string{"i"},
			Usage:   "Print a survey's metadata and questions",
			Action:  surveyInfo,
			Flags:   withClientFlags(surveyFlag),
		},
		{
			Name:    "results",
			Aliases: []string{"r"},
			Usage:   "Decrypt and print the per-option counts",
			Action:  surveyResults,
			Flags:   withClientFlags(surveyFlag),
		},
		{
			Name:   "export",
			Usage:  "Export cleartext aggregates, optionally filtered and noised",
			Action: exportResults,
			Flags: withClientFlags(surveyFlag,
				cli.StringFlag{
					Name:  optionPredicate + ", " + optionPredicateShort,
					Usage: "Row filter over counts -> \"v0 + v1 > total\"",
				},
				cli.BoolFlag{Name: optionNoise, Usage: "Perturb counts with Laplace noise"},
			),
		},
		{
			Name:   "events",
			Usage:  "Print the audit events of a survey",
			Action: surveyEvents,
			Flags: withClientFlags(surveyFlag, cli.Uint64Flag{
				Name:  optionFrom,
				Usage: "Start at this global sequence number",
			}),
		},
		{
			Name:   "address",
			Usage:  "Print the address of the local key pair",
			Action: showAddress,
			Flags:  withClientFlags(),
		},
		// CLIENT END ------------

		// BEGIN SERVER --------
		{
			Name:  "server",
			Usage: "Start encrypted survey server",
			Action: func(c *cli.Context) error {
				if err := runServer(c); err != nil {
					return xerrors.Errorf("error during runServer(): %v", err)
				}
				return nil
			},
			Flags: serverFlags,
			Subcommands: []cli.Command{
				{
					Name:    "setup",
					Aliases: []string{"s"},
					Usage:   "Setup server configuration (interactive)",
					Action: func(c *cli.Context) error {
						if c.String(optionConfig) != "" {
							return xerrors.New("[-] Configuration file option cannot be used for the 'setup' command")
						}
						if c.GlobalIsSet("debug") {
							return xerrors.New("[-] Debug option cannot be used for the 'setup' command")
						}
						app.InteractiveConfig(libsurvey.SuiTe, BinaryName)
						return nil
					},
				},
			},
		},
		// SERVER END ----------
	}

	cliApp.Flags = binaryFlags
	cliApp.Before = func(c *cli.Context) error {
		log.SetDebugVisible(c.GlobalInt("debug"))
		return nil
	}
	err := cliApp.Run(os.Args)
	log.ErrFatal(err)
}
