package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"syscall"

	"github.com/jmoiron/sqlx"
	"golang.org/x/term"

	"github.com/trezcool/alama/core/grade"
	"github.com/trezcool/alama/core/ocr"
	"github.com/trezcool/alama/core/user"
	"github.com/trezcool/alama/storage/database"
)

var (
	readPasswordFunc = term.ReadPassword // mockable
	migrateFunc      = database.Migrate  // mockable

	errHelp        = errors.New("help provided")
	errNoDatabase  = errors.New("migrations require the postgres engine")
	errPwdMismatch = errors.New("passwords do not match")
)

type commandLine struct {
	db       *sqlx.DB // nil with the in-memory engine
	usrRepo  user.Repository
	grdSvc   grade.Service
	ocrSvc   ocr.Service
	out      io.Writer
	readFile func(name string) ([]byte, error)
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  adduser [-name NAME] -username USERNAME|-email EMAIL - create (or reactivate) a user")
	fmt.Fprintln(cli.out, "  resetpassword -username USERNAME|EMAIL - reset user's password")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS...] - run a goose command: up, up-by-one, up-to, down, down-to, redo, reset, status, version")
	fmt.Fprintln(cli.out, "  importgrades -username USERNAME|EMAIL -file FILE - import grades from a transcript (.txt, image or pdf)")
	fmt.Fprintln(cli.out, "  exportgrades -username USERNAME|EMAIL [-out FILE] - export grades to a spreadsheet")
}

func (cli *commandLine) promptPassword(prompt string) (string, error) {
	fmt.Fprint(cli.out, prompt)
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(cli.out)
	return string(pwd), err
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ContinueOnError)
	addUserName := addUserCmd.String("name", "", "The user's full name.")
	addUserUname := addUserCmd.String("username", "", "The user's username. The password will be prompted next.")
	addUserEmail := addUserCmd.String("email", "", "The user's email.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ContinueOnError)
	resetPasswordUname := resetPasswordCmd.String("username", "", "The user's username or email. The password will be prompted next.")

	importCmd := flag.NewFlagSet("importgrades", flag.ContinueOnError)
	importUname := importCmd.String("username", "", "The grades owner's username or email.")
	importFile := importCmd.String("file", "", "The transcript: plain text (.txt), image or pdf.")

	exportCmd := flag.NewFlagSet("exportgrades", flag.ContinueOnError)
	exportUname := exportCmd.String("username", "", "The grades owner's username or email.")
	exportOut := exportCmd.String("out", "", "The output file. Defaults to grades-USERNAME with the exporter's extension.")

	for _, fs := range []*flag.FlagSet{addUserCmd, resetPasswordCmd, importCmd, exportCmd} {
		fs.SetOutput(cli.out)
	}

	switch args[1] {
	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *addUserUname == "" && *addUserEmail == "" {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword("Enter password:")
		if err != nil {
			return err
		}
		if pwd == "" {
			addUserCmd.Usage()
			return errHelp
		}
		confirm, err := cli.promptPassword("Confirm password:")
		if err != nil {
			return err
		}
		if confirm != pwd {
			return errPwdMismatch
		}
		return cli.addUser(*addUserName, *addUserUname, *addUserEmail, pwd)

	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *resetPasswordUname == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword("Enter password:")
		if err != nil {
			return err
		}
		if pwd == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		return cli.resetPassword(*resetPasswordUname, pwd)

	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "importgrades":
		if err := importCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *importUname == "" || *importFile == "" {
			importCmd.Usage()
			return errHelp
		}
		return cli.importGrades(*importUname, *importFile)

	case "exportgrades":
		if err := exportCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *exportUname == "" {
			exportCmd.Usage()
			return errHelp
		}
		return cli.exportGrades(*exportUname, *exportOut)

	default:
		cli.printUsage()
		return errHelp
	}
}

func newCommandLine(db *sqlx.DB, usrRepo user.Repository, grdSvc grade.Service, ocrSvc ocr.Service) *commandLine {
	return &commandLine{
		db:       db,
		usrRepo:  usrRepo,
		grdSvc:   grdSvc,
		ocrSvc:   ocrSvc,
		out:      os.Stdout,
		readFile: os.ReadFile,
	}
}
