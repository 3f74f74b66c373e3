package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/ocr"
	"github.com/trezcool/alama/core/user"
)

func (cli *commandLine) getUser(ctx context.Context, uname string) (user.User, error) {
	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{UsernameOrEmail: core.CleanString(uname, true /* lower */)})
	return usr, errors.Wrapf(err, "finding user %q", uname)
}

// importGrades imports the grades found in a transcript: plain text files are parsed as is,
// images and PDFs go through OCR first.
func (cli *commandLine) importGrades(uname, path string) error {
	ctx := context.Background()
	usr, err := cli.getUser(ctx, uname)
	if err != nil {
		return err
	}

	data, err := cli.readFile(path)
	if err != nil {
		return errors.Wrap(err, "reading transcript")
	}

	text := string(data)
	if strings.ToLower(filepath.Ext(path)) != ".txt" {
		if text, err = cli.ocrSvc.ExtractText(ctx, ocr.Upload{Filename: filepath.Base(path), Data: data}); err != nil {
			return errors.Wrap(err, "extracting text")
		}
	}

	res, err := cli.grdSvc.ImportText(ctx, usr.ID, text)
	if err != nil {
		return err
	}
	for _, grd := range res.Created {
		fmt.Fprintf(cli.out, "+ %s: %g\n", grd.Course, grd.Grade)
	}
	for _, grd := range res.Updated {
		fmt.Fprintf(cli.out, "~ %s: %g\n", grd.Course, grd.Grade)
	}
	fmt.Fprintf(cli.out, "%d created, %d updated, %d skipped\n", len(res.Created), len(res.Updated), res.Skipped)
	return nil
}

func (cli *commandLine) exportGrades(uname, out string) (err error) {
	ctx := context.Background()
	usr, err := cli.getUser(ctx, uname)
	if err != nil {
		return err
	}

	if out == "" {
		name := usr.Username
		if name == "" {
			name = usr.ID
		}
		out = "grades-" + name + cli.grdSvc.Exporter().Extension()
	}

	f, err := os.Create(out)
	if err != nil {
		return errors.Wrap(err, "creating export file")
	}
	defer func() {
		if cErr := f.Close(); err == nil {
			err = cErr
		}
	}()

	if err = cli.grdSvc.Export(ctx, usr.ID, f); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "grades exported to %s\n", out)
	return nil
}
