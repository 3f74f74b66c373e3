package main

import (
	"context"
	"log"
	"os"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/grade"
	"github.com/trezcool/alama/core/ocr"
	"github.com/trezcool/alama/core/user"
	exportsvc "github.com/trezcool/alama/services/export"
	logsvc "github.com/trezcool/alama/services/logger"
	ocrsvc "github.com/trezcool/alama/services/ocr"
	"github.com/trezcool/alama/storage/database"
	inmemdb "github.com/trezcool/alama/storage/database/inmem"
	sqlxrepos "github.com/trezcool/alama/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)

	var (
		db      *sqlx.DB
		usrRepo user.Repository
		grdRepo grade.Repository
	)
	if conf.Database.Engine == core.DBEngineInMem {
		mem := inmemdb.NewDB()
		usrRepo, grdRepo = inmemdb.NewUserRepository(mem), inmemdb.NewGradeRepository(mem)
	} else {
		var err error
		ctx := context.Background()
		if err = database.CreateIfNotExist(ctx, conf); err != nil {
			logger.Fatal("setting up database", err)
		}
		if db, err = database.Open(ctx, conf); err != nil {
			logger.Fatal("opening database", err)
		}
		usrRepo, grdRepo = sqlxrepos.NewUserRepository(db), sqlxrepos.NewGradeRepository(db)
	}

	cli := newCommandLine(
		db,
		usrRepo,
		grade.NewService(grdRepo, exportsvc.NewExcelExporter()),
		ocr.NewService(
			ocrsvc.NewTesseractEngine(),
			ocrsvc.NewFitzRenderer(),
			ocr.Options{Languages: conf.OCR.Languages, DPI: conf.OCR.DPI},
		),
	)
	err := cli.run(os.Args)

	if db != nil {
		if cErr := db.Close(); cErr != nil {
			logger.Error("closing database", cErr)
		}
	}
	logger.Close()

	if err != nil {
		if err != errHelp {
			logger.Error("command failed", err)
		}
		os.Exit(1)
	}
}
