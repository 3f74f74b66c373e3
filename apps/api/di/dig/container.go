package dig_container

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/alama/apps/api/echo"
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

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

type repositories struct {
	dig.Out
	Users  user.Repository
	Grades grade.Repository
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags)
	return logsvc.NewRollbarLogger(stdLogger, conf)
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	return logsvc.NewRollbarLogger(stdLogger, conf)
}

// newDB returns a nil *sqlx.DB when the in-memory engine is configured.
func newDB(conf *core.Config, loggerParam DBLoggerParam) *sqlx.DB {
	if conf.Database.Engine == core.DBEngineInMem {
		loggerParam.Logger.Warn("using the in-memory database: data will be lost on shutdown")
		return nil
	}

	setUp := func(ctx context.Context) (*sqlx.DB, error) {
		if err := database.CreateIfNotExist(ctx, conf); err != nil {
			return nil, err
		}
		db, err := database.Open(ctx, conf)
		if err != nil {
			return nil, err
		}
		if err = database.Migrate(db, "up"); err != nil {
			_ = db.Close()
			return nil, err
		}
		return db, nil
	}

	db, err := setUp(context.Background())
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return db
}

func newRepositories(conf *core.Config, db *sqlx.DB) repositories {
	if conf.Database.Engine == core.DBEngineInMem {
		mem := inmemdb.NewDB()
		return repositories{
			Users:  inmemdb.NewUserRepository(mem),
			Grades: inmemdb.NewGradeRepository(mem),
		}
	}
	return repositories{
		Users:  sqlxrepos.NewUserRepository(db),
		Grades: sqlxrepos.NewGradeRepository(db),
	}
}

func newValidator(translator ut.Translator) *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	return validate
}

func newOCRService(conf *core.Config) ocr.Service {
	return ocr.NewService(
		ocrsvc.NewTesseractEngine(),
		ocrsvc.NewFitzRenderer(),
		ocr.Options{Languages: conf.OCR.Languages, DPI: conf.OCR.DPI},
	)
}

type serverParams struct {
	dig.In
	Conf       *core.Config
	Logger     core.Logger
	Validate   *validator.Validate
	Translator ut.Translator
	UserSvc    user.Service
	GradeSvc   grade.Service
	OCRSvc     ocr.Service
}

func newServer(p serverParams) *echoapi.Server {
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	return echoapi.NewServer(p.Conf, shutdown, &echoapi.Deps{
		Logger:     p.Logger,
		Validate:   p.Validate,
		Translator: p.Translator,
		UserSvc:    p.UserSvc,
		GradeSvc:   p.GradeSvc,
		OCRSvc:     p.OCRSvc,
	})
}

// New returns a new dependency injection dig.Container
func New(newConfig func() *core.Config) *dig.Container {
	c := dig.New()

	must(c.Provide(newConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDB))
	must(c.Provide(newRepositories))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(newValidator))
	must(c.Provide(exportsvc.NewExcelExporter, dig.As(new(grade.Exporter))))
	must(c.Provide(user.NewService))
	must(c.Provide(grade.NewService))
	must(c.Provide(newOCRService))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
