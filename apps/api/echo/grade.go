package echoapi

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/grade"
	"github.com/trezcool/alama/core/ocr"
	"github.com/trezcool/alama/core/user"
)

const (
	contextObjectKey = "object"
	uploadField      = "file"
)

var errGrdNotFoundInCtx = errors.New("grade object not found in echo.Context")

type gradeApi struct {
	usrSvc   user.Service
	svc      grade.Service
	ocrSvc   ocr.Service
	validate *validator.Validate
}

func registerGradeAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	usrSvc user.Service,
	svc grade.Service,
	ocrSvc ocr.Service,
	validate *validator.Validate,
) {
	api := gradeApi{
		usrSvc:   usrSvc,
		svc:      svc,
		ocrSvc:   ocrSvc,
		validate: validate,
	}

	gg := g.Group("/grades", jwt, activeUserMiddleware(usrSvc))
	gg.GET("", api.query)
	gg.POST("", api.create)
	gg.POST("/parse", api.parse)
	gg.POST("/import-text", api.importText)
	gg.POST("/import", api.importFile)
	gg.GET("/export", api.export)

	// detail endpoints
	dg := gg.Group("/:id", gradeObjectMiddleware(usrSvc, svc))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.DELETE("", api.destroy)
}

// Handlers

func (api *gradeApi) query(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	filter := new(grade.QueryFilter)
	if err = ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []grade.Grade{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	grades, err := api.svc.Query(ctx.Request().Context(), usr.ID, filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying grades")
	}
	return ctx.JSON(http.StatusOK, grades)
}

func (api *gradeApi) create(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data grade.NewGrade
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewGrade")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	grd, err := api.svc.Create(ctx.Request().Context(), usr.ID, data)
	if err != nil {
		return errors.Wrap(err, "creating grade")
	}
	return ctx.JSON(http.StatusCreated, grd)
}

func (api *gradeApi) parse(ctx echo.Context) error {
	var data grade.ParseRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ParseRequest")
	}
	return ctx.JSON(http.StatusOK, grade.ParseGrades(data.Text))
}

func (api *gradeApi) importText(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data grade.ImportTextRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ImportTextRequest")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	res, err := api.svc.ImportText(ctx.Request().Context(), usr.ID, data.Text)
	if err != nil {
		return errors.Wrap(err, "importing grades")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *gradeApi) importFile(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	fh, err := ctx.FormFile(uploadField)
	if err != nil {
		return core.NewValidationError(err, core.FieldError{Field: uploadField, Error: "a transcript file is required"})
	}
	data, err := readUpload(fh)
	if err != nil {
		return errors.Wrap(err, "reading upload")
	}

	text, err := api.ocrSvc.ExtractText(ctx.Request().Context(), ocr.Upload{Filename: fh.Filename, Data: data})
	if err != nil {
		switch cause := errors.Cause(err); cause {
		case ocr.ErrEmptyUpload, ocr.ErrUnsupportedFormat:
			return core.NewValidationError(cause, core.FieldError{Field: uploadField, Error: cause.Error()})
		}
		return errors.Wrap(err, "extracting text")
	}

	res, err := api.svc.ImportText(ctx.Request().Context(), usr.ID, text)
	if err != nil {
		return errors.Wrap(err, "importing grades")
	}
	return ctx.JSON(http.StatusOK, res)
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return io.ReadAll(f)
}

func (api *gradeApi) export(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var buf bytes.Buffer
	if err = api.svc.Export(ctx.Request().Context(), usr.ID, &buf); err != nil {
		return errors.Wrap(err, "exporting grades")
	}

	exporter := api.svc.Exporter()
	ctx.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="grades`+exporter.Extension()+`"`)
	return ctx.Blob(http.StatusOK, exporter.ContentType(), buf.Bytes())
}

func (api *gradeApi) retrieve(ctx echo.Context) error {
	grd, ok := ctx.Get(contextObjectKey).(grade.Grade)
	if !ok {
		return errors.Wrap(errGrdNotFoundInCtx, "retrieving object from context")
	}
	return ctx.JSON(http.StatusOK, grd)
}

func (api *gradeApi) update(ctx echo.Context) error {
	grd, ok := ctx.Get(contextObjectKey).(grade.Grade)
	if !ok {
		return errors.Wrap(errGrdNotFoundInCtx, "retrieving object from context")
	}

	var data grade.UpdateGrade
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateGrade")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	grd, err := api.svc.Update(ctx.Request().Context(), grd, data)
	if err != nil {
		return errors.Wrap(err, "updating grade")
	}
	return ctx.JSON(http.StatusOK, grd)
}

func (api *gradeApi) destroy(ctx echo.Context) error {
	grd, ok := ctx.Get(contextObjectKey).(grade.Grade)
	if !ok {
		return errors.Wrap(errGrdNotFoundInCtx, "retrieving object from context")
	}
	if _, err := api.svc.Delete(ctx.Request().Context(), grd.OwnerID, grd.ID); err != nil {
		return errors.Wrap(err, "deleting grade")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// gradeObjectMiddleware loads the context user's grade identified by the "id" path param.
func gradeObjectMiddleware(usrSvc user.Service, svc grade.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := getContextUser(ctx, usrSvc)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}

			grd, err := svc.Get(ctx.Request().Context(), usr.ID, ctx.Param("id"))
			if err != nil {
				if errors.Cause(err) == grade.ErrNotFound {
					return errHttpNotFound
				}
				return errors.Wrap(err, "finding grade by ID")
			}
			ctx.Set(contextObjectKey, grd)
			return next(ctx)
		}
	}
}
