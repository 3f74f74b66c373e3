package grade

import (
	"context"
	"io"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/alama/core"
)

var (
	// errors
	ErrNotFound     = errors.New("grade not found")
	ErrCourseExists = errors.New("a grade for this course already exists")
)

type (
	Repository interface {
		CreateGrade(ctx context.Context, grd Grade) (Grade, error)
		// GetGrade returns ErrNotFound if no Grade owned by filter.OwnerID matches.
		GetGrade(ctx context.Context, filter GetFilter) (Grade, error)
		// QueryGrades does a case-insensitive match of filter.Search on Grade.Course.
		QueryGrades(ctx context.Context, ownerID string, filter *QueryFilter, ordering []core.DBOrdering) ([]Grade, error)
		UpdateGrade(ctx context.Context, grd Grade) (Grade, error)
		DeleteGrades(ctx context.Context, ownerID string, ids ...string) (int, error)
		// WithinTx runs fn with a Repository bound to a single transaction.
		WithinTx(ctx context.Context, fn func(repo Repository) error) error
	}

	// Exporter writes grades to a document (spreadsheet, etc.)
	Exporter interface {
		ContentType() string
		Extension() string
		Export(w io.Writer, grades []Grade) error
	}

	Service interface {
		Create(ctx context.Context, ownerID string, ng NewGrade) (Grade, error)
		Import(ctx context.Context, ownerID string, records []GradeRecord) (ImportResult, error)
		ImportText(ctx context.Context, ownerID, text string) (ImportResult, error)
		Query(ctx context.Context, ownerID string, filter *QueryFilter, ordering []core.DBOrdering) ([]Grade, error)
		Get(ctx context.Context, ownerID, id string) (Grade, error)
		Update(ctx context.Context, grd Grade, ug UpdateGrade) (Grade, error)
		Delete(ctx context.Context, ownerID string, ids ...string) (int, error)
		Export(ctx context.Context, ownerID string, w io.Writer) error
		Exporter() Exporter
	}

	service struct {
		repo     Repository
		exporter Exporter
		nowFunc  func() time.Time
	}
)

var _ Service = (*service)(nil) // interface compliance check

func NewService(repo Repository, exporter Exporter) Service {
	return &service{
		repo:     repo,
		exporter: exporter,
		nowFunc:  time.Now,
	}
}

func (svc *service) now() time.Time {
	return svc.nowFunc().UTC()
}

// upsert updates in place the owner's grade with the same course key, or creates it.
// A grade created concurrently between the lookup and the insert is merged into.
func (svc *service) upsert(ctx context.Context, repo Repository, ownerID, course string, value float64) (Grade, bool, error) {
	now := svc.now()
	filter := GetFilter{OwnerID: ownerID, CourseKey: CourseKey(course)}

	grd, err := repo.GetGrade(ctx, filter)
	if errors.Cause(err) == ErrNotFound {
		grd, err = repo.CreateGrade(ctx, Grade{
			OwnerID:   ownerID,
			Course:    course,
			Grade:     value,
			CreatedAt: now,
			UpdatedAt: now,
		})
		switch errors.Cause(err) {
		case nil:
			return grd, true, nil
		case ErrCourseExists:
			grd, err = repo.GetGrade(ctx, filter)
		default:
			return Grade{}, false, errors.Wrap(err, "creating grade")
		}
	}
	if err != nil {
		return Grade{}, false, errors.Wrap(err, "finding grade by course")
	}

	grd.Grade = value
	grd.UpdatedAt = now
	if grd, err = repo.UpdateGrade(ctx, grd); err != nil {
		return Grade{}, false, errors.Wrap(err, "updating grade")
	}
	return grd, false, nil
}

func (svc *service) Create(ctx context.Context, ownerID string, ng NewGrade) (Grade, error) {
	grd, _, err := svc.upsert(ctx, svc.repo, ownerID, ng.Course, ng.Grade)
	return grd, err
}

func (svc *service) Import(ctx context.Context, ownerID string, records []GradeRecord) (ImportResult, error) {
	res := ImportResult{Created: []Grade{}, Updated: []Grade{}}
	err := svc.repo.WithinTx(ctx, func(repo Repository) error {
		for _, rec := range records {
			if !rec.Valid() {
				res.Skipped++
				continue
			}
			grd, created, err := svc.upsert(ctx, repo, ownerID, core.CleanString(rec.Course), rec.Grade)
			if err != nil {
				return err
			}
			if created {
				res.Created = append(res.Created, grd)
			} else if !replace(res.Created, grd) { // created earlier by this same import
				if !replace(res.Updated, grd) {
					res.Updated = append(res.Updated, grd)
				}
			}
		}
		return nil
	})
	if err != nil {
		return ImportResult{}, errors.Wrap(err, "importing grades")
	}
	return res, nil
}

func (svc *service) ImportText(ctx context.Context, ownerID, text string) (ImportResult, error) {
	return svc.Import(ctx, ownerID, ParseGrades(text))
}

func (svc *service) Query(ctx context.Context, ownerID string, filter *QueryFilter, ordering []core.DBOrdering) ([]Grade, error) {
	return svc.repo.QueryGrades(ctx, ownerID, filter, core.CleanOrdering(ordering, OrderingFields...))
}

func (svc *service) Get(ctx context.Context, ownerID, id string) (Grade, error) {
	if id == "" {
		return Grade{}, ErrNotFound
	}
	return svc.repo.GetGrade(ctx, GetFilter{ID: id, OwnerID: ownerID})
}

func (svc *service) Update(ctx context.Context, grd Grade, ug UpdateGrade) (Grade, error) {
	var updated Grade
	err := svc.repo.WithinTx(ctx, func(repo Repository) error {
		if ug.Course != "" && CourseKey(ug.Course) != grd.CourseKey() {
			_, err := repo.GetGrade(ctx, GetFilter{OwnerID: grd.OwnerID, CourseKey: CourseKey(ug.Course)})
			if err == nil {
				return core.NewValidationError(ErrCourseExists, core.FieldError{Field: "course", Error: ErrCourseExists.Error()})
			} else if errors.Cause(err) != ErrNotFound {
				return errors.Wrap(err, "checking course uniqueness")
			}
		}
		if ug.Course != "" {
			grd.Course = ug.Course
		}
		if ug.Grade != nil {
			grd.Grade = *ug.Grade
		}
		grd.UpdatedAt = svc.now()

		var err error
		updated, err = repo.UpdateGrade(ctx, grd)
		return err
	})
	return updated, err
}

func (svc *service) Delete(ctx context.Context, ownerID string, ids ...string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	return svc.repo.DeleteGrades(ctx, ownerID, ids...)
}

func (svc *service) Export(ctx context.Context, ownerID string, w io.Writer) error {
	grades, err := svc.repo.QueryGrades(ctx, ownerID, nil, []core.DBOrdering{{Field: "course", Ascending: true}})
	if err != nil {
		return errors.Wrap(err, "querying grades")
	}
	return errors.Wrap(svc.exporter.Export(w, grades), "exporting grades")
}

func (svc *service) Exporter() Exporter {
	return svc.exporter
}

// replace replaces the grade with the same ID as grd, if any.
func replace(grades []Grade, grd Grade) bool {
	for i := range grades {
		if grades[i].ID == grd.ID {
			grades[i] = grd
			return true
		}
	}
	return false
}
