package grade_test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"testing"

	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/grade"
	inmemdb "github.com/trezcool/alama/storage/database/inmem"
	testutil "github.com/trezcool/alama/tests"
)

type csvExporter struct{}

func (csvExporter) ContentType() string { return "text/csv" }
func (csvExporter) Extension() string   { return ".csv" }

func (csvExporter) Export(w io.Writer, grades []grade.Grade) error {
	for _, grd := range grades {
		if _, err := fmt.Fprintf(w, "%s;%g\n", grd.Course, grd.Grade); err != nil {
			return err
		}
	}
	return nil
}

func newService() (grade.Service, grade.Repository) {
	repo := inmemdb.NewGradeRepository(inmemdb.NewDB())
	return grade.NewService(repo, csvExporter{}), repo
}

func gradesByCourse(grades []grade.Grade) map[string]float64 {
	m := make(map[string]float64, len(grades))
	for _, grd := range grades {
		m[grd.Course] = grd.Grade
	}
	return m
}

func TestService_ImportText(t *testing.T) {
	ctx := context.Background()
	svc, repo := newService()
	testutil.CreateGrade(t, repo, "u1", "physics", 9)
	testutil.CreateGrade(t, repo, "u2", "Algebra", 3)

	res, err := svc.ImportText(ctx, "u1", "Algebra 12.5\nPhysics 15\nno grade here\nAlgebra 13\nYear 2024")
	require.NoError(t, err)

	assert.Equal(t, map[string]float64{"Algebra": 13}, gradesByCourse(res.Created))
	assert.Equal(t, map[string]float64{"physics": 15}, gradesByCourse(res.Updated), "matched case-insensitively, course name kept")
	assert.Zero(t, res.Skipped)

	grades, err := svc.Query(ctx, "u1", nil, []core.DBOrdering{{Field: "course", Ascending: true}})
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"Algebra": 13, "physics": 15}, gradesByCourse(grades))

	other, err := svc.Query(ctx, "u2", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"Algebra": 3}, gradesByCourse(other), "other users' grades are untouched")
}

func TestService_Import_skipsInvalidRecords(t *testing.T) {
	svc, _ := newService()

	res, err := svc.Import(context.Background(), "u1", []grade.GradeRecord{
		{Course: "Math", Grade: 12},
		{Course: "  ", Grade: 12},
		{Course: "Sport", Grade: 20},
		{Course: "Latin", Grade: -1},
	})
	require.NoError(t, err)
	assert.Len(t, res.Created, 1)
	assert.Empty(t, res.Updated)
	assert.Equal(t, 3, res.Skipped)
}

func TestService_Import_empty(t *testing.T) {
	svc, _ := newService()

	res, err := svc.ImportText(context.Background(), "u1", "")
	require.NoError(t, err)
	assert.NotNil(t, res.Created)
	assert.NotNil(t, res.Updated)
	assert.Empty(t, res.Created)
	assert.Empty(t, res.Updated)
}

func TestService_Create(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService()

	first, err := svc.Create(ctx, "u1", grade.NewGrade{Course: "Chemistry", Grade: 11})
	require.NoError(t, err)
	second, err := svc.Create(ctx, "u1", grade.NewGrade{Course: "CHEMISTRY", Grade: 16})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID, "existing grade is updated in place")
	assert.Equal(t, 16.0, second.Grade)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)
}

// racingRepo holds the first course lookups until all of them have returned,
// so that the creations following them race for the same course.
type racingRepo struct {
	grade.Repository
	mu      sync.Mutex
	held    int
	lookups sync.WaitGroup
}

func newRacingRepo(repo grade.Repository, racers int) *racingRepo {
	r := &racingRepo{Repository: repo, held: racers}
	r.lookups.Add(racers)
	return r
}

func (r *racingRepo) GetGrade(ctx context.Context, filter grade.GetFilter) (grade.Grade, error) {
	grd, err := r.Repository.GetGrade(ctx, filter)

	r.mu.Lock()
	hold := filter.CourseKey != "" && r.held > 0
	if hold {
		r.held--
	}
	r.mu.Unlock()

	if hold {
		r.lookups.Done()
		r.lookups.Wait()
	}
	return grd, err
}

func TestService_Create_concurrent(t *testing.T) {
	const racers = 2
	repo := newRacingRepo(inmemdb.NewGradeRepository(inmemdb.NewDB()), racers)
	svc := grade.NewService(repo, csvExporter{})

	var wg sync.WaitGroup
	grades := make([]grade.Grade, racers)
	errs := make([]error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			grades[i], errs[i] = svc.Create(context.Background(), "u1", grade.NewGrade{Course: "Math", Grade: float64(10 + i)})
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "Create #%d", i)
	}
	assert.Equal(t, grades[0].ID, grades[1].ID, "both merge into the same grade")

	stored, err := svc.Query(context.Background(), "u1", nil, nil)
	require.NoError(t, err)
	require.Len(t, stored, 1)
}

// staleRepo misses the first course lookup, as if another request created the grade right after it.
type staleRepo struct {
	grade.Repository
	missed bool
}

func (r *staleRepo) GetGrade(ctx context.Context, filter grade.GetFilter) (grade.Grade, error) {
	if filter.CourseKey != "" && !r.missed {
		r.missed = true
		return grade.Grade{}, grade.ErrNotFound
	}
	return r.Repository.GetGrade(ctx, filter)
}

func (r *staleRepo) WithinTx(ctx context.Context, fn func(repo grade.Repository) error) error {
	return r.Repository.WithinTx(ctx, func(grade.Repository) error { return fn(r) })
}

func TestService_Import_courseCreatedMeanwhile(t *testing.T) {
	ctx := context.Background()
	inner := inmemdb.NewGradeRepository(inmemdb.NewDB())
	existing := testutil.CreateGrade(t, inner, "u1", "Math", 8)
	svc := grade.NewService(&staleRepo{Repository: inner}, csvExporter{})

	res, err := svc.ImportText(ctx, "u1", "math 14")
	require.NoError(t, err)
	assert.Empty(t, res.Created)
	require.Len(t, res.Updated, 1)
	assert.Equal(t, existing.ID, res.Updated[0].ID)
	assert.Equal(t, 14.0, res.Updated[0].Grade)
}

// failingRepo fails updates of the given course.
type failingRepo struct {
	grade.Repository
	course string
}

var errUpdateFailed = pkgerrors.New("update failed")

func (r *failingRepo) UpdateGrade(ctx context.Context, grd grade.Grade) (grade.Grade, error) {
	if grd.CourseKey() == grade.CourseKey(r.course) {
		return grade.Grade{}, errUpdateFailed
	}
	return r.Repository.UpdateGrade(ctx, grd)
}

func (r *failingRepo) WithinTx(ctx context.Context, fn func(repo grade.Repository) error) error {
	return r.Repository.WithinTx(ctx, func(grade.Repository) error { return fn(r) })
}

func TestService_Import_rollsBack(t *testing.T) {
	ctx := context.Background()
	inner := inmemdb.NewGradeRepository(inmemdb.NewDB())
	testutil.CreateGrade(t, inner, "u1", "Physics", 9)
	testutil.CreateGrade(t, inner, "u1", "Latin", 7)
	svc := grade.NewService(&failingRepo{Repository: inner, course: "latin"}, csvExporter{})

	_, err := svc.ImportText(ctx, "u1", "Physics 15\nAlgebra 12\nLatin 16")
	assert.Equal(t, errUpdateFailed, pkgerrors.Cause(err))

	grades, err := svc.Query(ctx, "u1", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"Physics": 9, "Latin": 7}, gradesByCourse(grades), "no partial import")
}

func TestService_Update(t *testing.T) {
	ctx := context.Background()
	svc, repo := newService()
	math := testutil.CreateGrade(t, repo, "u1", "Math", 10)
	testutil.CreateGrade(t, repo, "u1", "Physics", 10)

	newGrade := 14.5
	tests := []struct {
		name       string
		ug         grade.UpdateGrade
		wantErr    error
		wantCourse string
		wantGrade  float64
	}{
		{name: "grade only", ug: grade.UpdateGrade{Grade: &newGrade}, wantCourse: "Math", wantGrade: 14.5},
		{name: "rename", ug: grade.UpdateGrade{Course: "Mathematics"}, wantCourse: "Mathematics", wantGrade: 10},
		{name: "recase", ug: grade.UpdateGrade{Course: "MATH"}, wantCourse: "MATH", wantGrade: 10},
		{name: "course taken", ug: grade.UpdateGrade{Course: "physics"}, wantErr: grade.ErrCourseExists},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.Update(ctx, math, tt.ug)
			if tt.wantErr != nil {
				var vErr *core.ValidationError
				require.ErrorAs(t, err, &vErr)
				assert.Equal(t, tt.wantErr, vErr.Err)
				assert.Equal(t, "course", vErr.Fields[0].Field)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantCourse, got.Course)
			assert.Equal(t, tt.wantGrade, got.Grade)
			assert.Equal(t, math.ID, got.ID)
		})
	}
}

func TestService_GetAndDelete(t *testing.T) {
	ctx := context.Background()
	svc, repo := newService()
	grd := testutil.CreateGrade(t, repo, "u1", "Math", 10)

	_, err := svc.Get(ctx, "u1", "")
	assert.Equal(t, grade.ErrNotFound, pkgerrors.Cause(err))
	_, err = svc.Get(ctx, "u2", grd.ID)
	assert.Equal(t, grade.ErrNotFound, pkgerrors.Cause(err))

	got, err := svc.Get(ctx, "u1", grd.ID)
	require.NoError(t, err)
	assert.Equal(t, grd, got)

	n, err := svc.Delete(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = svc.Delete(ctx, "u1", grd.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestService_Export(t *testing.T) {
	ctx := context.Background()
	svc, repo := newService()
	testutil.CreateGrade(t, repo, "u1", "Physics", 14)
	testutil.CreateGrade(t, repo, "u1", "algebra", 9.5)
	testutil.CreateGrade(t, repo, "u2", "Latin", 18)

	var buf bytes.Buffer
	require.NoError(t, svc.Export(ctx, "u1", &buf))
	assert.Equal(t, "algebra;9.5\nPhysics;14\n", buf.String())
	assert.Equal(t, ".csv", svc.Exporter().Extension())
}
