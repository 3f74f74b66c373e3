package inmemdb

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/grade"
)

func seedGrades(t *testing.T, repo grade.Repository, ownerID string, grades map[string]float64) {
	t.Helper()
	start := time.Date(2024, 9, 1, 8, 0, 0, 0, time.UTC)
	i := 0
	for _, course := range []string{"Physics", "algebra", "Chemistry", "Biology"} {
		value, ok := grades[course]
		if !ok {
			continue
		}
		created := start.Add(time.Duration(i) * time.Hour)
		_, err := repo.CreateGrade(context.Background(), grade.Grade{
			OwnerID: ownerID, Course: course, Grade: value, CreatedAt: created, UpdatedAt: created,
		})
		require.NoError(t, err)
		i++
	}
}

func courses(grades []grade.Grade) []string {
	names := make([]string, 0, len(grades))
	for _, grd := range grades {
		names = append(names, grd.Course)
	}
	return names
}

func TestGradeRepository_QueryGrades(t *testing.T) {
	repo := NewGradeRepository(NewDB())
	seedGrades(t, repo, "u1", map[string]float64{"Physics": 14, "algebra": 9.5, "Chemistry": 17, "Biology": 12})
	seedGrades(t, repo, "u2", map[string]float64{"Physics": 3})

	tests := []struct {
		name     string
		filter   *grade.QueryFilter
		ordering []core.DBOrdering
		want     []string
	}{
		{name: "default ordering", want: []string{"Physics", "algebra", "Chemistry", "Biology"}},
		{name: "by course", ordering: []core.DBOrdering{{Field: "course", Ascending: true}}, want: []string{"algebra", "Biology", "Chemistry", "Physics"}},
		{name: "by grade desc", ordering: []core.DBOrdering{{Field: "grade"}}, want: []string{"Chemistry", "Physics", "Biology", "algebra"}},
		{name: "search", filter: &grade.QueryFilter{Search: "IS"}, want: []string{"Physics", "Chemistry"}},
		{name: "no match", filter: &grade.QueryFilter{Search: "latin"}, want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.QueryGrades(context.Background(), "u1", tt.filter, tt.ordering)
			require.NoError(t, err)
			assert.Equal(t, tt.want, courses(got))
		})
	}
}

func TestGradeRepository_ownership(t *testing.T) {
	ctx := context.Background()
	repo := NewGradeRepository(NewDB())

	grd, err := repo.CreateGrade(ctx, grade.Grade{OwnerID: "u1", Course: "Math", Grade: 12})
	require.NoError(t, err)

	_, err = repo.GetGrade(ctx, grade.GetFilter{ID: grd.ID, OwnerID: "u2"})
	assert.Equal(t, grade.ErrNotFound, err)

	got, err := repo.GetGrade(ctx, grade.GetFilter{OwnerID: "u1", CourseKey: "math"})
	require.NoError(t, err)
	assert.Equal(t, grd.ID, got.ID)

	n, err := repo.DeleteGrades(ctx, "u2", grd.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = repo.DeleteGrades(ctx, "u1", grd.ID, "missing")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestGradeRepository_courseUniqueness(t *testing.T) {
	ctx := context.Background()
	repo := NewGradeRepository(NewDB())

	math, err := repo.CreateGrade(ctx, grade.Grade{OwnerID: "u1", Course: "Math", Grade: 12})
	require.NoError(t, err)
	_, err = repo.CreateGrade(ctx, grade.Grade{OwnerID: "u2", Course: "Math", Grade: 12})
	require.NoError(t, err, "other owners may have the same course")

	_, err = repo.CreateGrade(ctx, grade.Grade{OwnerID: "u1", Course: " MATH ", Grade: 10})
	assert.Equal(t, grade.ErrCourseExists, err)

	physics, err := repo.CreateGrade(ctx, grade.Grade{OwnerID: "u1", Course: "Physics", Grade: 10})
	require.NoError(t, err)
	physics.Course = "math"
	_, err = repo.UpdateGrade(ctx, physics)
	assert.Equal(t, grade.ErrCourseExists, err)

	math.Course = "Mathematics"
	updated, err := repo.UpdateGrade(ctx, math)
	require.NoError(t, err)
	assert.Equal(t, "mathematics", updated.CourseKey())
}

func TestGradeRepository_WithinTx(t *testing.T) {
	errAbort := errors.New("abort")

	tests := []struct {
		name    string
		fail    bool
		wantErr error
		want    map[string]float64
	}{
		{name: "commit", want: map[string]float64{"Physics": 18, "Latin": 11}},
		{name: "rollback", fail: true, wantErr: errAbort, want: map[string]float64{"Physics": 14, "algebra": 9.5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			repo := NewGradeRepository(NewDB())
			seedGrades(t, repo, "u1", map[string]float64{"Physics": 14, "algebra": 9.5})
			physics, err := repo.GetGrade(ctx, grade.GetFilter{OwnerID: "u1", CourseKey: "physics"})
			require.NoError(t, err)
			algebra, err := repo.GetGrade(ctx, grade.GetFilter{OwnerID: "u1", CourseKey: "algebra"})
			require.NoError(t, err)

			err = repo.WithinTx(ctx, func(tx grade.Repository) error {
				physics.Grade = 18
				if _, err := tx.UpdateGrade(ctx, physics); err != nil {
					return err
				}
				if _, err := tx.CreateGrade(ctx, grade.Grade{OwnerID: "u1", Course: "Latin", Grade: 11}); err != nil {
					return err
				}
				if _, err := tx.DeleteGrades(ctx, "u1", algebra.ID); err != nil {
					return err
				}
				if tt.fail {
					return errAbort
				}
				return nil
			})
			assert.Equal(t, tt.wantErr, err)

			grades, err := repo.QueryGrades(ctx, "u1", nil, nil)
			require.NoError(t, err)
			got := make(map[string]float64, len(grades))
			for _, grd := range grades {
				got[grd.Course] = grd.Grade
			}
			assert.Equal(t, tt.want, got)
		})
	}
}
