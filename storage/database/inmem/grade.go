package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/grade"
)

type gradeRepository struct {
	db *gradeTable
}

var _ grade.Repository = (*gradeRepository)(nil) // interface compliance check

func NewGradeRepository(db *DB) grade.Repository {
	return &gradeRepository{db: db.grade}
}

func (repo *gradeRepository) CreateGrade(_ context.Context, grd grade.Grade) (grade.Grade, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, err := repo.findByCourseKey(grd.OwnerID, grd.CourseKey()); err == nil {
		return grade.Grade{}, grade.ErrCourseExists
	}
	grd.ID = uuid.New().String()
	repo.db.table[grd.ID] = &grd
	return grd, nil
}

func (repo *gradeRepository) findByCourseKey(ownerID, key string) (grade.Grade, error) {
	for _, grd := range repo.db.table {
		if grd.OwnerID == ownerID && grd.CourseKey() == key {
			return *grd, nil
		}
	}
	return grade.Grade{}, grade.ErrNotFound
}

func (repo *gradeRepository) GetGrade(_ context.Context, filter grade.GetFilter) (grade.Grade, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if filter.ID != "" {
		if grd, ok := repo.db.table[filter.ID]; ok && grd.OwnerID == filter.OwnerID {
			return *grd, nil
		}
		return grade.Grade{}, grade.ErrNotFound
	}
	return repo.findByCourseKey(filter.OwnerID, filter.CourseKey)
}

func (repo *gradeRepository) QueryGrades(
	_ context.Context,
	ownerID string,
	filter *grade.QueryFilter,
	ordering []core.DBOrdering,
) ([]grade.Grade, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var search string
	if filter != nil {
		search = strings.ToLower(filter.Search)
	}

	grades := make([]grade.Grade, 0)
	for _, grd := range repo.db.table {
		if grd.OwnerID != ownerID {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(grd.Course), search) {
			continue
		}
		grades = append(grades, *grd)
	}

	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "created_at", Ascending: true}}
	}
	sort.SliceStable(grades, func(i, j int) bool {
		for _, o := range ordering {
			c := compareGrades(grades[i], grades[j], o.Field)
			if c == 0 {
				continue
			}
			if o.Ascending {
				return c < 0
			}
			return c > 0
		}
		return grades[i].ID < grades[j].ID
	})
	return grades, nil
}

func compareGrades(a, b grade.Grade, field string) int {
	switch field {
	case "course":
		return strings.Compare(a.CourseKey(), b.CourseKey())
	case "grade":
		switch {
		case a.Grade < b.Grade:
			return -1
		case a.Grade > b.Grade:
			return 1
		}
	case "created_at":
		return a.CreatedAt.Compare(b.CreatedAt)
	case "updated_at":
		return a.UpdatedAt.Compare(b.UpdatedAt)
	}
	return 0
}

func (repo *gradeRepository) UpdateGrade(_ context.Context, grd grade.Grade) (grade.Grade, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.table[grd.ID]
	if !ok || orig.OwnerID != grd.OwnerID {
		return grade.Grade{}, grade.ErrNotFound
	}
	if other, err := repo.findByCourseKey(grd.OwnerID, grd.CourseKey()); err == nil && other.ID != grd.ID {
		return grade.Grade{}, grade.ErrCourseExists
	}
	grd.CreatedAt = orig.CreatedAt
	repo.db.table[grd.ID] = &grd
	return grd, nil
}

func (repo *gradeRepository) DeleteGrades(_ context.Context, ownerID string, ids ...string) (int, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	var deleted int
	for _, id := range ids {
		if grd, ok := repo.db.table[id]; ok && grd.OwnerID == ownerID {
			delete(repo.db.table, id)
			deleted++
		}
	}
	return deleted, nil
}

// WithinTx runs transactions one at a time, and restores the table as it was before fn if fn fails.
// Stored grades are never mutated in place, so a shallow copy of the table is a full snapshot.
// Writes made outside of a transaction while a failing one runs are lost on rollback.
func (repo *gradeRepository) WithinTx(_ context.Context, fn func(repo grade.Repository) error) error {
	repo.db.txMutex.Lock()
	defer repo.db.txMutex.Unlock()

	repo.db.mutex.RLock()
	snapshot := make(map[string]*grade.Grade, len(repo.db.table))
	for id, grd := range repo.db.table {
		snapshot[id] = grd
	}
	repo.db.mutex.RUnlock()

	if err := fn(repo); err != nil {
		repo.db.mutex.Lock()
		repo.db.table = snapshot
		repo.db.mutex.Unlock()
		return err
	}
	return nil
}
