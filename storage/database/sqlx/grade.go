package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/grade"
)

var gradeConstraints = map[string]error{
	"grades_owner_course_key": grade.ErrCourseExists,
}

type gradeRow struct {
	ID        string    `db:"id"`
	OwnerID   string    `db:"owner_id"`
	Course    string    `db:"course"`
	CourseKey string    `db:"course_key"`
	Grade     float64   `db:"grade"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func newGradeRow(grd grade.Grade) gradeRow {
	return gradeRow{
		ID:        grd.ID,
		OwnerID:   grd.OwnerID,
		Course:    grd.Course,
		CourseKey: grd.CourseKey(),
		Grade:     grd.Grade,
		CreatedAt: grd.CreatedAt,
		UpdatedAt: grd.UpdatedAt,
	}
}

func (r gradeRow) toGrade() grade.Grade {
	return grade.Grade{
		ID:        r.ID,
		OwnerID:   r.OwnerID,
		Course:    r.Course,
		Grade:     r.Grade,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

const gradeColumns = `id, owner_id, course, course_key, grade, created_at, updated_at`

// orderColumns maps grade.OrderingFields to SQL expressions
var orderColumns = map[string]string{
	"course":     "course_key",
	"grade":      "grade",
	"created_at": "created_at",
	"updated_at": "updated_at",
}

type gradeRepository struct {
	db *sqlx.DB
	tx *sqlx.Tx
}

var _ grade.Repository = (*gradeRepository)(nil) // interface compliance check

func NewGradeRepository(db *sqlx.DB) grade.Repository {
	return &gradeRepository{db: db}
}

func (repo *gradeRepository) ext() sqlx.ExtContext {
	if repo.tx != nil {
		return repo.tx
	}
	return repo.db
}

func (repo *gradeRepository) CreateGrade(ctx context.Context, grd grade.Grade) (grade.Grade, error) {
	grd.ID = uuid.New().String()
	q, args, err := sqlx.Named(`
		INSERT INTO grades (`+gradeColumns+`)
		VALUES (:id, :owner_id, :course, :course_key, :grade, :created_at, :updated_at)
		ON CONFLICT ON CONSTRAINT grades_owner_course_key DO NOTHING`,
		newGradeRow(grd),
	)
	if err != nil {
		return grade.Grade{}, errors.Wrap(err, "binding grade")
	}
	// a conflict must not abort the enclosing transaction: the caller merges into the existing row.
	res, err := repo.ext().ExecContext(ctx, repo.db.Rebind(q), args...)
	if err != nil {
		return grade.Grade{}, errors.Wrap(uniqueConstraintErr(err, gradeConstraints), "inserting grade")
	}
	if n, err := res.RowsAffected(); err != nil {
		return grade.Grade{}, errors.Wrap(err, "counting inserted grades")
	} else if n == 0 {
		return grade.Grade{}, grade.ErrCourseExists
	}
	return grd, nil
}

func (repo *gradeRepository) GetGrade(ctx context.Context, filter grade.GetFilter) (grade.Grade, error) {
	if _, err := uuid.Parse(filter.OwnerID); err != nil {
		return grade.Grade{}, grade.ErrNotFound
	}

	where, arg := "course_key = $2", filter.CourseKey
	if filter.ID != "" {
		if _, err := uuid.Parse(filter.ID); err != nil {
			return grade.Grade{}, grade.ErrNotFound
		}
		where, arg = "id = $2", filter.ID
	}

	var row gradeRow
	err := sqlx.GetContext(ctx, repo.ext(), &row,
		`SELECT `+gradeColumns+` FROM grades WHERE owner_id = $1 AND `+where, filter.OwnerID, arg)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return grade.Grade{}, grade.ErrNotFound
		}
		return grade.Grade{}, errors.Wrap(err, "selecting grade")
	}
	return row.toGrade(), nil
}

func (repo *gradeRepository) QueryGrades(
	ctx context.Context,
	ownerID string,
	filter *grade.QueryFilter,
	ordering []core.DBOrdering,
) ([]grade.Grade, error) {
	grades := make([]grade.Grade, 0)
	if _, err := uuid.Parse(ownerID); err != nil {
		return grades, nil
	}

	q := `SELECT ` + gradeColumns + ` FROM grades WHERE owner_id = $1`
	args := []interface{}{ownerID}
	if filter != nil && filter.Search != "" {
		q += ` AND course ILIKE $2`
		args = append(args, "%"+escapeLike(filter.Search)+"%")
	}

	orderBy := make([]string, 0, len(ordering)+1)
	for _, ord := range ordering {
		if col, ok := orderColumns[ord.Field]; ok {
			orderBy = append(orderBy, core.DBOrdering{Field: col, Ascending: ord.Ascending}.String())
		}
	}
	orderBy = append(orderBy, "created_at ASC", "id ASC")
	q += ` ORDER BY ` + strings.Join(orderBy, ", ")

	var rows []gradeRow
	if err := sqlx.SelectContext(ctx, repo.ext(), &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "selecting grades")
	}
	for _, row := range rows {
		grades = append(grades, row.toGrade())
	}
	return grades, nil
}

func (repo *gradeRepository) UpdateGrade(ctx context.Context, grd grade.Grade) (grade.Grade, error) {
	q, args, err := sqlx.Named(`
		UPDATE grades SET course = :course, course_key = :course_key, grade = :grade, updated_at = :updated_at
		WHERE id = :id AND owner_id = :owner_id`,
		newGradeRow(grd),
	)
	if err != nil {
		return grade.Grade{}, errors.Wrap(err, "binding grade")
	}
	res, err := repo.ext().ExecContext(ctx, repo.db.Rebind(q), args...)
	if err != nil {
		return grade.Grade{}, errors.Wrap(uniqueConstraintErr(err, gradeConstraints), "updating grade")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return grade.Grade{}, grade.ErrNotFound
	}
	return grd, nil
}

func (repo *gradeRepository) DeleteGrades(ctx context.Context, ownerID string, ids ...string) (int, error) {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, err := uuid.Parse(id); err == nil {
			valid = append(valid, id)
		}
	}
	if len(valid) == 0 {
		return 0, nil
	}

	q, args, err := sqlx.In(`DELETE FROM grades WHERE owner_id = ? AND id IN (?)`, ownerID, valid)
	if err != nil {
		return 0, errors.Wrap(err, "binding grade ids")
	}
	res, err := repo.ext().ExecContext(ctx, repo.db.Rebind(q), args...)
	if err != nil {
		return 0, errors.Wrap(err, "deleting grades")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "counting deleted grades")
	}
	return int(n), nil
}

func (repo *gradeRepository) WithinTx(ctx context.Context, fn func(repo grade.Repository) error) (err error) {
	if repo.tx != nil { // already in a transaction
		return fn(repo)
	}

	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = errors.Wrap(tx.Commit(), "committing transaction")
	}()

	return fn(&gradeRepository{db: repo.db, tx: tx})
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
