package inmemdb

import (
	"sync"

	"github.com/trezcool/alama/core/grade"
	"github.com/trezcool/alama/core/user"
)

type (
	userTable struct {
		mutex sync.RWMutex
		table map[string]*user.User
	}

	gradeTable struct {
		mutex   sync.RWMutex
		txMutex sync.Mutex // one transaction at a time
		table   map[string]*grade.Grade
	}

	// DB is an in-memory database, used in tests and when DB_ENGINE is "inmem".
	DB struct {
		user  *userTable
		grade *gradeTable
	}
)

func NewDB() *DB {
	return &DB{
		user:  &userTable{table: make(map[string]*user.User)},
		grade: &gradeTable{table: make(map[string]*grade.Grade)},
	}
}

// Truncate empties all tables.
func (db *DB) Truncate() {
	db.user.mutex.Lock()
	db.user.table = make(map[string]*user.User)
	db.user.mutex.Unlock()

	db.grade.mutex.Lock()
	db.grade.table = make(map[string]*grade.Grade)
	db.grade.mutex.Unlock()
}
