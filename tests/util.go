package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/grade"
	"github.com/trezcool/alama/core/user"
)

// NewTestConfig returns a Config suited to tests: in-memory DB, no Rollbar reporting.
func NewTestConfig() *core.Config {
	return &core.Config{
		TestMode:  true,
		Env:       "TEST",
		AppName:   "Alama",
		SecretKey: "test-secret-key",
		Server: core.ServerConfig{
			Host:                      "localhost",
			Addr:                      ":0",
			ShutdownTimeout:           time.Second,
			JWTExpirationDelta:        time.Hour,
			JWTRefreshExpirationDelta: 10 * time.Minute,
		},
		Database: core.DatabaseConfig{Engine: core.DBEngineInMem},
		OCR: core.OCRConfig{
			Languages:     []string{"eng"},
			DPI:           300,
			MaxUploadSize: "1M",
		},
	}
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateGrade(t *testing.T, repo grade.Repository, ownerID, course string, value float64, createdAt ...time.Time) grade.Grade {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	grd, err := repo.CreateGrade(context.Background(), grade.Grade{
		OwnerID:   ownerID,
		Course:    course,
		Grade:     value,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	})
	if err != nil {
		t.Fatalf("CreateGrade() failed: %v", err)
	}
	return grd
}
