// Package testutil opens throwaway stores for package tests.
package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"ms-community/internal/models"
)

// Tables lists the bun models in dependency order.
var Tables = []interface{}{
	(*models.User)(nil),
	(*models.Event)(nil),
	(*models.Task)(nil),
	(*models.VolunteerSignup)(nil),
	(*models.EventRegistration)(nil),
}

// NewDB returns a bun DB on a private in-memory SQLite database with every
// table created. The pool is capped at one connection so the memory database
// is shared by every query of the test.
func NewDB(t *testing.T) *bun.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	sqldb, err := sql.Open(sqliteshim.ShimName, fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	if err != nil {
		t.Fatalf("Failed to connect to in-memory database: %v", err)
	}
	sqldb.SetMaxOpenConns(1)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	for _, model := range Tables {
		if _, err := bunDB.NewCreateTable().Model(model).IfNotExists().Exec(context.Background()); err != nil {
			t.Fatalf("Failed to create table for %T: %v", model, err)
		}
	}

	t.Cleanup(func() { _ = bunDB.Close() })
	return bunDB
}

// SeedUser inserts a user row and returns it.
func SeedUser(t *testing.T, db *bun.DB, firstName string, role models.Role) *models.User {
	t.Helper()
	user := &models.User{
		FirstName: firstName,
		LastName:  "Tester",
		Email:     fmt.Sprintf("%s-%d@example.com", strings.ToLower(firstName), time.Now().UnixNano()),
		Whatsapp:  "+447700900000",
		Role:      role,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := db.NewInsert().Model(user).Exec(context.Background()); err != nil {
		t.Fatalf("Failed to seed user: %v", err)
	}
	return user
}

// SeedEvent inserts an event owned by organizerID starting at start.
func SeedEvent(t *testing.T, db *bun.DB, organizerID int64, title string, start time.Time) *models.Event {
	t.Helper()
	event := &models.Event{
		Title:         title,
		Category:      models.CategorySocial,
		StartDatetime: start.UTC(),
		LocationName:  "Community Hall",
		OrganizerID:   organizerID,
		IsPublished:   true,
		CreatedAt:     time.Now().UTC(),
	}
	if _, err := db.NewInsert().Model(event).Exec(context.Background()); err != nil {
		t.Fatalf("Failed to seed event: %v", err)
	}
	return event
}

// SeedTask inserts an open task on eventID.
func SeedTask(t *testing.T, db *bun.DB, eventID int64, title string, required int, deadline *time.Time) *models.Task {
	t.Helper()
	task := &models.Task{
		EventID:            eventID,
		Title:              title,
		RequiredVolunteers: required,
		DeadlineTime:       deadline,
		Status:             models.TaskStatusOpen,
	}
	if _, err := db.NewInsert().Model(task).Exec(context.Background()); err != nil {
		t.Fatalf("Failed to seed task: %v", err)
	}
	return task
}

// SeedGuestSignup inserts a guest signup on taskID.
func SeedGuestSignup(t *testing.T, db *bun.DB, taskID int64, name, whatsapp string) *models.VolunteerSignup {
	t.Helper()
	signup := &models.VolunteerSignup{
		TaskID:        taskID,
		GuestName:     name,
		GuestWhatsapp: whatsapp,
		CreatedAt:     time.Now().UTC(),
	}
	if _, err := db.NewInsert().Model(signup).Exec(context.Background()); err != nil {
		t.Fatalf("Failed to seed signup: %v", err)
	}
	return signup
}

// Count returns the number of rows of model matching where.
func Count(t *testing.T, db *bun.DB, model interface{}, where string, args ...interface{}) int {
	t.Helper()
	q := db.NewSelect().Model(model)
	if where != "" {
		q = q.Where(where, args...)
	}
	n, err := q.Count(context.Background())
	if err != nil {
		t.Fatalf("Failed to count %T: %v", model, err)
	}
	return n
}
