package db_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-community/internal/apperrors"
	"ms-community/internal/models"
	"ms-community/internal/tasks/db"
	"ms-community/internal/testutil"
)

func TestListTasksDeadlineOrderUndatedLast(t *testing.T) {
	bunDB := testutil.NewDB(t)
	org := testutil.SeedUser(t, bunDB, "Org", models.RoleOrganizer)
	event := testutil.SeedEvent(t, bunDB, org.UserID, "Iftar", time.Now())

	late := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	early := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	undated := testutil.SeedTask(t, bunDB, event.EventID, "Undated", 1, nil)
	lateTask := testutil.SeedTask(t, bunDB, event.EventID, "Late", 1, &late)
	earlyTask := testutil.SeedTask(t, bunDB, event.EventID, "Early", 1, &early)

	tasks, err := db.NewDB(bunDB).ListTasks(context.Background(), event.EventID)
	require.NoError(t, err)
	require.Len(t, tasks, 3)
	assert.Equal(t, []int64{earlyTask.TaskID, lateTask.TaskID, undated.TaskID},
		[]int64{tasks[0].TaskID, tasks[1].TaskID, tasks[2].TaskID})
}

func TestListPublicTasksHidesUnpublished(t *testing.T) {
	bunDB := testutil.NewDB(t)
	ctx := context.Background()
	org := testutil.SeedUser(t, bunDB, "Org", models.RoleOrganizer)
	event := testutil.SeedEvent(t, bunDB, org.UserID, "Draft", time.Now())
	testutil.SeedTask(t, bunDB, event.EventID, "Hidden", 1, nil)

	taskDB := db.NewDB(bunDB)
	tasks, err := taskDB.ListPublicTasks(ctx, event.EventID)
	require.NoError(t, err)
	assert.Len(t, tasks, 1)

	_, err = bunDB.NewUpdate().Model((*models.Event)(nil)).Set("is_published = ?", false).Where("event_id = ?", event.EventID).Exec(ctx)
	require.NoError(t, err)

	tasks, err = taskDB.ListPublicTasks(ctx, event.EventID)
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestListPublicTasksOpenFirst(t *testing.T) {
	bunDB := testutil.NewDB(t)
	ctx := context.Background()
	org := testutil.SeedUser(t, bunDB, "Org", models.RoleOrganizer)
	event := testutil.SeedEvent(t, bunDB, org.UserID, "Fete", time.Now())
	closed := testutil.SeedTask(t, bunDB, event.EventID, "Closed one", 1, nil)
	open := testutil.SeedTask(t, bunDB, event.EventID, "Open one", 1, nil)
	_, err := bunDB.NewUpdate().Model((*models.Task)(nil)).Set("status = ?", models.TaskStatusClosed).Where("task_id = ?", closed.TaskID).Exec(ctx)
	require.NoError(t, err)

	tasks, err := db.NewDB(bunDB).ListPublicTasks(ctx, event.EventID)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, open.TaskID, tasks[0].TaskID)
	assert.Equal(t, closed.TaskID, tasks[1].TaskID)
}

func TestDeleteTaskRemovesSignups(t *testing.T) {
	bunDB := testutil.NewDB(t)
	org := testutil.SeedUser(t, bunDB, "Org", models.RoleOrganizer)
	event := testutil.SeedEvent(t, bunDB, org.UserID, "Walk", time.Now())
	task := testutil.SeedTask(t, bunDB, event.EventID, "Marshal", 2, nil)
	keep := testutil.SeedTask(t, bunDB, event.EventID, "First aid", 1, nil)
	testutil.SeedGuestSignup(t, bunDB, task.TaskID, "A", "+441")
	testutil.SeedGuestSignup(t, bunDB, task.TaskID, "B", "+442")
	testutil.SeedGuestSignup(t, bunDB, keep.TaskID, "C", "+443")

	taskDB := db.NewDB(bunDB)
	require.NoError(t, taskDB.DeleteTask(context.Background(), task.TaskID))

	assert.Equal(t, 0, testutil.Count(t, bunDB, (*models.VolunteerSignup)(nil), "task_id = ?", task.TaskID))
	assert.Equal(t, 0, testutil.Count(t, bunDB, (*models.Task)(nil), "task_id = ?", task.TaskID))
	assert.Equal(t, 1, testutil.Count(t, bunDB, (*models.VolunteerSignup)(nil), "task_id = ?", keep.TaskID))

	err := taskDB.DeleteTask(context.Background(), task.TaskID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestUpdateTaskKeepsStatus(t *testing.T) {
	bunDB := testutil.NewDB(t)
	ctx := context.Background()
	org := testutil.SeedUser(t, bunDB, "Org", models.RoleOrganizer)
	event := testutil.SeedEvent(t, bunDB, org.UserID, "Fair", time.Now())
	task := testutil.SeedTask(t, bunDB, event.EventID, "Stall", 1, nil)

	taskDB := db.NewDB(bunDB)
	task.Title = "Big stall"
	task.RequiredVolunteers = 4
	task.Status = models.TaskStatusClosed
	require.NoError(t, taskDB.UpdateTask(ctx, task))

	got, err := taskDB.GetTaskByID(ctx, task.TaskID)
	require.NoError(t, err)
	assert.Equal(t, "Big stall", got.Title)
	assert.Equal(t, 4, got.RequiredVolunteers)
	assert.Equal(t, models.TaskStatusOpen, got.Status)

	assert.ErrorIs(t, taskDB.UpdateTask(ctx, &models.Task{TaskID: 999, Title: "x", RequiredVolunteers: 1}), apperrors.ErrNotFound)
}

func TestInsertSignupWithinCapacity(t *testing.T) {
	bunDB := testutil.NewDB(t)
	ctx := context.Background()
	org := testutil.SeedUser(t, bunDB, "Org", models.RoleOrganizer)
	event := testutil.SeedEvent(t, bunDB, org.UserID, "Shelter", time.Now())
	task := testutil.SeedTask(t, bunDB, event.EventID, "Night shift", 2, nil)

	taskDB := db.NewDB(bunDB)
	for i, want := range []bool{true, true, false} {
		signup := &models.VolunteerSignup{TaskID: task.TaskID, GuestName: "G", GuestWhatsapp: "+44", CreatedAt: time.Now().UTC()}
		inserted, err := taskDB.InsertSignupWithinCapacity(ctx, signup)
		require.NoError(t, err)
		assert.Equal(t, want, inserted, "attempt %d", i+1)
	}
	assert.Equal(t, 2, testutil.Count(t, bunDB, (*models.VolunteerSignup)(nil), "task_id = ?", task.TaskID))

	_, err := taskDB.InsertSignupWithinCapacity(ctx, &models.VolunteerSignup{TaskID: 12345, GuestName: "G", GuestWhatsapp: "+44"})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
