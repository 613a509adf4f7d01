package attendance

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"ms-community/internal/apperrors"
	attendancedb "ms-community/internal/attendance/db"
	"ms-community/internal/identity"
	"ms-community/internal/kafka"
	"ms-community/internal/logger"
	"ms-community/internal/models"
	"ms-community/internal/policy"
	"ms-community/internal/testutil"
)

type fixture struct {
	bun   *bun.DB
	svc   *AttendanceService
	pub   *kafka.MemoryPublisher
	owner models.Actor
	other models.Actor
	admin models.Actor
	event *models.Event
	user  *models.User
}

func newFixture(t *testing.T) *fixture {
	bunDB := testutil.NewDB(t)
	ownerRow := testutil.SeedUser(t, bunDB, "Owner", models.RoleOrganizer)
	otherRow := testutil.SeedUser(t, bunDB, "Other", models.RoleOrganizer)
	adminRow := testutil.SeedUser(t, bunDB, "Admin", models.RoleAdmin)
	user := testutil.SeedUser(t, bunDB, "Member", models.RoleUser)
	event := testutil.SeedEvent(t, bunDB, ownerRow.UserID, "Summer fair", time.Now().Add(96*time.Hour))

	svc := NewAttendanceService(attendancedb.NewDB(bunDB), identity.NewReconciler(identity.NewUserDB(bunDB)), logger.NewWithWriter(io.Discard))
	pub := &kafka.MemoryPublisher{}
	svc.Publisher = pub

	return &fixture{
		bun:   bunDB,
		svc:   svc,
		pub:   pub,
		owner: models.Actor{UserID: ownerRow.UserID, Role: models.RoleOrganizer},
		other: models.Actor{UserID: otherRow.UserID, Role: models.RoleOrganizer},
		admin: models.Actor{UserID: adminRow.UserID, Role: models.RoleAdmin},
		event: event,
		user:  user,
	}
}

func TestRegisterGuest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	reg, err := f.svc.Register(ctx, f.event.EventID, identity.Request{Name: " Kowalski family ", Contact: "+447700900111"}, 2, 3, " near the stage ")
	require.NoError(t, err)
	assert.NotZero(t, reg.RegistrationID)
	assert.Nil(t, reg.UserID)
	assert.Equal(t, "Kowalski family", reg.GuestName)
	assert.Equal(t, "near the stage", reg.Comment)
	assert.Equal(t, []string{kafka.TopicRegistrationCreated}, f.pub.Topics())
}

func TestRegisterRegisteredUserDropsGuestFields(t *testing.T) {
	f := newFixture(t)
	userID := f.user.UserID

	reg, err := f.svc.Register(context.Background(), f.event.EventID, identity.Request{UserID: &userID, Name: "Someone else", Contact: "+1"}, 1, 0, "")
	require.NoError(t, err)
	require.NotNil(t, reg.UserID)
	assert.Equal(t, userID, *reg.UserID)
	assert.Empty(t, reg.GuestName)
	assert.Empty(t, reg.GuestWhatsapp)
}

func TestRegisterOnSiteRelaxation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, f.event.EventID, identity.Request{}, 1, 0, "")
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	reg, err := f.svc.Register(ctx, f.event.EventID, identity.Request{OnSite: true}, 1, 0, "")
	require.NoError(t, err)
	assert.Equal(t, identity.OnSiteGuestName, reg.GuestName)
	assert.Equal(t, identity.OnSiteContact, reg.GuestWhatsapp)
}

func TestRegisterHeadcountValidation(t *testing.T) {
	f := newFixture(t)
	req := identity.Request{Name: "A", Contact: "+44"}

	for name, counts := range map[string][2]int{
		"nobody":          {0, 0},
		"negative adults": {-1, 2},
		"negative kids":   {2, -1},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.Register(context.Background(), f.event.EventID, req, counts[0], counts[1], "")
			assert.ErrorIs(t, err, apperrors.ErrValidation)
		})
	}

	_, err := f.svc.Register(context.Background(), f.event.EventID, req, 0, 2, "")
	assert.NoError(t, err, "children only is a valid registration")
}

func TestRegisterUnknownOrHiddenEvent(t *testing.T) {
	f := newFixture(t)
	req := identity.Request{Name: "A", Contact: "+44"}

	_, err := f.svc.Register(context.Background(), 9999, req, 1, 0, "")
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	assert.NotErrorIs(t, err, apperrors.ErrNotFound)
	assert.Empty(t, f.pub.Topics())

	_, err = f.bun.NewUpdate().Model((*models.Event)(nil)).Set("is_published = ?", false).Where("event_id = ?", f.event.EventID).Exec(context.Background())
	require.NoError(t, err)
	_, err = f.svc.Register(context.Background(), f.event.EventID, req, 1, 0, "")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = f.svc.Summary(context.Background(), f.event.EventID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestSummaryCarriesNoNames(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Register(ctx, f.event.EventID, identity.Request{Name: "A", Contact: "+44"}, 2, 1, "")
	require.NoError(t, err)
	_, err = f.svc.Register(ctx, f.event.EventID, identity.Request{OnSite: true}, 1, 0, "")
	require.NoError(t, err)

	summary, err := f.svc.Summary(ctx, f.event.EventID)
	require.NoError(t, err)
	assert.Equal(t, models.AttendanceSummary{EventID: f.event.EventID, Registrations: 2, Adults: 3, Children: 1, Total: 4}, *summary)
}

func TestListForEventContactVisibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Register(ctx, f.event.EventID, identity.Request{Name: "First", Contact: "+441"}, 1, 0, "")
	require.NoError(t, err)
	_, err = f.svc.Register(ctx, f.event.EventID, identity.Request{Name: "Second", Contact: "+442", SecondaryContact: "0770"}, 1, 0, "")
	require.NoError(t, err)

	list, err := f.svc.ListForEvent(ctx, f.other, f.event.EventID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Second", list[0].GuestName, "newest first")
	assert.Equal(t, "+442", list[0].GuestWhatsapp, "all organizers see contacts by default")

	f.svc.Visibility = policy.ContactOwnerAdmin

	list, err = f.svc.ListForEvent(ctx, f.other, f.event.EventID)
	require.NoError(t, err)
	assert.Equal(t, "Second", list[0].GuestName)
	assert.Empty(t, list[0].GuestWhatsapp)
	assert.Empty(t, list[0].GuestUkPhone)

	for _, actor := range []models.Actor{f.owner, f.admin} {
		list, err = f.svc.ListForEvent(ctx, actor, f.event.EventID)
		require.NoError(t, err)
		assert.Equal(t, "+442", list[0].GuestWhatsapp)
	}

	_, err = f.svc.ListForEvent(ctx, models.Actor{UserID: f.user.UserID, Role: models.RoleUser}, f.event.EventID)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
}
