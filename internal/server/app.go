// Package server assembles the engine's services and their HTTP surface.
package server

import (
	"github.com/uptrace/bun"

	"ms-community/internal/analytics"
	analytics_api "ms-community/internal/analytics/api"
	"ms-community/internal/attendance/attendance_api"
	attendance_db "ms-community/internal/attendance/db"
	attendance "ms-community/internal/attendance/service"
	"ms-community/internal/auth"
	"ms-community/internal/capacity"
	"ms-community/internal/config"
	event_db "ms-community/internal/events/db"
	"ms-community/internal/events/event_api"
	"ms-community/internal/events/qr"
	events "ms-community/internal/events/service"
	"ms-community/internal/identity"
	"ms-community/internal/kafka"
	"ms-community/internal/logger"
	"ms-community/internal/policy"
	"ms-community/internal/recurrence"
	"ms-community/internal/recurrence/recurrence_api"
	rediswrap "ms-community/internal/redis"
	"ms-community/internal/sse"
	task_db "ms-community/internal/tasks/db"
	tasks "ms-community/internal/tasks/service"
	"ms-community/internal/tasks/task_api"
)

// Deps are the connections main opened. Redis and Publisher may be nil.
type Deps struct {
	DB        *bun.DB
	Redis     *rediswrap.Redis
	Publisher kafka.Publisher
	Verifier  auth.Verifier
	Config    *config.Config
	Logger    *logger.Logger
}

// App holds every service and handler of one engine instance.
type App struct {
	Policies   policy.Set
	Emitter    *sse.CapacityEmitter
	Capacity   *capacity.Aggregator
	Events     *events.EventService
	Tasks      *tasks.TaskService
	Attendance *attendance.AttendanceService
	Recurrence *recurrence.Generator
	Analytics  *analytics.Service

	EventHandler      *event_api.Handler
	TaskHandler       *task_api.Handler
	AttendanceHandler *attendance_api.Handler
	RecurrenceHandler *recurrence_api.Handler
	AnalyticsHandler  *analytics_api.Handler
	StreamHandler     *sse.Handler

	verifier auth.Verifier
	origins  []string
	logger   *logger.Logger
}

func NewApp(d Deps) *App {
	cfg := d.Config
	log := d.Logger
	publisher := d.Publisher
	if publisher == nil {
		publisher = kafka.NopPublisher{}
	}
	policies := policy.FromConfig(cfg.Policy)

	var cache capacity.Cache
	var runs recurrence.RunStore = recurrence.NewMemoryRunStore(cfg.Redis.RecurrenceRunTTL)
	if d.Redis != nil {
		cache = d.Redis
		runs = d.Redis
	}

	resolver := identity.NewReconciler(identity.NewUserDB(d.DB))
	emitter := sse.NewCapacityEmitter()
	aggregator := capacity.NewAggregator(capacity.NewDB(d.DB), cache, log)

	eventDB := event_db.NewDB(d.DB)
	eventService := events.NewEventService(eventDB, policies.Ownership, log)
	eventService.Publisher = publisher
	eventService.Capacity = aggregator

	taskService := tasks.NewTaskService(task_db.NewDB(d.DB), aggregator, resolver, log)
	taskService.Publisher = publisher
	taskService.Emitter = emitter
	taskService.Ownership = policies.Ownership
	taskService.Policy = policies.Capacity
	if d.Redis != nil {
		taskService.Locker = d.Redis
	}

	attendanceService := attendance.NewAttendanceService(attendance_db.NewDB(d.DB), resolver, log)
	attendanceService.Publisher = publisher
	attendanceService.Visibility = policies.ContactVisibility

	generator := recurrence.NewGenerator(eventService, taskService, runs, cfg.Recurrence.MaxCount, log)
	generator.Publisher = publisher

	analyticsService := analytics.NewService(analytics.NewDB(d.DB), eventDB, log)
	analyticsService.Ownership = policies.Ownership
	analyticsService.Visibility = policies.ContactVisibility

	return &App{
		Policies:   policies,
		Emitter:    emitter,
		Capacity:   aggregator,
		Events:     eventService,
		Tasks:      taskService,
		Attendance: attendanceService,
		Recurrence: generator,
		Analytics:  analyticsService,

		EventHandler:      event_api.NewHandler(eventService, qr.NewGenerator(cfg.Server.PublicBaseURL), log),
		TaskHandler:       task_api.NewHandler(taskService, log),
		AttendanceHandler: attendance_api.NewHandler(attendanceService, log),
		RecurrenceHandler: recurrence_api.NewHandler(generator, log),
		AnalyticsHandler:  analytics_api.NewHandler(analyticsService, log),
		StreamHandler:     sse.NewHandler(emitter, aggregator, eventService, log),

		verifier: d.Verifier,
		origins:  cfg.Server.AllowedOrigins,
		logger:   log,
	}
}
