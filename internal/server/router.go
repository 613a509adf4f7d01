package server

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"ms-community/internal/auth"
	"ms-community/internal/logger"
	"ms-community/internal/models"
	"ms-community/internal/utils"
)

// Router mounts every endpoint. Public reads need no token, sign-up and
// registration accept one, and the organizer console requires an Admin or
// Organizer token.
func (a *App) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(a.logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   a.origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "Idempotency-Key"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondSuccess(w, http.StatusOK, "ok", map[string]string{"policies": a.Policies.String()})
	})

	// --- Public Routes ---
	r.Group(func(r chi.Router) {
		r.Get("/api/events/public", a.EventHandler.ListPublicEvents)
		r.Get("/api/events/{id}/tasks/public", a.TaskHandler.ListPublicTasks)
		r.Get("/api/events/{id}/attendance/summary", a.AttendanceHandler.Summary)
		r.Get("/api/events/{id}/onsite-qr.png", a.EventHandler.OnsiteQR)
		r.Get("/api/events/{id}/tasks/stream", a.StreamHandler.StreamTaskCapacity)
		r.Get("/api/tasks/{id}/capacity", a.TaskHandler.GetCapacity)
	})

	// --- Optional Auth Routes ---
	r.Group(func(r chi.Router) {
		r.Use(auth.Optional(a.verifier, a.logger))
		r.Post("/api/events/{id}/register", a.AttendanceHandler.Register)
		r.Post("/api/tasks/{id}/signup", a.TaskHandler.SignUp)
	})

	// --- Organizer Routes ---
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(a.verifier, a.logger))
		r.Use(auth.RequireRoles(a.logger, models.RoleAdmin, models.RoleOrganizer))

		r.Get("/api/events", a.EventHandler.ListOrganizerEvents)
		r.Post("/api/events", a.EventHandler.CreateEvent)
		r.Put("/api/events/{id}", a.EventHandler.UpdateEvent)
		r.Delete("/api/events/{id}", a.EventHandler.DeleteEvent)
		r.Post("/api/events/{id}/publish", a.EventHandler.PublishEvent)
		r.Post("/api/events/{id}/unpublish", a.EventHandler.UnpublishEvent)
		r.Post("/api/events/{id}/recurrence", a.RecurrenceHandler.Generate)
		r.Get("/api/events/{id}/tasks", a.TaskHandler.ListEventTasks)
		r.Get("/api/events/{id}/registrations", a.AttendanceHandler.ListRegistrations)

		r.Post("/api/tasks", a.TaskHandler.CreateTask)
		r.Put("/api/tasks/{id}", a.TaskHandler.UpdateTask)
		r.Delete("/api/tasks/{id}", a.TaskHandler.DeleteTask)

		a.AnalyticsHandler.RegisterRoutes(r)
	})

	return r
}

func requestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			log.LogAPI(r.Method, r.URL.Path, strconv.Itoa(status), fmt.Sprint(time.Since(start).Round(time.Microsecond)))
		})
	}
}
