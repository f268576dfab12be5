/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the chi router, the middleware stack and the route table.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request, echoed in error logs
  2. RealIP:     Client address behind a proxy
  3. Logger:     One zap line per request
  4. Recoverer:  Panic recovery (500 instead of crash)
  5. CORS:       Cross-origin requests for the farm dashboard
  6. Actor:      X-Actor header into the audit fields

ROUTE GROUPS:
  /api/sows/*  /api/boars/*          Herd
  /api/heats/*  /api/services/*      Heat and service events
  /api/pregnancies/*                 Pregnancies
  /api/births/*  /api/abortions/*    Outcomes
  /api/piglets/*                     Litter members
  /api/calendar-events/*             Farm calendar
  /api/notifications/*               Alerts
  /api/jobs/*                        Reconciliation jobs
  /api/scenarios/*                   Demo herds
  /healthz  /metrics                 Operations

SECURITY NOTE:
  No authentication middleware. Deploy behind the farm's gateway.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/swinetrack/breeding-engine/breeding"
)

// Options tunes the router.
type Options struct {
	// CORSOrigins defaults to the local dashboard origins.
	CORSOrigins []string
	// Gatherer backs /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts Options) *chi.Mux {
	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173", "http://localhost:8080"}
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(h.logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Actor"},
		AllowCredentials: true,
	}))
	r.Use(actor)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/sows", func(r chi.Router) {
			r.Get("/", h.ListSows)
			r.Post("/", h.CreateSow)
			r.Get("/{id}", get(h, h.store().GetSow))
			r.Put("/{id}", update(h, h.updateSow))
			r.Post("/{id}/deactivate", update(h, h.deactivateSow))
			r.Get("/{id}/summary", get(h, h.coord.ReproductiveSummary))
		})

		r.Route("/boars", func(r chi.Router) {
			r.Get("/", h.ListBoars)
			r.Post("/", h.CreateBoar)
			r.Get("/{id}", get(h, h.store().GetBoar))
			r.Put("/{id}", update(h, h.updateBoar))
		})

		r.Route("/heats", func(r chi.Router) {
			r.Get("/", h.ListHeats)
			r.Post("/", h.RegisterHeat)
			r.Post("/validate", h.ValidateHeat)
			r.Post("/jobs/update-unserved", h.ExpireHeats)
			r.Get("/{id}", get(h, h.store().GetHeat))
			r.Put("/{id}", update(h, h.updateHeat))
			r.Delete("/{id}", remove(h, h.coord.DeleteHeat))
			r.Post("/{id}/cancel", h.CancelHeat)
		})

		r.Route("/services", func(r chi.Router) {
			r.Get("/", h.ListServices)
			r.Post("/", h.RegisterService)
			r.Post("/validate", h.ValidateService)
			r.Get("/{id}", get(h, h.store().GetService))
			r.Put("/{id}", update(h, h.updateService))
			r.Delete("/{id}", remove(h, h.coord.DeleteService))
		})

		r.Route("/pregnancies", func(r chi.Router) {
			r.Get("/", h.ListPregnancies)
			r.Post("/", h.RegisterPregnancy)
			r.Post("/validate", h.ValidatePregnancy)
			r.Get("/{id}", get(h, h.store().GetPregnancy))
			r.Put("/{id}", update(h, h.updatePregnancy))
			r.Delete("/{id}", remove(h, h.coord.DeletePregnancy))
			r.Post("/{id}/confirm", update(h, h.confirmPregnancy))
			r.Post("/{id}/status", update(h, h.setPregnancyStatus))
		})

		r.Route("/births", func(r chi.Router) {
			r.Get("/", h.ListBirths)
			r.Post("/", h.CreateBirth)
			r.Post("/process-weaning", h.ProcessWeaning)
			r.Get("/{id}", get(h, h.store().GetBirth))
			r.Put("/{id}", update(h, h.updateBirth))
			r.Delete("/{id}", remove(h, h.coord.DeleteBirth))
			r.Get("/{id}/piglets", h.LitterPiglets)
			r.Post("/{id}/wean", h.WeanLitter)
		})

		r.Route("/abortions", func(r chi.Router) {
			r.Get("/", h.ListAbortions)
			r.Post("/", h.CreateAbortion)
			r.Get("/{id}", get(h, h.store().GetAbortion))
			r.Put("/{id}", update(h, h.updateAbortion))
			r.Delete("/{id}", remove(h, h.coord.DeleteAbortion))
		})

		r.Route("/piglets", func(r chi.Router) {
			r.Get("/", h.ListPiglets)
			r.Post("/", h.CreatePiglet)
			r.Get("/{id}", get(h, h.store().GetPiglet))
			r.Put("/{id}", update(h, h.updatePiglet))
			r.Delete("/{id}", remove(h, h.coord.DeletePiglet))
		})

		r.Route("/calendar-events", func(r chi.Router) {
			r.Get("/", h.ListCalendarEvents)
			r.Post("/", h.CreateCalendarEvent)
			r.Get("/{id}", get(h, h.store().GetCalendarEvent))
			r.Put("/{id}", update(h, h.updateCalendarEvent))
			r.Delete("/{id}", remove(h, h.coord.DeleteCalendarEvent))
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", h.ListNotifications)
			r.Post("/generate", h.GenerateNotifications)
			r.Post("/read-all", h.MarkAllNotificationsRead)
			r.Post("/{id}/read", h.MarkNotificationRead)
		})

		r.Route("/jobs", func(r chi.Router) {
			r.Get("/", h.ListJobs)
			r.Post("/{name}/run", h.RunJob)
		})

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
		})
	})

	return r
}

// actor stamps the X-Actor header into the request context.
func actor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a := r.Header.Get("X-Actor"); a != "" {
			r = r.WithContext(breeding.WithActor(r.Context(), a))
		}
		next.ServeHTTP(w, r)
	})
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Info("http request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("took", time.Since(start)),
					zap.String("request_id", middleware.GetReqID(r.Context())))
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
