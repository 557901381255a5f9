package httpapi

import (
	stdhttp "net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"fundcrm/internal/http/handlers"
	"fundcrm/internal/middleware"
)

// Options carries router-level settings that come from config.
type Options struct {
	AllowedOrigins  []string
	DraftRatePerMin int
}

func NewRouter(app *handlers.App, logger zerolog.Logger, opts Options) stdhttp.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, chimw.RealIP, chimw.Recoverer)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CORS(opts.AllowedOrigins))

	r.Get("/v1/healthz", app.Health)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/pipeline", app.PipelineBoard)

		r.Route("/orgs", func(r chi.Router) {
			r.Get("/", app.OrgsList)
			r.Post("/", app.OrgsCreate)
			r.Route("/{name}", func(r chi.Router) {
				r.Get("/", app.OrgsGet)
				r.Get("/activity", app.OrgsActivity)
				r.Patch("/stage", app.OrgsTransitionStage)
				r.Patch("/owner", app.OrgsAssignOwner)
				r.Patch("/next-action", app.OrgsSetNextAction)
				r.Patch("/notes", app.OrgsUpdateNotes)
				r.Patch("/contact", app.OrgsUpdateContact)
			})
		})

		r.Get("/activity", app.ActivityRecent)

		r.Route("/drafts", func(r chi.Router) {
			// Draft generation may call the LLM; keep it rate limited.
			r.Use(middleware.RateLimit(opts.DraftRatePerMin, time.Minute))
			r.Get("/kinds", app.DraftKinds)
			r.Post("/", app.DraftsCreate)
		})
	})

	r.Post("/slack/commands", app.SlackCommands)

	return r
}
