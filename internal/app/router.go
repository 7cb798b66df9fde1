package app

import (
	"database/sql"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/YLF-Cat/man-eating-tree-offline/internal/app/observability"
	"github.com/YLF-Cat/man-eating-tree-offline/internal/preset"
	"github.com/YLF-Cat/man-eating-tree-offline/internal/quiz"
	"github.com/YLF-Cat/man-eating-tree-offline/internal/report"
	"github.com/YLF-Cat/man-eating-tree-offline/internal/roster"
)

func NewRouter(cfg Config, db *sql.DB) (http.Handler, error) {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	collector := observability.NewCollector(db)
	r.Use(collector.Middleware)

	gate, err := NewOperatorGate(cfg.OperatorCode)
	if err != nil {
		return nil, err
	}
	limiter := NewIPRateLimiter(cfg.RateLimitPerMin, time.Minute)

	rng := &lockedRand{src: rand.New(rand.NewSource(time.Now().UnixNano()))}
	rosterSvc := roster.NewService(db, rng)
	quizSvc := quiz.NewService(db, rosterSvc, rng)
	catalog := preset.NewCatalog(cfg.PresetsPath)

	rosterHandler := roster.NewHandler(rosterSvc)
	quizHandler := quiz.NewHandler(quizSvc, catalog)
	reportHandler := report.NewHandler(report.NewService(rosterSvc, quizSvc))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	r.Get("/metrics", collector.MetricsHandler)
	r.Get("/qr", consoleQR(cfg.ConsoleURL))

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(RateLimitMiddleware(limiter))
		api.Use(gate.Middleware)

		api.Get("/seeds", rosterHandler.ListSeeds)
		api.Post("/seeds/ensure", rosterHandler.EnsureSeeds)
		api.Get("/students", rosterHandler.ListStudents)

		api.Get("/presets", quizHandler.ListPresets)

		api.Get("/questions", quizHandler.History)
		api.Post("/questions/publish", quizHandler.Publish)
		api.Get("/questions/active", quizHandler.Active)
		api.Post("/questions/settle", quizHandler.Settle)
		api.Get("/questions/{id}", quizHandler.Get)
		api.Put("/questions/{id}/options", quizHandler.EditOptions)
		api.Get("/questions/{id}/stats", quizHandler.Stats)
		api.Get("/questions/{id}/results", quizHandler.Results)
		api.Delete("/questions/{id}/answers/{sid}", quizHandler.DeleteAnswer)
		api.Post("/questions/{id}/score/option", quizHandler.ScoreOption)
		api.Post("/questions/{id}/score/student", quizHandler.ScoreStudent)
		api.Post("/questions/{id}/score/lottery", quizHandler.ScoreLottery)

		api.Post("/submissions", quizHandler.Submit)

		api.Get("/export/scoreboard.xlsx", reportHandler.Scoreboard)
		api.Get("/export/questions/{id}.xlsx", reportHandler.Question)
	})

	return r, nil
}

// lockedRand serializes draws on the one source shared by the roster and
// quiz services; *rand.Rand itself is not safe for concurrent use.
type lockedRand struct {
	mu  sync.Mutex
	src *rand.Rand
}

func (l *lockedRand) Intn(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.src.Intn(n)
}

func (l *lockedRand) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.src.Float64()
}

// consoleQR serves the console URL as a PNG QR code, for pointing a phone at
// the room machine.
func consoleQR(url string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		png, err := qrcode.Encode(url, qrcode.Medium, 256)
		if err != nil {
			http.Error(w, "qr encode failed", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(png)
	}
}
