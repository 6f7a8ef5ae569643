package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/watchquest/watchquest/watchquest/database/repositories"
	"github.com/watchquest/watchquest/watchquest/logger"
	"github.com/watchquest/watchquest/watchquest/quests"
	"github.com/watchquest/watchquest/watchquest/services"
)

// VideoProvider is the slice of the video service the handlers need.
type VideoProvider interface {
	Random(ctx context.Context) (*services.VideoItem, error)
	RecordWatched(ctx context.Context, videoID int64) error
	RecordClicked(ctx context.Context, videoID int64) error
}

// Server is the mini-app HTTP surface.
type Server struct {
	engine *quests.Engine
	users  repositories.UserRepository
	videos VideoProvider

	allowedOrigins []string
}

func NewServer(engine *quests.Engine, users repositories.UserRepository, videos VideoProvider, allowedOrigins []string) *Server {
	return &Server{
		engine:         engine,
		users:          users,
		videos:         videos,
		allowedOrigins: allowedOrigins,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	origins := s.allowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Route("/quest", func(r chi.Router) {
			r.Get("/list", s.handleQuestList)
			r.Get("/statuses", s.handleQuestStatuses)
			r.Post("/visited", s.handleQuestVisited)
			r.Post("/verify", s.handleQuestVerify)
			r.Post("/complete", s.handleQuestComplete)
		})

		r.Route("/video", func(r chi.Router) {
			r.Get("/random", s.handleVideoRandom)
			r.Post("/watched", s.handleVideoWatched)
			r.Post("/clicked", s.handleVideoClicked)
		})

		r.Post("/postback", s.handlePostback)
	})

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		logger.LogRequest(r.Method, r.URL.Path, ww.Status(), time.Since(start))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
