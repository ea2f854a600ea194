package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/xela07ax/spaceai-auth-tokens/internal/infra"
	"github.com/xela07ax/spaceai-auth-tokens/internal/infra/auth"
	"github.com/xela07ax/spaceai-auth-tokens/internal/tokens/handler"
	"go.uber.org/zap"
)

type TokenServer struct {
	router *chi.Mux
	logger *zap.Logger
	cfg    *infra.Config

	// Проверка Bearer токенов на защищенных роутах (реализует auth.Codec)
	authValidator auth.TokenValidator

	tokenHandler    *handler.TokenHandler    // /api/v1/tokens*
	validateHandler *handler.ValidateHandler // /api/v1/validate*, /api/v1/me*
	infoHandler     *handler.InfoHandler     // /, /health, /info
}

// NewTokenServer собирает роутер сервиса токенов со всеми зависимостями
func NewTokenServer(
	cfg *infra.Config,
	logger *zap.Logger,
	validator auth.TokenValidator,
	tokenH *handler.TokenHandler,
	validateH *handler.ValidateHandler,
	infoH *handler.InfoHandler,
) *TokenServer {
	s := &TokenServer{
		router:          chi.NewRouter(),
		logger:          logger.Named("tokens-api"),
		cfg:             cfg,
		authValidator:   validator,
		tokenHandler:    tokenH,
		validateHandler: validateH,
		infoHandler:     infoH,
	}

	s.routes()
	return s
}

func (s *TokenServer) routes() {
	r := s.router

	// --- 1. Глобальные инфраструктурные Middleware (для всех) ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(infra.TracingMiddleware)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.Server.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", infra.TraceHeader},
		ExposedHeaders:   []string{infra.TraceHeader},
		AllowCredentials: false, // Bearer в заголовке, cookie не используются
		MaxAge:           300,
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		infra.WriteError(w, r, http.StatusNotFound, "Not Found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		infra.WriteError(w, r, http.StatusMethodNotAllowed, "Method Not Allowed")
	})

	// --- 2. ПУБЛИЧНЫЕ РОУТЫ (Открыты для всех) ---
	r.Get("/", s.infoHandler.Root)
	r.Get("/health", s.infoHandler.Health)
	r.Get("/info", s.infoHandler.Info)

	r.Route(infra.APIV1Prefix, func(r chi.Router) {
		// Выдача токенов — без токена, это и есть логин
		r.Post("/tokens", s.tokenHandler.Create)
		r.Post("/tokens/by-user-id", s.tokenHandler.CreateByUserID)
		r.Post("/tokens/oauth", s.tokenHandler.CreateOAuth)

		// Проверка токенов: всегда 200 с флагом valid
		r.Post("/validate", s.validateHandler.Validate)
		r.Post("/validate/bearer", s.validateHandler.ValidateBearer)
		r.Get("/validate/me", s.validateHandler.ValidateQuery)

		// --- 3. ЗАЩИЩЕННЫЙ ПЕРИМЕТР (Требуют Bearer токен) ---
		r.Group(func(r chi.Router) {
			r.Use(auth.NewMiddleware(s.authValidator, s.logger))

			r.Get("/me", s.validateHandler.Me)
			r.Get("/me/scopes", s.validateHandler.MeScopes)

			r.With(auth.RequireScopes("admin")).Get("/admin/info", s.infoHandler.AdminInfo)
		})
	})
}

// ServeHTTP позволяет использовать TokenServer как стандартный http.Handler
func (s *TokenServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
