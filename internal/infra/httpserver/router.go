package httpserver

import (
    "encoding/json"
    "errors"
    "fmt"
    "net/http"
    "net/url"

    "github.com/go-chi/chi/v5"
    "github.com/go-chi/cors"
    "github.com/sirupsen/logrus"

    appinsights "github.com/bryanwahyu/career-insight/internal/application/insights"
    domai "github.com/bryanwahyu/career-insight/internal/domain/ai"
    "github.com/bryanwahyu/career-insight/internal/domain/insights"
    "github.com/bryanwahyu/career-insight/internal/domain/profiles"
    "github.com/bryanwahyu/career-insight/internal/middleware"
)

type Options struct {
    // user id -> api key
    APIKeys        map[string]string
    AllowedOrigins []string
    // nil disables per-user rate limiting
    RateLimiter *middleware.RateLimiter
    Checkers    map[string]middleware.HealthChecker
    Log         logrus.FieldLogger
}

type Router struct {
    svc *appinsights.Service
    log logrus.FieldLogger
}

func NewRouter(svc *appinsights.Service, opts Options) http.Handler {
    log := opts.Log
    if log == nil {
        log = logrus.StandardLogger()
    }
    origins := opts.AllowedOrigins
    if len(origins) == 0 {
        origins = []string{"*"}
    }

    r := &Router{svc: svc, log: log}
    mux := chi.NewRouter()

    mux.Use(cors.Handler(cors.Options{
        AllowedOrigins: origins,
        AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
        AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
        ExposedHeaders: []string{"X-Request-ID"},
        MaxAge:         300,
    }))
    mux.Use(middleware.RequestLogger(log))
    mux.Use(middleware.MetricsMiddleware)
    mux.Use(middleware.APIKeyAuth(opts.APIKeys))
    if opts.RateLimiter != nil {
        mux.Use(middleware.RateLimit(opts.RateLimiter))
    }

    mux.Get("/health", middleware.HealthHandler(opts.Checkers))
    mux.Get("/healthz/live", middleware.LivenessHandler)
    mux.Get("/healthz/ready", middleware.ReadinessHandler(opts.Checkers))
    mux.Get("/metrics", middleware.MetricsHandler)

    mux.Route("/v1", func(rt chi.Router) {
        rt.Post("/profile", r.wrap("Failed to create profile", r.handleRegister))
        rt.Put("/profile", r.wrap("Failed to update profile", r.handleUpdateProfile))
        rt.Get("/profile/onboarding", r.wrap("Failed to check onboarding status", r.handleOnboarding))
        rt.Get("/insights/me", r.wrap("Failed to get industry insights", r.handleMyInsight))
        rt.Get("/insights/{category}", r.wrap("Failed to get industry insights", r.handleCategoryInsight))
    })

    return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

// wrap maps workflow errors to status codes; prefix is the user-facing context.
func (r *Router) wrap(prefix string, h handlerFunc) http.HandlerFunc {
    return func(w http.ResponseWriter, req *http.Request) {
        err := h(w, req)
        if err == nil {
            return
        }
        status := statusFor(err)
        msg := prefix + ": " + err.Error()
        if status == http.StatusInternalServerError {
            msg = prefix + ": internal error"
        }
        if status >= 500 {
            r.log.WithError(err).WithFields(logrus.Fields{
                "request_id": middleware.RequestIDFromContext(req.Context()),
                "status":     status,
            }).Error(prefix)
        }
        middleware.WriteError(w, status, msg)
    }
}

func statusFor(err error) int {
    switch {
    case errors.Is(err, insights.ErrInvalidInput):
        return http.StatusBadRequest
    case errors.Is(err, insights.ErrUnauthenticated):
        return http.StatusUnauthorized
    case errors.Is(err, insights.ErrProfileNotFound):
        return http.StatusNotFound
    case errors.Is(err, insights.ErrNotOnboarded):
        return http.StatusConflict
    // quota is wrapped inside ErrInsightUnavailable, check it first
    case errors.Is(err, domai.ErrQuotaExceeded):
        return http.StatusTooManyRequests
    case errors.Is(err, insights.ErrInsightUnavailable):
        return http.StatusBadGateway
    case errors.Is(err, insights.ErrStorageTimeout):
        return http.StatusGatewayTimeout
    default:
        return http.StatusInternalServerError
    }
}

func invalid(format string, args ...any) error {
    return fmt.Errorf("%w: %s", insights.ErrInvalidInput, fmt.Sprintf(format, args...))
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
    w.Header().Set("Content-Type", "application/json")
    w.WriteHeader(status)
    return json.NewEncoder(w).Encode(v)
}

// POST /v1/profile
func (r *Router) handleRegister(w http.ResponseWriter, req *http.Request) error {
    p, err := r.svc.RegisterProfile(req.Context(), middleware.UserIDFromContext(req.Context()))
    if err != nil {
        return err
    }
    return writeJSON(w, http.StatusCreated, p)
}

// PUT /v1/profile
// Body: {"industry": "tech", "subIndustry": "Software Development", "experience": 3, "bio": "...", "skills": ["Go"]}
func (r *Router) handleUpdateProfile(w http.ResponseWriter, req *http.Request) error {
    userID := middleware.UserIDFromContext(req.Context())
    if err := middleware.ValidateUserID(userID); err != nil {
        return fmt.Errorf("%w: %s", insights.ErrUnauthenticated, err)
    }

    var body struct {
        Industry    string   `json:"industry"`
        SubIndustry string   `json:"subIndustry"`
        Experience  int      `json:"experience"`
        Bio         string   `json:"bio"`
        Skills      []string `json:"skills"`
    }
    dec := json.NewDecoder(http.MaxBytesReader(w, req.Body, 1<<20))
    if err := dec.Decode(&body); err != nil {
        return invalid("malformed body: %v", err)
    }

    industry := middleware.SanitizeString(body.Industry)
    if err := middleware.ValidateIndustry(industry); err != nil {
        return invalid("%v", err)
    }
    if err := middleware.ValidateExperience(body.Experience); err != nil {
        return invalid("%v", err)
    }
    bio := middleware.SanitizeString(body.Bio)
    if err := middleware.ValidateBio(bio); err != nil {
        return invalid("%v", err)
    }
    skills, err := middleware.ValidateSkills(body.Skills)
    if err != nil {
        return invalid("%v", err)
    }
    category := insights.NormalizeCategory(industry, middleware.SanitizeString(body.SubIndustry))
    if err := middleware.ValidateCategory(category); err != nil {
        return invalid("%v", err)
    }

    res, err := r.svc.UpdateProfileAndEnsureInsight(req.Context(), userID, profiles.Fields{
        Category:        category,
        ExperienceYears: body.Experience,
        Bio:             bio,
        Skills:          skills,
    })
    if err != nil {
        return err
    }
    return writeJSON(w, http.StatusOK, res)
}

// GET /v1/profile/onboarding
func (r *Router) handleOnboarding(w http.ResponseWriter, req *http.Request) error {
    ok, err := r.svc.OnboardingStatus(req.Context(), middleware.UserIDFromContext(req.Context()))
    if err != nil {
        return err
    }
    return writeJSON(w, http.StatusOK, map[string]bool{"isOnboarded": ok})
}

// GET /v1/insights/me
func (r *Router) handleMyInsight(w http.ResponseWriter, req *http.Request) error {
    rep, err := r.svc.GetInsightForCurrentUser(req.Context(), middleware.UserIDFromContext(req.Context()))
    if err != nil {
        return err
    }
    return writeJSON(w, http.StatusOK, rep)
}

// GET /v1/insights/{category}
func (r *Router) handleCategoryInsight(w http.ResponseWriter, req *http.Request) error {
    category, err := url.PathUnescape(chi.URLParam(req, "category"))
    if err != nil {
        return invalid("bad category: %v", err)
    }
    if err := middleware.ValidateCategory(category); err != nil {
        return invalid("%v", err)
    }
    rep, err := r.svc.EnsureInsightForCategory(req.Context(), category)
    if err != nil {
        return err
    }
    return writeJSON(w, http.StatusOK, rep)
}
