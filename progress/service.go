package progress

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/glowface/api/auth"
	resp "github.com/glowface/api/response"

	"github.com/go-chi/chi"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

var validate *validator.Validate = validator.New()

// ServiceOptions contains the configuration for Service router
type ServiceOptions struct {
	Auth   *auth.Auth
	Store  Store
	Logger *zap.Logger
	Now    func() time.Time
}

// Service is the progress API router
type Service struct {
	ServiceOptions
}

// RecordRequest is the model of user request after finishing an exercise
type RecordRequest struct {
	ExerciseID        string     `json:"exerciseId" validate:"required"`
	DurationCompleted int        `json:"durationCompleted" validate:"min=0,max=86400"`
	Notes             string     `json:"notes" validate:"max=2000"`
	CompletedAt       *time.Time `json:"completedAt"`
}

// NewService will create an instance of the progress API router
func NewService(option ServiceOptions) (*Service, error) {
	if option.Auth == nil {
		return nil, fmt.Errorf("nil Auth is invalid")
	}
	if option.Store == nil {
		return nil, fmt.Errorf("nil Store is invalid")
	}
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	if option.Now == nil {
		option.Now = time.Now
	}
	return &Service{
		ServiceOptions: option,
	}, nil
}

func (s *Service) recordCompletion(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims, _ := auth.FromContext(ctx)

	logger := s.Logger.With(zap.String("UserID", claims.UserID()))

	var req RecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.WriteError(w, r, resp.ErrInvalidJson())
		return
	}
	if err := validate.Struct(&req); err != nil {
		resp.WriteError(w, r, resp.ErrValidation(err))
		return
	}

	completedAt := s.Now()
	if req.CompletedAt != nil && !req.CompletedAt.After(completedAt) {
		completedAt = *req.CompletedAt
	}

	c := &Completion{
		UserID:            claims.UserID(),
		ExerciseID:        req.ExerciseID,
		CompletedAt:       completedAt.UTC(),
		DurationCompleted: req.DurationCompleted,
		Notes:             req.Notes,
	}
	if err := s.Store.Record(ctx, c); err != nil {
		logger.Error("Unable to record completion",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Cannot record progress"))
		return
	}

	resp.WriteResponse(w, r, c)
}

func (s *Service) getSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims, _ := auth.FromContext(ctx)

	logger := s.Logger.With(zap.String("UserID", claims.UserID()))

	completions, err := s.Store.ListByUser(ctx, claims.UserID())
	if err != nil {
		logger.Error("Unable to list completions",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Cannot get progress"))
		return
	}

	resp.WriteResponse(w, r, Summarize(completions, s.Now()))
}

// Router will return the routes under progress API
func (s *Service) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(s.Auth.Middleware())
	r.Use(s.Auth.ClaimCheck())

	r.Get("/", s.getSummary)
	r.Post("/", s.recordCompletion)

	return r
}
