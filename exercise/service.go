package exercise

import (
	"context"
	"fmt"
	"net/http"

	"github.com/glowface/api/auth"
	resp "github.com/glowface/api/response"

	"github.com/go-chi/chi"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Entitlements tells whether a user may watch premium exercises
type Entitlements interface {
	HasActive(ctx context.Context, userID string) (bool, error)
}

// ServiceOptions contains the configuration for Service router
type ServiceOptions struct {
	Auth         *auth.Auth
	Catalog      Catalog
	Entitlements Entitlements
	Logger       *zap.Logger
}

// Service is the exercise API router
type Service struct {
	ServiceOptions
}

// NewService will create an instance of the exercise API router
func NewService(option ServiceOptions) (*Service, error) {
	if option.Auth == nil {
		return nil, fmt.Errorf("nil Auth is invalid")
	}
	if option.Catalog == nil {
		return nil, fmt.Errorf("nil Catalog is invalid")
	}
	if option.Entitlements == nil {
		return nil, fmt.Errorf("nil Entitlements is invalid")
	}
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	return &Service{
		ServiceOptions: option,
	}, nil
}

func (s *Service) listExercises(w http.ResponseWriter, r *http.Request) {
	difficulty := Difficulty(r.URL.Query().Get("difficulty"))
	if difficulty != "" && !difficulty.Valid() {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("Unknown difficulty"))
		return
	}

	exercises, err := s.Catalog.List(r.Context(), difficulty)
	if err != nil {
		s.Logger.Error("Unable to list exercises",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Cannot list exercises"))
		return
	}

	summaries := make([]Exercise, 0, len(exercises))
	for _, e := range exercises {
		summaries = append(summaries, e.Summary())
	}

	resp.WriteResponse(w, r, summaries)
}

func (s *Service) getExercise(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims, _ := auth.FromContext(ctx)
	exerciseID := chi.URLParam(r, "id")

	logger := s.Logger.With(
		zap.String("UserID", claims.UserID()),
		zap.String("ExerciseID", exerciseID),
	)

	if _, err := uuid.Parse(exerciseID); err != nil {
		resp.WriteError(w, r, resp.ErrNotFound().AddMessages("Cannot find exercise with specific ID"))
		return
	}

	e, err := s.Catalog.Get(ctx, exerciseID)
	if err != nil {
		logger.Error("Unable to query exercise",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Cannot get details about the exercise"))
		return
	}
	if e == nil {
		resp.WriteError(w, r, resp.ErrNotFound().AddMessages("Cannot find exercise with specific ID"))
		return
	}

	if e.IsPremium {
		active, err := s.Entitlements.HasActive(ctx, claims.UserID())
		if err != nil {
			logger.Error("Unable to check subscription",
				zap.Error(err),
			)
			resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Cannot verify subscription"))
			return
		}
		if !active {
			resp.WriteError(w, r, resp.ErrPaymentRequired())
			return
		}
	}

	resp.WriteResponse(w, r, e)
}

// Router will return the routes under exercise API
func (s *Service) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/", s.listExercises)

	r.Group(func(r chi.Router) {
		r.Use(s.Auth.Middleware())
		r.Use(s.Auth.ClaimCheck())

		r.Get("/{id}", s.getExercise)
	})

	return r
}
