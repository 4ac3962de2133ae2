package profile

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/glowface/api/auth"
	resp "github.com/glowface/api/response"

	"github.com/go-chi/chi"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

var validate *validator.Validate = validator.New()

// Options contains the configuration for Service router
type Options struct {
	Auth     *auth.Auth
	Profiles Store
	Logger   *zap.Logger
}

// Service is the profile API router
type Service struct {
	Options
}

// UpdateRequest is the model of user request to save their profile
type UpdateRequest struct {
	FullName        string          `json:"fullName" validate:"required,max=200"`
	Age             *int            `json:"age" validate:"omitempty,min=13,max=120"`
	Gender          string          `json:"gender" validate:"omitempty,oneof=masculino feminino outro prefiro_nao_dizer"`
	SkinType        string          `json:"skinType" validate:"omitempty,oneof=oleosa seca mista normal sensivel"`
	MainConcerns    string          `json:"mainConcerns" validate:"max=2000"`
	ExperienceLevel ExperienceLevel `json:"experienceLevel" validate:"required,oneof=iniciante intermediario avancado"`
	AvatarURL       string          `json:"avatarUrl" validate:"omitempty,url"`
}

// NewService will create an instance of the profile API router
func NewService(option Options) (*Service, error) {
	if option.Auth == nil {
		return nil, fmt.Errorf("nil Auth is invalid")
	}
	if option.Profiles == nil {
		return nil, fmt.Errorf("nil Profiles is invalid")
	}
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	return &Service{
		Options: option,
	}, nil
}

func (s *Service) getProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims, _ := auth.FromContext(ctx)

	logger := s.Logger.With(zap.String("UserID", claims.UserID()))

	p, err := s.Profiles.GetByUser(ctx, claims.UserID())
	if err != nil {
		logger.Error("Unable to query profile",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Cannot get profile"))
		return
	}
	if p == nil {
		resp.WriteError(w, r, resp.ErrNotFound().AddMessages("Profile not created yet"))
		return
	}

	resp.WriteResponse(w, r, p)
}

func (s *Service) putProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims, _ := auth.FromContext(ctx)

	logger := s.Logger.With(zap.String("UserID", claims.UserID()))

	var req UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.WriteError(w, r, resp.ErrInvalidJson())
		return
	}
	if req.ExperienceLevel == "" {
		req.ExperienceLevel = LevelBeginner
	}

	if err := validate.Struct(&req); err != nil {
		resp.WriteError(w, r, resp.ErrValidation(err))
		return
	}

	p, err := s.Profiles.Upsert(ctx, &UserProfile{
		UserID:          claims.UserID(),
		FullName:        req.FullName,
		Age:             req.Age,
		Gender:          req.Gender,
		SkinType:        req.SkinType,
		MainConcerns:    req.MainConcerns,
		ExperienceLevel: req.ExperienceLevel,
		AvatarURL:       req.AvatarURL,
	})
	if err != nil {
		logger.Error("Unable to save profile",
			zap.Error(err),
		)
		resp.WriteError(w, r, resp.ErrUnexpected().AddMessages("Cannot save profile"))
		return
	}

	resp.WriteResponse(w, r, p)
}

// Router will return the routes under profile API
func (s *Service) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(s.Auth.Middleware())
	r.Use(s.Auth.ClaimCheck())

	r.Get("/", s.getProfile)
	r.Put("/", s.putProfile)

	return r
}
