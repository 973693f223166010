package httpapi

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/taskboard/internal/common"
	"github.com/dmitrijs2005/taskboard/internal/server/auth"
	"github.com/dmitrijs2005/taskboard/internal/server/models"
	"github.com/labstack/echo/v4"
)

const claimsKey = "claims"

type registerRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type tokenResponse struct {
	AccessToken  string    `json:"accessToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
	RefreshToken string    `json:"refreshToken"`
}

type meResponse struct {
	UserID    string    `json:"userId"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func toResponse(p *models.TokenPair) tokenResponse {
	return tokenResponse{AccessToken: p.AccessToken, ExpiresAt: p.AccessExpiresAt, RefreshToken: p.RefreshToken}
}

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", common.ErrValidation, msg)
}

// validateEmail applies the request-level format rule: 5 to 100 characters
// with an @.
func validateEmail(email string) error {
	email = strings.TrimSpace(email)
	if len(email) < 5 || len(email) > 100 || !strings.Contains(email, "@") {
		return invalid("email must be 5-100 characters and contain @")
	}
	return nil
}

func (s *Server) register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return invalid("invalid body")
	}
	if err := validateEmail(req.Email); err != nil {
		return err
	}
	if req.Password == "" {
		return invalid("password is required")
	}

	pair, err := s.svc.Register(c.Request().Context(), req.Email, req.Password, req.DisplayName)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toResponse(pair))
}

func (s *Server) login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return invalid("invalid body")
	}

	pair, err := s.svc.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toResponse(pair))
}

func (s *Server) refresh(c echo.Context) error {
	var req refreshRequest
	if err := c.Bind(&req); err != nil {
		return invalid("invalid body")
	}
	raw := strings.TrimSpace(req.RefreshToken)
	if raw == "" {
		return invalid("refreshToken is required")
	}

	pair, err := s.svc.Refresh(c.Request().Context(), raw)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toResponse(pair))
}

func (s *Server) revoke(c echo.Context) error {
	var req refreshRequest
	if err := c.Bind(&req); err != nil {
		return invalid("invalid body")
	}
	if err := s.svc.Revoke(c.Request().Context(), strings.TrimSpace(req.RefreshToken)); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// bearer authenticates the Authorization header and stores the claims.
func (s *Server) bearer(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		h := c.Request().Header.Get(echo.HeaderAuthorization)
		token, ok := strings.CutPrefix(h, common.BearerPrefix)
		if !ok || strings.TrimSpace(token) == "" {
			return common.ErrorUnauthorized
		}

		claims, err := s.svc.Authenticate(c.Request().Context(), strings.TrimSpace(token))
		if err != nil {
			return err
		}
		c.Set(claimsKey, claims)
		return next(c)
	}
}

func (s *Server) me(c echo.Context) error {
	claims, ok := c.Get(claimsKey).(*auth.Claims)
	if !ok {
		return common.ErrorUnauthorized
	}
	resp := meResponse{UserID: claims.Subject, Email: claims.Email, Name: claims.Name}
	if claims.ExpiresAt != nil {
		resp.ExpiresAt = claims.ExpiresAt.Time
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) health(c echo.Context) error {
	if s.opts.Health != nil {
		if err := s.opts.Health(c.Request().Context()); err != nil {
			s.log.Warn(c.Request().Context(), "health check failed", "error", err)
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "unavailable"})
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}
