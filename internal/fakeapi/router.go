package fakeapi

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// apiError is the wire shape of every error response.
type apiError struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

func httpError(status int, code, message string) *echo.HTTPError {
	return echo.NewHTTPError(status, apiError{Code: code, Message: message})
}

// HandleError renders errors as the {code,message} body the client decodes.
func HandleError(err error, c echo.Context) {
	status := http.StatusInternalServerError
	body := apiError{Message: "Internal Server Error"}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
		switch m := he.Message.(type) {
		case apiError:
			body = m
		case string:
			body = apiError{Message: m}
		}
	}

	if status == http.StatusInternalServerError {
		slog.Error("Internal Server Error",
			"err", err,
			"path", c.Path(),
			"method", c.Request().Method,
		)
	}

	if !c.Response().Committed {
		c.JSON(status, body)
	}
}

// NewEcho wires the server's routes into a fresh echo instance.
func NewEcho(s *Server, logger *slog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = HandleError

	// Middlewares
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper:   middleware.DefaultSkipper,
		LogURI:    true,
		LogMethod: true,
		LogStatus: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.Info("HTTP request",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
			)
			return nil
		},
	}))

	//routes
	e.POST("/auth/register", s.handleRegister)
	e.POST("/auth/login", s.handleLogin)
	e.POST("/auth/verify-otp", s.handleVerifyOTP)
	e.POST("/auth/resend-otp", s.handleResendOTP)
	e.POST("/auth/refresh", s.handleRefresh)
	e.POST("/auth/logout", s.handleLogout, authMiddleware(s))
	e.GET("/auth/me", s.handleMe, authMiddleware(s))
	e.PUT("/users/me", s.handleUpdateProfile, authMiddleware(s))
	e.POST("/addresses", s.handleAddAddress, authMiddleware(s))
	e.PUT("/addresses/:id", s.handleUpdateAddress, authMiddleware(s))
	e.DELETE("/addresses/:id", s.handleDeleteAddress, authMiddleware(s))

	return e
}

const accountContextKey = "account"

func authMiddleware(s *Server) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get("Authorization")
			if header == "" || !strings.HasPrefix(header, "Bearer ") {
				return httpError(http.StatusUnauthorized, "", "Unauthorized")
			}

			accessToken := strings.TrimPrefix(header, "Bearer ")

			s.mu.Lock()
			acc, ok := s.authenticate(accessToken)
			s.mu.Unlock()
			if !ok {
				return httpError(http.StatusUnauthorized, "", "Unauthorized")
			}

			c.Set(accountContextKey, acc)
			return next(c)
		}
	}
}
