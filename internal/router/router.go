package router

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	echoSwagger "github.com/swaggo/echo-swagger"

	"taskapi/internal/auth"
	"taskapi/internal/config"
	apperrors "taskapi/internal/errors"
	"taskapi/internal/handler"
	"taskapi/internal/metrics"
)

// Deps are the collaborators the routes need.
type Deps struct {
	JWT         *auth.JWTService
	Tokens      auth.TokenStoreInterface
	Metrics     *metrics.Metrics
	AuthHandler *handler.AuthHandler
	TaskHandler *handler.TaskHandler
}

// Register wires routes and middleware.
func Register(e *echo.Echo, cfg *config.Config, deps Deps) {
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("1M"))
	if cfg.RequestTimeout > 0 {
		e.Use(middleware.ContextTimeoutWithConfig(middleware.ContextTimeoutConfig{
			Timeout: cfg.RequestTimeout,
		}))
	}

	e.Validator = NewCustomValidator()
	e.HTTPErrorHandler = ErrorHandler

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/metrics", echo.WrapHandler(deps.Metrics.Handler()))
	e.GET("/api-docs/*", echoSwagger.WrapHandler)

	// Public routes
	e.POST("/register", deps.AuthHandler.Register)
	e.POST("/login", deps.AuthHandler.Login)

	// Secured routes (require a valid, unrevoked bearer token), guarded per
	// route so unknown paths stay 404.
	secured := auth.Middleware(auth.MiddlewareConfig{
		JWT:    deps.JWT,
		Tokens: deps.Tokens,
		OnReject: func(code string) {
			deps.Metrics.AuthEvent("rejected_" + strings.ToLower(code))
		},
	})

	e.POST("/logout", deps.AuthHandler.Logout, secured...)
	e.GET("/me", deps.AuthHandler.Me, secured...)

	e.POST("/tasks", deps.TaskHandler.CreateTask, secured...)
	e.GET("/tasks", deps.TaskHandler.ListTasks, secured...)
	e.GET("/tasks/:id", deps.TaskHandler.GetTask, secured...)
	e.PUT("/tasks/:id", deps.TaskHandler.UpdateTask, secured...)
	e.DELETE("/tasks/:id", deps.TaskHandler.DeleteTask, secured...)
}

// ErrorHandler renders every error as an errors.ErrorResponse body.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	var body apperrors.ErrorResponse

	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
		switch msg := he.Message.(type) {
		case apperrors.ErrorResponse:
			body = msg
		case string:
			body = apperrors.ErrorResponse{Error: strings.ToLower(msg), Code: apperrors.CodeForStatus(status)}
		default:
			body = apperrors.ErrorResponse{Error: strings.ToLower(http.StatusText(status)), Code: apperrors.CodeForStatus(status)}
		}
	} else {
		httpErr := apperrors.MapErrorToHTTP(err)
		status = httpErr.StatusCode
		body = httpErr.ToErrorResponse()
	}

	if status >= http.StatusInternalServerError {
		c.Logger().Error(err)
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, body)
	}
	if err != nil {
		c.Logger().Error(err)
	}
}

// CustomValidator wraps validator for Echo.
type CustomValidator struct {
	validator *validator.Validate
}

// NewCustomValidator reports fields by their JSON names.
func NewCustomValidator() *CustomValidator {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return &CustomValidator{validator: v}
}

// Validate implements echo.Validator interface. Failures wrap ErrValidation
// and describe the first offending field.
func (cv *CustomValidator) Validate(i interface{}) error {
	err := cv.validator.Struct(i)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return fmt.Errorf("%w: %s", apperrors.ErrValidation, describe(verrs[0]))
	}
	return fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "email":
		return fe.Field() + " must be a valid email address"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	default:
		return fe.Field() + " is invalid"
	}
}
