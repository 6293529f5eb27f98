package auth

import (
	"fmt"
	"net/http"

	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"

	apperrors "taskapi/internal/errors"
)

// ContextKeyClaims is the echo context key holding the verified *Claims.
const ContextKeyClaims = "user"

// MiddlewareConfig wires the bearer-token middleware.
type MiddlewareConfig struct {
	JWT    *JWTService
	Tokens TokenStoreInterface
	// OnReject, when set, is called with the error code of every rejected request.
	OnReject func(code string)
}

// Middleware returns the chain guarding protected routes: echo-jwt extracts
// and verifies the bearer token, then the user id is copied into the
// request context for the handlers.
func Middleware(cfg MiddlewareConfig) []echo.MiddlewareFunc {
	verify := echojwt.WithConfig(echojwt.Config{
		ContextKey:  ContextKeyClaims,
		TokenLookup: "header:" + echo.HeaderAuthorization + ":Bearer ",
		ParseTokenFunc: func(c echo.Context, token string) (interface{}, error) {
			claims, err := cfg.JWT.ValidateToken(token)
			if err != nil {
				return nil, err
			}
			if cfg.Tokens != nil {
				revoked, _ := cfg.Tokens.IsTokenRevoked(c.Request().Context(), claims.ID)
				if revoked {
					return nil, fmt.Errorf("%w: token revoked", apperrors.ErrInvalidToken)
				}
			}
			return claims, nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			reason := apperrors.ErrInvalidToken
			if c.Request().Header.Get(echo.HeaderAuthorization) == "" {
				reason = apperrors.ErrMissingToken
			}
			httpErr := apperrors.MapErrorToHTTP(reason)
			if cfg.OnReject != nil {
				cfg.OnReject(httpErr.Code)
			}
			c.Logger().Debugf("auth rejected: %v", err)
			return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse())
		},
	})
	return []echo.MiddlewareFunc{verify, attachUserID}
}

func attachUserID(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		claims, ok := ClaimsFromEcho(c)
		if !ok {
			httpErr := apperrors.MapErrorToHTTP(apperrors.ErrInvalidToken)
			return echo.NewHTTPError(http.StatusUnauthorized, httpErr.ToErrorResponse())
		}
		req := c.Request()
		c.SetRequest(req.WithContext(WithUserID(req.Context(), claims.UserID)))
		return next(c)
	}
}

// ClaimsFromEcho returns the claims stored by the middleware.
func ClaimsFromEcho(c echo.Context) (*Claims, bool) {
	claims, ok := c.Get(ContextKeyClaims).(*Claims)
	return claims, ok && claims != nil
}
