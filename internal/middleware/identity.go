package middleware

// identity.go defines accessors for the caller identity that JWTAuth
// stores in the Echo context.

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-ticketing/internal/model"
)

// UserID returns the authenticated user's id.
func UserID(c echo.Context) (uint64, bool) {
	switch v := c.Get(ctxUserID).(type) {
	case uint64:
		return v, v != 0
	case string:
		n, err := strconv.ParseUint(v, 10, 64)
		return n, err == nil && n != 0
	}
	return 0, false
}

// Role returns the authenticated user's role.
func Role(c echo.Context) (model.Role, bool) {
	s, ok := c.Get(ctxRole).(string)
	if !ok {
		return "", false
	}
	r, err := model.ParseRole(s)
	return r, err == nil
}

// Token returns the id and expiry of the access token that authenticated
// the request.
func Token(c echo.Context) (string, time.Time, bool) {
	id, _ := c.Get(ctxTokenID).(string)
	exp, _ := c.Get(ctxTokenExp).(time.Time)
	return id, exp, id != ""
}

// rateIdentity names the caller for rate-limit keys.
func rateIdentity(c echo.Context) string {
	if id, ok := UserID(c); ok {
		return strconv.FormatUint(id, 10)
	}
	return "anon"
}
