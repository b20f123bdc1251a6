// Package handler contains the Echo HTTP handlers.  Handlers bind and
// validate request payloads, delegate to repositories or the borrow
// lifecycle service, and translate errors onto the HTTP taxonomy.
package handler

import (
	"errors"
	"strconv"

	"github.com/labstack/echo/v4"
)

// getUserID extracts the authenticated user's ID stored in the context
// by the JWT middleware and converts it to uint64.  JSON claims arrive
// as float64, so several representations are accepted.
func getUserID(c echo.Context) (uint64, error) {
	v := c.Get("user_id")
	switch t := v.(type) {
	case uint64:
		return t, nil
	case int:
		return uint64(t), nil
	case int64:
		return uint64(t), nil
	case float64:
		return uint64(t), nil
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil {
			return n, nil
		}
	}
	return 0, errors.New("invalid user_id in context")
}

// parseID parses a numeric path parameter; zero is treated as invalid.
func parseID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}
