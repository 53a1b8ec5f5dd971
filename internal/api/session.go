package api

import (
	"context"
	"errors"
	"fmt"

	"github.com/one-capital/pricefeed/internal/model"
)

// ErrUnauthenticated signals the session check found no logged-in user.
var ErrUnauthenticated = errors.New("unauthenticated")

// GetSession returns the currently authenticated user, or ErrUnauthenticated
// when the session is missing or expired.
func (c *Client) GetSession(ctx context.Context) (*model.User, error) {
	var user model.User
	if err := c.get(ctx, "/api/session", nil, &user); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && (apiErr.StatusCode == 401 || apiErr.StatusCode == 403) {
			return nil, ErrUnauthenticated
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return &user, nil
}
