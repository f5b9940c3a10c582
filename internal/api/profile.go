package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/jonathan/autoapply-client/internal/types"
)

// FetchProfile retrieves the authoritative profile for userID. A 404 is
// returned as a NotFoundError: the profile has not been created yet.
func (c *Client) FetchProfile(ctx context.Context, token, userID string) (*types.UserProfile, error) {
	var profile types.UserProfile
	path := "/profile/" + url.PathEscape(userID)
	if err := c.doJSON(ctx, http.MethodGet, path, token, nil, &profile, "fetch profile"); err != nil {
		return nil, err
	}
	return &profile, nil
}

// SaveProfile writes the full profile record to the server. The caller only
// updates local state after a nil return; a failed save must leave every
// local copy untouched.
func (c *Client) SaveProfile(ctx context.Context, token string, profile *types.UserProfile) error {
	return c.doJSON(ctx, http.MethodPost, "/profile", token, profile, nil, "save profile")
}
