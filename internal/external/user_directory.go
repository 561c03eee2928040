package external

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"balance-api/internal/models"
)

// UserDirectory resolves a free-text identifier (numeric ID or @handle) to a
// user identity. The balance core never validates identity existence itself;
// it operates on identities this directory has already vetted.
type UserDirectory interface {
	Resolve(ctx context.Context, identifier string) (*DirectoryUser, error)
}

// DirectoryUser is the directory's view of a resolved user.
type DirectoryUser struct {
	UserID    int64  `json:"user_id"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
}

// Display returns the handle when present, falling back to the first name.
func (u *DirectoryUser) Display() string {
	if u.Username != "" {
		return "@" + u.Username
	}
	if u.FirstName != "" {
		return u.FirstName
	}
	return fmt.Sprintf("user %d", u.UserID)
}

// DirectoryConfig configures the HTTP user directory client.
type DirectoryConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

type httpUserDirectory struct {
	config *DirectoryConfig
	client *http.Client
}

// NewUserDirectory creates an HTTP client against the surrounding users service.
func NewUserDirectory(config *DirectoryConfig) UserDirectory {
	timeout := config.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &httpUserDirectory{
		config: config,
		client: &http.Client{Timeout: timeout},
	}
}

func (d *httpUserDirectory) Resolve(ctx context.Context, identifier string) (*DirectoryUser, error) {
	query := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(identifier), "@"))
	if query == "" {
		return nil, models.ErrUserNotFound
	}

	endpoint := fmt.Sprintf("%s/api/v1/users/resolve?q=%s",
		strings.TrimRight(d.config.BaseURL, "/"), url.QueryEscape(query))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build directory request: %w", err)
	}
	req.Header.Set("X-API-Key", d.config.APIKey)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, models.NewTransientError("resolve user", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var user DirectoryUser
		if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
			return nil, fmt.Errorf("failed to decode directory response: %w", err)
		}
		if user.UserID <= 0 {
			return nil, models.ErrUserNotFound
		}
		return &user, nil
	case http.StatusNotFound:
		return nil, models.ErrUserNotFound
	default:
		return nil, models.NewTransientError("resolve user",
			fmt.Errorf("directory returned status %d", resp.StatusCode))
	}
}
