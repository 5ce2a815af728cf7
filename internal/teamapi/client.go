package teamapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/collab/internal/activity"
	"github.com/MarcoPoloResearchLab/collab/internal/team"
)

const (
	membersPath       = "/api/team/members"
	activitiesPath    = "/api/team/activities"
	defaultTimeout    = 10 * time.Second
	maxErrorBodyBytes = 512
)

var errMissingBaseURL = errors.New("teamapi: base url required")

// StatusError reports a non-2xx response from the team endpoints.
type StatusError struct {
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("teamapi: %s returned %d: %s", e.Path, e.StatusCode, e.Body)
}

// Config describes the upstream team service.
type Config struct {
	BaseURL    string
	HTTPClient *http.Client
}

// Client fetches the roster and recent activities from an upstream team service.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

// NewClient validates the base url and constructs a client.
func NewClient(cfg Config) (*Client, error) {
	raw := strings.TrimSpace(cfg.BaseURL)
	if raw == "" {
		return nil, errMissingBaseURL
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("teamapi: invalid base url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("teamapi: base url must be absolute: %q", raw)
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{baseURL: parsed, httpClient: httpClient}, nil
}

type memberPayload struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Email    string    `json:"email"`
	Avatar   string    `json:"avatar"`
	Role     string    `json:"role"`
	Status   string    `json:"status"`
	LastSeen time.Time `json:"lastSeen"`
}

type membersEnvelope struct {
	Members []memberPayload `json:"members"`
}

type activitiesEnvelope struct {
	Activities []activity.Activity `json:"activities"`
}

// FetchMembers returns the upstream roster. Unknown roles fall back to agent and
// unknown statuses to offline.
func (c *Client) FetchMembers(ctx context.Context) ([]team.Member, error) {
	var payload membersEnvelope
	if err := c.getJSON(ctx, membersPath, nil, &payload); err != nil {
		return nil, err
	}
	members := make([]team.Member, 0, len(payload.Members))
	for _, entry := range payload.Members {
		role, err := team.ParseRole(entry.Role)
		if err != nil {
			role = team.RoleAgent
		}
		status, err := team.ParseStatus(entry.Status)
		if err != nil {
			status = team.StatusOffline
		}
		members = append(members, team.Member{
			ID:        strings.TrimSpace(entry.ID),
			Name:      strings.TrimSpace(entry.Name),
			Email:     strings.TrimSpace(entry.Email),
			AvatarURL: strings.TrimSpace(entry.Avatar),
			Role:      role,
			Status:    status,
			LastSeen:  entry.LastSeen,
		})
	}
	return members, nil
}

// FetchActivities returns up to limit upstream activities, newest first.
func (c *Client) FetchActivities(ctx context.Context, limit int) ([]activity.Activity, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	var payload activitiesEnvelope
	if err := c.getJSON(ctx, activitiesPath, query, &payload); err != nil {
		return nil, err
	}
	if payload.Activities == nil {
		return []activity.Activity{}, nil
	}
	return payload.Activities, nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, target interface{}) error {
	endpoint := c.baseURL.ResolveReference(&url.URL{Path: path})
	if len(query) > 0 {
		endpoint.RawQuery = query.Encode()
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), http.NoBody)
	if err != nil {
		return err
	}
	request.Header.Set("Accept", "application/json")

	response, err := c.httpClient.Do(request)
	if err != nil {
		return err
	}
	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode < 200 || response.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(response.Body, maxErrorBodyBytes))
		return &StatusError{Path: path, StatusCode: response.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if err := json.NewDecoder(response.Body).Decode(target); err != nil {
		return fmt.Errorf("teamapi: decode %s: %w", path, err)
	}
	return nil
}
