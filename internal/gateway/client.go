package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nhle/claims-inbox/internal/model"
)

const (
	notificationsPath = "/api/notifications"
	loginPath         = "/api/auth/login"

	// requestIDHeader correlates client log lines with server logs.
	requestIDHeader = "X-Request-ID"
)

// Compile-time interface checks.
var (
	_ Gateway       = (*Client)(nil)
	_ Authenticator = (*Client)(nil)
)

// Client is a thin HTTP client for the platform's notification and auth
// REST endpoints. Failed calls are never retried; the poll loop and the
// user decide when to try again.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tracer     trace.Tracer
}

// NewClient creates a new platform client. baseURL is the root of the
// deployment (e.g. http://localhost:8080), without the /api suffix.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		tracer: otel.Tracer("github.com/nhle/claims-inbox/internal/gateway"),
	}
}

// successResponse is the {"success": bool} envelope returned by every
// mutating notification endpoint.
type successResponse struct {
	Success bool `json:"success"`
}

// countResponse is the body of the unread counter endpoint.
type countResponse struct {
	Count int `json:"count"`
}

// loginRequest is the body of the login endpoint.
type loginRequest struct {
	Username         string `json:"username"`
	InsuranceCompany string `json:"insuranceCompany"`
	Password         string `json:"password"`
}

// FetchActive retrieves GET /api/notifications/user/{userId}.
func (c *Client) FetchActive(
	ctx context.Context,
	userID string,
) ([]model.Notification, error) {
	if userID == "" {
		return nil, ErrNoUser
	}

	var notifications []model.Notification
	path := notificationsPath + "/user/" + url.PathEscape(userID)
	if err := c.do(ctx, "FetchActive", http.MethodGet, path, nil, nil, &notifications); err != nil {
		return nil, fmt.Errorf("fetching notifications for %s: %w", userID, err)
	}
	return notifications, nil
}

// FetchTrashed retrieves GET /api/notifications/user/{userId}/trash.
func (c *Client) FetchTrashed(
	ctx context.Context,
	userID string,
) ([]model.Notification, error) {
	if userID == "" {
		return nil, ErrNoUser
	}

	var notifications []model.Notification
	path := notificationsPath + "/user/" + url.PathEscape(userID) + "/trash"
	if err := c.do(ctx, "FetchTrashed", http.MethodGet, path, nil, nil, &notifications); err != nil {
		return nil, fmt.Errorf("fetching trash for %s: %w", userID, err)
	}
	return notifications, nil
}

// FetchUnreadCount retrieves GET /api/notifications/user/{userId}/unread/count.
func (c *Client) FetchUnreadCount(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, ErrNoUser
	}

	var resp countResponse
	path := notificationsPath + "/user/" + url.PathEscape(userID) + "/unread/count"
	if err := c.do(ctx, "FetchUnreadCount", http.MethodGet, path, nil, nil, &resp); err != nil {
		return 0, fmt.Errorf("fetching unread count for %s: %w", userID, err)
	}
	return resp.Count, nil
}

// MarkRead calls POST /api/notifications/{id}/read?userId=.
func (c *Client) MarkRead(ctx context.Context, id int64, userID string) error {
	if userID == "" {
		return ErrNoUser
	}
	path := notificationsPath + "/" + strconv.FormatInt(id, 10) + "/read"
	if err := c.mutate(ctx, "MarkRead", http.MethodPost, path, userQuery(userID)); err != nil {
		return fmt.Errorf("marking notification %d as read: %w", id, err)
	}
	return nil
}

// MarkAllRead calls POST /api/notifications/user/{userId}/read-all.
func (c *Client) MarkAllRead(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrNoUser
	}
	path := notificationsPath + "/user/" + url.PathEscape(userID) + "/read-all"
	if err := c.mutate(ctx, "MarkAllRead", http.MethodPost, path, nil); err != nil {
		return fmt.Errorf("marking all notifications as read: %w", err)
	}
	return nil
}

// Delete calls DELETE /api/notifications/{id}?userId=.
func (c *Client) Delete(ctx context.Context, id int64, userID string) error {
	if userID == "" {
		return ErrNoUser
	}
	path := notificationsPath + "/" + strconv.FormatInt(id, 10)
	if err := c.mutate(ctx, "Delete", http.MethodDelete, path, userQuery(userID)); err != nil {
		return fmt.Errorf("deleting notification %d: %w", id, err)
	}
	return nil
}

// DeleteAll calls DELETE /api/notifications/user/{userId}/all.
func (c *Client) DeleteAll(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrNoUser
	}
	path := notificationsPath + "/user/" + url.PathEscape(userID) + "/all"
	if err := c.mutate(ctx, "DeleteAll", http.MethodDelete, path, nil); err != nil {
		return fmt.Errorf("deleting all notifications: %w", err)
	}
	return nil
}

// Restore calls POST /api/notifications/{id}/restore?userId=.
func (c *Client) Restore(ctx context.Context, id int64, userID string) error {
	if userID == "" {
		return ErrNoUser
	}
	path := notificationsPath + "/" + strconv.FormatInt(id, 10) + "/restore"
	if err := c.mutate(ctx, "Restore", http.MethodPost, path, userQuery(userID)); err != nil {
		return fmt.Errorf("restoring notification %d: %w", id, err)
	}
	return nil
}

// Login calls POST /api/auth/login and returns the signed-in user.
func (c *Client) Login(
	ctx context.Context,
	username string,
	company string,
	password string,
) (*model.User, error) {
	if username == "" {
		return nil, ErrNoUser
	}

	body := loginRequest{
		Username:         username,
		InsuranceCompany: company,
		Password:         password,
	}

	var user model.User
	if err := c.do(ctx, "Login", http.MethodPost, loginPath, nil, body, &user); err != nil {
		return nil, fmt.Errorf("signing in %s: %w", username, err)
	}
	if user.Name == "" {
		user.Name = username
	}
	return &user, nil
}

// mutate performs a call whose body is a {"success": bool} envelope and
// turns success=false into ErrRejected.
func (c *Client) mutate(
	ctx context.Context,
	op string,
	method string,
	path string,
	query url.Values,
) error {
	var resp successResponse
	if err := c.do(ctx, op, method, path, query, nil, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return ErrRejected
	}
	return nil
}

// do is the core HTTP method that builds the request, traces it, maps
// status codes to errors and decodes the JSON response.
func (c *Client) do(
	ctx context.Context,
	op string,
	method string,
	path string,
	query url.Values,
	body interface{},
	result interface{},
) error {
	ctx, span := c.tracer.Start(ctx, "gateway."+op)
	defer span.End()

	requestID := uuid.NewString()
	span.SetAttributes(
		attribute.String("http.method", method),
		attribute.String("http.path", path),
		attribute.String("request.id", requestID),
	)

	err := c.roundTrip(ctx, method, path, query, requestID, body, result)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (c *Client) roundTrip(
	ctx context.Context,
	method string,
	path string,
	query url.Values,
	requestID string,
	body interface{},
	result interface{},
) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set(requestIDHeader, requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request %s %s: %w", method, path, err)
	}

	respBody, readErr := io.ReadAll(resp.Body)
	resp.Body.Close()
	if readErr != nil {
		return fmt.Errorf("reading response body: %w", readErr)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return &AuthError{
			Message: fmt.Sprintf("%s %s returned 401", method, path),
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf(
			"unexpected status %d on %s %s: %s",
			resp.StatusCode, method, path, strings.TrimSpace(string(respBody)),
		)
	}

	// No content to parse (e.g. 204).
	if result == nil || resp.StatusCode == http.StatusNoContent || len(respBody) == 0 {
		return nil
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf(
			"unmarshaling response from %s %s: %w",
			method, path, err,
		)
	}

	return nil
}

// userQuery builds the ?userId= query used by the per-notification routes.
func userQuery(userID string) url.Values {
	return url.Values{"userId": []string{userID}}
}
