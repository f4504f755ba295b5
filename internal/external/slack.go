package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"birthdaybot/internal/types"
)

const (
	slackAPIBase = "https://slack.com/api"

	// slackMembersPageSize is the conversations.members page size Slack
	// recommends staying under.
	slackMembersPageSize = 200

	// slackMaxMemberPages stops a pagination loop on a misbehaving cursor.
	slackMaxMemberPages = 100
)

// SlackClientConfig configures a SlackClient.
type SlackClientConfig struct {
	Token          types.SecretString
	BaseURL        string // defaults to slackAPIBase
	RequestsPerMin int    // client-side budget shared by all calls; 0 disables
	Logger         *slog.Logger
}

// SlackClient talks to the Slack Web API with a bot token. It covers the
// calls the celebration pipeline needs: user status, channel membership,
// external file uploads and chat.postMessage.
type SlackClient struct {
	base    *BaseClient
	token   string
	baseURL string
	logger  *slog.Logger
}

func NewSlackClient(httpClient *http.Client, cfg SlackClientConfig, opts ...BaseClientOption) *SlackClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = slackAPIBase
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.RequestsPerMin > 0 {
		limiter := rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMin)), 5)
		opts = append([]BaseClientOption{WithRateLimiter(limiter)}, opts...)
	}

	return &SlackClient{
		base: NewBaseClient(
			httpClient,
			"slack",
			RetryPolicy{MaxRetries: 3, MinWait: time.Second, MaxWait: 30 * time.Second},
			"birthdaybot/1.0",
			opts...,
		),
		token:   cfg.Token.Unmask(),
		baseURL: strings.TrimSuffix(baseURL, "/"),
		logger:  logger,
	}
}

// slackAPIResponse is the envelope every Web API method returns. Slack
// reports most failures as HTTP 200 with ok=false.
type slackAPIResponse struct {
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
	Warning string `json:"warning,omitempty"`
}

func (r slackAPIResponse) envelope() slackAPIResponse { return r }

type slackEnvelope interface {
	envelope() slackAPIResponse
}

type slackUserResponse struct {
	slackAPIResponse
	User struct {
		ID      string `json:"id"`
		Name    string `json:"name"`
		Deleted bool   `json:"deleted"`
		IsBot   bool   `json:"is_bot"`
		Profile struct {
			DisplayName string `json:"display_name"`
			RealName    string `json:"real_name"`
		} `json:"profile"`
	} `json:"user"`
}

type slackMembersResponse struct {
	slackAPIResponse
	Members          []string `json:"members"`
	ResponseMetadata struct {
		NextCursor string `json:"next_cursor"`
	} `json:"response_metadata"`
}

type slackUploadURLResponse struct {
	slackAPIResponse
	UploadURL string `json:"upload_url"`
	FileID    string `json:"file_id"`
}

type slackCompleteUploadResponse struct {
	slackAPIResponse
	Files []struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	} `json:"files"`
}

type slackPostMessageResponse struct {
	slackAPIResponse
	Channel string `json:"channel"`
	TS      string `json:"ts"`
}

// UserStatus returns the live account state for userID.
func (c *SlackClient) UserStatus(ctx context.Context, userID string) (types.UserStatus, error) {
	var out slackUserResponse
	q := url.Values{"user": {userID}}
	if err := c.get(ctx, "users.info", q, &out); err != nil {
		return types.UserStatus{}, err
	}

	display := out.User.Profile.DisplayName
	if display == "" {
		display = out.User.Profile.RealName
	}
	if display == "" {
		display = out.User.Name
	}
	return types.UserStatus{
		Active:      !out.User.Deleted,
		IsBot:       out.User.IsBot,
		Deleted:     out.User.Deleted,
		DisplayName: display,
	}, nil
}

// ChannelMembers returns the set of user IDs in channelID, following
// pagination cursors to the end.
func (c *SlackClient) ChannelMembers(ctx context.Context, channelID string) (map[string]struct{}, error) {
	members := make(map[string]struct{})
	cursor := ""
	for page := 0; page < slackMaxMemberPages; page++ {
		q := url.Values{
			"channel": {channelID},
			"limit":   {strconv.Itoa(slackMembersPageSize)},
		}
		if cursor != "" {
			q.Set("cursor", cursor)
		}

		var out slackMembersResponse
		if err := c.get(ctx, "conversations.members", q, &out); err != nil {
			return nil, err
		}
		for _, id := range out.Members {
			members[id] = struct{}{}
		}

		cursor = out.ResponseMetadata.NextCursor
		if cursor == "" {
			return members, nil
		}
	}

	c.logger.WarnContext(ctx, "conversations.members pagination limit reached",
		"channel", channelID,
		"members", len(members),
	)
	return members, nil
}

// UploadImage uploads img through the external upload flow and returns the
// file ID to embed in an image block. The file is not shared to any channel;
// the celebration post references it.
func (c *SlackClient) UploadImage(ctx context.Context, img types.ImageRef) (UploadedFile, error) {
	if len(img.Data) == 0 {
		return UploadedFile{}, types.NewAppError(types.ErrCodeValidationMissingField, "image has no data", nil)
	}
	filename := img.Filename
	if filename == "" {
		filename = "birthday.png"
	}

	var ticket slackUploadURLResponse
	form := url.Values{
		"filename": {filename},
		"length":   {strconv.Itoa(len(img.Data))},
	}
	if err := c.postForm(ctx, "files.getUploadURLExternal", form, &ticket); err != nil {
		return UploadedFile{}, err
	}

	if err := c.putBytes(ctx, ticket.UploadURL, img); err != nil {
		return UploadedFile{}, err
	}

	title := img.Title
	if title == "" {
		title = filename
	}
	body := map[string]any{
		"files": []map[string]string{{"id": ticket.FileID, "title": title}},
	}
	var done slackCompleteUploadResponse
	if err := c.postJSON(ctx, "files.completeUploadExternal", body, &done); err != nil {
		return UploadedFile{}, err
	}

	uploaded := UploadedFile{ID: ticket.FileID, Title: title, PersonID: img.PersonID}
	if len(done.Files) > 0 && done.Files[0].ID != "" {
		uploaded.ID = done.Files[0].ID
	}
	return uploaded, nil
}

// PostMessage sends msg and returns the message timestamp.
func (c *SlackClient) PostMessage(ctx context.Context, msg SlackMessage) (string, error) {
	var out slackPostMessageResponse
	if err := c.postJSON(ctx, "chat.postMessage", msg, &out); err != nil {
		return "", err
	}
	return out.TS, nil
}

// AuthTest verifies the token is valid. The admin health check uses it.
func (c *SlackClient) AuthTest(ctx context.Context) error {
	var out slackAPIResponse
	return c.postForm(ctx, "auth.test", url.Values{}, &out)
}

func (c *SlackClient) get(ctx context.Context, method string, q url.Values, out slackEnvelope) error {
	u := c.baseURL + "/" + method
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to create Slack request", err)
	}
	return c.send(req, method, out)
}

func (c *SlackClient) postForm(ctx context.Context, method string, form url.Values, out slackEnvelope) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+method, strings.NewReader(form.Encode()))
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to create Slack request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.send(req, method, out)
}

func (c *SlackClient) postJSON(ctx context.Context, method string, payload any, out slackEnvelope) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to serialize Slack payload", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+method, bytes.NewReader(data))
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to create Slack request", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	return c.send(req, method, out)
}

func (c *SlackClient) send(req *http.Request, method string, out slackEnvelope) error {
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.base.Do(req)
	if err != nil {
		return wrapOp("Slack", method, types.ErrCodeUpstreamSlack, err)
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		body := readErrorBody(resp)
		c.logger.ErrorContext(req.Context(), "Slack API HTTP error",
			"method", method,
			"status_code", resp.StatusCode,
			"response_body", body,
		)
		return types.NewAppError(types.ErrCodeUpstreamSlack,
			fmt.Sprintf("Slack %s returned %d", method, resp.StatusCode), nil)
	}
	if err := decodeJSON(resp, out); err != nil {
		return wrapOp("Slack", method, types.ErrCodeUpstreamSlack, err)
	}

	env := out.envelope()
	if !env.OK {
		return slackError(method, env.Error)
	}
	if env.Warning != "" {
		c.logger.WarnContext(req.Context(), "Slack API warning", "method", method, "warning", env.Warning)
	}
	return nil
}

// putBytes streams image bytes to a presigned upload URL. The URL carries its
// own authorization.
func (c *SlackClient) putBytes(ctx context.Context, uploadURL string, img types.ImageRef) error {
	if uploadURL == "" {
		return types.NewAppError(types.ErrCodeUpstreamSlack, "Slack returned an empty upload URL", nil)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, bytes.NewReader(img.Data))
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to create upload request", err)
	}
	mime := img.MIMEType
	if mime == "" {
		mime = "image/png"
	}
	req.Header.Set("Content-Type", mime)

	resp, err := c.base.Do(req)
	if err != nil {
		return wrapOp("Slack", "file upload", types.ErrCodeUpstreamSlack, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 300 {
		return types.NewAppError(types.ErrCodeUpstreamSlack,
			fmt.Sprintf("Slack file upload returned %d", resp.StatusCode), nil)
	}
	return nil
}

// slackError maps a Web API error string onto an AppError code.
func slackError(method, code string) *types.AppError {
	if code == "" {
		code = "unknown_error"
	}
	msg := fmt.Sprintf("Slack %s: %s", method, code)
	switch code {
	case "user_not_found", "users_not_found":
		return types.NewAppError(types.ErrCodeNotFoundUser, msg, nil)
	case "channel_not_found", "not_in_channel", "is_archived":
		return types.NewAppError(types.ErrCodeNotFoundChannel, msg, nil)
	case "ratelimited":
		return types.NewAppError(types.ErrCodeUpstreamRateLimited, msg, nil)
	default:
		return types.NewAppError(types.ErrCodeUpstreamSlack, msg, nil)
	}
}
