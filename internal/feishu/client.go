package feishu

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const defaultBaseURL = "https://open.feishu.cn"

// Receive ID types accepted by the message API.
const (
	ReceiveIDTypeOpenID = "open_id"
	ReceiveIDTypeUserID = "user_id"
	ReceiveIDTypeChatID = "chat_id"
	ReceiveIDTypeEmail  = "email"
)

// OpenIDPrefix marks platform identifiers that must be addressed as open_id.
const OpenIDPrefix = "ou_"

// tokenExpiryMargin refreshes the tenant token 5 minutes before the platform
// says it expires.
const tokenExpiryMargin = 5 * time.Minute

// Client wraps the Feishu open API. It owns the tenant access token lifecycle
// and is safe for concurrent use.
type Client struct {
	appID     string
	appSecret string
	baseURL   string
	http      *http.Client

	mu       sync.Mutex
	token    string
	expireAt time.Time
	refresh  singleflight.Group
}

func NewClient(appID, appSecret string) *Client {
	return &Client{
		appID:     appID,
		appSecret: appSecret,
		baseURL:   defaultBaseURL,
		http:      &http.Client{Timeout: 15 * time.Second},
	}
}

// UserInfo is the identity returned by the OAuth code exchange.
type UserInfo struct {
	OpenID string `json:"open_id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
}

func (c *Client) cachedToken() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.expireAt) {
		return c.token, true
	}

	return "", false
}

// tenantAccessToken returns the cached token or refreshes it. Concurrent
// senders hitting an expired token share a single refresh call.
func (c *Client) tenantAccessToken(ctx context.Context) (string, error) {
	if token, ok := c.cachedToken(); ok {
		return token, nil
	}

	v, err, _ := c.refresh.Do("tenant_access_token", func() (interface{}, error) {
		// Another caller may have refreshed while we waited.
		if token, ok := c.cachedToken(); ok {
			return token, nil
		}

		var data struct {
			Code              int    `json:"code"`
			Msg               string `json:"msg"`
			TenantAccessToken string `json:"tenant_access_token"`
			Expire            int    `json:"expire"`
		}

		err := c.postJSON(ctx, "/open-apis/auth/v3/tenant_access_token/internal", "", map[string]string{
			"app_id":     c.appID,
			"app_secret": c.appSecret,
		}, &data)

		if err != nil {
			return nil, err
		}

		if data.Code != 0 {
			return nil, fmt.Errorf("failed to get tenant access token: %s", data.Msg)
		}

		c.mu.Lock()
		c.token = data.TenantAccessToken
		c.expireAt = time.Now().Add(time.Duration(data.Expire)*time.Second - tokenExpiryMargin)
		c.mu.Unlock()

		return data.TenantAccessToken, nil
	})

	if err != nil {
		return "", err
	}

	return v.(string), nil
}

// SendMessage delivers one message to a single recipient. The content object
// is serialized to a JSON string as the message API requires.
func (c *Client) SendMessage(ctx context.Context, receiveID, receiveIDType, msgType string, content map[string]interface{}) error {
	token, err := c.tenantAccessToken(ctx)

	if err != nil {
		return err
	}

	contentBytes, err := json.Marshal(content)

	if err != nil {
		return fmt.Errorf("failed to marshal message content: %w", err)
	}

	var data struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
	}

	path := "/open-apis/im/v1/messages?receive_id_type=" + receiveIDType

	err = c.postJSON(ctx, path, token, map[string]string{
		"receive_id": receiveID,
		"msg_type":   msgType,
		"content":    string(contentBytes),
	}, &data)

	if err != nil {
		return err
	}

	if data.Code != 0 {
		return fmt.Errorf("failed to send message: %s", data.Msg)
	}

	return nil
}

// GetUserAccessToken exchanges an OAuth authorization code for the user's
// identity.
func (c *Client) GetUserAccessToken(ctx context.Context, code string) (*UserInfo, error) {
	token, err := c.tenantAccessToken(ctx)

	if err != nil {
		return nil, err
	}

	var data struct {
		Code int      `json:"code"`
		Msg  string   `json:"msg"`
		Data UserInfo `json:"data"`
	}

	err = c.postJSON(ctx, "/open-apis/authen/v1/access_token", token, map[string]string{
		"grant_type": "authorization_code",
		"code":       code,
	}, &data)

	if err != nil {
		return nil, err
	}

	if data.Code != 0 {
		return nil, fmt.Errorf("failed to get user access token: %s", data.Msg)
	}

	return &data.Data, nil
}

func (c *Client) postJSON(ctx context.Context, path, token string, body interface{}, out interface{}) error {
	payload, err := json.Marshal(body)

	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))

	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)

	if err != nil {
		return err
	}

	defer resp.Body.Close()

	return json.NewDecoder(resp.Body).Decode(out)
}
