package restapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/split73/SaaSoft-test/store"
	"github.com/split73/SaaSoft-test/util"
)

// APIError is returned for non-2xx responses
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (%d): %s", e.StatusCode, e.Message)
}

// Client talks to the account REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	retry      util.RetryConfig
}

func NewClient(baseURL string) *Client {
	retry := util.DefaultRetryConfig()
	retry.ShouldRetryFunc = isUnavailable

	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		retry: retry,
	}
}

func isUnavailable(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusServiceUnavailable
}

func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	return util.Retry(ctx, c.retry, func() error {
		var reqBody io.Reader
		if payload != nil {
			reqBody = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response body: %w", err)
		}

		if resp.StatusCode >= 400 {
			var errResp ErrorResponse
			if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error != "" {
				return &APIError{StatusCode: resp.StatusCode, Message: errResp.Error}
			}
			return &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
		}

		if result != nil && len(respBody) > 0 {
			if err := json.Unmarshal(respBody, result); err != nil {
				return fmt.Errorf("failed to unmarshal response: %w", err)
			}
		}
		return nil
	})
}

func accountPath(id string) string {
	return "/accounts/" + url.PathEscape(id)
}

func (c *Client) ListAccounts(ctx context.Context) ([]store.Account, error) {
	var accounts []store.Account
	err := c.doRequest(ctx, http.MethodGet, "/accounts", nil, &accounts)
	return accounts, err
}

func (c *Client) GetAccount(ctx context.Context, id string) (*store.Account, error) {
	var account store.Account
	if err := c.doRequest(ctx, http.MethodGet, accountPath(id), nil, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

// CreateAccount stores account under a server-generated id when account.ID is empty
func (c *Client) CreateAccount(ctx context.Context, account store.Account) (*store.Account, error) {
	var result store.Account
	if err := c.doRequest(ctx, http.MethodPost, "/accounts", account, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) UpsertAccount(ctx context.Context, account store.Account) (*store.Account, error) {
	var result store.Account
	if err := c.doRequest(ctx, http.MethodPut, accountPath(account.ID), account, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) RemoveAccount(ctx context.Context, id string) error {
	return c.doRequest(ctx, http.MethodDelete, accountPath(id), nil, nil)
}

func (c *Client) Save(ctx context.Context) error {
	return c.doRequest(ctx, http.MethodPost, "/accounts/save", nil, nil)
}
