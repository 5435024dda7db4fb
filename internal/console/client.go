package console

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/winspan/rewritedns/internal/rewrite"
)

// API 控制接口中与重写规则相关的调用
type API interface {
	List(ctx context.Context, param string) ([]rewrite.Rule, error)
	Add(ctx context.Context, r rewrite.Rule) error
	Delete(ctx context.Context, r rewrite.Rule) error
	Update(ctx context.Context, req UpdateRequest) error
}

// APIError 控制接口返回的非 2xx 响应
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("控制接口返回 %d", e.Status)
	}
	return e.Message
}

// Client 控制接口的 HTTP 客户端
type Client struct {
	base  string
	token string
	http  *http.Client
}

// NewClient 创建客户端，base 形如 http://127.0.0.1:8080
func NewClient(base, token string, timeout time.Duration) *Client {
	return &Client{
		base:  strings.TrimSuffix(base, "/"),
		token: token,
		http:  &http.Client{Timeout: timeout},
	}
}

func (c *Client) List(ctx context.Context, param string) ([]rewrite.Rule, error) {
	path := "/control/rewrite/list"
	if param != "" {
		path += "?" + url.Values{"param": {param}}.Encode()
	}

	var rules []rewrite.Rule
	if err := c.do(ctx, http.MethodGet, path, nil, &rules); err != nil {
		return nil, err
	}
	return rules, nil
}

func (c *Client) Add(ctx context.Context, r rewrite.Rule) error {
	return c.do(ctx, http.MethodPost, "/control/rewrite/add", r, nil)
}

func (c *Client) Delete(ctx context.Context, r rewrite.Rule) error {
	return c.do(ctx, http.MethodPost, "/control/rewrite/delete", r, nil)
}

func (c *Client) Update(ctx context.Context, req UpdateRequest) error {
	return c.do(ctx, http.MethodPut, "/control/rewrite/update", req, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("编码请求失败: %w", err)
		}
		rd = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("请求控制接口失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		var e struct {
			Error string `json:"error"`
		}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			apiErr.Message = e.Error
		} else {
			apiErr.Message = strings.TrimSpace(string(data))
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("解析响应失败: %w", err)
	}
	return nil
}
