package control

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/gorilla/websocket"

	"regsniper/internal/config"
	"regsniper/internal/logbus"
	"regsniper/internal/model"
)

type envelope[T any] struct {
	OK    bool   `json:"ok"`
	Data  T      `json:"data"`
	Error string `json:"error"`
}

// Client talks to the agent host over its HTTP API.
type Client struct {
	http    *resty.Client
	baseURL string
	bus     *logbus.Bus
}

var _ Channel = (*Client)(nil)

func NewClient(cfg config.ControlConfig, bus *logbus.Bus) *Client {
	base := strings.TrimRight(cfg.AgentURL, "/")
	client := resty.New().
		SetBaseURL(base).
		SetTimeout(cfg.Timeout()).
		SetRetryCount(cfg.Retry.Count).
		SetRetryWaitTime(cfg.Retry.Wait()).
		SetRetryMaxWaitTime(cfg.Retry.MaxWait()).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			if r == nil {
				return true
			}
			return r.StatusCode() >= 500
		})

	client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		if bus != nil {
			bus.Log("debug", "http request", map[string]any{
				"method": req.Method,
				"url":    req.URL,
			})
		}
		return nil
	})
	return &Client{http: client, baseURL: base, bus: bus}
}

// request decodes every reply as JSON whatever Content-Type the host sent.
func (c *Client) request(ctx context.Context) *resty.Request {
	return c.http.R().SetContext(ctx).ForceContentType("application/json")
}

// ActivePage returns the URL of the agent's tab, or "" when no tab is attached.
func (c *Client) ActivePage(ctx context.Context) (string, error) {
	var out envelope[struct {
		URL string `json:"url"`
	}]
	resp, err := c.request(ctx).SetResult(&out).SetError(&out).Get("/api/v1/agent/page")
	if err != nil {
		return "", err
	}
	if resp.StatusCode() == http.StatusNotFound {
		return "", nil
	}
	if resp.IsError() {
		return "", responseError(resp, out.Error)
	}
	return out.Data.URL, nil
}

func (c *Client) EnsureAgent(ctx context.Context) error {
	var out envelope[map[string]any]
	resp, err := c.request(ctx).SetResult(&out).SetError(&out).Post("/api/v1/agent/attach")
	if err != nil {
		return err
	}
	if resp.IsError() {
		return responseError(resp, out.Error)
	}
	return nil
}

func (c *Client) Send(ctx context.Context, cmd model.Command) error {
	var out envelope[model.StatusSnapshot]
	resp, err := c.request(ctx).
		SetBody(cmd).
		SetResult(&out).
		SetError(&out).
		Post("/api/v1/agent/command")
	if err != nil {
		return err
	}
	if resp.IsError() {
		return responseError(resp, out.Error)
	}
	return nil
}

func (c *Client) Status(ctx context.Context) (model.StatusSnapshot, error) {
	var out envelope[model.StatusSnapshot]
	resp, err := c.request(ctx).SetResult(&out).SetError(&out).Get("/api/v1/agent/status")
	if err != nil {
		return model.StatusSnapshot{}, err
	}
	if resp.IsError() {
		return model.StatusSnapshot{}, responseError(resp, out.Error)
	}
	return out.Data, nil
}

// Watch streams bus messages of the given types (all when empty) to fn until
// ctx ends, the connection drops or fn returns an error.
func (c *Client) Watch(ctx context.Context, types []string, fn func(logbus.Message) error) error {
	u, err := url.Parse(c.baseURL + "/ws")
	if err != nil {
		return err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	if len(types) > 0 {
		u.RawQuery = url.Values{"types": {strings.Join(types, ",")}}.Encode()
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", u.Redacted(), err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for {
		var msg logbus.Message
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		if err := fn(msg); err != nil {
			return err
		}
	}
}

func responseError(resp *resty.Response, msg string) error {
	if msg = strings.TrimSpace(msg); msg == "" {
		msg = strings.TrimSpace(resp.Status())
	}
	return errors.New(msg)
}
