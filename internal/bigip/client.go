package bigip

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Sh00ty/bigip-member/internal/models"
)

// Config carries the connection settings for one control plane.
type Config struct {
	Server        string
	Port          uint16
	User          string
	Password      string
	ValidateCerts bool
	Timeout       time.Duration
}

// Client issues iControl REST calls against a single BIG-IP. Every call is
// one synchronous round trip; timeouts and cancellation live here, the
// reconciler on top never retries.
type Client struct {
	http     *http.Client
	base     url.URL
	user     string
	password string
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.Server == "" {
		return nil, fmt.Errorf("control plane server address is required")
	}
	if cfg.Port == 0 {
		cfg.Port = 443
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	transport := http.Transport{
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: !cfg.ValidateCerts,
		},
		TLSHandshakeTimeout: cfg.Timeout,
	}
	return &Client{
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: &transport,
		},
		base: url.URL{
			Scheme: "https",
			Host:   fmt.Sprintf("%s:%d", cfg.Server, cfg.Port),
		},
		user:     cfg.User,
		password: cfg.Password,
	}, nil
}

// memberResource is the wire shape of one pool member.
type memberResource struct {
	Name              string `json:"name"`
	ConnectionLimit   int64  `json:"connectionLimit"`
	RateLimit         int64  `json:"rateLimit"`
	Ratio             int64  `json:"ratio"`
	PriorityGroup     int64  `json:"priorityGroup"`
	Description       string `json:"description"`
	SessionStatus     string `json:"sessionStatus"`
	MonitorStatus     string `json:"monitorStatus"`
	AvailabilityState string `json:"availabilityState"`
	EnabledState      string `json:"enabledState"`
}

type poolResource struct {
	Name              string `json:"name"`
	AvailabilityState string `json:"availabilityState"`
	EnabledState      string `json:"enabledState"`
}

func (c *Client) GetPoolStatus(ctx context.Context, pool string) (models.ObjectStatus, error) {
	var res poolResource
	err := c.do(ctx, "GetPoolStatus", http.MethodGet, poolPath(pool), nil, &res)
	if err != nil {
		return models.ObjectStatus{}, err
	}
	return models.ObjectStatus{
		AvailabilityState: res.AvailabilityState,
		EnabledState:      res.EnabledState,
	}, nil
}

func (c *Client) GetMemberStatus(ctx context.Context, pool, address string, port int) (models.ObjectStatus, error) {
	res, err := c.getMember(ctx, "GetMemberStatus", pool, address, port)
	if err != nil {
		return models.ObjectStatus{}, err
	}
	return models.ObjectStatus{
		AvailabilityState: res.AvailabilityState,
		EnabledState:      res.EnabledState,
	}, nil
}

func (c *Client) AddMember(ctx context.Context, pool, address string, port int) error {
	payload := map[string]string{
		"name": fmt.Sprintf("%s:%d", address, port),
	}
	return c.do(ctx, "AddMember", http.MethodPost, poolPath(pool)+"/members", payload, nil)
}

func (c *Client) RemoveMember(ctx context.Context, pool, address string, port int) error {
	return c.do(ctx, "RemoveMember", http.MethodDelete, memberPath(pool, address, port), nil, nil)
}

func (c *Client) DeleteNodeAddress(ctx context.Context, address string) error {
	return c.do(ctx, "DeleteNodeAddress", http.MethodDelete, nodePath(address), nil, nil)
}

func (c *Client) GetConnectionLimit(ctx context.Context, pool, address string, port int) (int64, error) {
	res, err := c.getMember(ctx, "GetConnectionLimit", pool, address, port)
	if err != nil {
		return 0, err
	}
	return res.ConnectionLimit, nil
}

func (c *Client) SetConnectionLimit(ctx context.Context, pool, address string, port int, limit int64) error {
	return c.patchMember(ctx, "SetConnectionLimit", pool, address, port,
		map[string]int64{"connectionLimit": limit})
}

func (c *Client) GetRateLimit(ctx context.Context, pool, address string, port int) (int64, error) {
	res, err := c.getMember(ctx, "GetRateLimit", pool, address, port)
	if err != nil {
		return 0, err
	}
	return res.RateLimit, nil
}

func (c *Client) SetRateLimit(ctx context.Context, pool, address string, port int, limit int64) error {
	return c.patchMember(ctx, "SetRateLimit", pool, address, port,
		map[string]int64{"rateLimit": limit})
}

func (c *Client) GetRatio(ctx context.Context, pool, address string, port int) (int64, error) {
	res, err := c.getMember(ctx, "GetRatio", pool, address, port)
	if err != nil {
		return 0, err
	}
	return res.Ratio, nil
}

func (c *Client) SetRatio(ctx context.Context, pool, address string, port int, ratio int64) error {
	return c.patchMember(ctx, "SetRatio", pool, address, port,
		map[string]int64{"ratio": ratio})
}

func (c *Client) GetPriorityGroup(ctx context.Context, pool, address string, port int) (int64, error) {
	res, err := c.getMember(ctx, "GetPriorityGroup", pool, address, port)
	if err != nil {
		return 0, err
	}
	return res.PriorityGroup, nil
}

func (c *Client) SetPriorityGroup(ctx context.Context, pool, address string, port int, group int64) error {
	return c.patchMember(ctx, "SetPriorityGroup", pool, address, port,
		map[string]int64{"priorityGroup": group})
}

func (c *Client) GetDescription(ctx context.Context, pool, address string, port int) (string, error) {
	res, err := c.getMember(ctx, "GetDescription", pool, address, port)
	if err != nil {
		return "", err
	}
	return res.Description, nil
}

func (c *Client) SetDescription(ctx context.Context, pool, address string, port int, description string) error {
	return c.patchMember(ctx, "SetDescription", pool, address, port,
		map[string]string{"description": description})
}

func (c *Client) GetSessionStatus(ctx context.Context, pool, address string, port int) (models.SessionStatus, error) {
	res, err := c.getMember(ctx, "GetSessionStatus", pool, address, port)
	if err != nil {
		return "", err
	}
	return models.SessionStatus(normalizeStatus(res.SessionStatus, "SESSION_STATUS_")), nil
}

func (c *Client) SetSessionState(ctx context.Context, pool, address string, port int, intent models.Intent) error {
	return c.patchMember(ctx, "SetSessionState", pool, address, port,
		map[string]string{"sessionState": stateToken(intent)})
}

func (c *Client) GetMonitorStatus(ctx context.Context, pool, address string, port int) (models.MonitorStatus, error) {
	res, err := c.getMember(ctx, "GetMonitorStatus", pool, address, port)
	if err != nil {
		return "", err
	}
	return models.MonitorStatus(normalizeStatus(res.MonitorStatus, "MONITOR_STATUS_")), nil
}

func (c *Client) SetMonitorState(ctx context.Context, pool, address string, port int, intent models.Intent) error {
	return c.patchMember(ctx, "SetMonitorState", pool, address, port,
		map[string]string{"monitorState": stateToken(intent)})
}

func (c *Client) getMember(ctx context.Context, op, pool, address string, port int) (memberResource, error) {
	var res memberResource
	err := c.do(ctx, op, http.MethodGet, memberPath(pool, address, port), nil, &res)
	return res, err
}

func (c *Client) patchMember(ctx context.Context, op, pool, address string, port int, payload any) error {
	return c.do(ctx, op, http.MethodPatch, memberPath(pool, address, port), payload, nil)
}

func (c *Client) do(ctx context.Context, op, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("%s: encoding request body: %w", op, err)
		}
		body = bytes.NewReader(raw)
	}
	target := c.base
	target.Path = path

	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return fmt.Errorf("%s: forming request: %w", op, err)
	}
	req.SetBasicAuth(c.user, c.password)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: request do error: %w", op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := classify(op, resp); err != nil {
		return err
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%s: decoding response: %w", op, err)
		}
	}
	return nil
}

// apiError is the control plane's error body.
type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// classify maps a response onto the structured error kinds. The reconciler
// only ever sees ErrNotFound, ErrStillReferenced or an OpError, never raw
// status codes.
func classify(op string, resp *http.Response) error {
	if resp.StatusCode/100 == 2 {
		return nil
	}
	var apiErr apiError
	raw, _ := io.ReadAll(resp.Body)
	_ = json.Unmarshal(raw, &apiErr)

	log.Debug().Msgf("%s: control plane status %d: %s", op, resp.StatusCode, apiErr.Message)

	switch resp.StatusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	case http.StatusConflict:
		return fmt.Errorf("%s: %w", op, ErrStillReferenced)
	}
	return &OpError{Op: op, StatusCode: resp.StatusCode, Message: apiErr.Message}
}

// stateToken builds the write token the control plane expects for session
// and monitor state changes.
func stateToken(intent models.Intent) string {
	return "STATE_" + strings.ToUpper(strings.TrimSpace(string(intent)))
}

// normalizeStatus strips the control plane's status prefix so callers
// compare against a stable lowercase vocabulary.
func normalizeStatus(status, prefix string) string {
	return strings.ToLower(strings.TrimPrefix(status, prefix))
}

func poolPath(pool string) string {
	return "/mgmt/tm/ltm/pool/" + encodeName(pool)
}

func memberPath(pool, address string, port int) string {
	return fmt.Sprintf("%s/members/%s:%d", poolPath(pool), encodeName(address), port)
}

func nodePath(address string) string {
	return "/mgmt/tm/ltm/node/" + encodeName(address)
}

// encodeName turns a /partition/name path into the ~partition~name form
// iControl REST uses inside URLs.
func encodeName(name string) string {
	return strings.ReplaceAll(name, "/", "~")
}
