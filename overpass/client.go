// Package overpass 向地图数据查询服务提交过滤查询, 多端点依次故障转移
package overpass

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"power-grid/metrics"
	"power-grid/model"
)

// DefaultEndpoints 公共 Overpass 服务器, 按优先级排列
var DefaultEndpoints = []string{
	"https://overpass-api.de/api/interpreter",
	"https://overpass.kumi.systems/api/interpreter",
	"https://overpass.private.coffee/api/interpreter",
	"https://api.openstreetmap.fr/oapi/interpreter",
}

const (
	DefaultConnectTimeout = 10 * time.Second
	DefaultRequestTimeout = 180 * time.Second
)

// ErrAllEndpointsUnavailable 所有端点都失败, 属于可重试的上游不可用
var ErrAllEndpointsUnavailable = errors.New("all map-data endpoints unavailable")

// Response 查询结果
type Response struct {
	Elements []model.Element `json:"elements"`
}

// Attempt 单个端点的一次尝试结果
type Attempt struct {
	Endpoint string
	Err      error // nil 表示成功
	Duration time.Duration
}

// AllEndpointsUnavailableError 汇总每个端点的失败原因
type AllEndpointsUnavailableError struct {
	Attempts []Attempt
}

func (e *AllEndpointsUnavailableError) Error() string {
	var b strings.Builder
	b.WriteString(ErrAllEndpointsUnavailable.Error())
	for i, a := range e.Attempts {
		if i == 0 {
			b.WriteString(": ")
		} else {
			b.WriteString("; ")
		}
		fmt.Fprintf(&b, "%s: %v", a.Endpoint, a.Err)
	}
	return b.String()
}

// Is 使 errors.Is(err, ErrAllEndpointsUnavailable) 成立
func (e *AllEndpointsUnavailableError) Is(target error) bool {
	return target == ErrAllEndpointsUnavailable
}

// Unwrap 返回每个端点的失败原因
func (e *AllEndpointsUnavailableError) Unwrap() []error {
	errs := make([]error, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		errs = append(errs, a.Err)
	}
	return errs
}

// StatusError 端点返回了非 2xx 状态码
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// Options 客户端配置
type Options struct {
	Endpoints      []string
	ConnectTimeout time.Duration
	RequestTimeout time.Duration // 单个端点的总超时
	Logger         *slog.Logger
	Metrics        *metrics.Registry
}

// Client 多端点故障转移客户端
type Client struct {
	endpoints      []string
	httpClient     *http.Client
	requestTimeout time.Duration
	logger         *slog.Logger
	metrics        *metrics.Registry
}

// NewClient 创建客户端, 未设置的选项使用默认值
func NewClient(opts Options) *Client {
	if len(opts.Endpoints) == 0 {
		opts.Endpoints = DefaultEndpoints
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = DefaultConnectTimeout
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{
		Timeout:   opts.ConnectTimeout,
		KeepAlive: 30 * time.Second,
	}).DialContext
	transport.TLSHandshakeTimeout = opts.ConnectTimeout

	return &Client{
		endpoints:      append([]string(nil), opts.Endpoints...),
		httpClient:     &http.Client{Transport: transport},
		requestTimeout: opts.RequestTimeout,
		logger:         opts.Logger,
		metrics:        opts.Metrics,
	}
}

// Endpoints 返回配置的端点列表
func (c *Client) Endpoints() []string {
	return append([]string(nil), c.endpoints...)
}

// Execute 依次向每个端点提交查询, 返回第一个成功的结果
// 每个端点只尝试一次; timeout <= 0 时使用默认的单端点超时
// 最坏耗时为各端点超时之和. ctx 被取消时立即返回 ctx 的错误,
// 不会返回 ErrAllEndpointsUnavailable
func (c *Client) Execute(ctx context.Context, query string, timeout time.Duration) (*Response, error) {
	if timeout <= 0 {
		timeout = c.requestTimeout
	}

	attempts := make([]Attempt, 0, len(c.endpoints))
	for _, endpoint := range c.endpoints {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("地图数据查询已取消: %w", err)
		}

		start := time.Now()
		resp, err := c.attempt(ctx, endpoint, query, timeout)
		a := Attempt{Endpoint: endpoint, Err: err, Duration: time.Since(start)}

		// 调用方取消不算端点失败
		if err != nil && ctx.Err() != nil {
			return nil, fmt.Errorf("地图数据查询已取消 (%s): %w", endpoint, ctx.Err())
		}
		c.metrics.RecordEndpointAttempt(endpoint, err)

		if err == nil {
			c.logger.Debug("地图数据查询成功", "endpoint", endpoint, "duration", a.Duration, "elements", len(resp.Elements))
			return resp, nil
		}

		c.logger.Warn("地图数据端点失败, 尝试下一个", "endpoint", endpoint, "duration", a.Duration, "error", err)
		attempts = append(attempts, a)
	}

	return nil, &AllEndpointsUnavailableError{Attempts: attempts}
}

// attempt 对单个端点发起一次请求
func (c *Client) attempt(ctx context.Context, endpoint, query string, timeout time.Duration) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(query))
	if err != nil {
		return nil, fmt.Errorf("构造请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("解析响应失败: %w", err)
	}
	return &out, nil
}
