package sui

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/vic-labs/collectivo/internal/config"
	"github.com/vic-labs/collectivo/internal/logger"
	"github.com/vic-labs/collectivo/internal/metrics"
	"golang.org/x/time/rate"
)

var ErrObjectNotFound = errors.New("链上对象不存在")

// Client Sui JSON-RPC 客户端
type Client struct {
	rpc         *rpc.Client
	packageID   string
	limiter     *rate.Limiter
	maxRetries  int
	callTimeout time.Duration
	backoff     time.Duration
	metrics     *metrics.Metrics
}

// Dial 连接 Sui 节点
func Dial(ctx context.Context, cfg config.ChainConfig, m *metrics.Metrics) (*Client, error) {
	rc, err := rpc.DialContext(ctx, cfg.RpcUrl)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to sui node: %w", err)
	}
	return NewClient(rc, cfg, m), nil
}

// NewClient 基于已有的 RPC 连接创建客户端
func NewClient(rc *rpc.Client, cfg config.ChainConfig, m *metrics.Metrics) *Client {
	if m == nil {
		m = metrics.Nop()
	}
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	timeout := time.Duration(cfg.CallTimeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		rpc:         rc,
		packageID:   cfg.PackageId,
		limiter:     rate.NewLimiter(limit, 1),
		maxRetries:  cfg.MaxRetries,
		callTimeout: timeout,
		backoff:     500 * time.Millisecond,
		metrics:     m,
	}
}

// Close 关闭连接
func (c *Client) Close() {
	c.rpc.Close()
}

// call 限流后调用，网络错误按退避重试，节点返回的 JSON-RPC 错误不重试
func (c *Client) call(ctx context.Context, result interface{}, method string, args ...interface{}) error {
	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
		start := time.Now()
		err := c.rpc.CallContext(callCtx, result, method, args...)
		cancel()
		c.metrics.ObserveRPC(method, start, err)
		if err == nil {
			return nil
		}

		var rpcErr rpc.Error
		if errors.As(err, &rpcErr) || attempt >= c.maxRetries || ctx.Err() != nil {
			return fmt.Errorf("%s failed: %w", method, err)
		}
		logger.Warn("RPC %s failed (attempt %d/%d): %v", method, attempt+1, c.maxRetries+1, err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.backoff * time.Duration(attempt+1)):
		}
	}
}

// QueryEvents 按模块分页查询事件，cursor 为 nil 时从头开始
func (c *Client) QueryEvents(ctx context.Context, module string, cursor *EventID, limit int) (*EventPage, error) {
	query := map[string]interface{}{
		"MoveModule": map[string]string{"package": c.packageID, "module": module},
	}
	var page EventPage
	if err := c.call(ctx, &page, "suix_queryEvents", query, cursor, limit, false); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetObject 获取对象内容
func (c *Client) GetObject(ctx context.Context, id string) (*ObjectData, error) {
	var resp objectResponse
	options := map[string]bool{"showContent": true, "showType": true}
	if err := c.call(ctx, &resp, "sui_getObject", id, options); err != nil {
		return nil, err
	}
	if resp.Error != nil || resp.Data == nil {
		return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, id)
	}
	return resp.Data, nil
}
