package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vic-labs/collectivo/internal/governance"
	"github.com/vic-labs/collectivo/internal/logger"
)

// Cache 投票统计读缓存，按活动整体失效。
// version 是统计输入（投票和份额）的指纹，版本不一致的条目视为未命中
type Cache interface {
	GetVoteStats(ctx context.Context, campaignID, proposalID, voter, version string) (*governance.VoteStats, bool)
	SetVoteStats(ctx context.Context, campaignID, proposalID, voter, version string, stats governance.VoteStats)
	InvalidateCampaign(ctx context.Context, campaignID string)
}

type statsEntry struct {
	Version string               `json:"version"`
	Stats   governance.VoteStats `json:"stats"`
}

// Connect 创建 redis 客户端并检查连通性
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return client, nil
}

// RedisCache 每个活动一个 hash，字段为 提案ID|地址
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache 创建 redis 缓存
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func campaignKey(campaignID string) string {
	return "collectivo:campaign:" + campaignID + ":vote_stats"
}

func statsField(proposalID, voter string) string {
	return proposalID + "|" + voter
}

// GetVoteStats 读取缓存，任何错误都视为未命中
func (c *RedisCache) GetVoteStats(ctx context.Context, campaignID, proposalID, voter, version string) (*governance.VoteStats, bool) {
	raw, err := c.client.HGet(ctx, campaignKey(campaignID), statsField(proposalID, voter)).Bytes()
	if err != nil {
		if err != redis.Nil {
			logger.Warn("Failed to read vote stats cache for proposal %s: %v", proposalID, err)
		}
		return nil, false
	}
	var entry statsEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		logger.Warn("Discarding corrupt vote stats cache entry for proposal %s: %v", proposalID, err)
		return nil, false
	}
	if entry.Version != version {
		return nil, false
	}
	return &entry.Stats, true
}

// SetVoteStats 写入缓存并刷新过期时间
func (c *RedisCache) SetVoteStats(ctx context.Context, campaignID, proposalID, voter, version string, stats governance.VoteStats) {
	raw, err := json.Marshal(statsEntry{Version: version, Stats: stats})
	if err != nil {
		logger.Warn("Failed to encode vote stats for proposal %s: %v", proposalID, err)
		return
	}
	key := campaignKey(campaignID)
	_, err = c.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, key, statsField(proposalID, voter), raw)
		if c.ttl > 0 {
			p.Expire(ctx, key, c.ttl)
		}
		return nil
	})
	if err != nil {
		logger.Warn("Failed to write vote stats cache for proposal %s: %v", proposalID, err)
	}
}

// InvalidateCampaign 删除活动下全部缓存
func (c *RedisCache) InvalidateCampaign(ctx context.Context, campaignID string) {
	if err := c.client.Del(ctx, campaignKey(campaignID)).Err(); err != nil {
		logger.Warn("Failed to invalidate cache for campaign %s: %v", campaignID, err)
	}
}

// Nop 不缓存
type Nop struct{}

func (Nop) GetVoteStats(context.Context, string, string, string, string) (*governance.VoteStats, bool) {
	return nil, false
}

func (Nop) SetVoteStats(context.Context, string, string, string, string, governance.VoteStats) {}

func (Nop) InvalidateCampaign(context.Context, string) {}
