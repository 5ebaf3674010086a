package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotCached 缓存未命中
var ErrNotCached = errors.New("not found in cache")

// SessionDefaults 会话级默认值（登录或 GeoIP 推断出的时区与位置）
type SessionDefaults struct {
	Timezone     string   `json:"timezone,omitempty"`
	LocationName string   `json:"locationName,omitempty"`
	Latitude     *float64 `json:"latitude,omitempty"`
	Longitude    *float64 `json:"longitude,omitempty"`
}

// Cache Redis 缓存实现
//
// 存两类数据：会话默认值（时区/位置），以及确认邮件重发的限流计数。
type Cache struct {
	client *redis.Client
}

// NewCache 创建 Redis 缓存实例
func NewCache(addr, password string, db int) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// 测试连接
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &Cache{client: client}, nil
}

// ========== 会话默认值 ==========

// SetSessionDefaults 写入会话默认值
func (c *Cache) SetSessionDefaults(ctx context.Context, sessionID string, defaults *SessionDefaults, ttl time.Duration) error {
	data, err := json.Marshal(defaults)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, sessionKey(sessionID), data, ttl).Err()
}

// GetSessionDefaults 读取会话默认值
func (c *Cache) GetSessionDefaults(ctx context.Context, sessionID string) (*SessionDefaults, error) {
	data, err := c.client.Get(ctx, sessionKey(sessionID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotCached
		}
		return nil, err
	}
	var defaults SessionDefaults
	if err := json.Unmarshal([]byte(data), &defaults); err != nil {
		return nil, err
	}
	return &defaults, nil
}

// DeleteSessionDefaults 删除会话默认值
func (c *Cache) DeleteSessionDefaults(ctx context.Context, sessionID string) error {
	return c.client.Del(ctx, sessionKey(sessionID)).Err()
}

// ========== GeoIP 查询缓存 ==========

// CacheGeoLookup 缓存一次 GeoIP 查询结果
func (c *Cache) CacheGeoLookup(ctx context.Context, ip string, payload []byte, ttl time.Duration) error {
	return c.client.Set(ctx, geoKey(ip), payload, ttl).Err()
}

// GetCachedGeoLookup 读取缓存的 GeoIP 查询结果
func (c *Cache) GetCachedGeoLookup(ctx context.Context, ip string) ([]byte, error) {
	data, err := c.client.Get(ctx, geoKey(ip)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotCached
		}
		return nil, err
	}
	return data, nil
}

// ========== 重发限流 ==========

// IncrementSendCount 自增某邮箱在当前窗口内的发送计数，返回新值
//
// 首次自增时设置窗口过期；计数达到上限与否由调用方裁决。
func (c *Cache) IncrementSendCount(ctx context.Context, email string, window time.Duration) (int64, error) {
	key := sendKey(email)
	pipe := c.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// Health 检查 Redis 健康状态
func (c *Cache) Health() error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	return c.client.Ping(ctx).Err()
}

// Close 关闭 Redis 连接
func (c *Cache) Close() error {
	return c.client.Close()
}

func sessionKey(sessionID string) string { return "session_defaults:" + sessionID }
func geoKey(ip string) string            { return "geoip:" + ip }
func sendKey(email string) string        { return "confirmation_sends:" + email }
