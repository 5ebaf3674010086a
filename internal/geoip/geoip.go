// Package geoip 对接外部地理定位服务，为新会话推断默认时区与位置。
//
// 查询结果只做会话默认值的种子，不参与核心一致性保证。
package geoip

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"accounthub/backend/internal/storage/redis"
)

// Location 一次定位查询的结果
type Location struct {
	TimeZone   string  `json:"time_zone"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	PrettyName string  `json:"pretty_name"`
}

// Resolver 定位服务接口
//
// 查不到（内网地址、未知 IP）返回 (nil, nil)，错误只用于传输失败。
type Resolver interface {
	Resolve(ctx context.Context, ip string) (*Location, error)
}

// HTTPResolver 调用 HTTP 形式的定位服务。
type HTTPResolver struct {
	endpoint string // 形如 https://geoip.internal/lookup
	client   *http.Client
}

// NewHTTPResolver 创建 HTTP 定位客户端
func NewHTTPResolver(endpoint string) *HTTPResolver {
	return &HTTPResolver{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 5 * time.Second},
	}
}

// Resolve 查询一个 IP 的地理信息
func (r *HTTPResolver) Resolve(ctx context.Context, ip string) (*Location, error) {
	parsed := net.ParseIP(ip)
	if parsed == nil || parsed.IsPrivate() || parsed.IsLoopback() {
		return nil, nil
	}

	u := fmt.Sprintf("%s?ip=%s", r.endpoint, url.QueryEscape(ip))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geoip lookup failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geoip lookup returned status %d", resp.StatusCode)
	}

	var loc Location
	if err := json.NewDecoder(resp.Body).Decode(&loc); err != nil {
		return nil, err
	}
	return &loc, nil
}

// CachedResolver 用 Redis 缓存包装另一个 Resolver。
type CachedResolver struct {
	inner Resolver
	cache *redis.Cache
	ttl   time.Duration
}

// NewCachedResolver 创建带缓存的定位客户端
func NewCachedResolver(inner Resolver, cache *redis.Cache, ttl time.Duration) *CachedResolver {
	return &CachedResolver{inner: inner, cache: cache, ttl: ttl}
}

// Resolve 先查缓存，未命中再调用底层服务并回填
func (r *CachedResolver) Resolve(ctx context.Context, ip string) (*Location, error) {
	if data, err := r.cache.GetCachedGeoLookup(ctx, ip); err == nil {
		var loc Location
		if err := json.Unmarshal(data, &loc); err == nil {
			return &loc, nil
		}
	}

	loc, err := r.inner.Resolve(ctx, ip)
	if err != nil || loc == nil {
		return loc, err
	}

	if payload, err := json.Marshal(loc); err == nil {
		// 回填失败不影响查询结果
		_ = r.cache.CacheGeoLookup(ctx, ip, payload, r.ttl)
	}
	return loc, nil
}
