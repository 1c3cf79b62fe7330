package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rahmatsuhadi/kawis-sub001/internal/pkg/apperr"
	"github.com/rahmatsuhadi/kawis-sub001/internal/pkg/metrics"
)

// Address 反向地理编码返回的结构化地址。
//
// 字段对应 Nominatim 的 address 对象，其余上游字段全部丢弃。
type Address struct {
	Village      string `json:"village,omitempty"`
	Municipality string `json:"municipality,omitempty"`
	County       string `json:"county,omitempty"`
	State        string `json:"state,omitempty"`
	ISO3166Lvl4  string `json:"ISO3166-2-lvl4,omitempty"`
	Region       string `json:"region,omitempty"`
	ISO3166Lvl3  string `json:"ISO3166-2-lvl3,omitempty"`
	Postcode     string `json:"postcode,omitempty"`
	Country      string `json:"country,omitempty"`
	CountryCode  string `json:"country_code,omitempty"`
}

// Result 反向地理编码结果。
type Result struct {
	DisplayName string  `json:"display_name"`
	Address     Address `json:"address"`
}

// Cache 地理编码结果缓存。
type Cache interface {
	Get(ctx context.Context, lat, lon string) (*Result, bool)
	Set(ctx context.Context, lat, lon string, res *Result)
}

// Limiter 限制上游调用速率。公共 Nominatim 实例要求不超过 1 req/s。
type Limiter interface {
	Acquire(ctx context.Context) error
}

// Client 调用外部反向地理编码服务（Nominatim 兼容接口）。
//
// 每次调用只发起一次上游请求，不做重试；是否重试由调用方决定。
// 上游失败被归一为 UpstreamUnavailable，参数问题归一为 InvalidArgument。
type Client struct {
	baseURL    string
	httpClient *http.Client
	cache      Cache
	limiter    Limiter
	logger     *slog.Logger
}

// NewClient 创建地理编码客户端。
//
// 参数:
//
//	baseURL: 上游服务地址（如 https://nominatim.openstreetmap.org）
//	timeout: 单次上游调用的超时时间（<=0 时使用 5s）
//	cache: 结果缓存（可为 nil，表示不缓存）
//	limiter: 上游限流器（可为 nil，表示不限流）
//	logger: 日志记录器
func NewClient(baseURL string, timeout time.Duration, cache Cache, limiter Limiter, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		cache:      cache,
		limiter:    limiter,
		logger:     logger,
	}
}

// Reverse 将经纬度转换为人类可读的地址。
//
// lat/lon 是十进制度的数字字符串，两者都必填；缺失或无法解析时
// 返回 InvalidArgument，此时不会发起上游调用。
//
// 参数:
//
//	ctx: 上下文
//	lat: 纬度字符串
//	lon: 经度字符串
//
// 返回值:
//
//	*Result: 上游的 display_name 与结构化地址
//	error: 参数错误返回 InvalidArgument，上游失败返回 UpstreamUnavailable
func (c *Client) Reverse(ctx context.Context, lat, lon string) (*Result, error) {
	lat = strings.TrimSpace(lat)
	lon = strings.TrimSpace(lon)
	if lat == "" || lon == "" {
		return nil, apperr.InvalidArgument("Latitude and Longitude are required")
	}
	if !isCoordinate(lat, 90) || !isCoordinate(lon, 180) {
		return nil, apperr.InvalidArgument("Latitude and Longitude are required")
	}

	if c.cache != nil {
		if res, ok := c.cache.Get(ctx, lat, lon); ok {
			metrics.GeocodeCacheHitsTotal.Inc()
			return res, nil
		}
	}

	if c.limiter != nil {
		if err := c.limiter.Acquire(ctx); err != nil {
			metrics.GeocodeUpstreamTotal.WithLabelValues("throttled").Inc()
			return nil, apperr.Upstream("Failed to fetch location data", err)
		}
	}

	// 坐标原样透传给上游
	q := url.Values{}
	q.Set("lat", lat)
	q.Set("lon", lon)
	q.Set("format", "jsonv2")
	reqURL := c.baseURL + "/reverse?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, apperr.Upstream("Failed to fetch location data", err)
	}
	req.Header.Set("User-Agent", "kawis-kita/1.0")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.GeocodeUpstreamTotal.WithLabelValues("error").Inc()
		if c.logger != nil {
			c.logger.Warn("geocode upstream request failed", slog.String("error", err.Error()))
		}
		return nil, apperr.Upstream("Failed to fetch location data", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.GeocodeUpstreamTotal.WithLabelValues("error").Inc()
		if c.logger != nil {
			c.logger.Warn("geocode upstream returned non-success status", slog.Int("status", resp.StatusCode))
		}
		return nil, apperr.Upstream("Failed to fetch location data", fmt.Errorf("upstream status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.GeocodeUpstreamTotal.WithLabelValues("error").Inc()
		return nil, apperr.Upstream("Failed to fetch location data", err)
	}

	var res Result
	if err := json.Unmarshal(body, &res); err != nil {
		metrics.GeocodeUpstreamTotal.WithLabelValues("error").Inc()
		return nil, apperr.Upstream("Failed to fetch location data", err)
	}

	metrics.GeocodeUpstreamTotal.WithLabelValues("ok").Inc()

	if c.cache != nil {
		c.cache.Set(ctx, lat, lon, &res)
	}
	return &res, nil
}

// isCoordinate 校验 s 是 [-limit, limit] 范围内的十进制度数。
func isCoordinate(s string, limit float64) bool {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return false
	}
	return v >= -limit && v <= limit
}
