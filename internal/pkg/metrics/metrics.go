package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// GeocodeUpstreamTotal 反向地理编码上游调用次数，按结果分类 (ok / error)。
	GeocodeUpstreamTotal *prometheus.CounterVec

	// GeocodeCacheHitsTotal 反向地理编码缓存命中次数。
	GeocodeCacheHitsTotal prometheus.Counter

	// EventsCreatedTotal 创建活动次数，按来源分类 (user / anonymous)。
	EventsCreatedTotal *prometheus.CounterVec

	// PostsCreatedTotal 创建帖子次数，按来源分类 (user / anonymous)。
	PostsCreatedTotal *prometheus.CounterVec

	// PostLikesTotal 点赞操作次数，按动作分类 (like / unlike / duplicate)。
	PostLikesTotal *prometheus.CounterVec

	// RateLimitWaitSeconds 限流等待时间分布。
	RateLimitWaitSeconds prometheus.Histogram

	// RateLimitTimeoutsTotal 限流等待超时次数。
	RateLimitTimeoutsTotal prometheus.Counter

	// NotifyJobsTotal 通知队列任务数，按结果分类 (ok / error / dropped)。
	NotifyJobsTotal *prometheus.CounterVec
)

var initOnce sync.Once

// InitMetrics 注册所有 Prometheus 指标。
//
// 多次调用只注册一次（测试里各个包可能都调用）。
func InitMetrics() {
	initOnce.Do(func() {
		GeocodeUpstreamTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kawiskita_geocode_upstream_total",
			Help: "Reverse geocoding upstream lookups by result.",
		}, []string{"result"})

		GeocodeCacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kawiskita_geocode_cache_hits_total",
			Help: "Reverse geocoding responses served from cache.",
		})

		EventsCreatedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kawiskita_events_created_total",
			Help: "Events created by submitter kind.",
		}, []string{"kind"})

		PostsCreatedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kawiskita_posts_created_total",
			Help: "Event posts created by submitter kind.",
		}, []string{"kind"})

		PostLikesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kawiskita_post_likes_total",
			Help: "Post like operations by action.",
		}, []string{"action"})

		RateLimitWaitSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "kawiskita_ratelimit_wait_seconds",
			Help:    "Time spent waiting for a rate limit token.",
			Buckets: prometheus.DefBuckets,
		})

		RateLimitTimeoutsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kawiskita_ratelimit_timeouts_total",
			Help: "Rate limit waits abandoned because the context expired.",
		})

		NotifyJobsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kawiskita_notify_jobs_total",
			Help: "Notification queue jobs by result.",
		}, []string{"result"})

		prometheus.MustRegister(
			GeocodeUpstreamTotal,
			GeocodeCacheHitsTotal,
			EventsCreatedTotal,
			PostsCreatedTotal,
			PostLikesTotal,
			RateLimitWaitSeconds,
			RateLimitTimeoutsTotal,
			NotifyJobsTotal,
		)
	})
}
