package caching

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// DashboardStats is the aggregate snapshot shown on the dashboard. It is
// cached with a short TTL; the alert evaluators themselves are recomputed
// from the ledger snapshot on every refresh, never cached.
type DashboardStats struct {
	TotalProducts     int            `json:"total_products"`
	LowStockCount     int            `json:"low_stock_count"`
	ExpiringCount     int            `json:"expiring_count"`
	ShipmentsByStatus map[string]int `json:"shipments_by_status"`
	GeneratedAt       time.Time      `json:"generated_at"`
}

type CacheService interface {
	// Ping reports whether the cache backend is reachable.
	Ping(ctx context.Context) error

	// Dashboard stats caching
	GetDashboardStats(ctx context.Context) (*DashboardStats, error)
	SetDashboardStats(ctx context.Context, stats *DashboardStats, ttl time.Duration) error
	InvalidateDashboardStats(ctx context.Context) error

	// Session management
	SetSession(ctx context.Context, sessionID, userID string, ttl time.Duration) error
	GetSession(ctx context.Context, sessionID string) (string, error)
	DeleteSession(ctx context.Context, sessionID string) error

	// Rate limiting
	IsRateLimited(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	IncrementRateLimit(ctx context.Context, key string, window time.Duration) error
}

type redisCacheService struct {
	client *redis.Client
}

func NewRedisCacheService(addr, password string, db int) CacheService {
	// Accept redis://host:port URLs as well as bare host:port.
	parsedAddr := addr
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		if hostPort := strings.TrimPrefix(strings.TrimPrefix(addr, "redis://"), "rediss://"); hostPort != addr {
			parsedAddr = hostPort
		}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     parsedAddr,
		Password: password,
		DB:       db,
	})

	if pingErr := client.Ping(context.Background()).Err(); pingErr != nil {
		log.Printf("WARN: Redis ping failed on initialization: %v (address: %s)", pingErr, parsedAddr)
	}

	return &redisCacheService{client: client}
}

func (r *redisCacheService) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *redisCacheService) GetDashboardStats(ctx context.Context) (*DashboardStats, error) {
	data, err := r.client.Get(ctx, "logitrack:dashboard:stats").Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // cache miss
		}
		return nil, err
	}

	var stats DashboardStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

func (r *redisCacheService) SetDashboardStats(ctx context.Context, stats *DashboardStats, ttl time.Duration) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, "logitrack:dashboard:stats", data, ttl).Err()
}

func (r *redisCacheService) InvalidateDashboardStats(ctx context.Context) error {
	return r.client.Del(ctx, "logitrack:dashboard:stats").Err()
}

func (r *redisCacheService) SetSession(ctx context.Context, sessionID, userID string, ttl time.Duration) error {
	key := fmt.Sprintf("logitrack:session:%s", sessionID)
	return r.client.Set(ctx, key, userID, ttl).Err()
}

func (r *redisCacheService) GetSession(ctx context.Context, sessionID string) (string, error) {
	key := fmt.Sprintf("logitrack:session:%s", sessionID)
	userID, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return "", nil
		}
		return "", err
	}
	return userID, nil
}

func (r *redisCacheService) DeleteSession(ctx context.Context, sessionID string) error {
	key := fmt.Sprintf("logitrack:session:%s", sessionID)
	return r.client.Del(ctx, key).Err()
}

func (r *redisCacheService) IsRateLimited(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	rateKey := fmt.Sprintf("logitrack:ratelimit:%s", key)
	count, err := r.client.Get(ctx, rateKey).Int()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, err
	}
	return count >= limit, nil
}

func (r *redisCacheService) IncrementRateLimit(ctx context.Context, key string, window time.Duration) error {
	rateKey := fmt.Sprintf("logitrack:ratelimit:%s", key)
	pipe := r.client.TxPipeline()
	pipe.Incr(ctx, rateKey)
	pipe.Expire(ctx, rateKey, window)
	_, err := pipe.Exec(ctx)
	return err
}
