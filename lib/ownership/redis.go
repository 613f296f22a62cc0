package ownership

import (
	"fmt"
	"strings"
	"sync"

	"github.com/gomodule/redigo/redis"

	"github.com/lumenarr/seedr/utils/log"
)

// releaseScript atomically removes a member, infers last-ownership from the
// remaining cardinality, and either drops the key or refreshes its TTL.
// Membership and last-owner inference must not interleave with peer
// instances, hence the script.
var releaseScript = redis.NewScript(1, `
redis.call('SREM', KEYS[1], ARGV[1])
if redis.call('SCARD', KEYS[1]) == 0 then
	redis.call('DEL', KEYS[1])
	return 1
end
redis.call('EXPIRE', KEYS[1], ARGV[2])
return 0
`)

var (
	_poolsMu sync.Mutex
	_pools   = make(map[string]*redis.Pool)
)

// sharedPool returns the process-wide pool for addr, creating it on first
// use. Peer adapters in one process share a single multiplexer per endpoint.
func sharedPool(addr string, config Config) *redis.Pool {
	_poolsMu.Lock()
	defer _poolsMu.Unlock()

	if p, ok := _pools[addr]; ok {
		return p
	}
	p := &redis.Pool{
		Dial: func() (redis.Conn, error) {
			opts := []redis.DialOption{
				redis.DialConnectTimeout(config.DialTimeout),
				redis.DialReadTimeout(config.SyncTimeout),
				redis.DialWriteTimeout(config.SyncTimeout),
			}
			if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
				return redis.DialURL(addr,
					redis.DialConnectTimeout(config.DialTimeout),
					redis.DialReadTimeout(config.SyncTimeout),
					redis.DialWriteTimeout(config.SyncTimeout))
			}
			return redis.Dial("tcp", addr, opts...)
		},
		MaxIdle:     config.MaxIdleConns,
		MaxActive:   config.MaxActiveConns,
		IdleTimeout: config.IdleConnTimeout,
		Wait:        true,
	}
	_pools[addr] = p
	return p
}

// RedisRegistry is a Registry backed by Redis sets with TTLs.
type RedisRegistry struct {
	config Config
	pool   *redis.Pool
}

// NewRedisRegistry creates a RedisRegistry.
func NewRedisRegistry(config Config) (*RedisRegistry, error) {
	config = config.applyDefaults()
	if config.Addr == "" {
		return nil, fmt.Errorf("invalid config: missing addr")
	}
	if err := ValidateTag(config.InstanceTag); err != nil {
		return nil, fmt.Errorf("invalid config: %s", err)
	}
	return &RedisRegistry{
		config: config,
		pool:   sharedPool(config.Addr, config),
	}, nil
}

// Claim implements Registry.
func (r *RedisRegistry) Claim(key string) {
	c := r.pool.Get()
	defer c.Close()

	k := ownerSetKey(key)
	if err := c.Send("SADD", k, r.config.InstanceTag); err != nil {
		log.Warnf("Ownership claim for %s failed: %s", key, err)
		return
	}
	if err := c.Send("EXPIRE", k, int64(r.config.TTL.Seconds())); err != nil {
		log.Warnf("Ownership claim for %s failed: %s", key, err)
		return
	}
	if err := c.Flush(); err != nil {
		log.Warnf("Ownership claim for %s failed: %s", key, err)
		return
	}
	for i := 0; i < 2; i++ {
		if _, err := c.Receive(); err != nil {
			log.Warnf("Ownership claim for %s failed: %s", key, err)
			return
		}
	}
}

// IsOwnedByMe implements Registry.
func (r *RedisRegistry) IsOwnedByMe(key string) Tristate {
	c := r.pool.Get()
	defer c.Close()

	member, err := redis.Bool(c.Do("SISMEMBER", ownerSetKey(key), r.config.InstanceTag))
	if err != nil {
		log.Warnf("Ownership check for %s failed: %s", key, err)
		return Unknown
	}
	if member {
		return Yes
	}
	return No
}

// Release implements Registry.
func (r *RedisRegistry) Release(key string) Tristate {
	c := r.pool.Get()
	defer c.Close()

	last, err := redis.Int(releaseScript.Do(
		c, ownerSetKey(key), r.config.InstanceTag, int64(r.config.TTL.Seconds())))
	if err != nil {
		log.Warnf("Ownership release for %s failed: %s", key, err)
		return Unknown
	}
	if last == 1 {
		return Yes
	}
	return No
}

// TestConnection implements Registry.
func (r *RedisRegistry) TestConnection() error {
	c := r.pool.Get()
	defer c.Close()

	if _, err := c.Do("PING"); err != nil {
		return fmt.Errorf("ping redis: %s", err)
	}
	return nil
}

// Close implements Registry. The underlying pool is shared process-wide and
// stays open for peer adapters.
func (r *RedisRegistry) Close() {}
