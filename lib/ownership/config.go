package ownership

import "time"

// Config defines RedisRegistry configuration. Addr accepts either host:port
// or a redis:// URL.
type Config struct {
	Addr            string        `yaml:"addr"`
	InstanceTag     string        `yaml:"instance_tag"`
	TTL             time.Duration `yaml:"ttl"`
	DialTimeout     time.Duration `yaml:"dial_timeout"`
	SyncTimeout     time.Duration `yaml:"sync_timeout"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	MaxActiveConns  int           `yaml:"max_active_conns"`
	IdleConnTimeout time.Duration `yaml:"idle_conn_timeout"`
}

func (c Config) applyDefaults() Config {
	if c.TTL == 0 {
		c.TTL = 7 * 24 * time.Hour
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.SyncTimeout == 0 {
		c.SyncTimeout = 3 * time.Second
	}
	if c.MaxIdleConns == 0 {
		c.MaxIdleConns = 3
	}
	if c.MaxActiveConns == 0 {
		c.MaxActiveConns = 10
	}
	if c.IdleConnTimeout == 0 {
		c.IdleConnTimeout = 60 * time.Second
	}
	return c
}
