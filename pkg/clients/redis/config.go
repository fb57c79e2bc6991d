package redis

// PoolConfig 连接池参数，超时类字段单位为秒，MaxConnAge 单位为分钟
type PoolConfig struct {
	PoolSize     int   `json:"pool_size" yaml:"poolSize"`
	MaxRetries   int   `json:"max_retries" yaml:"maxRetries"` // -1 关闭重试
	MaxConnAge   int64 `json:"max_conn_age" yaml:"maxConnAge"`
	DialTimeout  int64 `json:"dial_timeout" yaml:"dialTimeout"`
	ReadTimeout  int64 `json:"read_timeout" yaml:"readTimeout"`
	WriteTimeout int64 `json:"write_timeout" yaml:"writeTimeout"`
	MinIdleConns int   `json:"min_idle_conns" yaml:"minIdleConns"`
	PoolTimeout  int64 `json:"pool_timeout" yaml:"poolTimeout"`
	IdleTimeout  int64 `json:"idle_timeout" yaml:"idleTimeout"`
}

type RedisConfig struct {
	Host     string `json:"host" yaml:"host"` // host:port
	Password string `json:"password" yaml:"password"`
	Db       int    `json:"db" yaml:"db"`
	PoolConfig
}

type RedisFailoverConfig struct {
	Hosts      []string `json:"hosts" yaml:"hosts"`
	Password   string   `json:"password" yaml:"password"`
	Db         int      `json:"db" yaml:"db"`
	PoolSize   int      `json:"pool_size" yaml:"poolSize"`
	MasterName string   `json:"master_name" yaml:"masterName"`
}

type RedisClusterConfig struct {
	Hosts    []string `json:"hosts" yaml:"hosts"`
	Password string   `json:"password" yaml:"password"`
	PoolConfig
}

// DefaultConfig 未设置的字段填默认值
func (pc *PoolConfig) DefaultConfig() {
	if pc.PoolSize == 0 {
		pc.PoolSize = 100
	}
	if pc.MaxRetries == 0 {
		pc.MaxRetries = 3
	}
	if pc.DialTimeout == 0 {
		pc.DialTimeout = 30
	}
	if pc.ReadTimeout == 0 {
		pc.ReadTimeout = 5
	}
	if pc.WriteTimeout == 0 {
		pc.WriteTimeout = 5
	}
	if pc.MinIdleConns == 0 {
		pc.MinIdleConns = 10
	}
	if pc.PoolTimeout == 0 {
		pc.PoolTimeout = 30
	}
	if pc.IdleTimeout == 0 {
		pc.IdleTimeout = 30
	}
}
