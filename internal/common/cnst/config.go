package cnst

const (
	RelayYaml = "relay.yaml"
)

const (
	RedisClusterTypeSentinel = "sentinel"
	RedisClusterTypeCluster  = "cluster"
	RedisClusterTypeSingle   = "single"
)

const (
	SessionStoreMemory = "memory"
	SessionStoreRedis  = "redis"
)
