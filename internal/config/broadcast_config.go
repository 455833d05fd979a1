package config

type Broadcast struct{}

var _ BroadcastConfig = Broadcast{}

func (Broadcast) GetRedisAddr() string {
	return GetEnv("REDIS_ADDR", "")
}

func (Broadcast) GetRedisPassword() string {
	return GetEnv("REDIS_PASSWORD", "")
}

func (Broadcast) GetRedisDB() int {
	return GetEnvInt("REDIS_DB", 0)
}
