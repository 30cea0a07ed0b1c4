// internal/workers/ai-conversation/fetch-entity/config.go
package fetchentity

import "time"

type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 10 * time.Second,
	}
}
