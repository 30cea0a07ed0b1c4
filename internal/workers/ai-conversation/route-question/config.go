// internal/workers/ai-conversation/route-question/config.go
package routequestion

import "time"

type Config struct {
	Timeout     time.Duration
	Temperature float64
}

func LoadConfig() *Config {
	return &Config{
		Timeout:     60 * time.Second,
		Temperature: 0,
	}
}
