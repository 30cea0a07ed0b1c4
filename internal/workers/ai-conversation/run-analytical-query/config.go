// internal/workers/ai-conversation/run-analytical-query/config.go
package runanalyticalquery

import "time"

type Config struct {
	Timeout      time.Duration
	CacheEnabled bool
	CacheTTL     time.Duration
	// TempDir holds the transient dataset copy; empty means os.TempDir().
	TempDir string
}

func LoadConfig() *Config {
	return &Config{
		Timeout:  300 * time.Second,
		CacheTTL: 10 * time.Minute,
	}
}
