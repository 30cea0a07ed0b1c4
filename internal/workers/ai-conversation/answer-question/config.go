// internal/workers/ai-conversation/answer-question/config.go
package answerquestion

import "time"

type Config struct {
	DefaultSession string
	// TurnTimeout bounds a whole turn; zero leaves only the per-call timeouts.
	TurnTimeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		DefaultSession: "default",
	}
}
