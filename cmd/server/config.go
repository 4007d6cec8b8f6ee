package main

import (
	"fmt"
	"time"
)

type Config struct {
	Host string `env:"HOST,default=localhost"`
	Port int    `env:"PORT,default=8080"`

	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`
	SearchFilepath string `env:"SEARCH_FILEPATH,required=true"`
	LogLevel       string `env:"LOG_LEVEL,default=info"`

	JWTSecret     string        `env:"JWT_SECRET,required=true"`
	TokenDuration time.Duration `env:"TOKEN_DURATION,default=24h"`

	ShardCount      int           `env:"SHARD_COUNT,default=16"`
	NumberOfWorkers int           `env:"NUMBER_OF_WORKERS,default=4"`
	BufferSize      int           `env:"BUFFER_SIZE,default=128"`
	BacklogSize     int           `env:"BACKLOG_SIZE,default=50"`

	SinkTimeout      time.Duration `env:"SINK_TIMEOUT,default=2s"`
	PersistTimeout   time.Duration `env:"PERSIST_TIMEOUT,default=3s"`
	HandshakeTimeout time.Duration `env:"HANDSHAKE_TIMEOUT,default=5s"`
	AckTimeout       time.Duration `env:"ACK_TIMEOUT,default=5s"`

	TypingWindow  time.Duration `env:"TYPING_WINDOW,default=6s"`
	SweepInterval time.Duration `env:"SWEEP_INTERVAL,default=2s"`

	RestartInterval time.Duration `env:"RESTART_INTERVAL,default=200ms"`
	HealthInterval  time.Duration `env:"HEALTH_INTERVAL,default=30s"`

	ModerationCharReplacement string `env:"MODERATION_CHARACTER_REPLACEMENT,default=*"`
}

// CharacterRune converts the replacement character to the rune the censor
// expects. Kept as a string in the environment because integer parsing
// would reject "*".
func (c Config) CharacterRune() (rune, error) {
	r := []rune(c.ModerationCharReplacement)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"MODERATION_CHARACTER_REPLACEMENT must be a single character, got %q",
			c.ModerationCharReplacement,
		)
	}
	return r[0], nil
}
