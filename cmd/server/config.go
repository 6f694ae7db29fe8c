package main

import (
	"fmt"
	"strings"
	"time"
)

type Config struct {
	Host                 string        `env:"HOST,default=localhost"`
	Port                 int           `env:"PORT,default=8080"`
	LogLevel             string        `env:"LOG_LEVEL,default=INFO"`
	BadgerFilepath       string        `env:"BADGER_FILEPATH,required=true"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=64"`
	AllowedOrigins       string        `env:"ALLOWED_ORIGINS,default=*"`
	CensoredWords        string        `env:"CENSORED_WORDS"`
	CensoredCharacter    string        `env:"CENSORED_CHARACTER,default=*"`
	GCInterval           time.Duration `env:"GC_INTERVAL,default=5m"`
	TelemetryInterval    time.Duration `env:"TELEMETRY_INTERVAL,default=30s"`
	// InspectPort enables the keyspace inspector when non-zero.
	InspectPort int `env:"INSPECT_PORT,default=0"`
}

func (c Config) Origins() []string {
	return splitCSV(c.AllowedOrigins)
}

func (c Config) Words() []string {
	return splitCSV(c.CensoredWords)
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// CharacterRune enforces a single-rune mask character.
func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CENSORED_CHARACTER must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}
