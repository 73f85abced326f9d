package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

// Config holds the application configuration.
type Config struct {
	RoomURL  string
	RoomID   string
	Loopback bool

	AudioCodec        string
	VideoCodec        string
	AudioStartBitrate int
	VideoStartBitrate int
}

// Load reads configuration from a .env file (if present) and environment
// variables. Environment variables take precedence over .env values.
// When ROOM_ID is unset a random room id is generated, so two clients
// must share an explicit id to meet in the same room.
func Load() (*Config, error) {
	// godotenv.Load does not overwrite existing env vars
	_ = godotenv.Load()

	roomURL := os.Getenv("ROOM_URL")
	if roomURL == "" {
		return nil, fmt.Errorf("ROOM_URL environment variable is required")
	}

	roomID := os.Getenv("ROOM_ID")
	if roomID == "" {
		roomID = uuid.NewString()[:8]
	}

	audioBitrate, err := intEnv("AUDIO_START_BITRATE", 0)
	if err != nil {
		return nil, err
	}
	videoBitrate, err := intEnv("VIDEO_START_BITRATE", 0)
	if err != nil {
		return nil, err
	}

	return &Config{
		RoomURL:           roomURL,
		RoomID:            roomID,
		Loopback:          os.Getenv("LOOPBACK") == "true",
		AudioCodec:        os.Getenv("AUDIO_CODEC"),
		VideoCodec:        os.Getenv("VIDEO_CODEC"),
		AudioStartBitrate: audioBitrate,
		VideoStartBitrate: videoBitrate,
	}, nil
}

func intEnv(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return parsed, nil
}
