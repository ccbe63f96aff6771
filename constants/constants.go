package constants

import (
	"os"
	"strconv"
	"strings"
)

func getenv(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

// GetSamplesDir is the directory or base URL samples are resolved against.
func GetSamplesDir() string {
	return getenv("KEYSTATION_SAMPLES_DIR", "./samples")
}

// GetPianoSamplesDir holds the piano round-robin pool, relative to the
// samples dir unless it is absolute or a URL.
func GetPianoSamplesDir() string {
	return getenv("KEYSTATION_PIANO_SAMPLES", "piano")
}

func GetDrumSamplesDir() string {
	return getenv("KEYSTATION_DRUM_SAMPLES", "drums")
}

func GetSessionDir() string {
	return getenv("KEYSTATION_SESSION_DIR", "./sessions")
}

func GetPort() string {
	return getenv("KEYSTATION_PORT", "8000")
}

// GetSampleRate falls back to 44100 when unset or not a positive number.
func GetSampleRate() float64 {
	rate, err := strconv.ParseFloat(os.Getenv("KEYSTATION_SAMPLE_RATE"), 64)
	if err != nil || rate <= 0 {
		return DefaultSampleRate
	}
	return rate
}

// GetDynamoEndpoint is empty unless a local DynamoDB is used.
func GetDynamoEndpoint() string {
	return os.Getenv("KEYSTATION_DYNAMO_ENDPOINT")
}

func GetDynamoTable() string {
	return getenv("KEYSTATION_DYNAMO_TABLE", "keystation-sessions")
}

func GetDynamoRegion() string {
	return getenv("KEYSTATION_DYNAMO_REGION", "us-east-1")
}

const DefaultSampleRate = 44100

// frames rendered per output write, about 12ms at 44.1kHz
const RenderChunkFrames = 512

// GetPianoFiles lists the piano samples by name. Empty means every wav file
// in a local piano dir; a remote pool must be listed.
func GetPianoFiles() []string {
	var res []string
	for _, name := range strings.Split(os.Getenv("KEYSTATION_PIANO_FILES"), ",") {
		if name = strings.TrimSpace(name); name != "" {
			res = append(res, name)
		}
	}
	return res
}
