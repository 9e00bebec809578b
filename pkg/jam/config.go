package jam

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the session configuration. Audio tunables (silence threshold,
// minimum onset) depend on microphone and environment, so they are defaults
// that can be overridden from the environment or flags, not invariants.
type Config struct {
	// Musician provider selection
	Provider        string
	OpenAIKey       string
	OpenAIModel     string
	OpenRouterKey   string
	OpenRouterModel string
	OllamaHost      string
	OllamaModel     string

	// Audio capture
	SampleRate       int
	BlockSize        int
	SilenceThreshold float64
	SilenceTimeout   time.Duration
	MinOnset         time.Duration
	MaxRecord        time.Duration

	// Playback
	BPM               float64
	MIDIPort          string
	CreateVirtualPort bool
	Metronome         bool

	// Session
	DefaultStyle string
	MonitorAddr  string
}

// NewConfig returns a config populated with defaults and environment
// overrides. A .env file in the working directory is honored.
func NewConfig() *Config {
	c := &Config{
		Provider:          "openai",
		SampleRate:        44100,
		BlockSize:         1024,
		SilenceThreshold:  0.01,
		SilenceTimeout:    time.Second,
		MinOnset:          100 * time.Millisecond,
		MaxRecord:         30 * time.Second,
		BPM:               95,
		CreateVirtualPort: true,
		Metronome:         true,
		DefaultStyle:      "mellow",
	}
	c.loadFromEnv()
	return c
}

func (c *Config) loadFromEnv() {
	_ = godotenv.Load()

	if v := os.Getenv("LLM_PROVIDER"); v != "" {
		c.Provider = v
	}
	c.OpenAIKey = os.Getenv("OPENAI_API_KEY")
	c.OpenAIModel = os.Getenv("OPENAI_MODEL")
	c.OpenRouterKey = os.Getenv("OPENROUTER_API_KEY")
	c.OpenRouterModel = os.Getenv("OPENROUTER_MODEL")
	c.OllamaHost = os.Getenv("OLLAMA_HOST")
	c.OllamaModel = os.Getenv("OLLAMA_MODEL")

	if v := os.Getenv("JAM_SAMPLE_RATE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.SampleRate = n
		}
	}
	if v := os.Getenv("JAM_SILENCE_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			c.SilenceThreshold = f
		}
	}
	if v := os.Getenv("JAM_SILENCE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			c.SilenceTimeout = d
		}
	}
	if v := os.Getenv("JAM_MIN_ONSET"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			c.MinOnset = d
		}
	}
	if v := os.Getenv("JAM_MAX_RECORD"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			c.MaxRecord = d
		}
	}
	if v := os.Getenv("JAM_BPM"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			c.BPM = f
		}
	}
	if v := os.Getenv("JAM_MIDI_PORT"); v != "" {
		c.MIDIPort = v
		c.CreateVirtualPort = false
	}
	if v := os.Getenv("JAM_STYLE"); v != "" {
		c.DefaultStyle = v
	}
	c.MonitorAddr = os.Getenv("JAM_MONITOR_ADDR")
}

// Validate returns a list of configuration issues. An empty list means the
// config is usable.
func (c *Config) Validate() []string {
	var issues []string

	switch c.Provider {
	case "openai":
		if c.OpenAIKey == "" {
			issues = append(issues, "OPENAI_API_KEY environment variable not set")
		}
		if c.OpenAIModel == "" {
			issues = append(issues, "OPENAI_MODEL environment variable not set")
		}
	case "openrouter":
		if c.OpenRouterKey == "" {
			issues = append(issues, "OPENROUTER_API_KEY environment variable not set")
		}
		if c.OpenRouterModel == "" {
			issues = append(issues, "OPENROUTER_MODEL environment variable not set")
		}
	case "ollama":
		if c.OllamaModel == "" {
			issues = append(issues, "OLLAMA_MODEL environment variable not set")
		}
	default:
		issues = append(issues, fmt.Sprintf("unknown LLM provider: %s", c.Provider))
	}

	if c.SilenceTimeout <= 0 {
		issues = append(issues, "silence timeout must be positive")
	}
	if c.MinOnset >= c.MaxRecord {
		issues = append(issues, "minimum onset must be shorter than the max record time")
	}
	if c.BPM <= 0 {
		issues = append(issues, "BPM must be positive")
	}

	return issues
}

// PrintConfig writes the effective configuration to stdout with credentials
// masked.
func (c *Config) PrintConfig() {
	fmt.Println("jamloop configuration")
	fmt.Println("==================================================")
	fmt.Printf("Provider: %s\n", c.Provider)
	fmt.Printf("OpenAI Key: %s  Model: %s\n", maskKey(c.OpenAIKey), c.OpenAIModel)
	fmt.Printf("OpenRouter Key: %s  Model: %s\n", maskKey(c.OpenRouterKey), c.OpenRouterModel)
	fmt.Printf("Ollama Host: %s  Model: %s\n", c.OllamaHost, c.OllamaModel)
	fmt.Printf("Sample Rate: %d Hz  Block Size: %d\n", c.SampleRate, c.BlockSize)
	fmt.Printf("Silence Threshold: %.4f  Timeout: %v  Min Onset: %v  Max Record: %v\n",
		c.SilenceThreshold, c.SilenceTimeout, c.MinOnset, c.MaxRecord)
	fmt.Printf("BPM: %.1f  Metronome: %t\n", c.BPM, c.Metronome)
	if c.CreateVirtualPort {
		fmt.Println("MIDI Port: <virtual>")
	} else {
		fmt.Printf("MIDI Port: %s\n", c.MIDIPort)
	}
	fmt.Printf("Default Style: %q\n", c.DefaultStyle)
	if c.MonitorAddr != "" {
		fmt.Printf("Monitor: %s\n", c.MonitorAddr)
	}
}

func maskKey(s string) string {
	if s == "" {
		return "<not set>"
	}
	if len(s) <= 8 {
		return "****"
	}
	return s[:4] + "****" + s[len(s)-4:]
}
