package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	LogLevel  string          `mapstructure:"log_level"`
	Server    ServerConfig    `mapstructure:"server"`
	Signal    SignalConfig    `mapstructure:"signal"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Client    ClientConfig    `mapstructure:"client"`
	Capture   CaptureConfig   `mapstructure:"capture"`
	Recording RecordingConfig `mapstructure:"recording"`
	Poll      PollConfig      `mapstructure:"poll"`
}

type ServerConfig struct {
	Mode         string        `mapstructure:"mode"`
	Port         int           `mapstructure:"port"`
	ReadLimit    int64         `mapstructure:"read_limit"`
	PingPeriod   time.Duration `mapstructure:"ping_period"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	SendBuffer   int           `mapstructure:"send_buffer"`
	Secret       string        `mapstructure:"secret"`
}

type SignalConfig struct {
	// Envelopes per second allowed from one endpoint.
	Rate         float64 `mapstructure:"rate"`
	Burst        int     `mapstructure:"burst"`
	Backpressure string  `mapstructure:"backpressure"`
}

type StorageConfig struct {
	Driver string      `mapstructure:"driver"`
	Dir    string      `mapstructure:"dir"`
	Minio  MinioConfig `mapstructure:"minio"`
}

type MinioConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	Bucket    string `mapstructure:"bucket"`
	Prefix    string `mapstructure:"prefix"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Region    string `mapstructure:"region"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

type ClientConfig struct {
	SignalURL  string   `mapstructure:"signal_url"`
	APIURL     string   `mapstructure:"api_url"`
	Token      string   `mapstructure:"token"`
	ICEServers []string `mapstructure:"ice_servers"`
	Session    string   `mapstructure:"session"`
	Role       string   `mapstructure:"role"`
	// Duration bounds an unattended session; zero runs until interrupted.
	Duration time.Duration `mapstructure:"duration"`
}

type CaptureConfig struct {
	FFmpeg     string   `mapstructure:"ffmpeg"`
	VideoInput []string `mapstructure:"video_input"`
	AudioInput []string `mapstructure:"audio_input"`
	Width      int      `mapstructure:"width"`
	Height     int      `mapstructure:"height"`
	FPS        int      `mapstructure:"fps"`
}

type RecordingConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Width     int           `mapstructure:"width"`
	Height    int           `mapstructure:"height"`
	FPS       int           `mapstructure:"fps"`
	Timeslice time.Duration `mapstructure:"timeslice"`
	Container string        `mapstructure:"container"`
}

type PollConfig struct {
	TranscriptInterval time.Duration `mapstructure:"transcript_interval"`
	AnalysisInterval   time.Duration `mapstructure:"analysis_interval"`
	AnalysisDeadline   time.Duration `mapstructure:"analysis_deadline"`
	Analyze            bool          `mapstructure:"analyze"`
}

// flagKeys maps short command-line flag names to config keys.
var flagKeys = map[string]string{
	"session":  "client.session",
	"role":     "client.role",
	"signal":   "client.signal_url",
	"api":      "client.api_url",
	"token":    "client.token",
	"duration": "client.duration",
	"record":   "recording.enabled",
	"analyze":  "poll.analyze",
	"port":     "server.port",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")

	v.SetDefault("server.mode", "release")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.read_limit", 65536)
	v.SetDefault("server.ping_period", "54s")
	v.SetDefault("server.write_timeout", "5s")
	v.SetDefault("server.send_buffer", 64)

	v.SetDefault("signal.rate", 50)
	v.SetDefault("signal.burst", 100)
	v.SetDefault("signal.backpressure", "drop")

	v.SetDefault("storage.driver", "local")
	v.SetDefault("storage.dir", "./recordings")
	v.SetDefault("storage.minio.bucket", "recordings")

	v.SetDefault("client.signal_url", "ws://localhost:8000")
	v.SetDefault("client.api_url", "http://localhost:8000/api")
	v.SetDefault("client.ice_servers", []string{"stun:stun.l.google.com:19302", "stun:stun1.l.google.com:19302"})

	v.SetDefault("capture.ffmpeg", "ffmpeg")
	v.SetDefault("capture.video_input", []string{"-re", "-f", "lavfi", "-i", "testsrc=size=1280x720:rate=30"})
	v.SetDefault("capture.audio_input", []string{"-re", "-f", "lavfi", "-i", "sine=frequency=440:sample_rate=48000"})
	v.SetDefault("capture.width", 1280)
	v.SetDefault("capture.height", 720)
	v.SetDefault("capture.fps", 30)

	v.SetDefault("recording.enabled", false)
	v.SetDefault("recording.width", 1280)
	v.SetDefault("recording.height", 720)
	v.SetDefault("recording.fps", 30)
	v.SetDefault("recording.timeslice", "1s")
	v.SetDefault("recording.container", "video/webm")

	v.SetDefault("poll.transcript_interval", "5s")
	v.SetDefault("poll.analysis_interval", "5s")
	v.SetDefault("poll.analysis_deadline", "120s")
	v.SetDefault("poll.analyze", false)
}

// Load reads config/config.<CONFIG_ENV>.yaml over the defaults. A .env file,
// INTERVIEW_* environment variables and the given flags (may be nil) override it.
func Load(flags *pflag.FlagSet) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	setDefaults(v)

	v.SetEnvPrefix("INTERVIEW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		var bindErr error
		flags.VisitAll(func(f *pflag.Flag) {
			key, ok := flagKeys[f.Name]
			if !ok {
				key = f.Name
			}
			if err := v.BindPFlag(key, f); err != nil && bindErr == nil {
				bindErr = err
			}
		})
		if bindErr != nil {
			return nil, fmt.Errorf("failed to bind flags: %w", bindErr)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		fmt.Fprintf(os.Stderr, "config file not found (%s), using defaults\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
