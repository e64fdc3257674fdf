package common

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is read when no explicit config path is given.
const DefaultConfigFile = "shortsmith.yaml"

// CaptionConfig controls the look of the topic caption
type CaptionConfig struct {
	MaxWidth    int     `yaml:"max_width"`
	FontScale   float64 `yaml:"font_scale"`
	Thickness   int     `yaml:"thickness"`
	LineSpacing float64 `yaml:"line_spacing"`
}

// PipelineConfig holds everything a run needs. It is built once at startup
// and passed explicitly to each component.
type PipelineConfig struct {
	GeminiKey string `yaml:"-"`
	PexelsKey string `yaml:"-"`

	WorkDir       string `yaml:"work_dir"`
	OutputName    string `yaml:"output_name"`
	NarrationName string `yaml:"narration_name"`

	GeminiModel string  `yaml:"gemini_model"`
	Temperature float32 `yaml:"temperature"`

	Voice     string `yaml:"voice"`
	TTSBinary string `yaml:"tts_binary"`

	PexelsBaseURL    string        `yaml:"pexels_base_url"`
	PerPage          int           `yaml:"per_page"`
	Orientation      string        `yaml:"orientation"`
	MaxClips         int           `yaml:"max_clips"`
	FetchConcurrency int           `yaml:"fetch_concurrency"`
	HTTPTimeout      time.Duration `yaml:"http_timeout"`

	FrameWidth  int    `yaml:"frame_width"`
	FrameHeight int    `yaml:"frame_height"`
	FPS         int    `yaml:"fps"`
	VideoCodec  string `yaml:"video_codec"`
	AudioCodec  string `yaml:"audio_codec"`

	Caption CaptionConfig `yaml:"caption"`

	LedgerPath string `yaml:"ledger_path"`
}

// DefaultConfig returns the built-in tunables. Credentials are left empty.
func DefaultConfig() PipelineConfig {
	return PipelineConfig{
		WorkDir:          ".",
		OutputName:       "final_output.mp4",
		NarrationName:    "voice.mp3",
		GeminiModel:      "gemini-2.0-flash",
		Temperature:      0.9,
		Voice:            "en-US-ChristopherNeural",
		TTSBinary:        "edge-tts",
		PexelsBaseURL:    "https://api.pexels.com",
		PerPage:          3,
		Orientation:      "portrait",
		MaxClips:         3,
		FetchConcurrency: 1,
		HTTPTimeout:      60 * time.Second,
		FrameWidth:       1080,
		FrameHeight:      1920,
		FPS:              24,
		VideoCodec:       "libx264",
		AudioCodec:       "aac",
		Caption: CaptionConfig{
			MaxWidth:    800,
			FontScale:   2.6,
			Thickness:   5,
			LineSpacing: 1.35,
		},
	}
}

// LoadConfig builds the pipeline configuration from .env, an optional YAML
// file and the process environment. An empty path falls back to
// DefaultConfigFile, which may be absent.
func LoadConfig(path string) (PipelineConfig, error) {
	// .env is optional; real deployments export the variables directly
	_ = godotenv.Load()

	cfg := DefaultConfig()

	explicit := path != ""
	if !explicit {
		path = DefaultConfigFile
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("%w: parse %s: %v", ErrConfig, path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return cfg, fmt.Errorf("%w: read %s: %v", ErrConfig, path, err)
	}

	cfg.GeminiKey = os.Getenv("GEMINI_API_KEY")
	cfg.PexelsKey = os.Getenv("PEXELS_API_KEY")

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate reports missing credentials and out-of-range tunables.
func (c PipelineConfig) Validate() error {
	var errs []error
	if c.GeminiKey == "" {
		errs = append(errs, errors.New("GEMINI_API_KEY is not set"))
	}
	if c.PexelsKey == "" {
		errs = append(errs, errors.New("PEXELS_API_KEY is not set"))
	}
	if c.OutputName == "" || c.NarrationName == "" {
		errs = append(errs, errors.New("output_name and narration_name must be set"))
	}
	if c.MaxClips < 1 {
		errs = append(errs, fmt.Errorf("max_clips must be at least 1, got %d", c.MaxClips))
	}
	if c.PerPage < 1 {
		errs = append(errs, fmt.Errorf("per_page must be at least 1, got %d", c.PerPage))
	}
	if c.FetchConcurrency < 1 {
		errs = append(errs, fmt.Errorf("fetch_concurrency must be at least 1, got %d", c.FetchConcurrency))
	}
	if c.FrameWidth <= 0 || c.FrameHeight <= 0 || c.FrameWidth%2 != 0 || c.FrameHeight%2 != 0 {
		errs = append(errs, fmt.Errorf("frame size %dx%d must be positive and even", c.FrameWidth, c.FrameHeight))
	}
	if c.FPS <= 0 {
		errs = append(errs, fmt.Errorf("fps must be positive, got %d", c.FPS))
	}
	if c.Caption.MaxWidth <= 0 || c.Caption.MaxWidth > c.FrameWidth {
		errs = append(errs, fmt.Errorf("caption.max_width must be in (0, %d], got %d", c.FrameWidth, c.Caption.MaxWidth))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrConfig, errors.Join(errs...))
	}
	return nil
}

// WorkPath resolves name inside the configured work directory.
func (c PipelineConfig) WorkPath(name string) string {
	return filepath.Join(c.WorkDir, name)
}

// OutputPath is where the final artifact is written.
func (c PipelineConfig) OutputPath() string {
	return c.WorkPath(c.OutputName)
}

// NarrationPath is where the synthesized narration is written.
func (c PipelineConfig) NarrationPath() string {
	return c.WorkPath(c.NarrationName)
}
