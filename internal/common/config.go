package common

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/joseph-ayodele/orderproof/constants"
)

// Config holds all application configuration
type Config struct {
	OCR    OCRConfig
	Prep   PrepConfig
	LLM    LLMConfig
	Limits LimitsConfig
	Debug  bool
}

// OCRConfig holds recognition-related configuration
type OCRConfig struct {
	Engine             string // gosseract | cli
	Languages          []string
	TesseractPath      string
	TessdataDir        string
	PoolSize           int
	RecognitionTimeout time.Duration
	ParallelPasses     bool
}

// PrepConfig holds preprocessing configuration
type PrepConfig struct {
	Timeout      time.Duration
	WorkingWidth int
}

// LLMConfig holds model-provider configuration
type LLMConfig struct {
	Provider         string // gemini | anthropic
	APIKey           string
	Models           []string
	Temperature      float32
	CallTimeout      time.Duration
	MaxOutputTokens  int32
	AcceptConfidence int
}

// LimitsConfig holds input and cost guards
type LimitsConfig struct {
	MaxImageBytes        int64
	MaxEstimatedTokens   int
	MaxPlausibleAmount   float64
	PlatformPatternsFile string
}

var defaultModels = map[string][]string{
	"gemini":    {"gemini-2.5-flash", "gemini-2.0-flash", "gemini-2.0-flash-lite", "gemini-1.5-flash"},
	"anthropic": {"claude-sonnet-4-5", "claude-3-7-sonnet-latest", "claude-3-5-haiku-latest"},
}

// LoadConfig loads configuration from environment variables. Files named in
// envFiles are loaded first when present; already-set variables win.
func LoadConfig(envFiles ...string) *Config {
	for _, f := range envFiles {
		if _, err := os.Stat(f); err == nil {
			_ = godotenv.Load(f)
		}
	}

	provider := strings.ToLower(getEnv("LLM_PROVIDER", "gemini"))
	apiKey := getEnv("LLM_API_KEY", "")
	if apiKey == "" {
		switch provider {
		case "anthropic":
			apiKey = getEnv("ANTHROPIC_API_KEY", "")
		default:
			apiKey = getEnv("GEMINI_API_KEY", getEnv("GOOGLE_API_KEY", ""))
		}
	}

	return &Config{
		OCR: OCRConfig{
			Engine:             strings.ToLower(getEnv("OCR_ENGINE", "gosseract")),
			Languages:          getEnvAsList("OCR_LANGUAGES", []string{"eng"}),
			TesseractPath:      getEnv("TESSERACT_PATH", "tesseract"),
			TessdataDir:        getEnv("TESSDATA_PREFIX", ""),
			PoolSize:           getEnvAsInt("POOL_SIZE", constants.DefaultPoolSize),
			RecognitionTimeout: getEnvAsDuration("OCR_RECOGNITION_TIMEOUT", constants.DefaultRecognitionTimeout),
			ParallelPasses:     getEnvAsBool("OCR_PARALLEL_PASSES", false),
		},
		Prep: PrepConfig{
			Timeout:      getEnvAsDuration("PREP_TIMEOUT", constants.DefaultPrepTimeout),
			WorkingWidth: getEnvAsInt("PREP_WORKING_WIDTH", constants.DefaultWorkingWidth),
		},
		LLM: LLMConfig{
			Provider:         provider,
			APIKey:           apiKey,
			Models:           getEnvAsList("LLM_MODELS", defaultModels[provider]),
			Temperature:      getEnvAsFloat32("LLM_TEMPERATURE", 0.0),
			CallTimeout:      getEnvAsDuration("LLM_CALL_TIMEOUT", constants.DefaultModelCallTimeout),
			MaxOutputTokens:  getEnvAsInt32("LLM_MAX_OUTPUT_TOKENS", constants.DefaultMaxOutputTokens),
			AcceptConfidence: getEnvAsInt("LLM_ACCEPT_CONFIDENCE", constants.DefaultAcceptConfidence),
		},
		Limits: LimitsConfig{
			MaxImageBytes:        int64(getEnvAsInt("MAX_IMAGE_BYTES", constants.DefaultMaxImageBytes)),
			MaxEstimatedTokens:   getEnvAsInt("MAX_ESTIMATED_TOKENS", constants.DefaultMaxEstimatedTokens),
			MaxPlausibleAmount:   getEnvAsFloat64("MAX_PLAUSIBLE_AMOUNT", constants.DefaultMaxPlausibleAmount),
			PlatformPatternsFile: getEnv("PLATFORM_PATTERNS_FILE", ""),
		},
		Debug: getEnvAsBool("DEBUG_LOGGING", false),
	}
}

// Enabled reports whether a model provider can be constructed.
func (c LLMConfig) Enabled() bool {
	return c.APIKey != "" && len(c.Models) > 0
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	v := NewValidator().
		Field("POOL_SIZE", c.OCR.PoolSize, Positive).
		Field("OCR_ENGINE", c.OCR.Engine, OneOf("gosseract", "cli")).
		Field("OCR_RECOGNITION_TIMEOUT", c.OCR.RecognitionTimeout, Positive).
		Field("PREP_TIMEOUT", c.Prep.Timeout, Positive).
		Field("PREP_WORKING_WIDTH", c.Prep.WorkingWidth, Positive).
		Field("LLM_PROVIDER", c.LLM.Provider, OneOf("gemini", "anthropic")).
		Field("LLM_CALL_TIMEOUT", c.LLM.CallTimeout, Positive).
		Field("LLM_MAX_OUTPUT_TOKENS", c.LLM.MaxOutputTokens, Positive).
		Field("LLM_ACCEPT_CONFIDENCE", c.LLM.AcceptConfidence, Between(0, 100)).
		Field("MAX_IMAGE_BYTES", c.Limits.MaxImageBytes, Positive).
		Field("MAX_ESTIMATED_TOKENS", c.Limits.MaxEstimatedTokens, Positive).
		Field("MAX_PLAUSIBLE_AMOUNT", c.Limits.MaxPlausibleAmount, Positive)
	if c.LLM.APIKey != "" && len(c.LLM.Models) > 5 {
		v.Field("LLM_MODELS", len(c.LLM.Models), Between(1, 5))
	}
	if v.HasErrors() {
		return NewAppError(KindInput, "CONFIG_ERROR", v.ErrorMessage(), ErrValidation)
	}
	return nil
}
