// Package config loads and validates server configuration from environment
// variables.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

const defaultSystemInstruction = `أنت مساعد صوتي متخصص حصرياً في هندسة المعلوماتية وعلوم الحاسب.

قواعد مهمة:
- أجب فقط على الأسئلة المتعلقة بعلوم الحاسب وهندسة المعلوماتية
- إذا كان السؤال خارج هذا النطاق، اعتذر باختصار واقترح سؤالاً ضمن المجال
- أجب بالعربية وبشكل واضح ومختصر مناسب للصوت
- تجنب الإطالة غير الضرورية
- قدّم أمثلة بسيطة عند الحاجة لتوضيح المفاهيم

مثال على الاعتذار للأسئلة الخارجية:
"أعتذر، أنا متخصص فقط في أسئلة علوم الحاسب وهندسة المعلوماتية. هل يمكنني مساعدتك في سؤال متعلق بالبرمجة أو الخوارزميات أو قواعد البيانات مثلاً؟"`

// Config holds everything the server reads from the environment.
type Config struct {
	Port string

	// Live path (Vertex AI).
	GoogleCloudProjectID string
	GoogleCloudRegion    string
	LiveModel            string
	VoiceName            string
	LanguageCode         string
	ResponseModalities   []string
	SystemInstruction    string

	BaseReconnectDelay   time.Duration
	MaxReconnectAttempts int

	// Fallback path (Gemini API key + TTS).
	GeminiAPIKey  string
	FallbackModel string
	TTSVoiceID    string

	// Optional features.
	JWTSecret        string
	StaticDir        string
	RelevanceEnabled bool
	MongoURI         string
	MongoDatabase    string
}

// Load reads configuration from the environment, applying defaults.
func Load() *Config {
	cfg := &Config{
		Port:                 getEnv("PORT", "8080"),
		GoogleCloudProjectID: os.Getenv("GOOGLE_CLOUD_PROJECT_ID"),
		GoogleCloudRegion:    getEnv("GOOGLE_CLOUD_REGION", "us-central1"),
		LiveModel:            getEnv("GEMINI_LIVE_MODEL", "gemini-live-2.5-flash"),
		VoiceName:            getEnv("GEMINI_VOICE_NAME", "Charon"),
		LanguageCode:         getEnv("GEMINI_LANGUAGE_CODE", "ar-EG"),
		SystemInstruction:    getEnv("SYSTEM_INSTRUCTION", defaultSystemInstruction),
		BaseReconnectDelay:   3 * time.Second,
		MaxReconnectAttempts: 5,
		GeminiAPIKey:         os.Getenv("GEMINI_API_KEY"),
		FallbackModel:        getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		TTSVoiceID:           os.Getenv("ELEVEN_LABS_VOICE_ID"),
		JWTSecret:            os.Getenv("JWT_SECRET"),
		StaticDir:            os.Getenv("STATIC_DIR"),
		RelevanceEnabled:     getEnv("RELEVANCE_FILTER_ENABLED", "true") == "true",
		MongoURI:             os.Getenv("MONGODB_URI"),
		MongoDatabase:        getEnv("MONGODB_DATABASE", "sawti"),
	}

	modalities := getEnv("GEMINI_RESPONSE_MODALITIES", "AUDIO")
	for _, m := range strings.Split(modalities, ",") {
		if m = strings.TrimSpace(m); m != "" {
			cfg.ResponseModalities = append(cfg.ResponseModalities, strings.ToUpper(m))
		}
	}

	if v := os.Getenv("UPSTREAM_MAX_RECONNECT_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxReconnectAttempts = n
		}
	}
	if v := os.Getenv("UPSTREAM_RECONNECT_DELAY_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.BaseReconnectDelay = time.Duration(n) * time.Millisecond
		}
	}

	return cfg
}

// Validate checks that at least one model path is usable.
func (c *Config) Validate() error {
	if c.GoogleCloudProjectID == "" && c.GeminiAPIKey == "" {
		return errors.New("either GOOGLE_CLOUD_PROJECT_ID (live path) or GEMINI_API_KEY (fallback path) is required")
	}
	return nil
}

// LiveEnabled reports whether the live bidirectional path is configured.
func (c *Config) LiveEnabled() bool {
	return c.GoogleCloudProjectID != ""
}

// FallbackEnabled reports whether the single-shot fallback is configured.
func (c *Config) FallbackEnabled() bool {
	return c.GeminiAPIKey != ""
}

// AudioResponsesEnabled reports whether the model itself speaks. When the
// response modalities exclude AUDIO, the orchestrator synthesizes the
// model's transcripts instead.
func (c *Config) AudioResponsesEnabled() bool {
	for _, m := range c.ResponseModalities {
		if m == "AUDIO" {
			return true
		}
	}
	return false
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
