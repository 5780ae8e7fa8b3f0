package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("GOOGLE_CLOUD_PROJECT_ID", "proj")
	t.Setenv("GOOGLE_CLOUD_REGION", "")
	t.Setenv("GEMINI_RESPONSE_MODALITIES", "")
	t.Setenv("MONGODB_DATABASE", "")

	cfg := Load()

	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.GoogleCloudRegion != "us-central1" {
		t.Errorf("Region = %q, want us-central1", cfg.GoogleCloudRegion)
	}
	if cfg.VoiceName != "Charon" {
		t.Errorf("VoiceName = %q, want Charon", cfg.VoiceName)
	}
	if cfg.LanguageCode != "ar-EG" {
		t.Errorf("LanguageCode = %q, want ar-EG", cfg.LanguageCode)
	}
	if len(cfg.ResponseModalities) != 1 || cfg.ResponseModalities[0] != "AUDIO" {
		t.Errorf("ResponseModalities = %v, want [AUDIO]", cfg.ResponseModalities)
	}
	if !cfg.AudioResponsesEnabled() {
		t.Error("AudioResponsesEnabled() = false with AUDIO modality")
	}
	if cfg.SystemInstruction == "" {
		t.Error("SystemInstruction should have a default")
	}
	if cfg.MaxReconnectAttempts != 5 {
		t.Errorf("MaxReconnectAttempts = %d, want 5", cfg.MaxReconnectAttempts)
	}
	if cfg.BaseReconnectDelay != 3*time.Second {
		t.Errorf("BaseReconnectDelay = %v, want 3s", cfg.BaseReconnectDelay)
	}
	if cfg.MongoDatabase != "sawti" {
		t.Errorf("MongoDatabase = %q, want sawti", cfg.MongoDatabase)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("GOOGLE_CLOUD_PROJECT_ID", "proj")
	t.Setenv("GEMINI_RESPONSE_MODALITIES", "text")
	t.Setenv("UPSTREAM_MAX_RECONNECT_ATTEMPTS", "2")
	t.Setenv("UPSTREAM_RECONNECT_DELAY_MS", "100")
	t.Setenv("MONGODB_DATABASE", "sawti_test")

	cfg := Load()

	if len(cfg.ResponseModalities) != 1 || cfg.ResponseModalities[0] != "TEXT" {
		t.Errorf("ResponseModalities = %v, want [TEXT]", cfg.ResponseModalities)
	}
	if cfg.AudioResponsesEnabled() {
		t.Error("AudioResponsesEnabled() = true for text-only modalities")
	}
	if cfg.MaxReconnectAttempts != 2 {
		t.Errorf("MaxReconnectAttempts = %d, want 2", cfg.MaxReconnectAttempts)
	}
	if cfg.BaseReconnectDelay != 100*time.Millisecond {
		t.Errorf("BaseReconnectDelay = %v, want 100ms", cfg.BaseReconnectDelay)
	}
	if cfg.MongoDatabase != "sawti_test" {
		t.Errorf("MongoDatabase = %q, want sawti_test", cfg.MongoDatabase)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "live only", cfg: Config{GoogleCloudProjectID: "p"}, wantErr: false},
		{name: "fallback only", cfg: Config{GeminiAPIKey: "k"}, wantErr: false},
		{name: "both", cfg: Config{GoogleCloudProjectID: "p", GeminiAPIKey: "k"}, wantErr: false},
		{name: "neither", cfg: Config{}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
