package main

import (
	"testing"

	"github.com/your-org/attend/internal/config"
)

func TestConsumerName(t *testing.T) {
	tests := map[string]string{
		"api-7d9f":          "api-7d9f",
		"host.example.com":  "host_example_com",
		"pod with spaces>*": "pod_with_spaces__",
		"":                  "local",
	}
	for in, want := range tests {
		if got := consumerName(in); got != want {
			t.Errorf("consumerName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestEmotionModelPath(t *testing.T) {
	tests := []struct {
		cfg  config.VisionConfig
		want string
	}{
		{config.VisionConfig{ModelsDir: "models"}, ""},
		{config.VisionConfig{ModelsDir: "models", EmotionModel: "ferplus.onnx"}, "models/ferplus.onnx"},
		{config.VisionConfig{ModelsDir: "models", EmotionModel: "/opt/ferplus.onnx"}, "/opt/ferplus.onnx"},
	}
	for _, tt := range tests {
		if got := emotionModelPath(tt.cfg); got != tt.want {
			t.Errorf("emotionModelPath(%+v) = %q, want %q", tt.cfg, got, tt.want)
		}
	}
}
