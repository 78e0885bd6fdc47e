package main

import (
	"reflect"
	"testing"

	"go.uber.org/zap"

	"github.com/xiy/claude-memory-server/internal/config"
)

func TestBuildQuery(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"machine", "learning"}, "machine learning"},
		{[]string{"single"}, "single"},
		{[]string{"  padded  "}, "padded"},
		{nil, ""},
	}
	for _, tt := range tests {
		if got := buildQuery(tt.args); got != tt.want {
			t.Errorf("buildQuery(%v)=%q, want %q", tt.args, got, tt.want)
		}
	}
}

func TestArgsReorder(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want []string
	}{
		{
			name: "flags already first",
			args: []string{"-limit", "5", "query"},
			want: []string{"-limit", "5", "query"},
		},
		{
			name: "flags after query move to front",
			args: []string{"some", "query", "-limit", "5"},
			want: []string{"-limit", "5", "some", "query"},
		},
		{
			name: "no flags",
			args: []string{"just", "a", "query"},
			want: []string{"just", "a", "query"},
		},
		{
			name: "empty",
			args: []string{},
			want: []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := argsReorder(tt.args)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("argsReorder(%v)=%v, want %v", tt.args, got, tt.want)
			}
		})
	}
}

func TestNewProvider(t *testing.T) {
	logger := zap.NewNop()

	p, err := newProvider(&config.EmbeddingConfig{Provider: "mock", Dimensions: 16}, logger)
	if err != nil {
		t.Fatal(err)
	}
	if p.Dimensions() != 16 {
		t.Errorf("dimensions=%d, want 16", p.Dimensions())
	}
	_ = p.Close()

	if _, err := newProvider(&config.EmbeddingConfig{Provider: "quantum"}, logger); err == nil {
		t.Error("expected error for unknown provider")
	}

	// Empty provider defaults to mock.
	p, err = newProvider(&config.EmbeddingConfig{Dimensions: 8}, logger)
	if err != nil {
		t.Fatal(err)
	}
	if p.Name() != "mock:deterministic" {
		t.Errorf("name=%q", p.Name())
	}
	_ = p.Close()
}
