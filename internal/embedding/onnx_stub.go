//go:build !cgo
// +build !cgo

package embedding

import (
	"context"
	"errors"
)

var errONNXUnavailable = errors.New("ONNX provider requires CGO; build with CGO_ENABLED=1 and onnxruntime")

// ONNXProvider stub type when built without CGO (see onnx.go for the real implementation).
type ONNXProvider struct{}

// NewONNXProvider returns an error when built without CGO (ONNX not available).
func NewONNXProvider(_, _ string, _, _ int) (*ONNXProvider, error) {
	return nil, errONNXUnavailable
}

func (p *ONNXProvider) Name() string      { return "onnx:unavailable" }
func (p *ONNXProvider) Model() string     { return "unavailable" }
func (p *ONNXProvider) Dimensions() int   { return 0 }
func (p *ONNXProvider) Available(ctx context.Context) bool { return false }
func (p *ONNXProvider) Close() error      { return nil }

func (p *ONNXProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, errONNXUnavailable
}

func (p *ONNXProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, errONNXUnavailable
}
