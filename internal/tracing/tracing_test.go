package tracing

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"resume-analyzer-go/internal/config"
)

func TestMaskPII(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"a", "*"},
		{"ab", "a*"},
		{"abc", "a*c"},
		{"jane@example.com", "j***@example.com"},
		{"+15550102030", "+1********30"},
		{"张三", "张*"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MaskPII(tt.in), tt.in)
	}
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "short", TruncateString("short", 10))
	assert.Equal(t, "abc", TruncateString("abcdef", 3))
	assert.Equal(t, "ab...yz", TruncateString("abcdefghijklmnopqrstuvwxyz", 7))
}

func TestAttr(t *testing.T) {
	assert.Equal(t, "j***@example.com", Attr("candidate.email", "jane@example.com").Value.AsString())
	assert.Equal(t, "Ja****oe", Attr("personal_info.Name", "Jane Doe").Value.AsString())
	assert.Equal(t, "pdf", Attr("document.type", "pdf").Value.AsString())
	assert.Len(t, []rune(Attr("document.sample", strings.Repeat("x", 500)).Value.AsString()), 199)
}

func TestRecordError(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	_, span := provider.Tracer("test").Start(context.Background(), "op")

	RecordError(span, errors.New("boom"), ErrorTypeExtraction)
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	found := false
	for _, attr := range spans[0].Attributes() {
		if attr.Key == "error.type" {
			found = true
			assert.Equal(t, "extraction", attr.Value.AsString())
		}
	}
	assert.True(t, found, "应写入 error.type 属性")

	// nil 参数不应 panic
	RecordError(nil, errors.New("x"), ErrorTypeInternal)
	RecordError(span, nil, ErrorTypeInternal)
}

func TestInitProviderDisabled(t *testing.T) {
	shutdown, err := InitProvider(context.Background(), config.TracingConfig{Enabled: false})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}
