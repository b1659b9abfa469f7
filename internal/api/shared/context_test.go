package shared

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetAndGetTraceID(t *testing.T) {
	ctx := SetTraceID(context.Background())
	traceID := GetTraceID(ctx)

	assert.Len(t, traceID, 32)
	assert.True(t, ValidTraceID(traceID))
	assert.NotEqual(t, traceID, GetTraceID(SetTraceID(context.Background())))
}

func TestGetTraceIDWithoutValue(t *testing.T) {
	assert.Empty(t, GetTraceID(context.Background()))
	ctx := context.WithValue(context.Background(), TraceIDKey, 42)
	assert.Empty(t, GetTraceID(ctx))
}

func TestValidTraceID(t *testing.T) {
	tests := []struct {
		traceID string
		want    bool
	}{
		{"abc123-def456", true},
		{"short", false},
		{"has spaces in it", false},
		{"line\nbreak-injection", false},
		{"", false},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, ValidTraceID(tc.traceID), tc.traceID)
	}
}
