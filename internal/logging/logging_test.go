package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter("debug", &buf)

	ctx := IntoContext(context.Background(), l.With("request_id", "abc"))
	FromContext(ctx).Debug("basket_loaded", "items", 2)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "basket_loaded", line["msg"])
	assert.Equal(t, "abc", line["request_id"])
	assert.Equal(t, "storefront", line["service"])
	assert.Equal(t, float64(2), line["items"])
}

func TestFromContext_DefaultLogger(t *testing.T) {
	assert.Same(t, slog.Default(), FromContext(context.Background()))
}

func TestLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter("warn", &buf)
	l.Info("hidden")
	assert.Empty(t, buf.String())
	l.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}
