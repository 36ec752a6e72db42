package logging

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestErrorClassification(t *testing.T) {
	assert.True(t, IsNotFound(fmt.Errorf("load: %w", gorm.ErrRecordNotFound)))
	assert.False(t, IsNotFound(errors.New("boom")))

	assert.True(t, IsDuplicate(gorm.ErrDuplicatedKey))
	assert.True(t, IsDuplicate(errors.New("UNIQUE constraint failed: buckets.name")))
	assert.True(t, IsDuplicate(errors.New("Error 1062: Duplicate entry 'x' for key 'idx'")))
	assert.False(t, IsDuplicate(nil))

	assert.True(t, IsRateLimit(errors.New("HTTP 429 Too Many Requests")))
	assert.False(t, IsRateLimit(nil))
}

func TestLoggerOptions(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, Options{Level: "warn", Format: "json"})

	logger.Info("hidden")
	logger.Warn("shown", "proposal", 7)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)
	assert.Contains(t, out, `"proposal":7`)
}
