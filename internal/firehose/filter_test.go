package firehose

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/skywatch-app/skywatch-server/internal/domain"
)

func TestFilter_EmptyAllowListCapturesAll(t *testing.T) {
	f := NewFilter(nil)

	assert.True(t, f.ShouldCapture(&domain.Label{Value: "spam"}))
	assert.True(t, f.ShouldCapture(&domain.Label{Value: "anything-at-all"}))
}

func TestFilter_AllowList(t *testing.T) {
	f := NewFilter([]string{"spam", "rude"})

	assert.True(t, f.ShouldCapture(&domain.Label{Value: "spam"}))
	assert.True(t, f.ShouldCapture(&domain.Label{Value: "rude"}))
	assert.False(t, f.ShouldCapture(&domain.Label{Value: "nsfw"}))
	assert.False(t, f.ShouldCapture(&domain.Label{Value: ""}))
}

func TestFilter_ExactMatchOnly(t *testing.T) {
	f := NewFilter([]string{"spam"})

	assert.False(t, f.ShouldCapture(&domain.Label{Value: "Spam"}))
	assert.False(t, f.ShouldCapture(&domain.Label{Value: "spam "}))
}
