package events

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/AliBars19/apollova-publisher/pkg/models"
)

func TestEventName(t *testing.T) {
	assert.Equal(t, VideoPublished, EventName(models.VideoStatusPublished))
	assert.Equal(t, VideoPartial, EventName(models.VideoStatusPartial))
	assert.Equal(t, VideoFailed, EventName(models.VideoStatusFailed))
	assert.Equal(t, VideoFailed, EventName("anything-else"))
}

func TestNoopPublisher(t *testing.T) {
	assert.NoError(t, Noop{}.Publish(context.Background(), Event{Name: VideoPublished}))
}
