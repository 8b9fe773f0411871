package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedPublish struct {
	channel string
	payload []byte
}

type fakeRedis struct {
	published []recordedPublish
	err       error
}

func (f *fakeRedis) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	f.published = append(f.published, recordedPublish{channel: channel, payload: message.([]byte)})
	return redis.NewIntResult(1, f.err)
}

func TestPublishStreamsUseAccountChannels(t *testing.T) {
	client := &fakeRedis{}
	p := NewRedisPublisher(client, "godrive")
	accountID := uuid.New()

	require.NoError(t, p.PublishMainStream(context.Background(), accountID, "driveFileCreated", map[string]string{"id": "f1"}))
	require.NoError(t, p.PublishDriveStream(context.Background(), accountID, "fileCreated", map[string]string{"id": "f1"}))

	require.Len(t, client.published, 2)
	assert.Equal(t, "godrive:mainStream:"+accountID.String(), client.published[0].channel)
	assert.Equal(t, "godrive:driveStream:"+accountID.String(), client.published[1].channel)

	var evt struct {
		Type string            `json:"type"`
		Body map[string]string `json:"body"`
	}
	require.NoError(t, json.Unmarshal(client.published[1].payload, &evt))
	assert.Equal(t, "fileCreated", evt.Type)
	assert.Equal(t, "f1", evt.Body["id"])
}

func TestPublishWrapsRedisErrors(t *testing.T) {
	client := &fakeRedis{err: errors.New("connection refused")}
	p := NewRedisPublisher(client, "")

	err := p.PublishMainStream(context.Background(), uuid.New(), "driveFileCreated", nil)
	require.Error(t, err)
	assert.Contains(t, client.published[0].channel, "mainStream:")
}
