package events

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewItemEvent(t *testing.T) {
	e := NewItemEvent(ItemPurchased, 42, 3)
	assert.NotEqual(t, uuid.Nil, e.ID)
	assert.Equal(t, ItemPurchased, e.Type)
	assert.Equal(t, int64(42), e.ItemID)
	assert.Equal(t, int64(3), e.Version)
	assert.WithinDuration(t, time.Now(), e.Timestamp, time.Second)
}

func TestEventJSON(t *testing.T) {
	e := NewItemEvent(ItemDeleted, 7, 2)
	data, err := e.ToJSON()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type":"item.deleted"`)

	got, err := FromJSON(data)
	require.NoError(t, err)
	assert.Equal(t, e.ID, got.ID)
	assert.Equal(t, e.ItemID, got.ItemID)
	assert.True(t, e.Timestamp.Equal(got.Timestamp))
}

func TestFromJSONRejectsBadPayloads(t *testing.T) {
	for _, in := range []string{
		`{"item_id": "x"}`,
		`{"type": "item.exploded", "item_id": 1}`,
		`not json`,
	} {
		_, err := FromJSON([]byte(in))
		assert.Error(t, err, in)
	}
}
