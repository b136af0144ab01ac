package firehose

import (
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skywatch-app/skywatch-server/internal/domain"
	"github.com/skywatch-app/skywatch-server/internal/errors"
)

// encodeFrame builds the two-value binary framing: header then body.
func encodeFrame(t *testing.T, header, body any) []byte {
	t.Helper()

	h, err := cbor.Marshal(header)
	require.NoError(t, err)
	b, err := cbor.Marshal(body)
	require.NoError(t, err)

	return append(h, b...)
}

func TestDecodeFrame_Labels(t *testing.T) {
	frame := encodeFrame(t,
		map[string]any{"op": 1, "t": "#labels"},
		map[string]any{
			"seq": 1042,
			"labels": []map[string]any{
				{
					"src": "did:plc:labeler",
					"uri": "at://did:plc:abc/app.bsky.feed.post/3kabc",
					"val": "spam",
					"cts": "2026-08-01T12:00:00Z",
				},
				{
					"src": "did:plc:labeler",
					"uri": "did:plc:def",
					"val": "rude",
					"neg": true,
					"cts": "2026-08-01T12:00:01Z",
				},
			},
		},
	)

	msg, err := DecodeFrame(frame)
	require.NoError(t, err)

	assert.True(t, msg.HasSeq)
	assert.Equal(t, int64(1042), msg.Seq)
	require.Len(t, msg.Labels, 2)

	assert.Equal(t, "spam", msg.Labels[0].Value)
	assert.Equal(t, "at://did:plc:abc/app.bsky.feed.post/3kabc", msg.Labels[0].URI)
	assert.False(t, msg.Labels[0].Negated)

	assert.Equal(t, "rude", msg.Labels[1].Value)
	assert.Equal(t, "did:plc:def", msg.Labels[1].URI)
	assert.True(t, msg.Labels[1].Negated)
}

func TestDecodeFrame_EmptyLabels(t *testing.T) {
	frame := encodeFrame(t,
		map[string]any{"op": 1, "t": "#labels"},
		map[string]any{"seq": 7, "labels": []domain.Label{}},
	)

	msg, err := DecodeFrame(frame)
	require.NoError(t, err)

	// Zero labels still carries a sequence to commit.
	assert.True(t, msg.HasSeq)
	assert.Equal(t, int64(7), msg.Seq)
	assert.Empty(t, msg.Labels)
}

func TestDecodeFrame_UnknownType(t *testing.T) {
	frame := encodeFrame(t,
		map[string]any{"op": 1, "t": "#info"},
		map[string]any{"name": "OutdatedCursor"},
	)

	msg, err := DecodeFrame(frame)
	require.NoError(t, err)

	// Unknown typed frames yield no events and no cursor movement.
	assert.False(t, msg.HasSeq)
	assert.Empty(t, msg.Labels)
}

func TestDecodeFrame_ErrorFrame(t *testing.T) {
	frame := encodeFrame(t,
		map[string]any{"op": -1},
		map[string]any{"error": "FutureCursor", "message": "cursor is ahead of stream"},
	)

	_, err := DecodeFrame(frame)
	require.Error(t, err)

	var streamErr *StreamError
	require.True(t, errors.As(err, &streamErr))
	assert.Equal(t, "FutureCursor", streamErr.Name)
	assert.Contains(t, streamErr.Error(), "FutureCursor")
	assert.Contains(t, streamErr.Error(), "cursor is ahead of stream")
}

func TestDecodeFrame_UnknownOp(t *testing.T) {
	frame := encodeFrame(t,
		map[string]any{"op": 3, "t": "#labels"},
		map[string]any{},
	)

	_, err := DecodeFrame(frame)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrDecode))
}

func TestDecodeFrame_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		frame []byte
	}{
		{name: "empty frame", frame: nil},
		{name: "garbage bytes", frame: []byte{0xff, 0x00, 0x13, 0x37}},
		{name: "truncated frame", frame: encodeFrame(t, map[string]any{"op": 1, "t": "#labels"}, nil)[:3]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeFrame(tt.frame)
			require.Error(t, err)

			var streamErr *StreamError
			assert.False(t, errors.As(err, &streamErr), "malformed frames are decode errors, not stream errors")
		})
	}
}

func TestStreamError_ErrorWithoutMessage(t *testing.T) {
	e := &StreamError{Name: "FutureCursor"}
	assert.Equal(t, "stream error FutureCursor", e.Error())
}
