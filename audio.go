package realtime

import (
	"context"
	"encoding/base64"
)

// SendAudio appends raw caller audio (in the configured input format) to the
// remote input buffer. The bytes are base64-encoded for the wire. Returns
// ErrNotConnected unless the client is connected; telephony audio is
// realtime and stale chunks are worthless, so audio is never queued.
func (c *Client) SendAudio(ctx context.Context, audio []byte) error {
	return c.SendAudioBase64(ctx, base64.StdEncoding.EncodeToString(audio))
}

// SendAudioBase64 appends already-encoded caller audio to the remote input
// buffer. Media streams that carry base64 payloads natively can relay them
// here without a decode round trip.
func (c *Client) SendAudioBase64(ctx context.Context, audioB64 string) error {
	conn, err := c.connectedConn()
	if err != nil {
		return err
	}
	return c.writeFrame(ctx, conn, "input_audio_buffer.append", map[string]any{
		"type":  "input_audio_buffer.append",
		"audio": audioB64,
	})
}

// CommitAudioBuffer finalizes the buffered caller audio into a conversation
// item. Only needed when server-side turn detection is disabled.
func (c *Client) CommitAudioBuffer(ctx context.Context) error {
	conn, err := c.connectedConn()
	if err != nil {
		return err
	}
	return c.writeFrame(ctx, conn, "input_audio_buffer.commit", map[string]any{
		"type": "input_audio_buffer.commit",
	})
}

// ClearAudioBuffer discards buffered caller audio that has not been
// committed, typically during barge-in. When the client is not connected
// there is no remote buffer to clear, so the call is a no-op.
func (c *Client) ClearAudioBuffer(ctx context.Context) error {
	conn, err := c.connectedConn()
	if err != nil {
		return nil
	}
	return c.writeFrame(ctx, conn, "input_audio_buffer.clear", map[string]any{
		"type": "input_audio_buffer.clear",
	})
}
