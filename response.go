package realtime

import "context"

// CreateResponse asks the remote side to generate a response from the
// conversation so far. With server-side turn detection enabled responses are
// created automatically; this is for explicit prompting, e.g. an opening
// greeting before the caller has spoken.
func (c *Client) CreateResponse(ctx context.Context) error {
	conn, err := c.connectedConn()
	if err != nil {
		return err
	}
	return c.writeFrame(ctx, conn, "response.create", map[string]any{
		"type": "response.create",
	})
}

// CancelResponse aborts the in-flight response, the first half of barge-in
// (the second is ClearAudioBuffer plus flushing local playback). When the
// client is not connected there is nothing to cancel, so the call is a
// no-op.
func (c *Client) CancelResponse(ctx context.Context) error {
	conn, err := c.connectedConn()
	if err != nil {
		return nil
	}
	return c.writeFrame(ctx, conn, "response.cancel", map[string]any{
		"type": "response.cancel",
	})
}

// AddConversationItem injects an item into the remote conversation, e.g. a
// system note or scripted assistant turn. It does not by itself trigger a
// response; follow with CreateResponse when one is wanted.
func (c *Client) AddConversationItem(ctx context.Context, item ConversationItem) error {
	conn, err := c.connectedConn()
	if err != nil {
		return err
	}
	return c.writeFrame(ctx, conn, "conversation.item.create", map[string]any{
		"type": "conversation.item.create",
		"item": item,
	})
}
