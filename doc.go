// Package realtime implements the duplex streaming connection manager used to
// bridge a telephony audio call to a realtime speech-conversation service.
//
// A Client owns the lifecycle of a single persistent WebSocket to the remote
// service. It translates the service's JSON event protocol into a stable set
// of semantic notifications, assembles fragmented transcript deltas into
// complete utterances, buffers outbound frames while the socket is down, and
// recovers transparently from unexpected disconnects with capped exponential
// backoff.
//
// Basic usage:
//
//	client, err := realtime.NewClient(realtime.Config{
//		Credential: realtime.Bearer(os.Getenv("OPENAI_API_KEY")),
//		Session:    realtime.DefaultSessionConfig("gpt-4o-realtime-preview"),
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	client.OnTranscript(func(t realtime.Transcript) {
//		if t.IsFinal {
//			fmt.Println("assistant:", t.Text)
//		}
//	})
//	if err := client.Connect(ctx); err != nil {
//		log.Fatal(err)
//	}
//	defer client.Disconnect("done")
//
// Notification callbacks run on the connection's read goroutine (or, during
// reconnection, on a timer goroutine) and must not block.
package realtime
