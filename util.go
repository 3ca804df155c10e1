package realtime

// Ptr returns a pointer to v. It keeps partial-update literals readable:
//
//	client.UpdateSession(ctx, realtime.SessionUpdate{Voice: realtime.Ptr("echo")})
func Ptr[T any](v T) *T { return &v }
