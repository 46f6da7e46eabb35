// Package realtime pushes notification events to connected browsers over
// websockets.
//
// A Registry tracks live connections and groups them into rooms: one per
// user, role and department. A user may hold several connections at once,
// and a publish to the user's room reaches all of them. Clients that cannot
// keep up are dropped instead of blocking the publisher.
//
// Handler authenticates the upgrade request with a JWT (query parameter
// "token" or a Bearer header), joins the connection to its rooms and speaks
// a small JSON protocol:
//
//	{"event":"mark_read","data":{"messageId":"..."}}
//	{"event":"mark_all_read"}
//	{"event":"get_unread_count"}
//	{"event":"ping"}
//
// Server events are connected, unread_count, message_read, all_read,
// new_message, notification_status, pong and error.
//
// Basic usage:
//
//	reg := realtime.NewRegistry()
//	defer reg.CloseAll()
//	mux.Handle("/ws", realtime.NewHandler(reg, jwtService, inbox))
//
//	reg.EmitUser("u1", realtime.EventNewMessage, realtime.NewMessageFrom(msg))
package realtime
