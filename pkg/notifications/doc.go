// Package notifications defines the durable in-app message and its storage.
//
// One logical event produces exactly one Message, addressed to an ordered
// recipient list; an empty list means a system-wide broadcast that every
// user sees. Read state is tracked per (message, user), so a shared message
// can be read by one addressee and still be unread for another.
//
// Storage is the persistence contract. MemoryStorage implements it in
// process; a PostgreSQL implementation lives in internal/store/postgres.
//
//	store := notifications.NewMemoryStorage()
//	_ = store.Create(ctx, notifications.Message{
//	    ID: uuid.NewString(), Type: "order_shipped", Title: "Order shipped",
//	    Priority: notifications.PriorityHigh, Recipients: []string{"u1", "u2"},
//	})
//	unread, _ := store.CountUnread(ctx, "u1")
package notifications
