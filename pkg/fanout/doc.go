// Package fanout turns one business event into a stored notification, live
// pushes and deliveries over every configured external channel.
//
// Notify runs in two halves. The synchronous half resolves recipients,
// stores exactly one message addressed to all of them and pushes it to
// their live connections. The asynchronous half lists enabled channels,
// drops those whose type allow-list or priority floor rejects the message,
// and calls the remaining adapters in parallel. Every attempt is written to
// the delivery log whatever its result.
//
// Only request validation, recipient resolution and message storage can
// fail Notify. Channel failures are visible through Summary.Wait, the
// delivery log and notification_status events sent to the operator named
// in Request.CreatedBy.
//
//	coord, err := fanout.New(fanout.Deps{
//		Resolver: recipients.NewResolver(accounts),
//		Storage:  messages,
//		Pusher:   registry,
//		Channels: channelStore,
//		Sender:   adapters,
//		Audit:    deliverylog.NewLogger(logStore),
//	})
//	sum, err := coord.Notify(ctx, fanout.Request{
//		Type:      "order_shipped",
//		Title:     "Order shipped",
//		Targeting: recipients.Roles("sales"),
//		Priority:  notifications.PriorityHigh,
//	})
package fanout
