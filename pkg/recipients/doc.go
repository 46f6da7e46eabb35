// Package recipients turns a targeting request into the list of user ids that
// should receive a notification.
//
// A Resolver reads accounts from an AccountStore and keeps only the active
// ones. Output is de-duplicated and ordered by first appearance, so a user
// holding two targeted roles is addressed once.
//
// Account stores are responsible for turning whatever status column they
// read into Account.Active. ParseActive covers the encodings seen in
// practice ("active", 1, "1", "1.0", true):
//
//	store := recipients.NewMemoryAccountStore(
//	    recipients.Record{ID: "u1", Role: "admin", Status: "active"},
//	    recipients.Record{ID: "u2", Role: "admin", Status: 1},
//	    recipients.Record{ID: "u3", Role: "auditor", Status: "disabled"},
//	)
//	ids, _ := recipients.NewResolver(store).Resolve(ctx, recipients.Roles("admin", "auditor"))
//	// ids == []string{"u1", "u2"}
package recipients
