// Package deliverylog is the append-only audit trail of channel delivery
// attempts.
//
// Logger converts an adapter outcome into an Entry (nil error means
// success, anything else failed), masks credentials that leak into response
// or error text, and appends it to a Storage. AsyncWriter batches appends for
// storages where one insert per attempt is expensive.
//
// Entries are never updated. Operators read them back with Query.
package deliverylog
