// Package cache provides a generic, thread-safe LRU cache with optional
// per-entry expiry.
//
// It holds short-lived values that are cheap to lose, such as provider access
// tokens when no shared Redis is configured. Expired entries are dropped
// lazily on Get.
//
//	c := cache.NewLRUCache[string, string](128)
//	c.PutWithTTL("wx:app-1", token, 7000*time.Second)
//	if tok, ok := c.Get("wx:app-1"); ok {
//	    // use tok
//	}
package cache
