// Package cache provides a small generic LRU cache.
//
//	c := cache.New[string, []byte](16)
//	c.Set("key", data)
//	data, ok := c.Get("key")
//
// Cache is safe for concurrent use and must not be copied after creation.
package cache
