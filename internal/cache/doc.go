// Moimo - Meetup Session and Realtime Chat Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/moimo

/*
Package cache provides the thread-safe TTL key-value cache that backs Moimo's
derived client state.

Two consumers use it:

  - internal/session memoizes the verify result under a single key for the
    session freshness window and drops it on Invalidate.
  - internal/chat keeps the ordered room list under a single key and applies
    live message updates through Update.

Update is the only way derived state changes in place: the callback receives
the previous value and returns the next one, and the whole read-modify-write
happens under the cache's write lock. Callbacks must treat the previous value
as immutable and return a fresh value.

	c := cache.New(30 * time.Minute)
	defer c.Close()

	c.Update("rooms", func(prev interface{}, ok bool) (interface{}, bool) {
	    if !ok {
	        return nil, false // nothing cached, leave it absent
	    }
	    return reorder(prev.([]models.ChatRoom)), true
	})

Expired entries are treated as absent by Get and Update and removed by a
background sweep every cleanup interval.
*/
package cache
