// Package rest implements the data provider over HTTP using the simple-rest
// protocol:
//
//	GET_LIST            GET    /posts?sort=["title","ASC"]&range=[0,24]&filter={"status":"draft"}
//	GET_ONE             GET    /posts/123
//	GET_MANY            GET    /posts?filter={"id":[123,456]}
//	GET_MANY_REFERENCE  GET    /comments?filter={"post_id":123}&sort=...&range=...
//	CREATE              POST   /posts
//	UPDATE              PUT    /posts/123
//	DELETE              DELETE /posts/123
//
// List totals come from the Content-Range header (posts 0-24/319), which a
// cross-origin server must list in Access-Control-Expose-Headers.
//
// Reads are retried with exponential backoff on network errors and 5xx
// responses; 4xx responses and every mutation fail on the first attempt.
// Every attempt waits on a client-side rate limiter.
package rest
