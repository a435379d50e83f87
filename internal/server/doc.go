// Package server streams movies to network viewers.
//
// Every accepted connection gets its own session: the movie is loaded
// afresh and played from the first frame, independently of any other
// viewer.
//
// # Listeners
//
//   - TCP (telnet): raw VT100 bytes, nothing is read from the client
//   - WebSocket (optional): GET /ws streams one binary message per frame,
//     GET / serves the embedded browser viewer
//
// # Rate limiting
//
// New connections are limited per client IP with a sliding window. A
// rejected telnet client gets a one-line notice before the connection is
// closed; a rejected WebSocket client gets 429 Too Many Requests.
package server
