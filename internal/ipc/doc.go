// Package ipc owns the memory IPC listening socket and its accept worker.
//
// One worker serves one connection at a time. Requests on a connection are
// strictly sequential: read, dispatch, write, read. Other clients wait in the
// listen backlog until the current connection ends.
//
// Stop closes only the listening socket. A worker parked in a per-connection
// read stays parked until that client sends data or hangs up, unless
// Config.ReadTimeout bounds the read.
package ipc
