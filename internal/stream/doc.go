// Package stream pushes market snapshots over WebSocket.
//
// Hub is the server side: every successful sync tick is broadcast to all
// connected subscribers, and a new subscriber first receives the current
// snapshot. Client is the matching consumer used by the watch command.
package stream
