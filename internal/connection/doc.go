// Package connection implements the Connection Manager component.
//
// The Connection Manager:
//   - Maintains at most one live WebSocket connection to the feed endpoint
//   - Declares its channel subscriptions immediately on every (re)connect
//   - Recovers from abnormal closures with exponential backoff, pausing after
//     a configured number of consecutive failures
//   - Resumes on manual request or a host foreground/visibility trigger
//   - Decodes inbound frames and exposes them as a message stream
package connection
