// Package audit delivers account lifecycle events to an audit sink without
// blocking the pipeline.
//
// # Components
//
//   - [Event] is one audit record: timestamp, type, user, actor, client IP,
//     outcome and free-form metadata.
//   - [Sink] consumes events. [NoOpSink], [ChannelSink] and [JSONWriterSink]
//     are provided.
//   - [Dispatcher] relays events to a sink on one goroutine, either dropping
//     or blocking when its buffer is full.
//
// The Engine decides which events exist. This package only buffers and
// delivers them and must not import goAccounts or sibling internal packages.
package audit
