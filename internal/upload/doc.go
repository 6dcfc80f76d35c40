// Package upload owns the bounded hand-off between capture-rate tagging and
// network-rate delivery.
//
// A Sink accepts tagged frames without blocking, returning a Ticket that
// resolves to sent or failed. A single worker drains the queue in FIFO order,
// encodes each frame as a CBOR envelope, and sends it through a Transport with
// capped exponential backoff. Transports for HTTP, websocket, and a discarding
// sink live here; the ZeroMQ transport lives in the zmqpush subpackage so the
// cgo dependency stays optional.
package upload
