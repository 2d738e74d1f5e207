// Package frame provides the wire codec of the link exerciser.
//
// Two frame kinds travel over the link:
//
//   - probe: ASCII "PING <decimal-seq>\r\n", emitted by the sender.
//   - ack: "ACK:" immediately followed by the verbatim bytes of the read
//     which triggered it, emitted by the receiver.
//
// There is no checksum, no length prefix and no escaping. By default a single
// successful read is treated as one complete frame. Assembler provides
// delimiter based framing over an accumulating buffer for links where writes
// are split or coalesced.
package frame
