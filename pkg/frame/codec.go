package frame

import (
	"bytes"
	"strconv"
	"strings"
)

// Fixed markers of the wire format.
const (
	ProbePrefix = "PING "
	Terminator  = "\r\n"
	AckPrefix   = "ACK:"
)

// ProbeMaxLen is the worst case length of an encoded probe,
// with the largest representable sequence number.
const ProbeMaxLen = len(ProbePrefix) + len("4294967295") + len(Terminator)

// AckBufferSize returns the size of a buffer able to hold the ack
// of any read into a receive buffer of recvCap bytes.
func AckBufferSize(recvCap int) int {
	return len(AckPrefix) + recvCap
}

// AppendProbe appends the encoded probe of seq to the spare capacity of dst.
// The spare capacity must be at least ProbeMaxLen regardless of seq.
func AppendProbe(dst []byte, seq Seq) ([]byte, error) {
	if avail := cap(dst) - len(dst); avail < ProbeMaxLen {
		return dst, &OverflowError{Kind: "probe", Need: ProbeMaxLen, Available: avail}
	}
	dst = append(dst, ProbePrefix...)
	dst = strconv.AppendUint(dst, uint64(seq), 10)
	return append(dst, Terminator...), nil
}

// EncodeProbe returns the encoded probe of seq.
func EncodeProbe(seq Seq) []byte {
	b, _ := AppendProbe(make([]byte, 0, ProbeMaxLen), seq)
	return b
}

// AppendAck appends "ACK:" and payload verbatim to the spare capacity of dst.
// Nothing is appended if the ack doesn't fit.
func AppendAck(dst, payload []byte) ([]byte, error) {
	need := len(AckPrefix) + len(payload)
	if avail := cap(dst) - len(dst); avail < need {
		return dst, &OverflowError{Kind: "ack", Need: need, Available: avail}
	}
	dst = append(dst, AckPrefix...)
	return append(dst, payload...), nil
}

// EncodeAck returns the ack wrapping payload.
func EncodeAck(payload []byte) []byte {
	b, _ := AppendAck(make([]byte, 0, AckBufferSize(len(payload))), payload)
	return b
}

// ParseProbe extracts the sequence number from a well-formed probe.
func ParseProbe(b []byte) (Seq, bool) {
	if !bytes.HasPrefix(b, []byte(ProbePrefix)) || !bytes.HasSuffix(b, []byte(Terminator)) {
		return 0, false
	}
	digits := b[len(ProbePrefix) : len(b)-len(Terminator)]
	if len(digits) == 0 || len(digits) > 10 {
		return 0, false
	}
	for _, c := range digits {
		if c < '0' || c > '9' {
			return 0, false
		}
	}
	n, err := strconv.ParseUint(string(digits), 10, 32)
	if err != nil {
		return 0, false
	}
	return Seq(n), true
}

// ParseAck returns the payload of an ack.
func ParseAck(b []byte) ([]byte, bool) {
	if !bytes.HasPrefix(b, []byte(AckPrefix)) {
		return nil, false
	}
	return b[len(AckPrefix):], true
}

// Display renders bytes for diagnostics only. Rendering stops at the
// first NUL, control bytes are escaped.
func Display(b []byte) string {
	var sb strings.Builder
	sb.Grow(len(b))
	for _, c := range b {
		switch {
		case c == 0:
			return sb.String()
		case c == '\r':
			sb.WriteString(`\r`)
		case c == '\n':
			sb.WriteString(`\n`)
		case c == '\t':
			sb.WriteString(`\t`)
		case c >= 0x20 && c < 0x7f:
			sb.WriteByte(c)
		default:
			sb.WriteString(`\x`)
			sb.WriteByte(hexDigits[c>>4])
			sb.WriteByte(hexDigits[c&0xf])
		}
	}
	return sb.String()
}

const hexDigits = "0123456789abcdef"
