package frame

import "bytes"

// DefaultMaxFrame is the default bound of a frame assembled by Assembler.
const DefaultMaxFrame = 255

// Assembler assembles terminator delimited frames from a byte stream.
// Bytes after the last terminator are carried to the next Feed.
type Assembler struct {
	// MaxFrame bounds the length of a frame. Runs longer than MaxFrame
	// without terminator are emitted in MaxFrame chunks. 0 means
	// DefaultMaxFrame.
	MaxFrame int

	pending []byte
}

// Feed consumes bytes read from the stream and returns complete frames.
// No frame is longer than MaxFrame, longer runs are split. Returned frames
// don't alias p or internal buffers.
func (a *Assembler) Feed(p []byte) (frames [][]byte) {
	a.pending = append(a.pending, p...)
	limit, start := a.maxFrame(), 0
	for start < len(a.pending) {
		end := start + limit
		if idx := bytes.Index(a.pending[start:], []byte(Terminator)); idx >= 0 && idx+len(Terminator) <= limit {
			end = start + idx + len(Terminator)
		} else if len(a.pending)-start <= limit {
			break
		}
		frames = append(frames, append([]byte(nil), a.pending[start:end]...))
		start = end
	}
	n := copy(a.pending, a.pending[start:])
	a.pending = a.pending[:n]
	return
}

// Pending returns the number of bytes waiting for a terminator.
func (a *Assembler) Pending() int {
	return len(a.pending)
}

// Flush returns pending bytes and resets the assembler.
func (a *Assembler) Flush() []byte {
	if len(a.pending) == 0 {
		return nil
	}
	b := append([]byte(nil), a.pending...)
	a.pending = a.pending[:0]
	return b
}

func (a *Assembler) maxFrame() int {
	if a.MaxFrame > 0 {
		return a.MaxFrame
	}
	return DefaultMaxFrame
}
