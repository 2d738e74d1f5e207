package link

import "time"

// PipePort is one end of an in-memory link created by NewPipe.
type PipePort struct {
	in, out *chunkQueue
}

// NewPipe creates two connected ports. Each Write on one end is
// received as one chunk on the other end.
func NewPipe() (*PipePort, *PipePort) {
	ab, ba := newChunkQueue(), newChunkQueue()
	return &PipePort{in: ba, out: ab}, &PipePort{in: ab, out: ba}
}

// Read implements Port.
func (p *PipePort) Read(buf []byte, timeout time.Duration) (int, error) {
	return p.in.read(buf, timeout)
}

// Write implements Port.
func (p *PipePort) Write(buf []byte) (int, error) {
	if err := p.out.push(buf); err != nil {
		return 0, err
	}
	return len(buf), nil
}

// Close implements Port. Both directions are closed.
func (p *PipePort) Close() error {
	p.in.close()
	p.out.close()
	return nil
}
