package frame

// Seq is the sequence number carried by a probe.
type Seq uint32

// FirstSeq is the sequence of the first probe after start.
const FirstSeq Seq = 1

// Next calculates the next sequence number, wrapping at the uint32 width.
func (s Seq) Next() Seq {
	return s + 1
}
