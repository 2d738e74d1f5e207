package frame

import (
	"bytes"
	"errors"
	"math"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSeq(t *testing.T) {
	require.Equal(t, Seq(1), FirstSeq)
	require.Equal(t, Seq(2), FirstSeq.Next())
	require.Equal(t, Seq(0), Seq(math.MaxUint32).Next())
}

func TestEncodeProbe(t *testing.T) {
	testCases := []struct {
		seq    Seq
		expect string
	}{
		{1, "PING 1\r\n"},
		{42, "PING 42\r\n"},
		{math.MaxUint32, "PING 4294967295\r\n"},
	}
	for _, tc := range testCases {
		t.Run(tc.expect, func(t *testing.T) {
			b := EncodeProbe(tc.seq)
			require.Equal(t, []byte(tc.expect), b)
			require.True(t, len(b) <= ProbeMaxLen)
			require.Equal(t, b, EncodeProbe(tc.seq))
		})
	}
	require.Len(t, EncodeProbe(math.MaxUint32), ProbeMaxLen)
}

func TestAppendProbeOverflow(t *testing.T) {
	// the bound is the worst case, even for a short probe.
	dst := make([]byte, 0, ProbeMaxLen-1)
	out, err := AppendProbe(dst, 1)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrEncodingOverflow))
	require.Empty(t, out)

	var oe *OverflowError
	require.True(t, errors.As(err, &oe))
	require.Equal(t, ProbeMaxLen, oe.Need)
	require.Equal(t, ProbeMaxLen-1, oe.Available)

	dst = make([]byte, 3, 3+ProbeMaxLen)
	out, err = AppendProbe(dst, 7)
	require.NoError(t, err)
	require.Equal(t, "\x00\x00\x00PING 7\r\n", string(out))
}

func TestEncodeAck(t *testing.T) {
	testCases := []struct {
		name    string
		payload []byte
		expect  []byte
	}{
		{"probe", []byte("PING 1\r\n"), []byte("ACK:PING 1\r\n")},
		{"binary", []byte{0, 0xff, 0x0d}, []byte{'A', 'C', 'K', ':', 0, 0xff, 0x0d}},
		{"empty", nil, []byte("ACK:")},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expect, EncodeAck(tc.payload))
			require.Equal(t, EncodeAck(tc.payload), EncodeAck(tc.payload))
		})
	}
}

func TestAppendAckBounds(t *testing.T) {
	const recvCap = 256
	payload := bytes.Repeat([]byte{'x'}, recvCap-1)
	dst := make([]byte, 0, AckBufferSize(recvCap))
	out, err := AppendAck(dst, payload)
	require.NoError(t, err)
	require.Equal(t, append([]byte(AckPrefix), payload...), out)

	dst = make([]byte, 0, len(AckPrefix)+len(payload)-1)
	out, err = AppendAck(dst, payload)
	require.True(t, errors.Is(err, ErrEncodingOverflow))
	require.Empty(t, out)
}

func TestParseProbe(t *testing.T) {
	for _, n := range []Seq{1, 9, 10, 12345, math.MaxUint32} {
		seq, ok := ParseProbe(EncodeProbe(n))
		require.True(t, ok)
		require.Equal(t, n, seq)
	}
	for _, in := range []string{
		"", "PING \r\n", "PING 1", "PING 1\n", "PING x\r\n", "PONG 1\r\n",
		"PING 4294967296\r\n", "PING 1\r\nPING 2\r\n", "ACK:PING 1\r\n",
	} {
		_, ok := ParseProbe([]byte(in))
		require.False(t, ok, "input %q", in)
	}
}

func TestParseAck(t *testing.T) {
	payload, ok := ParseAck([]byte("ACK:PING 3\r\n"))
	require.True(t, ok)
	require.Equal(t, []byte("PING 3\r\n"), payload)
	_, ok = ParseAck([]byte("ACK"))
	require.False(t, ok)
}

func TestDisplay(t *testing.T) {
	for _, n := range []Seq{1, 42, 1000000, math.MaxUint32} {
		require.Contains(t, Display(EncodeProbe(n)), strconv.FormatUint(uint64(n), 10))
	}
	require.Equal(t, `PING 1\r\n`, Display([]byte("PING 1\r\n")))
	require.Equal(t, `ab`, Display([]byte("ab\x00cd")))
	require.Equal(t, `\x01\xff\t`, Display([]byte{1, 0xff, '\t'}))
	require.Equal(t, "ab", Display([]byte("abcdef")[:2]))
	require.Empty(t, Display(nil))
}
