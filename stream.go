package clamd

import (
	"encoding/binary"
	"errors"
	"io"
)

// chunkHeaderSize is the size of the big-endian length prefix of an INSTREAM chunk.
const chunkHeaderSize = 4

// WriteInstream writes r to w using the INSTREAM chunk framing: every chunk is
// a 4-byte big-endian length followed by that many bytes, and the stream ends
// with a zero-length chunk. The INSTREAM command itself must already have been
// sent on w.
//
// If more than maxStreamSize bytes are read from r, WriteInstream stops before
// writing anything further and returns a CodeMaxStreamSize error. When r is an
// io.Seeker its current position is compared against the limit, otherwise
// the number of bytes read so far.
func WriteInstream(w io.Writer, r io.Reader, chunkSize int, maxStreamSize int64) error {
	if chunkSize <= 0 {
		return NewValidationError("chunk size must be greater than 0", nil)
	}
	return writeStream(w, r, chunkSize, maxStreamSize)
}

func writeStream(w io.Writer, r io.Reader, chunkSize int, maxStreamSize int64) error {
	buf := make([]byte, chunkHeaderSize+chunkSize)
	seeker, _ := r.(io.Seeker)
	var total int64

	for {
		n, readErr := io.ReadFull(r, buf[chunkHeaderSize:])
		if n > 0 {
			total += int64(n)
			if streamPosition(seeker, total) > maxStreamSize {
				return NewMaxStreamSizeError(maxStreamSize)
			}

			binary.BigEndian.PutUint32(buf[:chunkHeaderSize], uint32(n))
			if _, err := w.Write(buf[:chunkHeaderSize+n]); err != nil {
				return err
			}
		}
		if readErr == io.EOF || errors.Is(readErr, io.ErrUnexpectedEOF) {
			break
		}
		if readErr != nil {
			return NewValidationError("failed to read data", readErr)
		}
	}

	var terminator [chunkHeaderSize]byte
	_, err := w.Write(terminator[:])
	return err
}

// streamPosition reports how far into the source the upload is. Sources that
// can report their own offset are trusted over the running count.
func streamPosition(seeker io.Seeker, counted int64) int64 {
	if seeker == nil {
		return counted
	}
	pos, err := seeker.Seek(0, io.SeekCurrent)
	if err != nil {
		return counted
	}
	return pos
}
