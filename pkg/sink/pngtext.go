package sink

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"io"
)

// TextChunk is a PNG tEXt key/value pair.
type TextChunk struct {
	Key   string
	Value string
}

var pngSignature = []byte("\x89PNG\r\n\x1a\n")

// textWriter buffers a PNG stream produced by image/png and splices tEXt
// chunks in right after IHDR.
type textWriter struct {
	dst  io.Writer
	meta []TextChunk
	buf  bytes.Buffer
	done bool
	err  error
}

func newTextWriter(dst io.Writer, meta []TextChunk) *textWriter {
	return &textWriter{dst: dst, meta: meta}
}

// signature(8) + IHDR length(4) + type(4) + data(13) + crc(4)
const ihdrEnd = 8 + 4 + 4 + 13 + 4

func (t *textWriter) Write(p []byte) (int, error) {
	if t.err != nil {
		return 0, t.err
	}
	if t.done {
		_, t.err = t.dst.Write(p)
		return len(p), t.err
	}

	t.buf.Write(p)
	if t.buf.Len() < ihdrEnd {
		return len(p), nil
	}

	head := t.buf.Bytes()
	if !bytes.Equal(head[:8], pngSignature) {
		t.done = true
		_, t.err = t.dst.Write(head)
		return len(p), t.err
	}

	var out bytes.Buffer
	out.Write(head[:ihdrEnd])
	for _, c := range t.meta {
		writeChunk(&out, "tEXt", textPayload(c))
	}
	out.Write(head[ihdrEnd:])

	t.done = true
	t.buf.Reset()
	_, t.err = t.dst.Write(out.Bytes())
	return len(p), t.err
}

func textPayload(c TextChunk) []byte {
	key := c.Key
	if len(key) > 79 {
		key = key[:79]
	}
	data := make([]byte, 0, len(key)+1+len(c.Value))
	data = append(data, key...)
	data = append(data, 0)
	return append(data, latin1(c.Value)...)
}

// latin1 drops characters outside ISO-8859-1, which tEXt requires.
func latin1(s string) []byte {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		if r < 256 {
			out = append(out, byte(r))
		}
	}
	return out
}

func writeChunk(w *bytes.Buffer, typ string, data []byte) {
	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(len(data)))
	w.Write(n[:])

	crc := crc32.NewIEEE()
	crc.Write([]byte(typ))
	crc.Write(data)

	w.WriteString(typ)
	w.Write(data)
	binary.BigEndian.PutUint32(n[:], crc.Sum32())
	w.Write(n[:])
}
