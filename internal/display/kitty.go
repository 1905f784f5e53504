package display

import (
	"encoding/base64"
	"fmt"
	"io"
)

const (
	escapeStart = "\x1b_G"
	escapeEnd   = "\x1b\\"
	chunkSize   = 4096
)

// KittyEncoder writes PNG data as Kitty graphics protocol escapes.
type KittyEncoder struct {
	out io.Writer
}

func NewKittyEncoder(out io.Writer) *KittyEncoder {
	return &KittyEncoder{out: out}
}

func (e *KittyEncoder) Encode(data []byte) error {
	if len(data) == 0 {
		return nil
	}

	encoded := base64.StdEncoding.EncodeToString(data)
	if len(encoded) <= chunkSize {
		_, err := fmt.Fprintf(e.out, "%sa=T,f=100,q=2;%s%s", escapeStart, encoded, escapeEnd)
		return err
	}

	chunks := splitIntoChunks(encoded, chunkSize)
	for i, chunk := range chunks {
		params := "m=1"
		switch {
		case i == 0:
			params = "a=T,f=100,q=2,m=1"
		case i == len(chunks)-1:
			params = "m=0"
		}
		if _, err := fmt.Fprintf(e.out, "%s%s;%s%s", escapeStart, params, chunk, escapeEnd); err != nil {
			return err
		}
	}
	return nil
}

// DeleteAll removes every visible placement.
func (e *KittyEncoder) DeleteAll() error {
	_, err := fmt.Fprintf(e.out, "%sa=d,d=A,q=2%s", escapeStart, escapeEnd)
	return err
}

func splitIntoChunks(s string, size int) []string {
	var chunks []string
	for len(s) > 0 {
		n := size
		if len(s) < n {
			n = len(s)
		}
		chunks = append(chunks, s[:n])
		s = s[n:]
	}
	return chunks
}
