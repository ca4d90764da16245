package memimage

import (
	"bufio"
	"fmt"
	"io"
)

const hexDigits = "0123456789ABCDEF"

// Serialize writes the image as the ASCII hex format: one byte per line,
// two uppercase hex digits (the byte's unsigned 0x00-0xFF view), LF line
// terminators, Cfg.MemSizeBytes lines total, in address order.
func (img *Image) Serialize(w io.Writer) error {
	bw := bufio.NewWriter(w)
	line := make([]byte, 3)
	line[2] = '\n'
	for _, b := range img.Bytes {
		u := uint8(b)
		line[0] = hexDigits[u>>4]
		line[1] = hexDigits[u&0x0F]
		if _, err := bw.Write(line); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Deserialize reads the hex format back into a byte slice of the given
// length, interpreting each line's two hex digits as an unsigned byte.
func Deserialize(r io.Reader, memSizeBytes int) ([]byte, error) {
	out := make([]byte, 0, memSizeBytes)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		var v uint8
		if _, err := fmt.Sscanf(line, "%02X", &v); err != nil {
			return nil, fmt.Errorf("memimage: invalid hex line %q: %w", line, err)
		}
		out = append(out, byte(v))
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(out) != memSizeBytes {
		return nil, fmt.Errorf("memimage: expected %d lines, got %d", memSizeBytes, len(out))
	}
	return out, nil
}
