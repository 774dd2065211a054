package document

import (
	"bytes"
	"fmt"
	"os"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// readText reads a text-like file and returns its contents as UTF-8,
// together with the raw size in bytes. Non-UTF-8 input falls back to a
// UTF-16 BOM decode, then Windows-1252, then lossy replacement; reading a
// text file never fails on encoding alone.
func readText(path string) (string, int64, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", 0, fmt.Errorf("document: read text file: %w", err)
	}
	return decodeText(raw), int64(len(raw)), nil
}

func decodeText(raw []byte) string {
	if utf8.Valid(raw) {
		return string(bytes.TrimPrefix(raw, utf8BOM))
	}

	if len(raw) >= 2 && (raw[0] == 0xFE && raw[1] == 0xFF || raw[0] == 0xFF && raw[1] == 0xFE) {
		dec := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder()
		if out, err := dec.Bytes(raw); err == nil {
			return string(out)
		}
	}

	// Windows-1252 maps every byte, so this only fails on transform
	// internals; keep the lossy UTF-8 path as a final fallback anyway.
	if out, err := charmap.Windows1252.NewDecoder().Bytes(raw); err == nil {
		return string(out)
	}
	return string(bytes.ToValidUTF8(raw, []byte("�")))
}
