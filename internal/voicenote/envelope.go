package voicenote

import (
	"encoding/binary"
	"fmt"
	"io"
)

// maxFileLen is the upper bound on a declared payload length. A listener
// that sees a larger value treats the envelope as malformed, per §4.6.
const maxFileLen = 2 << 30 // 2 GiB

// Envelope is the header that precedes a voice-note's file payload on the
// wire: `has_sender:1 byte | [sender_name:length-prefixed] | file_len:8
// bytes big-endian`.
type Envelope struct {
	SenderName string // empty when the has_sender byte is 0
	FileLen    int64
}

// writeEnvelope writes e's header to w. The sender name, when present, is
// prefixed by a single length byte (names are assumed to fit in 255 bytes).
func writeEnvelope(w io.Writer, e Envelope) error {
	hasSender := byte(0)
	if e.SenderName != "" {
		hasSender = 1
	}
	if _, err := w.Write([]byte{hasSender}); err != nil {
		return fmt.Errorf("voicenote: write has_sender: %w", err)
	}

	if hasSender == 1 {
		if len(e.SenderName) > 255 {
			return fmt.Errorf("voicenote: sender name too long (%d bytes)", len(e.SenderName))
		}
		if _, err := w.Write([]byte{byte(len(e.SenderName))}); err != nil {
			return fmt.Errorf("voicenote: write sender name length: %w", err)
		}
		if _, err := io.WriteString(w, e.SenderName); err != nil {
			return fmt.Errorf("voicenote: write sender name: %w", err)
		}
	}

	var lenBuf [8]byte
	binary.BigEndian.PutUint64(lenBuf[:], uint64(e.FileLen))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("voicenote: write file_len: %w", err)
	}
	return nil
}

// readEnvelope parses a header from r. It returns an error for any short
// read, a negative declared length, or a length exceeding maxFileLen — all
// of which the listener treats as a malformed envelope.
func readEnvelope(r io.Reader) (Envelope, error) {
	var hasSender [1]byte
	if _, err := io.ReadFull(r, hasSender[:]); err != nil {
		return Envelope{}, fmt.Errorf("voicenote: read has_sender: %w", err)
	}

	var name string
	if hasSender[0] != 0 {
		var nameLen [1]byte
		if _, err := io.ReadFull(r, nameLen[:]); err != nil {
			return Envelope{}, fmt.Errorf("voicenote: read sender name length: %w", err)
		}
		nameBuf := make([]byte, nameLen[0])
		if _, err := io.ReadFull(r, nameBuf); err != nil {
			return Envelope{}, fmt.Errorf("voicenote: read sender name: %w", err)
		}
		name = string(nameBuf)
	}

	var lenBuf [8]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return Envelope{}, fmt.Errorf("voicenote: read file_len: %w", err)
	}
	fileLen := int64(binary.BigEndian.Uint64(lenBuf[:]))
	if fileLen < 0 || fileLen > maxFileLen {
		return Envelope{}, fmt.Errorf("voicenote: implausible file_len %d", fileLen)
	}

	return Envelope{SenderName: name, FileLen: fileLen}, nil
}
