package voicenote

import (
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"time"
)

// DefaultPort is the fixed TCP port voice notes are exchanged on, per §4.5.
const DefaultPort = 9786

const chunkSize = 4096

// Send connects to recipientIP:port, writes the envelope for senderName and
// filePath, streams the file payload in 4 KiB chunks, flushes, and closes.
// It returns whether delivery succeeded — there is no application-layer
// acknowledgement; TCP's byte-stream guarantee is all the caller gets.
func Send(recipientIP string, port int, senderName, filePath string) bool {
	f, err := os.Open(filePath)
	if err != nil {
		log.Printf("[voicenote] open %s: %v", filePath, err)
		return false
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		log.Printf("[voicenote] stat %s: %v", filePath, err)
		return false
	}

	conn, err := net.DialTimeout("tcp", fmt.Sprintf("%s:%d", recipientIP, port), 5*time.Second)
	if err != nil {
		log.Printf("[voicenote] dial %s:%d: %v", recipientIP, port, err)
		return false
	}
	defer conn.Close()

	env := Envelope{SenderName: senderName, FileLen: info.Size()}
	if err := writeEnvelope(conn, env); err != nil {
		log.Printf("[voicenote] write envelope: %v", err)
		return false
	}

	buf := make([]byte, chunkSize)
	if _, err := io.CopyBuffer(conn, f, buf); err != nil {
		log.Printf("[voicenote] stream payload: %v", err)
		return false
	}

	if tc, ok := conn.(*net.TCPConn); ok {
		tc.CloseWrite() //nolint:errcheck // half-close signals EOF; full close follows via defer
	}
	return true
}
