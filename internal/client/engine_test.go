package client

import (
	"context"
	"net"
	"os"
	"testing"
	"time"

	"github.com/thaakir07/voicehub/internal/server"
)

func startTestServer(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	reg := server.NewRegistry()
	coord := server.NewCoordinator()
	srv := server.NewServer(addr, reg, coord)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	ready := make(chan struct{})
	go func() {
		// Run binds addr itself; give it a moment before dialing.
		close(ready)
		srv.Run(ctx) //nolint:errcheck
	}()
	<-ready
	for i := 0; i < 50; i++ {
		if c, err := net.Dial("tcp", addr); err == nil {
			c.Close()
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	return addr
}

func TestDialHandshakeAndDirectory(t *testing.T) {
	addr := startTestServer(t)

	e, err := Dial(addr, "Alice", "10.0.0.1")
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { e.conn.Close() })

	gotDir := make(chan []string, 1)
	e.Dispatcher().SetOnDirectory(func(names []string) { gotDir <- names })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go e.Run(ctx) //nolint:errcheck

	select {
	case names := <-gotDir:
		if len(names) != 1 || names[0] != "Alice" {
			t.Fatalf("directory = %v, want [Alice]", names)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for ONLINE directory")
	}
}

func TestDialRejectsDuplicateName(t *testing.T) {
	addr := startTestServer(t)

	e1, err := Dial(addr, "Bob", "10.0.0.1")
	if err != nil {
		t.Fatalf("first Dial: %v", err)
	}
	t.Cleanup(func() { e1.conn.Close() })
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go e1.Run(ctx) //nolint:errcheck

	time.Sleep(50 * time.Millisecond)

	_, err = Dial(addr, "Bob", "10.0.0.2")
	if err == nil {
		t.Fatal("expected duplicate-name rejection")
	}
}

func TestWhisperDeliveryOpensDialogueAndEmits(t *testing.T) {
	addr := startTestServer(t)

	a, err := Dial(addr, "Alice", "10.0.0.1")
	if err != nil {
		t.Fatalf("dial Alice: %v", err)
	}
	t.Cleanup(func() { a.conn.Close() })
	b, err := Dial(addr, "Bob", "10.0.0.2")
	if err != nil {
		t.Fatalf("dial Bob: %v", err)
	}
	t.Cleanup(func() { b.conn.Close() })

	gotWhisper := make(chan [2]string, 1)
	b.Dispatcher().SetOnWhisper(func(from, msg string) { gotWhisper <- [2]string{from, msg} })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go a.Run(ctx) //nolint:errcheck
	go b.Run(ctx) //nolint:errcheck

	time.Sleep(50 * time.Millisecond)
	if err := a.Whisper("Bob", "hello"); err != nil {
		t.Fatalf("Whisper: %v", err)
	}

	select {
	case got := <-gotWhisper:
		if got[0] != "Alice" || got[1] != "hello" {
			t.Fatalf("got %v, want [Alice hello]", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for whisper delivery")
	}

	if !b.dialogues["Alice"] {
		t.Fatal("expected Bob's dialogue set to contain Alice after delivery")
	}
}

func TestStopRecordingWithoutStartReturnsError(t *testing.T) {
	addr := startTestServer(t)
	e, err := Dial(addr, "Alice", "10.0.0.1")
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { e.conn.Close() })

	if _, err := e.StopRecording(); err == nil {
		t.Fatal("expected error when no recording is in progress")
	}
}

func TestCloseRemovesScratchDir(t *testing.T) {
	addr := startTestServer(t)
	e, err := Dial(addr, "Alice", "10.0.0.1")
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}

	dir, err := e.ensureScratchDir()
	if err != nil {
		t.Fatalf("ensureScratchDir: %v", err)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("scratch dir missing after creation: %v", err)
	}

	if err := e.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatalf("expected scratch dir removed, stat err = %v", err)
	}
}

func TestPlaySelectedRequiresSelectedFile(t *testing.T) {
	addr := startTestServer(t)
	e, err := Dial(addr, "Alice", "10.0.0.1")
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { e.conn.Close() })

	if err := e.PlaySelected(); err == nil {
		t.Fatal("expected error when no file is selected")
	}
}

func TestSendVoiceNoteRequiresSelectedFile(t *testing.T) {
	addr := startTestServer(t)
	e, err := Dial(addr, "Alice", "10.0.0.1")
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { e.conn.Close() })

	if err := e.SendVoiceNote("Bob"); err == nil {
		t.Fatal("expected error when no file is selected")
	}
}
