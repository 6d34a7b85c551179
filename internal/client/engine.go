package client

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/thaakir07/voicehub/internal/media"
	"github.com/thaakir07/voicehub/internal/protocol"
	"github.com/thaakir07/voicehub/internal/voicenote"
)

// Engine is the client control engine (C9): it owns the control-channel
// connection, tracks the locally-known directory/group/dialogue state, and
// drives the media pipelines through a CallState. It never touches a
// widget directly — every inbound event is handed to the Dispatcher.
type Engine struct {
	conn   net.Conn
	reader *bufio.Reader

	writeMu sync.Mutex

	name string
	addr string // claimed address sent at handshake, used to find this client's own entry in a group/global roster

	mu        sync.Mutex
	directory []string
	dialogues map[string]bool     // open private-dialogue windows
	groups    map[string][]string // owned group name -> members
	selected  string              // path of the file currently staged for voice-note send
	pendingVN map[string]string   // normalized scope -> staged file path, awaiting receivedIPs

	captureDeviceID  int
	playbackDeviceID int

	scratchDir string // per-user directory for outgoing recordings, created lazily, removed on Close
	recorder   *media.Recorder

	// lastCallTarget is the exact string this client last passed to Call,
	// kept so a CALL ACCEPTED (global) roster — which carries no target
	// name — can still be classified CallGroup vs CallGlobal when this
	// client is the initiator.
	lastCallTarget string

	call *CallState
	cb   *callbacks
}

// Dial performs the handshake described in §4.7: send name, expect
// acceptance, then send the claimed address. It returns an error without
// retrying on rejection, leaving the caller (the UI layer) to choose a new
// name and dial again.
func Dial(serverAddr, name, claimedAddr string) (*Engine, error) {
	conn, err := net.Dial("tcp", serverAddr)
	if err != nil {
		return nil, fmt.Errorf("client: dial %s: %w", serverAddr, err)
	}
	r := bufio.NewReader(conn)

	if _, err := fmt.Fprintf(conn, "%s\n", name); err != nil {
		conn.Close()
		return nil, fmt.Errorf("client: send name: %w", err)
	}
	reply, err := r.ReadString('\n')
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("client: read handshake reply: %w", err)
	}
	reply = strings.TrimRight(reply, "\r\n")
	if reply != "Username accepted." {
		conn.Close()
		return nil, fmt.Errorf("%s", reply)
	}

	if _, err := fmt.Fprintf(conn, "%s\n", claimedAddr); err != nil {
		conn.Close()
		return nil, fmt.Errorf("client: send claimed address: %w", err)
	}

	return &Engine{
		conn:      conn,
		reader:    r,
		name:      name,
		addr:      claimedAddr,
		dialogues: make(map[string]bool),
		groups:    make(map[string][]string),
		pendingVN: make(map[string]string),
		call:      NewCallState(),
		cb:        newCallbacks(),
	}, nil
}

// Dispatcher returns the UI-facing callback registry. The UI layer calls
// its SetOnX methods once at startup.
func (e *Engine) Dispatcher() Dispatcher { return e.cb }

// SetAudioDevices selects the portaudio device IDs used for future calls.
func (e *Engine) SetAudioDevices(captureID, playbackID int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.captureDeviceID = captureID
	e.playbackDeviceID = playbackID
}

// SelectFile stages path as the voice note to send on the next
// SendVoiceNote call.
func (e *Engine) SelectFile(path string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.selected = path
}

// PlaySelected decodes the currently selected voice-note file and plays it
// on the local speaker line, for auxiliary playback of a staged recording
// or a landed voice note before it's forwarded or archived.
func (e *Engine) PlaySelected() error {
	e.mu.Lock()
	path := e.selected
	playbackID := e.playbackDeviceID
	e.mu.Unlock()
	if path == "" {
		return fmt.Errorf("client: no file selected")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("client: read %s: %w", path, err)
	}
	samples, err := voicenote.DecodeWAV(data)
	if err != nil {
		return fmt.Errorf("client: decode %s: %w", path, err)
	}
	return media.PlaySamples(playbackID, samples)
}

// Run reads control-channel lines until the connection closes or ctx is
// canceled, dispatching each to handleLine.
func (e *Engine) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		e.conn.Close()
	}()

	for {
		line, err := e.reader.ReadString('\n')
		if err != nil {
			return err
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			continue
		}
		e.handleLine(line)
	}
}

func (e *Engine) handleLine(line string) {
	d := protocol.ParseServer(line)
	switch d.Kind {
	case protocol.KindOnline:
		e.mu.Lock()
		e.directory = d.Names
		e.mu.Unlock()
		e.cb.emitDirectory(d.Names)

	case protocol.KindLeaving:
		e.mu.Lock()
		delete(e.dialogues, d.Target)
		e.mu.Unlock()
		e.cb.emitPeerLeft(d.Target)

	case protocol.KindWhisperDelivery:
		e.mu.Lock()
		e.dialogues[d.Target] = true
		e.mu.Unlock()
		e.cb.emitWhisper(d.Target, d.Message)

	case protocol.KindJoinGroup:
		e.mu.Lock()
		e.groups[d.GroupName] = d.Members
		e.mu.Unlock()
		e.cb.emitGroupJoined(d.GroupName, d.Members)

	case protocol.KindGroupDelivery:
		e.cb.emitGroupMessage(d.GroupSender, d.GroupName, d.Message)

	case protocol.KindReceivedIPs:
		e.handleReceivedIPs(d.IPs, d.Scope)

	case protocol.KindCallAcceptedPriv:
		e.handleCallAcceptedPrivate(d.PeerIP, d.PeerPort, d.PeerName)

	case protocol.KindCallAcceptedAll:
		e.handleCallAcceptedGroup(d.Endpoints)

	case protocol.KindCallEndedRemote:
		e.call.RemoteEnded()
		e.cb.emitCallEnded(d.Target)

	case protocol.KindTerminate:
		e.cb.emitTerminate()

	default:
		// A relayed chat broadcast doesn't match any server-side directive
		// prefix, so ParseServer hands it back as KindUnknown with Raw set
		// to the whole line; that's also the only way a broadcast line
		// reaches here, so treat it as chat.
		e.cb.emitChat(line)
	}
}

// writeLine sends one '\n'-terminated control line.
func (e *Engine) writeLine(s string) error {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	_, err := fmt.Fprintf(e.conn, "%s\n", s)
	return err
}

// SendChat broadcasts a raw chat line to every connected peer.
func (e *Engine) SendChat(msg string) error { return e.writeLine(msg) }

// Whisper opens (or continues) a private dialogue with target.
func (e *Engine) Whisper(target, msg string) error {
	e.mu.Lock()
	e.dialogues[target] = true
	e.mu.Unlock()
	return e.writeLine(protocol.FormatWhisper(target, msg))
}

// CreateGroup registers ownership of a new group locally and asks the
// server to relay the Join Group directive to its members.
func (e *Engine) CreateGroup(name string, members []string) error {
	e.mu.Lock()
	e.groups[name] = members
	e.mu.Unlock()
	return e.writeLine(protocol.FormatCreateGroup(name, members))
}

// GroupMessage sends msg to every member of group name.
func (e *Engine) GroupMessage(name, msg string) error {
	return e.writeLine(protocol.FormatGroupMsg(name, msg))
}

// RequestIPs asks the server to resolve target (a peer name, "@<group>",
// or "@Global") into a CSV of claimed addresses.
func (e *Engine) RequestIPs(target string) error {
	return e.writeLine(protocol.FormatGetIPs(target))
}

// Call requests a call with target (a peer name, "@<group>", or "@Global").
// A leading "@" is dropped on the wire, where the server expects a bare
// group name or "global". Calling one's own name is an error.
func (e *Engine) Call(target string) error {
	if target == e.name {
		return fmt.Errorf("client: cannot call yourself")
	}
	wire := strings.TrimPrefix(target, "@")
	e.mu.Lock()
	e.lastCallTarget = target
	e.mu.Unlock()
	e.call.StartCall(wire)
	return e.writeLine(protocol.FormatCall(wire))
}

// EndCall hangs up the active call locally and notifies the server so it
// can relay CALL ENDED to the other participant(s). It is a no-op if no
// call is active.
func (e *Engine) EndCall() error {
	sess := e.call.Stop()
	if sess.Kind == CallNone {
		return nil
	}
	return e.writeLine(protocol.FormatCallEndedClient(sess.Target))
}

// Exit tells the server this client is leaving, then closes the
// connection and any scratch state.
func (e *Engine) Exit() error {
	err := e.writeLine(protocol.FormatExit())
	e.Close()
	return err
}

// Close closes the control connection and removes the per-user scratch
// directory used for outgoing recordings, if one was ever created. Safe to
// call multiple times.
func (e *Engine) Close() error {
	e.mu.Lock()
	dir := e.scratchDir
	e.mu.Unlock()
	if dir != "" {
		os.RemoveAll(dir) //nolint:errcheck // best-effort cleanup on exit
	}
	return e.conn.Close()
}

// ensureScratchDir lazily creates this client's per-user scratch directory
// for outgoing voice-note recordings.
func (e *Engine) ensureScratchDir() (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.scratchDir != "" {
		return e.scratchDir, nil
	}
	dir, err := os.MkdirTemp("", "voicehub-"+e.name+"-")
	if err != nil {
		return "", fmt.Errorf("client: create scratch dir: %w", err)
	}
	e.scratchDir = dir
	return dir, nil
}

// StartRecording opens the capture device at the voice-note sample rate
// and begins accumulating microphone audio. It returns an error if a
// recording is already in progress.
func (e *Engine) StartRecording() error {
	e.mu.Lock()
	if e.recorder != nil {
		e.mu.Unlock()
		return fmt.Errorf("client: recording already in progress")
	}
	captureID := e.captureDeviceID
	e.mu.Unlock()

	rec, err := media.OpenRecorder(captureID)
	if err != nil {
		return fmt.Errorf("client: open recorder: %w", err)
	}

	e.mu.Lock()
	e.recorder = rec
	e.mu.Unlock()
	return nil
}

// StopRecording ends the in-progress recording, encodes it as a WAV file
// under the per-user scratch directory, and stages it for the next
// SendVoiceNote call. It returns the path written.
func (e *Engine) StopRecording() (string, error) {
	e.mu.Lock()
	rec := e.recorder
	e.recorder = nil
	e.mu.Unlock()
	if rec == nil {
		return "", fmt.Errorf("client: no recording in progress")
	}
	defer rec.Close()

	if err := rec.Stop(); err != nil {
		return "", fmt.Errorf("client: stop recording: %w", err)
	}

	wav, err := voicenote.EncodeWAV(rec.Samples())
	if err != nil {
		return "", fmt.Errorf("client: encode recording: %w", err)
	}

	dir, err := e.ensureScratchDir()
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, fmt.Sprintf("recording-%d.wav", time.Now().UnixNano()))
	if err := os.WriteFile(path, wav, 0o644); err != nil {
		return "", fmt.Errorf("client: write recording: %w", err)
	}

	e.SelectFile(path)
	return path, nil
}

// SendVoiceNote stages a two-phase send: it asks the server to resolve
// targetSpec into addresses, then, once receivedIPs arrives for the
// matching scope, streams the currently selected file (see SelectFile) to
// each resolved address (§4.5/§4.6).
func (e *Engine) SendVoiceNote(targetSpec string) error {
	scope := strings.TrimPrefix(targetSpec, "@")
	e.mu.Lock()
	path := e.selected
	e.pendingVN[scope] = path
	e.mu.Unlock()
	if path == "" {
		return fmt.Errorf("client: no file selected")
	}
	return e.RequestIPs(targetSpec)
}

func (e *Engine) handleReceivedIPs(ips []string, scope string) {
	e.mu.Lock()
	path, ok := e.pendingVN[scope]
	if ok {
		delete(e.pendingVN, scope)
	}
	name := e.name
	e.mu.Unlock()

	if !ok {
		log.Printf("[client] receivedIPs for unstaged scope %q, ignoring", scope)
		return
	}

	go func() {
		for _, ip := range ips {
			if !voicenote.Send(ip, voicenote.DefaultPort, name, path) {
				log.Printf("[client] voice note to %s failed", ip)
			}
		}
	}()
}

// counterpartPort derives the other half of the fixed private-call port
// pair (§4.10): whichever of 5001/5002 this client did not bind belongs to
// its peer.
func counterpartPort(localPort int) int {
	if localPort == 5001 {
		return 5002
	}
	return 5001
}

func (e *Engine) handleCallAcceptedPrivate(peerIP, peerPortStr, peerName string) {
	localPort, err := strconv.Atoi(peerPortStr)
	if err != nil {
		log.Printf("[client] CALL ACCEPTED (private) with bad port %q: %v", peerPortStr, err)
		return
	}
	remotePort := counterpartPort(localPort)

	sender, receiver, err := e.openPipelines(true, map[string]int{peerIP: remotePort}, localPort)
	if err != nil {
		log.Printf("[client] opening private call pipelines: %v", err)
		return
	}
	e.call.AcceptPrivate(peerName, peerIP, remotePort, localPort, sender, receiver)
	e.cb.emitCallAcceptedPrivate(peerIP, peerPortStr, peerName)
}

func (e *Engine) handleCallAcceptedGroup(endpoints []string) {
	localPort := 0
	dests := make(map[string]int)
	members := make(map[string]int)

	for _, ep := range endpoints {
		host, portStr := splitHostPort(ep)
		port, err := strconv.Atoi(portStr)
		if err != nil {
			log.Printf("[client] CALL ACCEPTED (global) bad endpoint %q: %v", ep, err)
			continue
		}
		members[host] = port
		if host == e.addr {
			localPort = port
			continue
		}
		dests[host] = port
	}
	if localPort == 0 {
		log.Printf("[client] CALL ACCEPTED (global) roster %v does not include own address %s", endpoints, e.addr)
		return
	}

	sender, receiver, err := e.openPipelines(false, dests, localPort)
	if err != nil {
		log.Printf("[client] opening group call pipelines: %v", err)
		return
	}

	// CALL ACCEPTED (global) carries only the endpoint roster, never the
	// original target name. An initiator still knows what it asked for;
	// a passive participant doesn't, and defaults to CallGlobal.
	e.mu.Lock()
	last := e.lastCallTarget
	e.mu.Unlock()
	kind := CallGlobal
	if strings.HasPrefix(last, "@") && !strings.EqualFold(strings.TrimPrefix(last, "@"), "Global") {
		kind = CallGroup
	}
	e.call.AcceptGroup(kind, members, localPort, sender, receiver)
	e.cb.emitCallAcceptedGroup(endpoints)
}

func splitHostPort(ep string) (host, port string) {
	i := strings.LastIndex(ep, ":")
	if i < 0 {
		return ep, ""
	}
	return ep[:i], ep[i+1:]
}

func (e *Engine) openPipelines(isPrivate bool, dests map[string]int, localPort int) (*media.Sender, *media.Receiver, error) {
	e.mu.Lock()
	captureID, playbackID := e.captureDeviceID, e.playbackDeviceID
	e.mu.Unlock()

	capture, err := media.OpenCapture(captureID)
	if err != nil {
		return nil, nil, fmt.Errorf("open capture: %w", err)
	}
	playback, err := media.OpenPlayback(playbackID)
	if err != nil {
		capture.Close()
		return nil, nil, fmt.Errorf("open playback: %w", err)
	}

	sender, err := media.NewSender(capture, dests, isPrivate)
	if err != nil {
		capture.Close()
		playback.Close()
		return nil, nil, fmt.Errorf("new sender: %w", err)
	}
	receiver, err := media.NewReceiver(localPort, playback, isPrivate)
	if err != nil {
		sender.Stop()
		return nil, nil, fmt.Errorf("new receiver: %w", err)
	}

	go sender.Run()
	go receiver.Run()
	return sender, receiver, nil
}

// StartVoiceNoteListener binds a Listener on addr and wires landed notes to
// the Dispatcher's voice-note callback.
func (e *Engine) StartVoiceNoteListener(ctx context.Context, addr, destDir string) error {
	l := voicenote.NewListener(addr, destDir, func(r voicenote.Received) {
		e.cb.emitVoiceNote(r.SenderName, r.Path)
	})
	return l.Run(ctx)
}
