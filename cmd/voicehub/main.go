// Command voicehub is the voicehub terminal client: it dials the control
// plane, runs a line-oriented command REPL on stdin/stdout, and drives the
// media-plane and voice-note pipelines behind the scenes. The windowing
// toolkit the original desktop app used is out of scope here — this binary
// talks to the same control engine (C9) through its Dispatcher interface
// instead of a GUI layer.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/gordonklaus/portaudio"
	"golang.org/x/sync/errgroup"

	"github.com/thaakir07/voicehub/internal/client"
	"github.com/thaakir07/voicehub/internal/config"
	"github.com/thaakir07/voicehub/internal/media"
)

func main() {
	serverFlag := flag.String("server", "", "control server address (host or host:port); overrides the saved config")
	nameFlag := flag.String("name", "", "display name; overrides the saved config")
	inputDev := flag.Int("input-device", -2, "capture device ID (-1 for system default, -2 to use saved config)")
	outputDev := flag.Int("output-device", -2, "playback device ID (-1 for system default, -2 to use saved config)")
	vnListenAddr := flag.String("voicenote-addr", ":9786", "voice-note receive TCP listen address")
	flag.Parse()

	cfg := config.Load()

	if err := portaudio.Initialize(); err != nil {
		log.Fatalf("[audio] portaudio init: %v", err)
	}
	defer portaudio.Terminate() //nolint:errcheck

	name := cfg.Username
	if *nameFlag != "" {
		name = *nameFlag
	}
	if name == "" {
		fmt.Print("display name: ")
		name = readLine()
	}

	serverAddr := *serverFlag
	if serverAddr == "" && len(cfg.Servers) > 0 {
		serverAddr = cfg.Servers[0].Addr
	}
	if serverAddr == "" {
		fmt.Print("server address: ")
		serverAddr = readLine()
	}
	serverAddr, err := config.NormalizeServerAddr(serverAddr)
	if err != nil {
		log.Fatalf("[client] %v", err)
	}

	claimedAddr, err := localClaimedAddr(serverAddr)
	if err != nil {
		log.Fatalf("[client] determine local address: %v", err)
	}

	eng, err := client.Dial(serverAddr, name, claimedAddr)
	if err != nil {
		log.Fatalf("[client] %v", err)
	}

	capID := resolveDevice(*inputDev, cfg.InputDeviceID)
	playID := resolveDevice(*outputDev, cfg.OutputDeviceID)
	eng.SetAudioDevices(capID, playID)

	wireDispatcher(eng.Dispatcher())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return eng.Run(gctx) })
	g.Go(func() error {
		dir := cfg.VoiceNoteDir
		if dir == "" {
			dir = "voicenotes"
		}
		return eng.StartVoiceNoteListener(gctx, *vnListenAddr, dir)
	})

	fmt.Printf("connected to %s as %s\n", serverAddr, name)
	printHelp()
	go runREPL(eng, stop)

	if err := g.Wait(); err != nil && gctx.Err() == nil {
		log.Printf("[client] %v", err)
	}
	eng.Close() //nolint:errcheck // best-effort cleanup of the scratch dir on exit
}

// resolveDevice picks the device ID flag() overrode unless it's the
// "use saved config" sentinel, in which case it falls back to saved.
func resolveDevice(flagVal, saved int) int {
	if flagVal != -2 {
		return flagVal
	}
	return saved
}

func readLine() string {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Scan()
	return strings.TrimSpace(scanner.Text())
}

// localClaimedAddr determines the local address to advertise to the
// control server as this client's own reachable endpoint: the outbound
// interface address used to reach serverAddr.
func localClaimedAddr(serverAddr string) (string, error) {
	conn, err := net.Dial("tcp", serverAddr)
	if err != nil {
		return "", err
	}
	defer conn.Close()
	host, _, err := splitHostPort(conn.LocalAddr().String())
	if err != nil {
		return "", err
	}
	return host, nil
}

func printHelp() {
	fmt.Println(`commands:
  /chat <msg>                send a chat message to everyone
  /w <name> <msg>             whisper a private message
  /group <name> <members...>  create a group
  /gmsg <group> <msg>          send a message to a group
  /call <target>               start a call (name, @group, or global)
  /endcall                     end the active call
  /file <path>                 stage a file for the next voice note
  /record start                 begin recording a voice note from the mic
  /record stop                  stop recording and stage it for sending
  /play                         play back the currently staged file
  /sendvn <target>              send the staged voice note
  /names                        no-op; the online directory is printed whenever it changes
  /devices <input|output>       list audio devices
  /exit                         disconnect and quit`)
}

func runREPL(eng *client.Engine, stop context.CancelFunc) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := dispatchCommand(eng, line); err != nil {
			fmt.Println("error:", err)
		}
		if line == "/exit" {
			break
		}
	}
	stop()
}

func dispatchCommand(eng *client.Engine, line string) error {
	if !strings.HasPrefix(line, "/") {
		return eng.SendChat(line)
	}
	fields := strings.Fields(line)
	cmd := fields[0]
	args := fields[1:]

	switch cmd {
	case "/chat":
		return eng.SendChat(strings.TrimPrefix(line, "/chat "))
	case "/w":
		if len(args) < 2 {
			return fmt.Errorf("usage: /w <name> <msg>")
		}
		return eng.Whisper(args[0], strings.Join(args[1:], " "))
	case "/group":
		if len(args) < 2 {
			return fmt.Errorf("usage: /group <name> <members...>")
		}
		return eng.CreateGroup(args[0], args[1:])
	case "/gmsg":
		if len(args) < 2 {
			return fmt.Errorf("usage: /gmsg <group> <msg>")
		}
		return eng.GroupMessage(args[0], strings.Join(args[1:], " "))
	case "/call":
		if len(args) < 1 {
			return fmt.Errorf("usage: /call <target>")
		}
		return eng.Call(args[0])
	case "/endcall":
		return eng.EndCall()
	case "/file":
		if len(args) < 1 {
			return fmt.Errorf("usage: /file <path>")
		}
		eng.SelectFile(args[0])
		return nil
	case "/play":
		return eng.PlaySelected()
	case "/sendvn":
		if len(args) < 1 {
			return fmt.Errorf("usage: /sendvn <target>")
		}
		return eng.SendVoiceNote(args[0])
	case "/record":
		if len(args) < 1 {
			return fmt.Errorf("usage: /record <start|stop>")
		}
		switch args[0] {
		case "start":
			return eng.StartRecording()
		case "stop":
			path, err := eng.StopRecording()
			if err != nil {
				return err
			}
			fmt.Printf("recording saved to %s and staged for sending\n", path)
			return nil
		default:
			return fmt.Errorf("usage: /record <start|stop>")
		}
	case "/names":
		return nil
	case "/devices":
		if len(args) < 1 {
			return fmt.Errorf("usage: /devices <input|output>")
		}
		return devicesCommand(args[0])
	case "/exit":
		return eng.Exit()
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func wireDispatcher(d client.Dispatcher) {
	d.SetOnDirectory(func(names []string) {
		fmt.Println("online:", strings.Join(names, ", "))
	})
	d.SetOnPeerLeft(func(name string) {
		fmt.Printf("%s left\n", name)
	})
	d.SetOnChat(func(line string) {
		fmt.Println(line)
	})
	d.SetOnWhisper(func(from, msg string) {
		fmt.Printf("[whisper from %s] %s\n", from, msg)
	})
	d.SetOnGroupJoined(func(group string, members []string) {
		fmt.Printf("joined group %s: %s\n", group, strings.Join(members, ", "))
	})
	d.SetOnGroupMessage(func(sender, group, msg string) {
		fmt.Printf("[%s] %s: %s\n", group, sender, msg)
	})
	d.SetOnCallAcceptedPrivate(func(peerIP, peerPort, peerName string) {
		fmt.Printf("call connected with %s\n", peerName)
	})
	d.SetOnCallAcceptedGroup(func(endpoints []string) {
		fmt.Printf("call connected (%d participants)\n", len(endpoints))
	})
	d.SetOnCallEnded(func(from string) {
		fmt.Printf("call ended: %s\n", from)
	})
	d.SetOnTerminate(func() {
		fmt.Println("server closed the connection")
	})
	d.SetOnVoiceNote(func(sender, path string) {
		fmt.Printf("voice note from %s saved to %s\n", sender, path)
	})
}

// devicesCommand lists capture or playback devices; kept for the rare case
// a user needs to discover a device ID before overriding config defaults.
func devicesCommand(kind string) error {
	var devices []media.Device
	var err error
	switch kind {
	case "input":
		devices, err = media.ListCaptureDevices()
	case "output":
		devices, err = media.ListPlaybackDevices()
	default:
		return fmt.Errorf("unknown device kind %q", kind)
	}
	if err != nil {
		return err
	}
	for _, d := range devices {
		fmt.Printf("%d: %s\n", d.ID, d.Name)
	}
	return nil
}

func splitHostPort(addr string) (host, port string, err error) {
	i := strings.LastIndex(addr, ":")
	if i < 0 {
		return "", "", fmt.Errorf("invalid address %q", addr)
	}
	host = addr[:i]
	port = addr[i+1:]
	if _, err := strconv.Atoi(port); err != nil {
		return "", "", fmt.Errorf("invalid port in %q", addr)
	}
	return host, port, nil
}
