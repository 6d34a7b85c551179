// Package protocol implements the control-channel wire codec: a
// line-oriented, UTF-8, '\n'-terminated grammar keyed by literal prefixes.
// Every directive fits on one line; parsing is ad-hoc prefix-and-delimiter,
// frozen exactly as specified — see the control protocol design notes for
// why this isn't length-prefixed framing.
package protocol

import "strings"

// Kind identifies a parsed directive.
type Kind int

const (
	KindUnknown Kind = iota

	// Client -> Server
	KindChat          // raw text: global chat broadcast
	KindWhisper       // @<name> <msg>
	KindCreateGroup   // /creategroup@<name>-<csv-members>
	KindGroupMsg      // /groupmsg@<name>-<msg>
	KindGetIPs        // /getIps @Global | /getIps @<group> | /getIps <peer>
	KindCall          // Call <target>
	KindCallEnded     // CALL ENDED: <target>
	KindExit          // /exit

	// Server -> Client
	KindOnline           // ONLINE:<csv-names>
	KindLeaving          // LEAVING: <name>
	KindWhisperDelivery  // Whisper from <name>: <msg>
	KindJoinGroup        // Join Group: @<name>-<csv-members>
	KindGroupDelivery    // Group message from /<sender>: @<group>-<msg>
	KindReceivedIPs      // receivedIPs voicenote:<csv-ips>@<scope>
	KindCallAcceptedPriv // CALL ACCEPTED (private): <ip>:<port>:<name>
	KindCallAcceptedAll  // CALL ACCEPTED (global): <csv of ip:port>
	KindCallEndedRemote  // CALL ENDED:<name>
	KindTerminate        // terminate
)

// Directive is a single parsed control-protocol line.
type Directive struct {
	Kind Kind
	Raw  string

	// Populated depending on Kind; unused fields are left zero.
	Target      string   // whisper/call/getIps target, or whisper sender on delivery
	Message     string   // chat/whisper/group message body
	GroupName   string   // creategroup/groupmsg/joingroup group name
	Members     []string // creategroup/joingroup member CSV, split
	Names       []string // ONLINE directory CSV, split
	Scope       string   // receivedIPs scope (Global, group name, or peer name; without the "@" separator)
	IPs         []string // receivedIPs CSV of ip addresses
	GroupSender string   // group delivery sender name
	PeerIP      string   // CALL ACCEPTED (private) remote ip
	PeerPort    string   // CALL ACCEPTED (private) port the recipient itself binds (not the remote's)
	PeerName    string   // CALL ACCEPTED (private) remote name
	Endpoints   []string // CALL ACCEPTED (global) csv of "ip:port"
}

const (
	prefixWhisper         = "@"
	prefixCreateGroup     = "/creategroup@"
	prefixGroupMsg        = "/groupmsg@"
	prefixGetIPs          = "/getIps "
	prefixCall            = "Call "
	prefixCallEndedClient = "CALL ENDED: "
	prefixExit            = "/exit"

	prefixOnline           = "ONLINE:"
	prefixLeaving          = "LEAVING: "
	prefixWhisperDelivery  = "Whisper from "
	prefixJoinGroup        = "Join Group: @"
	prefixGroupDelivery    = "Group message from /"
	prefixReceivedIPs      = "receivedIPs voicenote:"
	prefixCallAcceptedPriv = "CALL ACCEPTED (private): "
	prefixCallAcceptedAll  = "CALL ACCEPTED (global): "
	prefixCallEndedServer  = "CALL ENDED:"
	prefixTerminate        = "terminate"
)

// ParseClient parses a line received by the server from a client.
func ParseClient(line string) Directive {
	switch {
	case line == prefixExit || strings.TrimRight(line, "\r\n") == prefixExit:
		return Directive{Kind: KindExit, Raw: line}
	case strings.HasPrefix(line, prefixCallEndedClient):
		return Directive{Kind: KindCallEnded, Raw: line, Target: strings.TrimPrefix(line, prefixCallEndedClient)}
	case strings.HasPrefix(line, prefixCall):
		return Directive{Kind: KindCall, Raw: line, Target: strings.TrimPrefix(line, prefixCall)}
	case strings.HasPrefix(line, prefixGetIPs):
		return Directive{Kind: KindGetIPs, Raw: line, Target: strings.TrimPrefix(line, prefixGetIPs)}
	case strings.HasPrefix(line, prefixCreateGroup):
		rest := strings.TrimPrefix(line, prefixCreateGroup)
		name, csv := splitOnce(rest, "-")
		return Directive{Kind: KindCreateGroup, Raw: line, GroupName: name, Members: splitCSV(csv)}
	case strings.HasPrefix(line, prefixGroupMsg):
		rest := strings.TrimPrefix(line, prefixGroupMsg)
		name, msg := splitOnce(rest, "-")
		return Directive{Kind: KindGroupMsg, Raw: line, GroupName: name, Message: msg}
	case strings.HasPrefix(line, prefixWhisper):
		rest := strings.TrimPrefix(line, prefixWhisper)
		name, msg := splitOnce(rest, " ")
		return Directive{Kind: KindWhisper, Raw: line, Target: name, Message: msg}
	default:
		return Directive{Kind: KindChat, Raw: line, Message: line}
	}
}

// ParseServer parses a line received by a client from the server.
func ParseServer(line string) Directive {
	switch {
	case line == prefixTerminate:
		return Directive{Kind: KindTerminate, Raw: line}
	case strings.HasPrefix(line, prefixOnline):
		return Directive{Kind: KindOnline, Raw: line, Names: splitCSV(strings.TrimPrefix(line, prefixOnline))}
	case strings.HasPrefix(line, prefixLeaving):
		return Directive{Kind: KindLeaving, Raw: line, Target: strings.TrimPrefix(line, prefixLeaving)}
	case strings.HasPrefix(line, prefixWhisperDelivery):
		rest := strings.TrimPrefix(line, prefixWhisperDelivery)
		name, msg := splitOnce(rest, ": ")
		return Directive{Kind: KindWhisperDelivery, Raw: line, Target: name, Message: msg}
	case strings.HasPrefix(line, prefixJoinGroup):
		rest := strings.TrimPrefix(line, prefixJoinGroup)
		name, csv := splitOnce(rest, "-")
		return Directive{Kind: KindJoinGroup, Raw: line, GroupName: name, Members: splitCSV(csv)}
	case strings.HasPrefix(line, prefixGroupDelivery):
		rest := strings.TrimPrefix(line, prefixGroupDelivery)
		sender, tail := splitOnce(rest, ": @")
		group, msg := splitOnce(tail, "-")
		return Directive{Kind: KindGroupDelivery, Raw: line, GroupSender: sender, GroupName: group, Message: msg}
	case strings.HasPrefix(line, prefixReceivedIPs):
		rest := strings.TrimPrefix(line, prefixReceivedIPs)
		csv, scope := splitOnce(rest, "@")
		return Directive{Kind: KindReceivedIPs, Raw: line, IPs: splitCSV(csv), Scope: scope}
	case strings.HasPrefix(line, prefixCallAcceptedPriv):
		rest := strings.TrimPrefix(line, prefixCallAcceptedPriv)
		parts := strings.SplitN(rest, ":", 3)
		d := Directive{Kind: KindCallAcceptedPriv, Raw: line}
		if len(parts) == 3 {
			d.PeerIP, d.PeerPort, d.PeerName = parts[0], parts[1], parts[2]
		}
		return d
	case strings.HasPrefix(line, prefixCallAcceptedAll):
		rest := strings.TrimPrefix(line, prefixCallAcceptedAll)
		return Directive{Kind: KindCallAcceptedAll, Raw: line, Endpoints: splitCSV(rest)}
	case strings.HasPrefix(line, prefixCallEndedServer):
		return Directive{Kind: KindCallEndedRemote, Raw: line, Target: strings.TrimPrefix(line, prefixCallEndedServer)}
	default:
		return Directive{Kind: KindUnknown, Raw: line}
	}
}

// splitOnce splits s on the first occurrence of sep, returning ("", s) if
// sep is absent.
func splitOnce(s, sep string) (before, after string) {
	i := strings.Index(s, sep)
	if i < 0 {
		return "", s
	}
	return s[:i], s[i+len(sep):]
}

// splitCSV splits a comma-separated list, dropping empty segments produced
// by a trailing/leading comma, but preserving an explicitly empty list.
func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// -- Formatters: build wire lines for each directive kind --

func FormatWhisper(target, msg string) string {
	return prefixWhisper + target + " " + msg
}

func FormatCreateGroup(name string, members []string) string {
	return prefixCreateGroup + name + "-" + strings.Join(members, ",")
}

func FormatGroupMsg(name, msg string) string {
	return prefixGroupMsg + name + "-" + msg
}

func FormatGetIPs(target string) string {
	return prefixGetIPs + target
}

func FormatCall(target string) string {
	return prefixCall + target
}

func FormatCallEndedClient(target string) string {
	return prefixCallEndedClient + target
}

func FormatExit() string {
	return prefixExit
}

func FormatOnline(names []string) string {
	return prefixOnline + strings.Join(names, ",")
}

func FormatLeaving(name string) string {
	return prefixLeaving + name
}

func FormatWhisperDelivery(from, msg string) string {
	return prefixWhisperDelivery + from + ": " + msg
}

func FormatJoinGroup(name string, members []string) string {
	return prefixJoinGroup + name + "-" + strings.Join(members, ",")
}

func FormatGroupDelivery(sender, group, msg string) string {
	return prefixGroupDelivery + sender + ": @" + group + "-" + msg
}

func FormatReceivedIPs(ips []string, scope string) string {
	return prefixReceivedIPs + strings.Join(ips, ",") + "@" + scope
}

func FormatCallAcceptedPrivate(ip, port, name string) string {
	return prefixCallAcceptedPriv + ip + ":" + port + ":" + name
}

func FormatCallAcceptedAll(endpoints []string) string {
	return prefixCallAcceptedAll + strings.Join(endpoints, ",")
}

func FormatCallEndedServer(name string) string {
	return prefixCallEndedServer + name
}

func FormatTerminate() string {
	return prefixTerminate
}
