package protocol

import (
	"reflect"
	"testing"
)

func TestParseClientWhisper(t *testing.T) {
	d := ParseClient("@A hello")
	if d.Kind != KindWhisper || d.Target != "A" || d.Message != "hello" {
		t.Fatalf("got %+v", d)
	}
}

func TestParseClientChatFallback(t *testing.T) {
	d := ParseClient("just talking")
	if d.Kind != KindChat || d.Message != "just talking" {
		t.Fatalf("got %+v", d)
	}
}

func TestParseClientCreateGroup(t *testing.T) {
	d := ParseClient("/creategroup@devs-A,B,C")
	if d.Kind != KindCreateGroup || d.GroupName != "devs" {
		t.Fatalf("got %+v", d)
	}
	if !reflect.DeepEqual(d.Members, []string{"A", "B", "C"}) {
		t.Fatalf("members = %v", d.Members)
	}
}

func TestParseClientCreateGroupZeroMembers(t *testing.T) {
	d := ParseClient("/creategroup@solo-")
	if d.Kind != KindCreateGroup || d.GroupName != "solo" {
		t.Fatalf("got %+v", d)
	}
	if len(d.Members) != 0 {
		t.Fatalf("members = %v, want empty", d.Members)
	}
}

func TestParseClientGroupMsg(t *testing.T) {
	d := ParseClient("/groupmsg@devs-hi there-extra-dashes")
	if d.Kind != KindGroupMsg || d.GroupName != "devs" || d.Message != "hi there-extra-dashes" {
		t.Fatalf("got %+v", d)
	}
}

func TestParseClientGetIPsVariants(t *testing.T) {
	cases := []string{"/getIps @Global", "/getIps @devs", "/getIps A"}
	want := []string{"@Global", "@devs", "A"}
	for i, c := range cases {
		d := ParseClient(c)
		if d.Kind != KindGetIPs || d.Target != want[i] {
			t.Errorf("case %q: got %+v", c, d)
		}
	}
}

func TestParseClientCall(t *testing.T) {
	d := ParseClient("Call B")
	if d.Kind != KindCall || d.Target != "B" {
		t.Fatalf("got %+v", d)
	}
}

func TestParseClientCallEnded(t *testing.T) {
	d := ParseClient("CALL ENDED: B")
	if d.Kind != KindCallEnded || d.Target != "B" {
		t.Fatalf("got %+v", d)
	}
}

func TestParseClientExit(t *testing.T) {
	d := ParseClient("/exit")
	if d.Kind != KindExit {
		t.Fatalf("got %+v", d)
	}
}

func TestParseServerOnline(t *testing.T) {
	d := ParseServer("ONLINE:A,B,C")
	if d.Kind != KindOnline || !reflect.DeepEqual(d.Names, []string{"A", "B", "C"}) {
		t.Fatalf("got %+v", d)
	}
}

func TestParseServerWhisperDelivery(t *testing.T) {
	d := ParseServer("Whisper from B: hello")
	if d.Kind != KindWhisperDelivery || d.Target != "B" || d.Message != "hello" {
		t.Fatalf("got %+v", d)
	}
}

func TestParseServerJoinGroup(t *testing.T) {
	d := ParseServer("Join Group: @devs-A,B,C")
	if d.Kind != KindJoinGroup || d.GroupName != "devs" {
		t.Fatalf("got %+v", d)
	}
	if !reflect.DeepEqual(d.Members, []string{"A", "B", "C"}) {
		t.Fatalf("members = %v", d.Members)
	}
}

func TestParseServerGroupDelivery(t *testing.T) {
	d := ParseServer("Group message from /A: @devs-hi")
	if d.Kind != KindGroupDelivery || d.GroupSender != "A" || d.GroupName != "devs" || d.Message != "hi" {
		t.Fatalf("got %+v", d)
	}
}

func TestParseServerReceivedIPs(t *testing.T) {
	d := ParseServer("receivedIPs voicenote:1.2.3.4,5.6.7.8@devs")
	if d.Kind != KindReceivedIPs || d.Scope != "devs" {
		t.Fatalf("got %+v", d)
	}
	if !reflect.DeepEqual(d.IPs, []string{"1.2.3.4", "5.6.7.8"}) {
		t.Fatalf("ips = %v", d.IPs)
	}
}

func TestParseServerCallAcceptedPrivate(t *testing.T) {
	d := ParseServer("CALL ACCEPTED (private): 10.0.0.2:5002:B")
	if d.Kind != KindCallAcceptedPriv || d.PeerIP != "10.0.0.2" || d.PeerPort != "5002" || d.PeerName != "B" {
		t.Fatalf("got %+v", d)
	}
}

func TestParseServerCallAcceptedAll(t *testing.T) {
	d := ParseServer("CALL ACCEPTED (global): 10.0.0.2:5001,10.0.0.3:5002")
	if d.Kind != KindCallAcceptedAll {
		t.Fatalf("got %+v", d)
	}
	if !reflect.DeepEqual(d.Endpoints, []string{"10.0.0.2:5001", "10.0.0.3:5002"}) {
		t.Fatalf("endpoints = %v", d.Endpoints)
	}
}

func TestParseServerCallEndedRemote(t *testing.T) {
	d := ParseServer("CALL ENDED:B")
	if d.Kind != KindCallEndedRemote || d.Target != "B" {
		t.Fatalf("got %+v", d)
	}
}

func TestParseServerTerminate(t *testing.T) {
	d := ParseServer("terminate")
	if d.Kind != KindTerminate {
		t.Fatalf("got %+v", d)
	}
}

func TestFormattersRoundTripThroughParse(t *testing.T) {
	if got := ParseClient(FormatWhisper("A", "hi")); got.Kind != KindWhisper || got.Target != "A" || got.Message != "hi" {
		t.Errorf("whisper round trip: %+v", got)
	}
	if got := ParseServer(FormatOnline([]string{"A", "B"})); got.Kind != KindOnline || !reflect.DeepEqual(got.Names, []string{"A", "B"}) {
		t.Errorf("online round trip: %+v", got)
	}
	if got := ParseServer(FormatCallAcceptedPrivate("1.2.3.4", "5001", "A")); got.PeerIP != "1.2.3.4" || got.PeerPort != "5001" || got.PeerName != "A" {
		t.Errorf("call accepted round trip: %+v", got)
	}
}
