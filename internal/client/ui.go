package client

// Dispatcher marshals inbound control-protocol events onto the UI's single
// execution thread. The engine never touches a widget directly; it invokes
// these callbacks, which the UI layer registers once at startup via the
// setters below — the same callback-setter shape used for cross-thread
// delivery throughout the rest of this codebase.
type Dispatcher interface {
	SetOnDirectory(fn func(names []string))
	SetOnPeerLeft(fn func(name string))
	SetOnChat(fn func(line string))
	SetOnWhisper(fn func(from, msg string))
	SetOnGroupJoined(fn func(group string, members []string))
	SetOnGroupMessage(fn func(sender, group, msg string))
	SetOnCallAcceptedPrivate(fn func(peerIP, peerPort, peerName string))
	SetOnCallAcceptedGroup(fn func(endpoints []string))
	SetOnCallEnded(fn func(from string))
	SetOnTerminate(fn func())
	SetOnVoiceNote(fn func(sender, path string))
}

// callbacks is the default Dispatcher: a set of nilable function fields,
// each guarded at the call site so an unset callback is simply a no-op.
// Directives that arrive before the corresponding UI surface exists (e.g. a
// whisper before its window is opened) land here first; the function set by
// the UI layer is responsible for lazily creating that surface.
type callbacks struct {
	onDirectory           func(names []string)
	onPeerLeft            func(name string)
	onChat                func(line string)
	onWhisper             func(from, msg string)
	onGroupJoined         func(group string, members []string)
	onGroupMessage        func(sender, group, msg string)
	onCallAcceptedPrivate func(peerIP, peerPort, peerName string)
	onCallAcceptedGroup   func(endpoints []string)
	onCallEnded           func(from string)
	onTerminate           func()
	onVoiceNote           func(sender, path string)
}

func newCallbacks() *callbacks { return &callbacks{} }

func (c *callbacks) SetOnDirectory(fn func(names []string))            { c.onDirectory = fn }
func (c *callbacks) SetOnPeerLeft(fn func(name string))                { c.onPeerLeft = fn }
func (c *callbacks) SetOnChat(fn func(line string))                    { c.onChat = fn }
func (c *callbacks) SetOnWhisper(fn func(from, msg string))            { c.onWhisper = fn }
func (c *callbacks) SetOnGroupJoined(fn func(string, []string))        { c.onGroupJoined = fn }
func (c *callbacks) SetOnGroupMessage(fn func(string, string, string)) { c.onGroupMessage = fn }
func (c *callbacks) SetOnCallAcceptedPrivate(fn func(string, string, string)) {
	c.onCallAcceptedPrivate = fn
}
func (c *callbacks) SetOnCallAcceptedGroup(fn func([]string)) { c.onCallAcceptedGroup = fn }
func (c *callbacks) SetOnCallEnded(fn func(string))           { c.onCallEnded = fn }
func (c *callbacks) SetOnTerminate(fn func())                 { c.onTerminate = fn }
func (c *callbacks) SetOnVoiceNote(fn func(string, string))   { c.onVoiceNote = fn }

func (c *callbacks) emitDirectory(names []string) {
	if c.onDirectory != nil {
		c.onDirectory(names)
	}
}

func (c *callbacks) emitPeerLeft(name string) {
	if c.onPeerLeft != nil {
		c.onPeerLeft(name)
	}
}

func (c *callbacks) emitChat(line string) {
	if c.onChat != nil {
		c.onChat(line)
	}
}

func (c *callbacks) emitWhisper(from, msg string) {
	if c.onWhisper != nil {
		c.onWhisper(from, msg)
	}
}

func (c *callbacks) emitGroupJoined(group string, members []string) {
	if c.onGroupJoined != nil {
		c.onGroupJoined(group, members)
	}
}

func (c *callbacks) emitGroupMessage(sender, group, msg string) {
	if c.onGroupMessage != nil {
		c.onGroupMessage(sender, group, msg)
	}
}

func (c *callbacks) emitCallAcceptedPrivate(peerIP, peerPort, peerName string) {
	if c.onCallAcceptedPrivate != nil {
		c.onCallAcceptedPrivate(peerIP, peerPort, peerName)
	}
}

func (c *callbacks) emitCallAcceptedGroup(endpoints []string) {
	if c.onCallAcceptedGroup != nil {
		c.onCallAcceptedGroup(endpoints)
	}
}

func (c *callbacks) emitCallEnded(from string) {
	if c.onCallEnded != nil {
		c.onCallEnded(from)
	}
}

func (c *callbacks) emitTerminate() {
	if c.onTerminate != nil {
		c.onTerminate()
	}
}

func (c *callbacks) emitVoiceNote(sender, path string) {
	if c.onVoiceNote != nil {
		c.onVoiceNote(sender, path)
	}
}
