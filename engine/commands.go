package engine

import (
	"github.com/google/uuid"

	"github.com/nfc-engine/nfcd/radio"
)

// CommandKind names one of the façade-accepted commands (spec §6).
type CommandKind int

const (
	CmdStartPoll CommandKind = iota
	CmdStopPoll
	CmdWriteTag
	CmdPushDevice
	CmdJoin
)

// Command is one façade request on its way to the engine thread. ID
// correlates a command with whatever log line or response it produces;
// callers that don't need to wait for completion may leave Done nil.
type Command struct {
	ID   uuid.UUID
	Kind CommandKind

	Mode     radio.Mode
	TagID    int
	DeviceID int
	Payload  []byte

	// Done, if non-nil, receives the command's outcome exactly once.
	Done chan error
}

func newCommand(kind CommandKind) Command {
	return Command{ID: uuid.New(), Kind: kind}
}

func NewStartPoll(mode radio.Mode) Command {
	c := newCommand(CmdStartPoll)
	c.Mode = mode
	return c
}

func NewStopPoll() Command {
	return newCommand(CmdStopPoll)
}

func NewWriteTag(id int, payload []byte) Command {
	c := newCommand(CmdWriteTag)
	c.TagID = id
	c.Payload = payload
	return c
}

func NewPushDevice(id int, payload []byte) Command {
	c := newCommand(CmdPushDevice)
	c.DeviceID = id
	c.Payload = payload
	return c
}

func NewJoin() Command {
	return newCommand(CmdJoin)
}

func reply(c Command, err error) {
	if c.Done == nil {
		return
	}
	select {
	case c.Done <- err:
	default:
	}
}
