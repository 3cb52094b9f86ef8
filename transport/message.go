package transport

import (
	"fmt"

	"github.com/openportal-go/openportal/crypto"
	"github.com/openportal-go/openportal/errs"
	"github.com/openportal-go/openportal/job"
)

// ControlKind discriminates the three control messages a Connection can
// carry (spec.md §4.2).
type ControlKind int

const (
	ControlConnected ControlKind = iota
	ControlDisconnected
	ControlError
)

func (k ControlKind) String() string {
	switch k {
	case ControlConnected:
		return "connected"
	case ControlDisconnected:
		return "disconnected"
	case ControlError:
		return "error"
	default:
		return "unknown"
	}
}

// Control is one of Connected{agent,zone}, Disconnected{agent,zone}, or
// Error{text}.
type Control struct {
	Kind  ControlKind `json:"kind"`
	Agent string      `json:"agent,omitempty"`
	Zone  string      `json:"zone,omitempty"`
	Text  string      `json:"text,omitempty"`
}

// Connected builds a Connected control message.
func Connected(agent, zone string) Control {
	return Control{Kind: ControlConnected, Agent: agent, Zone: zone}
}

// Disconnected builds a Disconnected control message.
func Disconnected(agent, zone string) Control {
	return Control{Kind: ControlDisconnected, Agent: agent, Zone: zone}
}

// ControlErrorText builds an Error control message.
func ControlErrorText(text string) Control {
	return Control{Kind: ControlError, Text: text}
}

// DataKind discriminates the data messages exchanged once a connection is
// established (spec.md §4.5's Command::register/put/update and the board
// resync snapshot).
type DataKind int

const (
	DataRegister DataKind = iota
	DataPut
	DataUpdate
	DataSyncBoard
)

// DataPayload is the inner, inner-key-sealed content of a data Frame.
// Exactly one of AgentType/Job/Jobs is populated, selected by Kind.
type DataPayload struct {
	Kind      DataKind  `json:"kind"`
	AgentType string    `json:"agent_type,omitempty"`
	Job       *job.Job  `json:"job,omitempty"`
	Jobs      []job.Job `json:"jobs,omitempty"`
}

// RegisterPayload builds the data payload sent immediately after a
// Connected control message announces the peer's agent type.
func RegisterPayload(agentType string) DataPayload {
	return DataPayload{Kind: DataRegister, AgentType: agentType}
}

// PutPayload builds the data payload for Command::put(job).
func PutPayload(j job.Job) DataPayload {
	return DataPayload{Kind: DataPut, Job: &j}
}

// UpdatePayload builds the data payload for Command::update(job).
func UpdatePayload(j job.Job) DataPayload {
	return DataPayload{Kind: DataUpdate, Job: &j}
}

// SyncBoardPayload builds the board-resynchronisation snapshot sent on
// (re)connection, ordered by (id, version) per spec.md §4.5.
func SyncBoardPayload(jobs []job.Job) DataPayload {
	return DataPayload{Kind: DataSyncBoard, Jobs: jobs}
}

// Frame is one message exchanged over a Connection after handshake
// (spec.md §4.2's length-prefixed, AEAD-sealed {Control, Message} enum).
// Exactly one of Control/Data is set. The frame itself travels inside one
// websocket message, sealed whole under the connection's session key; Data
// additionally carries its own payload sealed under inner_key so that
// intermediate hops that only hold the session key cannot inspect
// end-to-end job content.
type Frame struct {
	Sender    string         `json:"sender"`
	Recipient string         `json:"recipient"`
	Control   *Control       `json:"control,omitempty"`
	Data      *crypto.Sealed `json:"data,omitempty"`
}

// sealData seals payload under inner so it can travel inside a Frame.Data.
func sealData(inner crypto.Key, payload DataPayload) (crypto.Sealed, error) {
	sealed, err := crypto.Encrypt(inner, payload)
	if err != nil {
		return crypto.Sealed{}, fmt.Errorf("%w: seal data payload: %v", errs.ErrCrypto, err)
	}
	return sealed, nil
}

// openData opens a Frame.Data sealed by sealData.
func openData(inner crypto.Key, sealed crypto.Sealed) (DataPayload, error) {
	payload, err := crypto.Decrypt[DataPayload](inner, sealed)
	if err != nil {
		return DataPayload{}, fmt.Errorf("%w: open data payload: %v", errs.ErrCrypto, err)
	}
	return payload, nil
}

// dataFrame builds a complete Frame carrying payload sealed under inner.
func dataFrame(inner crypto.Key, sender, recipient string, payload DataPayload) (Frame, error) {
	sealed, err := sealData(inner, payload)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Sender: sender, Recipient: recipient, Data: &sealed}, nil
}

// controlFrame builds a complete Frame carrying a control message.
func controlFrame(sender, recipient string, ctrl Control) Frame {
	return Frame{Sender: sender, Recipient: recipient, Control: &ctrl}
}
