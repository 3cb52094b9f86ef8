package agent

import (
	"fmt"
	"sync"

	"github.com/openportal-go/openportal/errs"
)

// Type names an agent's role in the federation (spec.md §4.6's "single
// AsyncRunnable" is installed against exactly one of these). Matches the
// cmd/ binaries this module ships: portal, provider, account, instance,
// filesystem, bridge.
type Type string

const (
	TypePortal     Type = "portal"
	TypeProvider   Type = "provider"
	TypeAccount    Type = "account"
	TypeInstance   Type = "instance"
	TypeFilesystem Type = "filesystem"
	TypeBridge     Type = "bridge"
)

// State is the read-mostly, coarse-locked agent-type registry spec.md §5
// describes: which agent type each connected peer announced via its
// Register control sequence, and the reverse index used to resolve a
// Destination hop named by role rather than by exact peer name.
type State struct {
	mu      sync.RWMutex
	typeOf  map[string]Type
	peersOf map[Type][]string
}

// NewState builds an empty agent-type registry.
func NewState() *State {
	return &State{
		typeOf:  make(map[string]Type),
		peersOf: make(map[Type][]string),
	}
}

// Register records that peer announced agentType (spec.md §4.5's control
// protocol: "Connected ... triggers Command::register(agent_type)").
// Re-registering a peer under a different type (e.g. after a reconnect
// that changed configuration) replaces its prior entry.
func (s *State) Register(peer string, agentType Type) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.typeOf[peer]; ok {
		s.peersOf[old] = removeString(s.peersOf[old], peer)
	}
	s.typeOf[peer] = agentType
	s.peersOf[agentType] = appendUnique(s.peersOf[agentType], peer)
}

// Unregister drops peer's announced type, e.g. on disconnect.
func (s *State) Unregister(peer string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.typeOf[peer]; ok {
		s.peersOf[t] = removeString(s.peersOf[t], peer)
		delete(s.typeOf, peer)
	}
}

// TypeOf returns the agent type peer last registered as.
func (s *State) TypeOf(peer string) (Type, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.typeOf[peer]
	if !ok {
		return "", fmt.Errorf("%w: %s", errs.ErrStateMissingPeer, peer)
	}
	return t, nil
}

// AnyPeerOf returns some peer currently registered as agentType, used to
// resolve a Destination hop named by role. If several peers share a type,
// the choice among them is unspecified but stable within one registration
// epoch (first inserted, first returned).
func (s *State) AnyPeerOf(agentType Type) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	peers := s.peersOf[agentType]
	if len(peers) == 0 {
		return "", fmt.Errorf("%w: no peer registered for type %s", errs.ErrStateMissingAgent, agentType)
	}
	return peers[0], nil
}

func removeString(list []string, s string) []string {
	out := list[:0]
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}
