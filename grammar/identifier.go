// Package grammar implements OpenPortal's textual wire grammar: the
// dotted/colon-separated identifiers that name users, projects, and
// routing peers, and the Instruction/Command types built on top of them.
// Every type here parses total functions — malformed input never panics,
// it becomes either a parse error (for identifiers, where the caller can
// react) or Instruction.Invalid (for instructions, matching spec.md §3:
// "Parsing is total: unknown or malformed input becomes invalid").
package grammar

import (
	"fmt"
	"strings"
	"time"

	"github.com/openportal-go/openportal/errs"
)

// UserIdentifier is the triple (username, project, portal), rendered
// "username.project.portal". All three components must be non-empty.
type UserIdentifier struct {
	Username string
	Project  string
	Portal   string
}

// ParseUserIdentifier parses "username.project.portal". Every component is
// trimmed and validated non-empty; a malformed identifier (wrong arity or
// any empty component) is a Parse error.
func ParseUserIdentifier(s string) (UserIdentifier, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return UserIdentifier{}, fmt.Errorf("%w: invalid user identifier %q", errs.ErrParse, s)
	}

	username := strings.TrimSpace(parts[0])
	project := strings.TrimSpace(parts[1])
	portal := strings.TrimSpace(parts[2])

	if username == "" {
		return UserIdentifier{}, fmt.Errorf("%w: user identifier %q has empty username", errs.ErrParse, s)
	}
	if project == "" {
		return UserIdentifier{}, fmt.Errorf("%w: user identifier %q has empty project", errs.ErrParse, s)
	}
	if portal == "" {
		return UserIdentifier{}, fmt.Errorf("%w: user identifier %q has empty portal", errs.ErrParse, s)
	}

	return UserIdentifier{Username: username, Project: project, Portal: portal}, nil
}

// String renders the identifier in "username.project.portal" form.
func (u UserIdentifier) String() string {
	return u.Username + "." + u.Project + "." + u.Portal
}

// Valid reports whether every component is non-empty.
func (u UserIdentifier) Valid() bool {
	return u.Username != "" && u.Project != "" && u.Portal != ""
}

// MarshalText renders via String, matching the original's "serialise via
// the string representation" convention for every grammar type.
func (u UserIdentifier) MarshalText() ([]byte, error) {
	return []byte(u.String()), nil
}

// UnmarshalText parses via ParseUserIdentifier.
func (u *UserIdentifier) UnmarshalText(text []byte) error {
	parsed, err := ParseUserIdentifier(string(text))
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}

// ProjectIdentifier is the pair (project, portal), rendered
// "project.portal". Backs the supplemented usage-report instruction
// family (GetUsageReport, GetProjectMapping).
type ProjectIdentifier struct {
	Project string
	Portal  string
}

// ParseProjectIdentifier parses "project.portal".
func ParseProjectIdentifier(s string) (ProjectIdentifier, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 2 {
		return ProjectIdentifier{}, fmt.Errorf("%w: invalid project identifier %q", errs.ErrParse, s)
	}

	project := strings.TrimSpace(parts[0])
	portal := strings.TrimSpace(parts[1])

	if project == "" {
		return ProjectIdentifier{}, fmt.Errorf("%w: project identifier %q has empty project", errs.ErrParse, s)
	}
	if portal == "" {
		return ProjectIdentifier{}, fmt.Errorf("%w: project identifier %q has empty portal", errs.ErrParse, s)
	}

	return ProjectIdentifier{Project: project, Portal: portal}, nil
}

// String renders the identifier in "project.portal" form.
func (p ProjectIdentifier) String() string {
	return p.Project + "." + p.Portal
}

// Valid reports whether every component is non-empty.
func (p ProjectIdentifier) Valid() bool {
	return p.Project != "" && p.Portal != ""
}

// Date is a civil (UTC) calendar date, independent of time-of-day, used by
// usage reports.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf truncates t to its UTC calendar date.
func DateOf(t time.Time) Date {
	u := t.UTC()
	return Date{Year: u.Year(), Month: u.Month(), Day: u.Day()}
}

// String renders the date as "YYYY-MM-DD".
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// Time returns the date as a UTC midnight time.Time.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// Peer names an agent within a zone: zones disambiguate same-named agents
// across independent federations (spec.md §3).
type Peer struct {
	Agent string
	Zone  string
}

// String renders the peer as "agent@zone", or bare "agent" when no zone is
// set (the common case: most configs run a single zone).
func (p Peer) String() string {
	if p.Zone == "" {
		return p.Agent
	}
	return p.Agent + "@" + p.Zone
}

// ParsePeer parses "agent@zone" or a bare "agent" (zone left empty).
func ParsePeer(s string) (Peer, error) {
	agent, zone, found := strings.Cut(s, "@")
	agent = strings.TrimSpace(agent)
	if agent == "" {
		return Peer{}, fmt.Errorf("%w: peer %q has empty agent name", errs.ErrParse, s)
	}
	if found {
		zone = strings.TrimSpace(zone)
	}
	return Peer{Agent: agent, Zone: zone}, nil
}

// Destination is the ordered, non-empty chain of agent names describing a
// job's multi-hop route. Hops[0] is the next hop to forward to; the last
// element names the ultimate recipient. A single-element Destination means
// "the next hop is also the terminal recipient".
type Destination struct {
	Hops []string
}

// ParseDestination splits a dotted chain of agent names, e.g.
// "provider.account.portal". An empty string parses to an empty (invalid)
// Destination, matching the original's "unwrap_or("")" total-parse style.
func ParseDestination(s string) Destination {
	s = strings.TrimSpace(s)
	if s == "" {
		return Destination{}
	}
	return Destination{Hops: strings.Split(s, ".")}
}

// String renders the destination as a dotted chain.
func (d Destination) String() string {
	return strings.Join(d.Hops, ".")
}

// Valid reports whether the destination names at least one hop and every
// hop is non-empty.
func (d Destination) Valid() bool {
	if len(d.Hops) == 0 {
		return false
	}
	for _, h := range d.Hops {
		if h == "" {
			return false
		}
	}
	return true
}

// NextHop returns the first element of the chain: where this job must be
// forwarded next. The second return value is false for an empty
// Destination.
func (d Destination) NextHop() (string, bool) {
	if len(d.Hops) == 0 {
		return "", false
	}
	return d.Hops[0], true
}

// Advance returns the Destination with the next hop consumed, used by the
// agent runtime when forwarding a job it is not the terminal recipient of.
func (d Destination) Advance() Destination {
	if len(d.Hops) <= 1 {
		return Destination{}
	}
	return Destination{Hops: append([]string(nil), d.Hops[1:]...)}
}

// Terminal reports whether this destination has exactly one hop left: the
// job has reached its ultimate recipient.
func (d Destination) Terminal() bool {
	return len(d.Hops) == 1
}
