package grammar

import (
	"strings"

	"github.com/openportal-go/openportal/internal/logger"
)

// Kind discriminates the variant held by an Instruction. Go has no tagged
// union, so Instruction is a flat struct and Kind says which of its fields
// are meaningful — the same shape the rest of this package uses for
// Command.
type Kind int

const (
	// KindInvalid is the zero value: unrecognised or malformed input.
	// Parsing is total, so every input produces some Instruction; garbage
	// in produces KindInvalid rather than an error.
	KindInvalid Kind = iota
	KindAddUser
	KindRemoveUser
	KindAddLocalUser
	KindRemoveLocalUser
	KindUpdateHomeDir
	// KindGetUsageReport and KindGetProjectMapping are not part of
	// spec.md's named grammar; they carry forward the original system's
	// usage-reporting instructions (see paddington/templemeads lineage)
	// since no Non-goal excludes them.
	KindGetUsageReport
	KindGetProjectMapping
)

// Instruction is one administrative instruction addressed to an agent.
// Exactly the fields relevant to Kind are populated; the rest are zero.
type Instruction struct {
	Kind Kind

	User    UserIdentifier
	Mapping UserMapping
	Project ProjectIdentifier
	HomeDir string
}

// NewInstruction parses s with total parsing: any input that does not
// match one of the known verbs, or whose arguments fail to parse,
// becomes KindInvalid rather than an error (spec.md §3).
func NewInstruction(s string) Instruction {
	parts := strings.Split(s, " ")
	verb := parts[0]
	rest := strings.Join(parts[1:], " ")

	switch verb {
	case "add_user":
		user, err := ParseUserIdentifier(rest)
		if err != nil {
			logger.Default().Warn("add_user failed to parse", logger.String("args", rest))
			return Instruction{Kind: KindInvalid}
		}
		return Instruction{Kind: KindAddUser, User: user}

	case "remove_user":
		user, err := ParseUserIdentifier(rest)
		if err != nil {
			logger.Default().Warn("remove_user failed to parse", logger.String("args", rest))
			return Instruction{Kind: KindInvalid}
		}
		return Instruction{Kind: KindRemoveUser, User: user}

	case "add_local_user":
		mapping, err := ParseUserMapping(rest)
		if err != nil {
			logger.Default().Warn("add_local_user failed to parse", logger.String("args", rest))
			return Instruction{Kind: KindInvalid}
		}
		return Instruction{Kind: KindAddLocalUser, Mapping: mapping}

	case "remove_local_user":
		mapping, err := ParseUserMapping(rest)
		if err != nil {
			logger.Default().Warn("remove_local_user failed to parse", logger.String("args", rest))
			return Instruction{Kind: KindInvalid}
		}
		return Instruction{Kind: KindRemoveLocalUser, Mapping: mapping}

	case "update_homedir":
		if len(parts) < 3 {
			logger.Default().Warn("update_homedir failed to parse", logger.String("args", rest))
			return Instruction{Kind: KindInvalid}
		}
		homedir := strings.TrimSpace(parts[2])
		if homedir == "" {
			logger.Default().Warn("update_homedir failed to parse", logger.String("args", rest))
			return Instruction{Kind: KindInvalid}
		}
		user, err := ParseUserIdentifier(parts[1])
		if err != nil {
			logger.Default().Warn("update_homedir failed to parse", logger.String("args", rest))
			return Instruction{Kind: KindInvalid}
		}
		return Instruction{Kind: KindUpdateHomeDir, User: user, HomeDir: homedir}

	case "get_usage_report":
		project, err := ParseProjectIdentifier(rest)
		if err != nil {
			logger.Default().Warn("get_usage_report failed to parse", logger.String("args", rest))
			return Instruction{Kind: KindInvalid}
		}
		return Instruction{Kind: KindGetUsageReport, Project: project}

	case "get_project_mapping":
		project, err := ParseProjectIdentifier(rest)
		if err != nil {
			logger.Default().Warn("get_project_mapping failed to parse", logger.String("args", rest))
			return Instruction{Kind: KindInvalid}
		}
		return Instruction{Kind: KindGetProjectMapping, Project: project}

	default:
		logger.Default().Warn("invalid instruction", logger.String("instruction", s))
		return Instruction{Kind: KindInvalid}
	}
}

// String renders the instruction back to its wire form. For every
// non-Invalid instruction, NewInstruction(i.String()) == i.
func (i Instruction) String() string {
	switch i.Kind {
	case KindAddUser:
		return "add_user " + i.User.String()
	case KindRemoveUser:
		return "remove_user " + i.User.String()
	case KindAddLocalUser:
		return "add_local_user " + i.Mapping.String()
	case KindRemoveLocalUser:
		return "remove_local_user " + i.Mapping.String()
	case KindUpdateHomeDir:
		return "update_homedir " + i.User.String() + " " + i.HomeDir
	case KindGetUsageReport:
		return "get_usage_report " + i.Project.String()
	case KindGetProjectMapping:
		return "get_project_mapping " + i.Project.String()
	default:
		return "invalid"
	}
}

// Valid reports whether the instruction is fully formed. KindInvalid is
// always invalid; every other kind additionally validates its payload.
func (i Instruction) Valid() bool {
	switch i.Kind {
	case KindAddUser, KindRemoveUser:
		return i.User.Valid()
	case KindAddLocalUser, KindRemoveLocalUser:
		return i.Mapping.Valid()
	case KindUpdateHomeDir:
		return i.User.Valid() && i.HomeDir != ""
	case KindGetUsageReport, KindGetProjectMapping:
		return i.Project.Valid()
	default:
		return false
	}
}

// MarshalText renders via String.
func (i Instruction) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

// UnmarshalText parses via NewInstruction. Unlike the identifier types,
// this never returns an error: malformed text becomes KindInvalid, exactly
// as NewInstruction documents.
func (i *Instruction) UnmarshalText(text []byte) error {
	*i = NewInstruction(string(text))
	return nil
}
