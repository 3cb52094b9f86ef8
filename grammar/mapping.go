package grammar

import (
	"fmt"
	"strings"

	"github.com/openportal-go/openportal/errs"
)

// UserMapping binds a UserIdentifier to a local username/project on a
// target system, rendered "username.project.portal:local_user:local_project".
type UserMapping struct {
	User         UserIdentifier
	LocalUser    string
	LocalProject string
}

// NewUserMapping validates local_user and local_project against an
// already-parsed UserIdentifier.
func NewUserMapping(user UserIdentifier, localUser, localProject string) (UserMapping, error) {
	localUser = strings.TrimSpace(localUser)
	localProject = strings.TrimSpace(localProject)

	if localUser == "" {
		return UserMapping{}, fmt.Errorf("%w: user mapping has empty local user", errs.ErrParse)
	}
	if localProject == "" {
		return UserMapping{}, fmt.Errorf("%w: user mapping has empty local project", errs.ErrParse)
	}

	return UserMapping{User: user, LocalUser: localUser, LocalProject: localProject}, nil
}

// ParseUserMapping parses "username.project.portal:local_user:local_project".
func ParseUserMapping(s string) (UserMapping, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return UserMapping{}, fmt.Errorf("%w: invalid user mapping %q", errs.ErrParse, s)
	}

	user, err := ParseUserIdentifier(parts[0])
	if err != nil {
		return UserMapping{}, err
	}

	return NewUserMapping(user, parts[1], parts[2])
}

// String renders the mapping in "user:local_user:local_project" form.
func (m UserMapping) String() string {
	return m.User.String() + ":" + m.LocalUser + ":" + m.LocalProject
}

// Valid reports whether the embedded identifier and both local fields are
// non-empty.
func (m UserMapping) Valid() bool {
	return m.User.Valid() && m.LocalUser != "" && m.LocalProject != ""
}

// MarshalText renders via String.
func (m UserMapping) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText parses via ParseUserMapping.
func (m *UserMapping) UnmarshalText(text []byte) error {
	parsed, err := ParseUserMapping(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
