package grammar

import "strings"

// Command pairs a Destination with the Instruction to run once it arrives.
// Wire form is "destination verb args...", e.g.
// "provider.account.portal add_user alice.proj.portal".
type Command struct {
	Destination Destination
	Instruction Instruction
}

// NewCommand splits command on whitespace: the first field is the
// destination, everything after is handed to NewInstruction. Parsing is
// total, matching Destination/Instruction's own total-parse behaviour;
// callers check Valid to decide whether to act on the result.
func NewCommand(command string) Command {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return Command{}
	}

	destination := ParseDestination(fields[0])
	instruction := NewInstruction(strings.Join(fields[1:], " "))

	return Command{Destination: destination, Instruction: instruction}
}

// String renders the command back to its wire form.
func (c Command) String() string {
	return c.Destination.String() + " " + c.Instruction.String()
}

// Valid reports whether both the destination and the instruction are
// individually valid.
func (c Command) Valid() bool {
	return c.Destination.Valid() && c.Instruction.Valid()
}

// MarshalText renders via String.
func (c Command) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText parses via NewCommand.
func (c *Command) UnmarshalText(text []byte) error {
	*c = NewCommand(string(text))
	return nil
}
