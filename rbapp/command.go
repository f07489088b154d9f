package rbapp

import (
	"strings"
)

type Command string

const (
	CmdInsert  Command = "insert"
	CmdFind    Command = "find"
	CmdDelete  Command = "delete"
	CmdPrint   Command = "print"
	CmdQuit    Command = "quit"
	CmdUnknown Command = "unknown"
)

// splitFirstSpace splits in at the first space. Without a space, the
// whole input is the head and the tail is empty.
func splitFirstSpace(in string) (head, tail string) {
	head, tail, _ = strings.Cut(in, " ")
	return
}

// ParseCommand splits one input line into the command token and the
// rest of the line. The rest is kept verbatim.
func ParseCommand(line string) (Command, string) {
	cmd, rest := splitFirstSpace(line)
	switch c := Command(cmd); c {
	case CmdInsert, CmdFind, CmdDelete, CmdPrint, CmdQuit:
		return c, rest
	}
	return CmdUnknown, rest
}

// ParseKeyValue splits the argument of insert and delete. The value
// may contain spaces or be empty.
func ParseKeyValue(args string) (key, val string) {
	return splitFirstSpace(args)
}
