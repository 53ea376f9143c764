// Package protocol implements the line-oriented wire protocol: newline
// framing with an oversize cap, and parsing of the command verbs clients may
// send. All verbs are case-sensitive. Colon-delimited arguments split on the
// first colon after the prefix, so group names must not contain ':'.
package protocol

import (
	"errors"
	"fmt"
	"strings"
)

// Client -> server verbs.
const (
	CmdListUsers      = "LIST_USERS"
	CmdListGroups     = "LIST_GROUPS"
	CmdDisconnectChat = "DISCONNECT_CHAT"

	PrefixCreateGroup   = "CREATE_GROUP:"
	PrefixJoinGroup     = "JOIN_GROUP:"
	PrefixInviteToGroup = "INVITE_TO_GROUP:"
	PrefixLeaveGroup    = "LEAVE_GROUP:"
	PrefixGroupMessage  = "GROUP:"
	PrefixConnect       = "CONNECT:"
)

// Server -> client notification prefixes. These are never valid as inbound
// commands; GROUP_UPDATED in particular must not be mistaken for GROUP:.
const (
	PrefixUserConnected = "USER_CONNECTED:"
	PrefixGroupUpdated  = "GROUP_UPDATED: "
)

// Kind identifies the parsed command.
type Kind int

const (
	// KindText is any line that matches no verb: forwarded to the pair-chat
	// partner when one exists, echoed otherwise.
	KindText Kind = iota
	KindListUsers
	KindListGroups
	KindCreateGroup
	KindJoinGroup
	KindInviteToGroup
	KindLeaveGroup
	KindGroupMessage
	KindConnect
	KindDisconnectChat
)

// Command is one parsed inbound frame.
type Command struct {
	Kind   Kind
	Group  string // group name for the group verbs
	Target string // peer name for CONNECT and INVITE_TO_GROUP
	Text   string // message body for GROUP and KindText
}

// Malformed-argument errors. The handler translates these into the exact
// ERROR replies the protocol promises.
var (
	ErrInviteFormat = errors.New("protocol: invalid INVITE_TO_GROUP format")
	ErrGroupFormat  = errors.New("protocol: invalid GROUP format")
)

// ParseCommand parses a frame that has already been trimmed of surrounding
// whitespace. Unknown lines are returned as KindText, never as an error;
// only structurally malformed arguments of a recognized verb fail.
func ParseCommand(line string) (Command, error) {
	switch line {
	case CmdListUsers:
		return Command{Kind: KindListUsers}, nil
	case CmdListGroups:
		return Command{Kind: KindListGroups}, nil
	case CmdDisconnectChat:
		return Command{Kind: KindDisconnectChat}, nil
	}

	switch {
	case strings.HasPrefix(line, PrefixCreateGroup):
		return Command{
			Kind:  KindCreateGroup,
			Group: strings.TrimSpace(line[len(PrefixCreateGroup):]),
		}, nil

	case strings.HasPrefix(line, PrefixJoinGroup):
		return Command{
			Kind:  KindJoinGroup,
			Group: strings.TrimSpace(line[len(PrefixJoinGroup):]),
		}, nil

	case strings.HasPrefix(line, PrefixInviteToGroup):
		rest := line[len(PrefixInviteToGroup):]
		parts := strings.SplitN(rest, ":", 2)
		if len(parts) != 2 {
			return Command{Kind: KindInviteToGroup}, ErrInviteFormat
		}
		return Command{
			Kind:   KindInviteToGroup,
			Group:  strings.TrimSpace(parts[0]),
			Target: strings.TrimSpace(parts[1]),
		}, nil

	case strings.HasPrefix(line, PrefixLeaveGroup):
		return Command{
			Kind:  KindLeaveGroup,
			Group: strings.TrimSpace(line[len(PrefixLeaveGroup):]),
		}, nil

	case strings.HasPrefix(line, PrefixGroupMessage):
		rest := line[len(PrefixGroupMessage):]
		parts := strings.SplitN(rest, ":", 2)
		if len(parts) != 2 {
			return Command{Kind: KindGroupMessage}, ErrGroupFormat
		}
		return Command{
			Kind:  KindGroupMessage,
			Group: strings.TrimSpace(parts[0]),
			Text:  strings.TrimSpace(parts[1]),
		}, nil

	case strings.HasPrefix(line, PrefixConnect):
		return Command{
			Kind:   KindConnect,
			Target: strings.TrimSpace(line[len(PrefixConnect):]),
		}, nil
	}

	return Command{Kind: KindText, Text: line}, nil
}

// FrameTooLargeError reports a rejected oversize frame. Size is the number of
// raw bytes consumed for the frame, terminator included.
type FrameTooLargeError struct {
	Size int
	Max  int
}

func (e *FrameTooLargeError) Error() string {
	return fmt.Sprintf("protocol: frame of %d bytes exceeds maximum of %d", e.Size, e.Max)
}
