package protocol

import (
	"errors"
	"io"
	"strings"
	"testing"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name string
		line string
		want Command
	}{
		{
			name: "list users",
			line: "LIST_USERS",
			want: Command{Kind: KindListUsers},
		},
		{
			name: "list groups",
			line: "LIST_GROUPS",
			want: Command{Kind: KindListGroups},
		},
		{
			name: "disconnect chat",
			line: "DISCONNECT_CHAT",
			want: Command{Kind: KindDisconnectChat},
		},
		{
			name: "create group",
			line: "CREATE_GROUP:devs",
			want: Command{Kind: KindCreateGroup, Group: "devs"},
		},
		{
			name: "create group trims name",
			line: "CREATE_GROUP: devs ",
			want: Command{Kind: KindCreateGroup, Group: "devs"},
		},
		{
			name: "create group empty name",
			line: "CREATE_GROUP:",
			want: Command{Kind: KindCreateGroup, Group: ""},
		},
		{
			name: "join group",
			line: "JOIN_GROUP:devs",
			want: Command{Kind: KindJoinGroup, Group: "devs"},
		},
		{
			name: "leave group",
			line: "LEAVE_GROUP:devs",
			want: Command{Kind: KindLeaveGroup, Group: "devs"},
		},
		{
			name: "invite",
			line: "INVITE_TO_GROUP:devs:alice",
			want: Command{Kind: KindInviteToGroup, Group: "devs", Target: "alice"},
		},
		{
			name: "connect",
			line: "CONNECT:bob",
			want: Command{Kind: KindConnect, Target: "bob"},
		},
		{
			name: "group message",
			line: "GROUP:devs:hello world",
			want: Command{Kind: KindGroupMessage, Group: "devs", Text: "hello world"},
		},
		{
			name: "group message splits on first colon only",
			line: "GROUP:devs:see you at 10:30",
			want: Command{Kind: KindGroupMessage, Group: "devs", Text: "see you at 10:30"},
		},
		{
			name: "plain text",
			line: "hello there",
			want: Command{Kind: KindText, Text: "hello there"},
		},
		{
			name: "lowercase verb is text",
			line: "list_users",
			want: Command{Kind: KindText, Text: "list_users"},
		},
		{
			name: "verb with trailing argument is text",
			line: "LIST_USERS extra",
			want: Command{Kind: KindText, Text: "LIST_USERS extra"},
		},
		{
			name: "server notification prefix is text",
			line: "GROUP_UPDATED: devs was created",
			want: Command{Kind: KindText, Text: "GROUP_UPDATED: devs was created"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCommand(tt.line)
			if err != nil {
				t.Fatalf("ParseCommand(%q) returned error: %v", tt.line, err)
			}
			if got != tt.want {
				t.Errorf("ParseCommand(%q) = %+v, want %+v", tt.line, got, tt.want)
			}
		})
	}
}

func TestParseCommandMalformed(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		wantErr error
	}{
		{"invite missing user", "INVITE_TO_GROUP:devs", ErrInviteFormat},
		{"group missing message", "GROUP:devs", ErrGroupFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCommand(tt.line)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ParseCommand(%q) error = %v, want %v", tt.line, err, tt.wantErr)
			}
		})
	}
}

func TestLineReaderFrames(t *testing.T) {
	lr := NewLineReader(strings.NewReader("first\nsecond\n"), 64)

	for _, want := range []string{"first", "second"} {
		got, err := lr.ReadFrame()
		if err != nil {
			t.Fatalf("ReadFrame() error: %v", err)
		}
		if got != want {
			t.Errorf("ReadFrame() = %q, want %q", got, want)
		}
	}
	if _, err := lr.ReadFrame(); err != io.EOF {
		t.Errorf("ReadFrame() at end = %v, want io.EOF", err)
	}
}

func TestLineReaderPartialFinalLine(t *testing.T) {
	lr := NewLineReader(strings.NewReader("no terminator"), 64)

	got, err := lr.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame() error: %v", err)
	}
	if got != "no terminator" {
		t.Errorf("ReadFrame() = %q, want %q", got, "no terminator")
	}
	if _, err := lr.ReadFrame(); err != io.EOF {
		t.Errorf("ReadFrame() at end = %v, want io.EOF", err)
	}
}

func TestLineReaderSizeBoundary(t *testing.T) {
	const max = 16

	// 15 bytes including the terminator: one below the cap, accepted.
	lr := NewLineReader(strings.NewReader(strings.Repeat("a", 14)+"\n"), max)
	got, err := lr.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame() error for frame below cap: %v", err)
	}
	if got != strings.Repeat("a", 14) {
		t.Errorf("ReadFrame() = %q, want 14 bytes of 'a'", got)
	}

	// 16 bytes including the terminator: at the cap, rejected.
	lr = NewLineReader(strings.NewReader(strings.Repeat("a", 15)+"\n"), max)
	_, err = lr.ReadFrame()
	var tooLarge *FrameTooLargeError
	if !errors.As(err, &tooLarge) {
		t.Fatalf("ReadFrame() error = %v, want FrameTooLargeError", err)
	}
	if tooLarge.Size != max || tooLarge.Max != max {
		t.Errorf("FrameTooLargeError = %+v, want Size=%d Max=%d", tooLarge, max, max)
	}
}

func TestLineReaderRecoversAfterOversize(t *testing.T) {
	const max = 16
	long := strings.Repeat("x", 40)
	lr := NewLineReader(strings.NewReader(long+"\nok\n"), max)

	_, err := lr.ReadFrame()
	var tooLarge *FrameTooLargeError
	if !errors.As(err, &tooLarge) {
		t.Fatalf("ReadFrame() error = %v, want FrameTooLargeError", err)
	}
	if tooLarge.Size != len(long)+1 {
		t.Errorf("FrameTooLargeError.Size = %d, want %d", tooLarge.Size, len(long)+1)
	}

	// The oversize line was fully consumed; the next frame reads clean.
	got, err := lr.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame() after oversize error: %v", err)
	}
	if got != "ok" {
		t.Errorf("ReadFrame() after oversize = %q, want %q", got, "ok")
	}
}
