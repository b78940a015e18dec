package ui

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/go-go-golems/helpdesk-chat/pkg/chat"
	"github.com/go-go-golems/helpdesk-chat/pkg/references"
)

// CommandKind identifies a slash command typed into the prompt.
type CommandKind int

const (
	CommandNone CommandKind = iota
	CommandNew
	CommandDelete
	CommandRename
	CommandClear
	CommandOpen
	CommandCopy
	CommandQuit
	CommandHelp
	CommandUnknown
)

type Command struct {
	Kind CommandKind
	Name string
	Arg  string
}

var commandNames = map[string]CommandKind{
	"new":    CommandNew,
	"delete": CommandDelete,
	"rename": CommandRename,
	"clear":  CommandClear,
	"open":   CommandOpen,
	"copy":   CommandCopy,
	"quit":   CommandQuit,
	"exit":   CommandQuit,
	"help":   CommandHelp,
}

const helpText = "/new  /delete  /rename TITLE  /clear  /open N  /copy  /quit"

// ParseCommand recognizes "/name args". Input that does not start with a
// slash is a chat message and yields CommandNone. A doubled slash escapes
// a message that should start with "/".
func ParseCommand(input string) Command {
	s := strings.TrimSpace(input)
	if !strings.HasPrefix(s, "/") || strings.HasPrefix(s, "//") {
		return Command{Kind: CommandNone}
	}
	name, arg, _ := strings.Cut(s[1:], " ")
	name = strings.ToLower(name)
	kind, ok := commandNames[name]
	if !ok {
		kind = CommandUnknown
	}
	return Command{Kind: kind, Name: name, Arg: strings.TrimSpace(arg)}
}

// messageText strips the escaping slash from "//text".
func messageText(input string) string {
	s := strings.TrimSpace(input)
	if strings.HasPrefix(s, "//") {
		return s[1:]
	}
	return input
}

// citationTarget resolves "/open N" against the most recent assistant
// reply that cites anything. Modal citations are numbered in order of
// first appearance, matching the badges drawn by the terminal renderer;
// replies without inline citations fall back to their article list.
func citationTarget(messages []chat.Message, arg string) (string, error) {
	n := 1
	if arg != "" {
		v, err := strconv.Atoi(arg)
		if err != nil || v < 1 {
			return "", errors.Errorf("not a citation number: %q", arg)
		}
		n = v
	}
	for i := len(messages) - 1; i >= 0; i-- {
		m := messages[i]
		if !m.IsAssistant() || m.IsError() {
			continue
		}
		ids := references.ModalCitations(references.Tokenize(m.Text))
		if len(ids) == 0 {
			for _, a := range m.Citations {
				ids = append(ids, a.ID)
			}
		}
		if len(ids) == 0 {
			continue
		}
		if n > len(ids) {
			return "", errors.Errorf("the last reply only cites %d article(s)", len(ids))
		}
		return ids[n-1], nil
	}
	return "", errors.New("no cited articles yet")
}

func lastAssistantReply(messages []chat.Message) (chat.Message, bool) {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].IsAssistant() && !messages[i].IsError() {
			return messages[i], true
		}
	}
	return chat.Message{}, false
}
