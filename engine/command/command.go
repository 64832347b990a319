// Package command parses client command lines into typed commands and
// executes them against the report service.
package command

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/WessleyAI/vk-insights/engine/group"
	"github.com/WessleyAI/vk-insights/engine/vkapi"
)

// Command is one parsed client instruction.
type Command interface {
	Name() string
}

// Help lists the supported commands.
type Help struct{}

// Exit ends the session.
type Exit struct{}

// Friends returns the raw friends lists of up to five users.
type Friends struct{ IDs []int64 }

// Mutual returns the raw mutual friends of up to five user pairs.
type Mutual struct{ Pairs []vkapi.Pair }

// Group returns the friends of up to five users grouped by Field.
type Group struct {
	Field group.Field
	IDs   []int64
}

// Photos returns the photos up to five users are tagged on, by day.
type Photos struct{ IDs []int64 }

func (Help) Name() string    { return "help" }
func (Exit) Name() string    { return "exit" }
func (Friends) Name() string { return "friends" }
func (Mutual) Name() string  { return "ismutual" }
func (Group) Name() string   { return "group" }
func (Photos) Name() string  { return "photos" }

// MaxIDs is the most user ids or pairs a single command may carry.
const MaxIDs = 5

var grammar = regexp.MustCompile(fmt.Sprintf(`^(?:help|exit` +
	`|friends(?:\s+\d+){1,%[1]d}` +
	`|ismutual(?:\s+\(\d+,\d+\)){1,%[1]d}` +
	`|group\s+(?:city|bdate|platform|occupation)(?:\s+\d+){1,%[1]d}` +
	`|photos(?:\s+\d+){1,%[1]d})$`, MaxIDs))

var known = map[string]bool{
	"help": true, "exit": true, "friends": true, "ismutual": true, "group": true, "photos": true,
}

// Parse turns a command line into a Command. Failures are *Error values
// carrying the reply code.
func Parse(line string) (Command, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, &Error{Code: CodeEmpty, Message: "command is empty"}
	}

	fields := strings.Fields(line)
	head, args := fields[0], fields[1:]
	if !known[head] {
		return nil, &Error{
			Code:    CodeNotFound,
			Message: fmt.Sprintf("no such command: %s", head),
			Details: `type "help" to get a list of available commands`,
		}
	}
	if !grammar.MatchString(line) {
		return nil, incorrect(line)
	}

	switch head {
	case "help":
		return Help{}, nil
	case "exit":
		return Exit{}, nil
	case "friends":
		ids, err := vkapi.ParseIDs(args)
		if err != nil {
			return nil, incorrect(line)
		}
		return Friends{IDs: ids}, nil
	case "ismutual":
		pairs, err := vkapi.ParsePairs(args)
		if err != nil {
			return nil, incorrect(line)
		}
		return Mutual{Pairs: pairs}, nil
	case "group":
		field, err := group.ParseField(args[0])
		if err != nil {
			return nil, incorrect(line)
		}
		ids, err := vkapi.ParseIDs(args[1:])
		if err != nil {
			return nil, incorrect(line)
		}
		return Group{Field: field, IDs: ids}, nil
	case "photos":
		ids, err := vkapi.ParseIDs(args)
		if err != nil {
			return nil, incorrect(line)
		}
		return Photos{IDs: ids}, nil
	}
	return nil, incorrect(line)
}

func incorrect(line string) *Error {
	return &Error{
		Code:    CodeIncorrect,
		Message: fmt.Sprintf("incorrect command: %s is not a valid expression", line),
		Details: `type "help" to get a list of available commands`,
	}
}

// HelpText lists the supported commands.
const HelpText = "\n---------------------------------" +
	"\n~ 'help' -\t shows this message" +
	"\n~ 'friends <id> [<id>...]' -\t returns the VK friends of up to five users" +
	"\n~ 'ismutual (<id1>,<id2>) [...]' -\t returns the mutual friends of up to five user pairs" +
	"\n~ 'group <city|bdate|platform|occupation> <id> [<id>...]' -\t groups the friends of up to five users" +
	"\n~ 'photos <id> [<id>...]' -\t returns the photos users are tagged on, grouped by day" +
	"\n~ 'exit' -\t closes the connection\n"
