// Package command composes encoder argument vectors from stored command
// strings.
//
// Strings are split with POSIX shell word rules, so quoted segments survive as
// single tokens, but no shell ever runs the result. The {input} and {output}
// placeholders are substituted per token after splitting, which keeps paths
// containing spaces intact.
package command

import (
	"strings"

	"github.com/alessio/shellescape"
	"github.com/kballard/go-shellquote"

	"reel/internal/services"
)

const (
	InputPlaceholder  = "{input}"
	OutputPlaceholder = "{output}"
)

// Command is a composed argument vector ready for process creation.
type Command struct {
	Argv []string
}

// Name returns the executable token.
func (c Command) Name() string {
	if len(c.Argv) == 0 {
		return ""
	}
	return c.Argv[0]
}

// Args returns the arguments following the executable.
func (c Command) Args() []string {
	if len(c.Argv) < 2 {
		return nil
	}
	return c.Argv[1:]
}

// String renders the command as a single shell-quoted line.
func (c Command) String() string {
	return Join(c.Argv)
}

// Build composes encoder path, encoder flags, and the profile command with
// placeholders replaced by the given paths, in that order.
func Build(encoderPath, flags, profileCommand, inputPath, outputPath string) (Command, error) {
	head, err := Split("encoder path", encoderPath)
	if err != nil {
		return Command{}, err
	}
	if len(head) == 0 {
		return Command{}, services.Wrap(services.ErrConfiguration, "command", "build", "encoder path is empty", nil)
	}
	flagTokens, err := Split("encoder flags", flags)
	if err != nil {
		return Command{}, err
	}
	profileTokens, err := Split("profile command", profileCommand)
	if err != nil {
		return Command{}, err
	}

	argv := make([]string, 0, len(head)+len(flagTokens)+len(profileTokens))
	argv = append(argv, head...)
	argv = append(argv, flagTokens...)
	argv = append(argv, Substitute(profileTokens, inputPath, outputPath)...)
	return Command{Argv: argv}, nil
}

// Split tokenizes value with shell word rules. Malformed quoting is a
// configuration error naming the offending field.
func Split(field, value string) ([]string, error) {
	tokens, err := shellquote.Split(value)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "command", field, "malformed quoting in "+shellescape.Quote(value), err)
	}
	return tokens, nil
}

// Substitute returns a copy of tokens with {input} and {output} replaced.
func Substitute(tokens []string, inputPath, outputPath string) []string {
	replacer := strings.NewReplacer(InputPlaceholder, inputPath, OutputPlaceholder, outputPath)
	out := make([]string, len(tokens))
	for i, token := range tokens {
		out[i] = replacer.Replace(token)
	}
	return out
}

// HasPlaceholders reports whether a command template references either path.
func HasPlaceholders(template string) bool {
	return strings.Contains(template, InputPlaceholder) || strings.Contains(template, OutputPlaceholder)
}

// Join renders argv as a single line using shell quoting where needed.
func Join(argv []string) string {
	return shellescape.QuoteCommand(argv)
}

