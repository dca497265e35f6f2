package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strconv"
	"strings"

	"go.lsp.dev/protocol"

	"github.com/dshills/langcore/internal/document"
	"github.com/dshills/langcore/internal/process"
	"github.com/dshills/langcore/internal/syntax"
	"github.com/dshills/langcore/pkg/types"
)

// Default checker output patterns. Both capture the 1-based line and the
// message of the first error.
const (
	GofmtPattern = `(?m)^<standard input>:(?P<line>\d+):(?:\d+:)?\s*(?P<message>.+)$`
	PhpPattern   = `(?m)^(?:(?:PHP +)?(?:Fatal|Parse) error: +)?(?P<message>.+?)(?: in (?:-|Standard input code) on line (?P<line>[0-9]+))?$`
)

// Command is an external syntax checker for one language. It receives the
// document text on stdin and reports an error on stderr with a non-zero
// exit.
type Command struct {
	Language string
	Args     []string
	Pattern  *regexp.Regexp
	Source   string
}

// NewCommand compiles pattern. It must have a "line" or "message" named group.
func NewCommand(language string, args []string, pattern, source string) (Command, error) {
	if len(args) == 0 {
		return Command{}, fmt.Errorf("diagnostics command for %s: empty command", language)
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return Command{}, fmt.Errorf("diagnostics pattern for %s: %w", language, err)
	}
	if re.SubexpIndex("line") < 0 && re.SubexpIndex("message") < 0 {
		return Command{}, fmt.Errorf("diagnostics pattern for %s: needs a line or message group", language)
	}
	if source == "" {
		source = strings.Join(args, " ")
	}
	return Command{Language: language, Args: args, Pattern: re, Source: source}, nil
}

// DefaultCommands returns the checkers for Go and PHP
func DefaultCommands() []Command {
	return []Command{
		{
			Language: "go",
			Args:     []string{"gofmt", "-e"},
			Pattern:  regexp.MustCompile(GofmtPattern),
			Source:   "gofmt",
		},
		{
			Language: "php",
			Args:     []string{"php", "-n", "-d", "error_reporting=E_ALL", "-d", "display_errors=stderr", "-l"},
			Pattern:  regexp.MustCompile(PhpPattern),
			Source:   "php -l",
		},
	}
}

// ProcessDiagnosticsProvider runs an external checker per language
type ProcessDiagnosticsProvider struct {
	runner   process.Runner
	commands map[string]Command
	logger   *slog.Logger
}

// NewProcessDiagnosticsProvider creates a provider. Later commands replace
// earlier ones for the same language.
func NewProcessDiagnosticsProvider(runner process.Runner, commands []Command, logger *slog.Logger) *ProcessDiagnosticsProvider {
	if logger == nil {
		logger = slog.Default()
	}
	p := &ProcessDiagnosticsProvider{
		runner:   runner,
		commands: make(map[string]Command, len(commands)),
		logger:   logger.With("component", "diagnostics"),
	}
	for _, c := range commands {
		p.commands[c.Language] = c
	}
	return p
}

// Supports implements feature.Provider
func (p *ProcessDiagnosticsProvider) Supports(language string) bool {
	_, ok := p.commands[language]
	return ok
}

// GetDiagnostics runs the checker on the document text. A checker that
// cannot be started or prints something unrecognized yields no diagnostics.
func (p *ProcessDiagnosticsProvider) GetDiagnostics(ctx context.Context, doc *document.Document) ([]protocol.Diagnostic, error) {
	cmd, ok := p.commands[doc.Language()]
	if !ok {
		return nil, nil
	}

	text := doc.Text()
	res, err := p.runner.Run(ctx, cmd.Args, text)
	if err != nil {
		if errors.Is(err, types.ErrCancelled) {
			return nil, err
		}
		p.logger.Warn("diagnostics command failed", "command", cmd.Args[0], "error", err)
		return nil, nil
	}

	diag, ok := parseCheckerOutput(cmd, res, text)
	if !ok {
		return nil, nil
	}
	return []protocol.Diagnostic{diag}, nil
}

// parseCheckerOutput turns the checker's stderr into one diagnostic
// covering the reported line. A checker that did not exit normally
// (ExitCode -1) reports nothing.
func parseCheckerOutput(cmd Command, res *process.Result, text string) (protocol.Diagnostic, bool) {
	stderr := strings.TrimSpace(res.Stderr)
	if res.ExitCode <= 0 || stderr == "" {
		return protocol.Diagnostic{}, false
	}

	m := cmd.Pattern.FindStringSubmatch(stderr)
	if m == nil {
		return protocol.Diagnostic{}, false
	}

	line := 1
	if i := cmd.Pattern.SubexpIndex("line"); i >= 0 && m[i] != "" {
		n, err := strconv.Atoi(m[i])
		if err != nil {
			return protocol.Diagnostic{}, false
		}
		line = n
	}
	line = max(0, line-1)

	message := stderr
	if i := cmd.Pattern.SubexpIndex("message"); i >= 0 && m[i] != "" {
		message = m[i]
	}

	start := syntax.OffsetAt(text, protocol.Position{Line: uint32(line)})
	end := syntax.OffsetAt(text, protocol.Position{Line: uint32(line), Character: math.MaxUint32})
	return protocol.Diagnostic{
		Range:    syntax.RangeOf(text, start, end),
		Severity: protocol.DiagnosticSeverityError,
		Source:   cmd.Source,
		Message:  message,
	}, true
}
