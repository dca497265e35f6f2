package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lsp.dev/protocol"

	"github.com/dshills/langcore/internal/document"
	"github.com/dshills/langcore/internal/process"
	"github.com/dshills/langcore/pkg/types"
)

// fakeRunner returns a canned result and records the input
type fakeRunner struct {
	result  *process.Result
	err     error
	command []string
	stdin   string
}

func (f *fakeRunner) Run(ctx context.Context, command []string, stdin string) (*process.Result, error) {
	f.command = command
	f.stdin = stdin
	return f.result, f.err
}

func loadDoc(t *testing.T, path, language, text string) *document.Document {
	t.Helper()
	cache, err := document.NewCache(0)
	require.NoError(t, err)
	return document.NewStore(nil, cache, nil).Load(types.FileURI(path), language, text)
}

func TestProcessDiagnostics_Gofmt(t *testing.T) {
	runner := &fakeRunner{result: &process.Result{
		ExitCode: 2,
		Stderr:   "<standard input>:3:14: expected '(', found '{'\n<standard input>:4:1: expected declaration\n",
	}}
	p := NewProcessDiagnosticsProvider(runner, DefaultCommands(), nil)
	text := "package p\n\nfunc broken {\n}\n"

	diags, err := p.GetDiagnostics(context.Background(), loadDoc(t, "/src/p.go", "go", text))
	require.NoError(t, err)

	assert.Equal(t, []string{"gofmt", "-e"}, runner.command)
	assert.Equal(t, text, runner.stdin)
	require.Len(t, diags, 1)
	assert.Equal(t, "expected '(', found '{'", diags[0].Message)
	assert.Equal(t, "gofmt", diags[0].Source)
	assert.Equal(t, protocol.DiagnosticSeverityError, diags[0].Severity)
	assert.Equal(t, protocol.Range{
		Start: protocol.Position{Line: 2, Character: 0},
		End:   protocol.Position{Line: 2, Character: 13},
	}, diags[0].Range)
}

func TestProcessDiagnostics_Php(t *testing.T) {
	runner := &fakeRunner{result: &process.Result{
		ExitCode: 255,
		Stderr:   "PHP Parse error:  syntax error, unexpected end of file in Standard input code on line 2\n",
	}}
	p := NewProcessDiagnosticsProvider(runner, DefaultCommands(), nil)

	diags, err := p.GetDiagnostics(context.Background(), loadDoc(t, "/src/a.php", "php", "<?php\n$x = \n"))
	require.NoError(t, err)

	require.Len(t, diags, 1)
	assert.Equal(t, "syntax error, unexpected end of file", diags[0].Message)
	assert.Equal(t, uint32(1), diags[0].Range.Start.Line)
	assert.Equal(t, "php -l", diags[0].Source)
}

func TestProcessDiagnostics_NoDiagnostics(t *testing.T) {
	tests := []struct {
		name   string
		result *process.Result
		err    error
	}{
		{"clean exit", &process.Result{ExitCode: 0, Stderr: "<standard input>:1:1: noise"}, nil},
		{"empty stderr", &process.Result{ExitCode: 2, Stderr: "  \n"}, nil},
		{"malformed output", &process.Result{ExitCode: 2, Stderr: "segmentation fault"}, nil},
		{"killed", &process.Result{ExitCode: -1, Stderr: "<standard input>:1:1: expected 'package'"}, nil},
		{"cannot start", nil, errors.New("exec: not found")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewProcessDiagnosticsProvider(&fakeRunner{result: tt.result, err: tt.err}, DefaultCommands(), nil)
			diags, err := p.GetDiagnostics(context.Background(), loadDoc(t, "/src/p.go", "go", "package p\n"))
			require.NoError(t, err)
			assert.Empty(t, diags)
		})
	}
}

func TestProcessDiagnostics_CancelledPropagates(t *testing.T) {
	p := NewProcessDiagnosticsProvider(&fakeRunner{err: types.Cancelled(context.Canceled)}, DefaultCommands(), nil)

	_, err := p.GetDiagnostics(context.Background(), loadDoc(t, "/src/p.go", "go", "package p\n"))
	assert.ErrorIs(t, err, types.ErrCancelled)
}

func TestProcessDiagnostics_Supports(t *testing.T) {
	p := NewProcessDiagnosticsProvider(&fakeRunner{}, DefaultCommands(), nil)

	assert.True(t, p.Supports("go"))
	assert.True(t, p.Supports("php"))
	assert.False(t, p.Supports("rust"))
}

func TestNewCommand(t *testing.T) {
	cmd, err := NewCommand("rust", []string{"rustc", "-"}, `line (?P<line>\d+)`, "")
	require.NoError(t, err)
	assert.Equal(t, "rustc -", cmd.Source)

	_, err = NewCommand("rust", nil, `(?P<line>\d+)`, "")
	assert.Error(t, err)
	_, err = NewCommand("rust", []string{"rustc"}, `(`, "")
	assert.Error(t, err)
	_, err = NewCommand("rust", []string{"rustc"}, `\d+`, "")
	assert.Error(t, err)
}

func TestParseCheckerOutput_MissingLineDefaultsToFirst(t *testing.T) {
	cmd, err := NewCommand("x", []string{"x"}, `(?P<message>.+)`, "x")
	require.NoError(t, err)

	diag, ok := parseCheckerOutput(cmd, &process.Result{ExitCode: 1, Stderr: "bad input"}, "first\nsecond\n")
	require.True(t, ok)
	assert.Equal(t, "bad input", diag.Message)
	assert.Equal(t, uint32(0), diag.Range.Start.Line)
	assert.Equal(t, uint32(5), diag.Range.End.Character)
}

func TestParseCheckerOutput_KilledCheckerReportsNothing(t *testing.T) {
	php := DefaultCommands()[1]

	res := &process.Result{ExitCode: -1, Stderr: "PHP Parse error: syntax error in - on line 3"}
	_, ok := parseCheckerOutput(php, res, "<?php\n\n$x = ;\n")
	assert.False(t, ok)

	res.ExitCode = 255
	diag, ok := parseCheckerOutput(php, res, "<?php\n\n$x = ;\n")
	require.True(t, ok)
	assert.Equal(t, uint32(2), diag.Range.Start.Line)
}
