package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseArgsExprFlag(t *testing.T) {
	opts := parseArgs([]string{"-e", "(+ 1 2)"})
	require.NoError(t, opts.err)
	require.Equal(t, "(+ 1 2)", opts.expr)
}

func TestParseArgsFilePath(t *testing.T) {
	opts := parseArgs([]string{"script.clj", "arg1"})
	require.NoError(t, opts.err)
	require.Equal(t, "script.clj", opts.path)
}

func TestParseArgsTreeWalkFlag(t *testing.T) {
	opts := parseArgs([]string{"--tree-walk", "-e", "1"})
	require.NoError(t, opts.err)
	require.True(t, opts.treeWalk)
}

func TestParseArgsNreplServerDefaultPort(t *testing.T) {
	opts := parseArgs([]string{"--nrepl-server"})
	require.NoError(t, opts.err)
	require.Equal(t, "7888", opts.nreplPort)
}

func TestParseArgsNreplServerExplicitPort(t *testing.T) {
	opts := parseArgs([]string{"--nrepl-server", "--port=9999"})
	require.NoError(t, opts.err)
	require.Equal(t, "9999", opts.nreplPort)
}

func TestParseArgsUnrecognizedFlag(t *testing.T) {
	opts := parseArgs([]string{"--bogus"})
	require.Error(t, opts.err)
}

func TestParseArgsSubcommandsNotImplemented(t *testing.T) {
	for _, sub := range []string{"build", "test", "new"} {
		opts := parseArgs([]string{sub})
		require.NoError(t, opts.err)
		require.Equal(t, sub, opts.subcommand)
	}
}

func TestRunEvalExpr(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"-e", "(+ 1 2 3)"}, strings.NewReader(""), &stdout, &stderr)
	require.Equal(t, 0, code)
	require.Equal(t, "6", strings.TrimSpace(stdout.String()))
	require.Empty(t, stderr.String())
}

func TestRunEvalSeqAndAtomBuiltins(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"-e", "(deref (atom (count (conj [1 2] 3))))"}, strings.NewReader(""), &stdout, &stderr)
	require.Equal(t, 0, code)
	require.Equal(t, "3", strings.TrimSpace(stdout.String()))
	require.Empty(t, stderr.String())
}

func TestRunTreeWalkReportsNotImplemented(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"--tree-walk", "-e", "1"}, strings.NewReader(""), &stdout, &stderr)
	require.Equal(t, 1, code)
	require.Contains(t, stderr.String(), "tree-walk")
}

func TestRunUnrecognizedFlagReportsError(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"--nope"}, strings.NewReader(""), &stdout, &stderr)
	require.Equal(t, 1, code)
	require.NotEmpty(t, stderr.String())
}

func TestRunSubcommandReportsNotImplemented(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"build"}, strings.NewReader(""), &stdout, &stderr)
	require.Equal(t, 1, code)
	require.Contains(t, stderr.String(), "build")
}

func TestRunMissingFileReportsError(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"/nonexistent/path/does-not-exist.clj"}, strings.NewReader(""), &stdout, &stderr)
	require.Equal(t, 1, code)
	require.NotEmpty(t, stderr.String())
}

func TestReplEvaluatesEachLine(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run(nil, strings.NewReader("(+ 1 1)\n(first (cons :a nil))\n"), &stdout, &stderr)
	require.Equal(t, 0, code)
	require.Contains(t, stdout.String(), "2")
	require.Empty(t, stderr.String())
}
