package main

import (
	"bytes"
	"net/http"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/starwatch/internal/adapters/driven/github"
)

func TestRootCmd_Subcommands(t *testing.T) {
	root := newRootCmd()

	want := []string{"api", "worker", "all", "reconcile", "token", "hash-password", "version"}
	for _, name := range want {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("expected subcommand %q, got %v (err %v)", name, cmd, err)
		}
	}
}

func TestVersionCmd(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	if err := root.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(out.String()) != version {
		t.Errorf("expected %q, got %q", version, out.String())
	}
}

func TestReconcileCmd_RequiresTarget(t *testing.T) {
	for _, args := range [][]string{
		{"reconcile"},
		{"reconcile", "--all", "repo-1"},
	} {
		root := newRootCmd()
		root.SetOut(&bytes.Buffer{})
		root.SetErr(&bytes.Buffer{})
		root.SetArgs(args)

		if err := root.Execute(); err == nil {
			t.Errorf("%v: expected an error", args)
		}
	}
}

func TestHashPasswordCmd(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"hash-password", "s3cret"})

	if err := root.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(out.String(), "$2a$") {
		t.Errorf("expected a bcrypt hash, got %q", out.String())
	}
}

func TestPrintQuota(t *testing.T) {
	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)

	rl := github.NewRateLimiter(0)
	printQuota(cmd, rl)
	if out.Len() != 0 {
		t.Errorf("expected no output before any response, got %q", out.String())
	}

	resp := &http.Response{Header: http.Header{}}
	resp.Header.Set(github.HeaderRateLimit, "5000")
	resp.Header.Set(github.HeaderRateRemaining, "4321")
	resp.Header.Set(github.HeaderRateReset, "1700000000")
	rl.UpdateFromResponse(resp)

	printQuota(cmd, rl)
	if !strings.Contains(out.String(), "4321 of 5000 requests left") {
		t.Errorf("unexpected output %q", out.String())
	}
}
