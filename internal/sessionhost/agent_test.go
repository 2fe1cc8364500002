package sessionhost

import (
	"reflect"
	"testing"

	"github.com/nextlevelbuilder/goclaw/pkg/protocol"
)

func TestBuildArgs_BaseContractFlags(t *testing.T) {
	got := buildArgs(protocol.AgentCLIParams{}, "")
	want := []string{"--input-format", "stream-json", "--output-format", "stream-json"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("buildArgs() = %v, want %v", got, want)
	}
}

func TestBuildArgs_MaxTurns(t *testing.T) {
	got := buildArgs(protocol.AgentCLIParams{MaxTurns: 5}, "")
	if !contains(got, "--max-turns") || !contains(got, "5") {
		t.Errorf("buildArgs() = %v, want --max-turns 5", got)
	}
}

func TestBuildArgs_AllowedToolsRepeated(t *testing.T) {
	got := buildArgs(protocol.AgentCLIParams{AllowedTools: []string{"read", "grep"}}, "")
	count := 0
	for i, a := range got {
		if a == "--allowedTools" {
			count++
			if i+1 >= len(got) {
				t.Fatalf("--allowedTools missing its value")
			}
		}
	}
	if count != 2 {
		t.Errorf("expected --allowedTools repeated once per tool, got %d occurrences in %v", count, got)
	}
}

func TestBuildArgs_SystemPromptAppend(t *testing.T) {
	got := buildArgs(protocol.AgentCLIParams{SystemPromptAppend: "be terse"}, "")
	if !contains(got, "--append-system-prompt") || !contains(got, "be terse") {
		t.Errorf("buildArgs() = %v, want --append-system-prompt flag", got)
	}
}

func TestBuildArgs_ResumeIDOmittedWhenEmpty(t *testing.T) {
	got := buildArgs(protocol.AgentCLIParams{}, "")
	if contains(got, "--resume") {
		t.Errorf("buildArgs() = %v, want no --resume flag for empty resume id", got)
	}
}

func TestBuildArgs_ResumeIDIncluded(t *testing.T) {
	got := buildArgs(protocol.AgentCLIParams{}, "sess-123")
	if !contains(got, "--resume") || !contains(got, "sess-123") {
		t.Errorf("buildArgs() = %v, want --resume sess-123", got)
	}
}

func TestBuildArgs_ExtraArgsAppendedLast(t *testing.T) {
	got := buildArgs(protocol.AgentCLIParams{Args: []string{"--verbose"}}, "sess-123")
	if got[len(got)-1] != "--verbose" {
		t.Errorf("buildArgs() = %v, want extra args appended last", got)
	}
}

func contains(items []string, target string) bool {
	for _, i := range items {
		if i == target {
			return true
		}
	}
	return false
}
