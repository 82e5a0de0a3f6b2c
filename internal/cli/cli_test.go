package cli

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVersionFlag(t *testing.T) {
	output := captureOutput(t, func() {
		err := RunWithArgs("0.1.0-test", []string{"--version"})
		assert.NoError(t, err)
	})

	assert.Equal(t, "logcrunch 0.1.0-test", strings.TrimSpace(output))
}

func TestIngestSubcommandRecognized(t *testing.T) {
	parser, _, cmds := buildParser("test")
	_, err := parser.ParseArgs([]string{"ingest", "some.log.gz", "--db", ":memory:"})
	// Execute runs and fails on the missing file; parsing itself must
	// have accepted the subcommand and recorded its argument.
	assert.Error(t, err)
	assert.Equal(t, []string{"some.log.gz"}, cmds.Ingest.Args.Files)
}

func TestReportListFlag(t *testing.T) {
	output := captureOutput(t, func() {
		err := RunWithArgs("test", []string{"report", "--list"})
		assert.NoError(t, err)
	})

	for _, name := range []string{"agents", "referers", "pages", "articles",
		"articles-per-day-top3", "errors", "scanning-asns", "traffic-count"} {
		assert.Contains(t, output, name)
	}
}

func TestReportRequiresName(t *testing.T) {
	cmd := &ReportCommand{globals: &GlobalFlags{}}
	err := cmd.Execute(nil)
	assert.ErrorContains(t, err, "--name")
}

func TestASNSyncSubcommandRecognized(t *testing.T) {
	parser, _, _ := buildParser("test")
	cmd := parser.Find("asn-sync")
	assert.NotNil(t, cmd)
}

func TestStatusSubcommandRecognized(t *testing.T) {
	parser, _, _ := buildParser("test")
	cmd := parser.Find("status")
	assert.NotNil(t, cmd)
}
