package prompt

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleContext() *ProjectContext {
	return &ProjectContext{
		Name:           "Ledger",
		Description:    "Double-entry bookkeeping service.",
		TargetLanguage: "Go",
		Mode:           ModeGenerate,
		Requirements: []Requirement{
			{ID: "R1", Category: "Accounts", Text: "Accounts have a currency.", Priority: "must"},
			{ID: "R2", Category: "Transfers", Text: "Transfers are atomic."},
			{ID: "R3", Text: "Every change is audited."},
			{ID: "R4", Category: "Accounts", Text: "Balances never go negative."},
		},
		Decisions: []Decision{
			{Title: "Storage", Choice: "PostgreSQL", Rationale: "transactions"},
		},
		ExistingSpecs: []SpecSummary{
			{Path: "specs/accounts.md", Title: "Accounts", Summary: "Account lifecycle."},
		},
	}
}

// bulkContext has enough entries that every list is longer than the default caps.
func bulkContext(n int) *ProjectContext {
	pc := &ProjectContext{Name: "Bulk", TargetLanguage: "Go", Mode: ModeRefine}
	for i := 0; i < n; i++ {
		pc.Requirements = append(pc.Requirements, Requirement{
			ID:       fmt.Sprintf("R%03d", i),
			Category: []string{"API", "Storage"}[i%2],
			Text:     strings.Repeat("requirement text ", 4),
		})
		pc.Decisions = append(pc.Decisions, Decision{Title: fmt.Sprintf("D%03d", i), Choice: "yes"})
		pc.ExistingSpecs = append(pc.ExistingSpecs, SpecSummary{Path: fmt.Sprintf("specs/S%03d.md", i), Summary: "summary"})
	}
	return pc
}

func TestNewBuilderDefaults(t *testing.T) {
	t.Parallel()

	b := NewBuilder(Options{MaxSize: -1, MaxDecisions: 5})
	assert.Equal(t, Options{
		MaxSize:                    DefaultMaxSize,
		MaxRequirementsPerCategory: DefaultMaxRequirementsPerCategory,
		MaxDecisions:               5,
		MaxSpecs:                   DefaultMaxSpecs,
	}, b.Options())
}

func TestBuildFullDocument(t *testing.T) {
	t.Parallel()

	res := NewBuilder(Options{}).Render(sampleContext())
	assert.False(t, res.Summarized)
	assert.Zero(t, res.Omitted())

	text := res.Text
	assert.True(t, strings.HasPrefix(text, "# Project: Ledger\n"))
	for _, want := range []string{
		"Double-entry bookkeeping service.",
		"- Target language: Go",
		"- Generation mode: generate",
		"### Accounts\n- [R1] Accounts have a currency. (priority: must)\n- [R4] Balances never go negative.\n",
		"### General\n- [R3] Every change is audited.\n",
		"- **Storage**: PostgreSQL (rationale: transactions)",
		"- `specs/accounts.md` Accounts: Account lifecycle.",
		"Generation mode is active.",
	} {
		assert.Contains(t, text, want)
	}
	assert.NotContains(t, text, "omitted")

	// categories keep first-appearance order
	accounts := strings.Index(text, "### Accounts")
	transfers := strings.Index(text, "### Transfers")
	general := strings.Index(text, "### General")
	assert.Less(t, accounts, transfers)
	assert.Less(t, transfers, general)

	// sections are in document order
	assert.Less(t, strings.Index(text, "## Requirements"), strings.Index(text, "## Decisions"))
	assert.Less(t, strings.Index(text, "## Decisions"), strings.Index(text, "## Existing Specs"))
	assert.Less(t, strings.Index(text, "## Existing Specs"), strings.Index(text, "## Instructions"))
}

func TestBuildModeInstructions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		mode GenerationMode
		want string
	}{
		{mode: ModeGenerate, want: "Generation mode is active."},
		{mode: ModeRefine, want: "Refinement mode is active."},
		{mode: ModeReview, want: "Do not modify any files."},
		{mode: " REVIEW ", want: "Review mode is active."},
		{mode: "", want: "Use the project context above when answering."},
		{mode: "brainstorm", want: "Use the project context above when answering."},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(string(tt.mode), func(t *testing.T) {
			t.Parallel()
			pc := sampleContext()
			pc.Mode = tt.mode
			assert.Contains(t, NewBuilder(Options{}).Build(pc), tt.want)
		})
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	t.Parallel()

	b := NewBuilder(Options{MaxSize: 900})
	pc := bulkContext(40)
	first := b.Build(pc)
	assert.Equal(t, first, b.Build(pc))
	assert.Equal(t, first, NewBuilder(Options{MaxSize: 900}).Build(bulkContext(40)))
}

func TestEstimateSizeMatchesBuild(t *testing.T) {
	t.Parallel()

	for _, size := range []int{0, 50, 900, 4000} {
		b := NewBuilder(Options{MaxSize: size})
		for _, pc := range []*ProjectContext{nil, {}, sampleContext(), bulkContext(60)} {
			assert.Equal(t, len(b.Build(pc)), b.EstimateSize(pc))
		}
	}
}

func TestBuildEmptyContext(t *testing.T) {
	t.Parallel()

	text := NewBuilder(Options{}).Build(nil)
	assert.True(t, strings.HasPrefix(text, "# Project: Untitled project\n"))
	assert.NotContains(t, text, "## Requirements")
	assert.Contains(t, text, "## Instructions")
}

func TestSummarizedKeepsMostRecentItems(t *testing.T) {
	t.Parallel()

	pc := bulkContext(60)
	full := render(pc, nil)
	b := NewBuilder(Options{
		MaxSize:                    len(full.Text) - 1,
		MaxRequirementsPerCategory: 5,
		MaxDecisions:               4,
		MaxSpecs:                   3,
	})
	res := b.Render(pc)
	require.True(t, res.Summarized)
	assert.LessOrEqual(t, len(res.Text), len(full.Text)-1)

	// two categories of 30 keep 5 each
	assert.Equal(t, 50, res.OmittedRequirements)
	assert.Equal(t, 56, res.OmittedDecisions)
	assert.Equal(t, 57, res.OmittedSpecs)

	assert.Contains(t, res.Text, "[R059]")
	assert.Contains(t, res.Text, "[R050]")
	assert.NotContains(t, res.Text, "[R049]")
	assert.NotContains(t, res.Text, "[R000]")
	assert.Contains(t, res.Text, "**D059**")
	assert.Contains(t, res.Text, "**D056**")
	assert.NotContains(t, res.Text, "**D055**")
	assert.Contains(t, res.Text, "specs/S059.md")
	assert.NotContains(t, res.Text, "specs/S056.md")

	assert.Contains(t, res.Text, "_25 earlier requirements omitted._")
	assert.Contains(t, res.Text, "_56 earlier decisions omitted._")
	assert.Contains(t, res.Text, "_57 earlier specs omitted._")
	assert.Contains(t, res.Text, "omitted 50 requirements, 56 decisions and 57 existing specs (163 items in total)")
	assert.True(t, strings.HasSuffix(res.Text, "The most recent items were kept.\n"))
}

func TestSummarizedHalvesCapsUntilItFits(t *testing.T) {
	t.Parallel()

	pc := bulkContext(80)
	b := NewBuilder(Options{MaxSize: 2500})
	res := b.Render(pc)

	require.True(t, res.Summarized)
	assert.LessOrEqual(t, len(res.Text), 2500)
	assert.Greater(t, res.OmittedRequirements, 80-2*DefaultMaxRequirementsPerCategory)
	assert.Contains(t, res.Text, "[R079]")
}

func TestBuildNeverFailsOnTinyBudget(t *testing.T) {
	t.Parallel()

	pc := bulkContext(30)
	res := NewBuilder(Options{MaxSize: 10}).Render(pc)

	require.True(t, res.Summarized)
	assert.NotEmpty(t, res.Text)
	assert.Greater(t, len(res.Text), 10)
	assert.Contains(t, res.Text, "# Project: Bulk")
	assert.Contains(t, res.Text, "_30 requirements omitted._")
	assert.Equal(t, 30, res.OmittedRequirements)
	assert.Equal(t, 30, res.OmittedDecisions)
	assert.Equal(t, 30, res.OmittedSpecs)
	assert.NotContains(t, res.Text, "[R0")
}

func TestLoadProjectContext(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "project.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: Ledger
target_language: Go
mode: review
requirements:
  - id: R1
    category: Accounts
    text: Accounts have a currency.
decisions:
  - title: Storage
    choice: PostgreSQL
existing_specs:
  - path: specs/accounts.md
    summary: Account lifecycle.
`), 0o644))

	pc, err := LoadProjectContext(path)
	require.NoError(t, err)
	assert.Equal(t, "Ledger", pc.Name)
	assert.Equal(t, ModeReview, pc.Mode)
	require.Len(t, pc.Requirements, 1)
	assert.Equal(t, "Accounts", pc.Requirements[0].Category)
	assert.Equal(t, "PostgreSQL", pc.Decisions[0].Choice)
	assert.Equal(t, "specs/accounts.md", pc.ExistingSpecs[0].Path)
}

func TestLoadProjectContextErrors(t *testing.T) {
	t.Parallel()

	_, err := LoadProjectContext(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("requirements: {not: [a list"), 0o644))
	_, err = LoadProjectContext(bad)
	assert.ErrorContains(t, err, "decode project context")
}
