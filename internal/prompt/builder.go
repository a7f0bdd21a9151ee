// Package prompt renders project state into a size-bounded system prompt.
package prompt

import (
	"fmt"
	"strings"
)

const (
	DefaultMaxSize                    = 16000
	DefaultMaxRequirementsPerCategory = 20
	DefaultMaxDecisions               = 30
	DefaultMaxSpecs                   = 30

	generalCategory = "General"
)

// Options bound the rendered context. Sizes are in bytes. Non-positive
// values fall back to the defaults.
type Options struct {
	MaxSize                    int
	MaxRequirementsPerCategory int
	MaxDecisions               int
	MaxSpecs                   int
}

func (o Options) withDefaults() Options {
	if o.MaxSize <= 0 {
		o.MaxSize = DefaultMaxSize
	}
	if o.MaxRequirementsPerCategory <= 0 {
		o.MaxRequirementsPerCategory = DefaultMaxRequirementsPerCategory
	}
	if o.MaxDecisions <= 0 {
		o.MaxDecisions = DefaultMaxDecisions
	}
	if o.MaxSpecs <= 0 {
		o.MaxSpecs = DefaultMaxSpecs
	}
	return o
}

// Result is a rendered context plus what summarization dropped.
type Result struct {
	Text                string
	Summarized          bool
	OmittedRequirements int
	OmittedDecisions    int
	OmittedSpecs        int
}

func (r Result) Omitted() int {
	return r.OmittedRequirements + r.OmittedDecisions + r.OmittedSpecs
}

// Builder is stateless apart from its options; output depends only on the
// ProjectContext it is given.
type Builder struct {
	opts Options
}

func NewBuilder(opts Options) *Builder {
	return &Builder{opts: opts.withDefaults()}
}

func (b *Builder) Options() Options {
	return b.opts
}

func (b *Builder) Build(pc *ProjectContext) string {
	return b.Render(pc).Text
}

func (b *Builder) EstimateSize(pc *ProjectContext) int {
	return len(b.Build(pc))
}

// Render returns the full document when it fits in MaxSize. Otherwise it
// keeps the most recent items of each list, halving the caps until the
// document fits or every list is reduced to its omitted count.
func (b *Builder) Render(pc *ProjectContext) Result {
	if pc == nil {
		pc = &ProjectContext{}
	}
	full := render(pc, nil)
	if len(full.Text) <= b.opts.MaxSize {
		return full
	}

	c := caps{
		requirements: b.opts.MaxRequirementsPerCategory,
		decisions:    b.opts.MaxDecisions,
		specs:        b.opts.MaxSpecs,
	}
	for {
		res := render(pc, &c)
		if len(res.Text) <= b.opts.MaxSize || c.zero() {
			return res
		}
		c = c.halve()
	}
}

type caps struct {
	requirements int
	decisions    int
	specs        int
}

func (c caps) zero() bool {
	return c.requirements == 0 && c.decisions == 0 && c.specs == 0
}

func (c caps) halve() caps {
	return caps{requirements: c.requirements / 2, decisions: c.decisions / 2, specs: c.specs / 2}
}

// render writes the document. A nil limit renders everything.
func render(pc *ProjectContext, limit *caps) Result {
	res := Result{Summarized: limit != nil}
	var sb strings.Builder

	writeHeader(&sb, pc)
	res.OmittedRequirements = writeRequirements(&sb, pc.Requirements, limit)
	res.OmittedDecisions = writeDecisions(&sb, pc.Decisions, limit)
	res.OmittedSpecs = writeSpecs(&sb, pc.ExistingSpecs, limit)
	writeInstructions(&sb, pc)

	if res.Omitted() > 0 {
		fmt.Fprintf(&sb, "\n---\nContext summarized to fit the prompt budget: omitted %d requirements, %d decisions and %d existing specs (%d items in total). The most recent items were kept.\n",
			res.OmittedRequirements, res.OmittedDecisions, res.OmittedSpecs, res.Omitted())
	}
	res.Text = sb.String()
	return res
}

func writeHeader(sb *strings.Builder, pc *ProjectContext) {
	name := strings.TrimSpace(pc.Name)
	if name == "" {
		name = "Untitled project"
	}
	fmt.Fprintf(sb, "# Project: %s\n", name)
	if desc := strings.TrimSpace(pc.Description); desc != "" {
		fmt.Fprintf(sb, "\n%s\n", desc)
	}
	sb.WriteString("\n")
	if lang := strings.TrimSpace(pc.TargetLanguage); lang != "" {
		fmt.Fprintf(sb, "- Target language: %s\n", lang)
	}
	if mode := pc.Mode.Normalize(); mode != "" {
		fmt.Fprintf(sb, "- Generation mode: %s\n", mode)
	}
}

type category struct {
	name  string
	items []Requirement
}

// groupRequirements keeps categories in order of first appearance.
func groupRequirements(reqs []Requirement) []category {
	index := make(map[string]int)
	var groups []category
	for _, r := range reqs {
		name := strings.TrimSpace(r.Category)
		if name == "" {
			name = generalCategory
		}
		i, ok := index[name]
		if !ok {
			i = len(groups)
			index[name] = i
			groups = append(groups, category{name: name})
		}
		groups[i].items = append(groups[i].items, r)
	}
	return groups
}

func writeRequirements(sb *strings.Builder, reqs []Requirement, limit *caps) int {
	if len(reqs) == 0 {
		return 0
	}
	sb.WriteString("\n## Requirements\n")
	if limit != nil && limit.requirements == 0 {
		fmt.Fprintf(sb, "\n_%d requirements omitted._\n", len(reqs))
		return len(reqs)
	}

	omitted := 0
	for _, group := range groupRequirements(reqs) {
		items := group.items
		fmt.Fprintf(sb, "\n### %s\n", group.name)
		if limit != nil && len(items) > limit.requirements {
			dropped := len(items) - limit.requirements
			omitted += dropped
			items = items[dropped:]
			fmt.Fprintf(sb, "_%d earlier requirements omitted._\n", dropped)
		}
		for _, r := range items {
			sb.WriteString("- ")
			if id := strings.TrimSpace(r.ID); id != "" {
				fmt.Fprintf(sb, "[%s] ", id)
			}
			sb.WriteString(strings.TrimSpace(r.Text))
			if p := strings.TrimSpace(r.Priority); p != "" {
				fmt.Fprintf(sb, " (priority: %s)", p)
			}
			sb.WriteString("\n")
		}
	}
	return omitted
}

func writeDecisions(sb *strings.Builder, decisions []Decision, limit *caps) int {
	if len(decisions) == 0 {
		return 0
	}
	sb.WriteString("\n## Decisions\n\n")
	items, omitted := decisions, 0
	if limit != nil && len(items) > limit.decisions {
		omitted = len(items) - limit.decisions
		items = items[omitted:]
		fmt.Fprintf(sb, "_%d earlier decisions omitted._\n", omitted)
	}
	for _, d := range items {
		fmt.Fprintf(sb, "- **%s**: %s", strings.TrimSpace(d.Title), strings.TrimSpace(d.Choice))
		if why := strings.TrimSpace(d.Rationale); why != "" {
			fmt.Fprintf(sb, " (rationale: %s)", why)
		}
		sb.WriteString("\n")
	}
	return omitted
}

func writeSpecs(sb *strings.Builder, specs []SpecSummary, limit *caps) int {
	if len(specs) == 0 {
		return 0
	}
	sb.WriteString("\n## Existing Specs\n\n")
	items, omitted := specs, 0
	if limit != nil && len(items) > limit.specs {
		omitted = len(items) - limit.specs
		items = items[omitted:]
		fmt.Fprintf(sb, "_%d earlier specs omitted._\n", omitted)
	}
	for _, s := range items {
		fmt.Fprintf(sb, "- `%s`", strings.TrimSpace(s.Path))
		if title := strings.TrimSpace(s.Title); title != "" {
			fmt.Fprintf(sb, " %s", title)
		}
		if summary := strings.TrimSpace(s.Summary); summary != "" {
			fmt.Fprintf(sb, ": %s", summary)
		}
		sb.WriteString("\n")
	}
	return omitted
}

func writeInstructions(sb *strings.Builder, pc *ProjectContext) {
	lang := strings.TrimSpace(pc.TargetLanguage)
	if lang == "" {
		lang = "the project's target language"
	}
	sb.WriteString("\n## Instructions\n\n")
	switch pc.Mode.Normalize() {
	case ModeGenerate:
		fmt.Fprintf(sb, `Generation mode is active.
- Write one markdown specification file per component, intended for implementation in %s.
- Cover every requirement listed above and respect every recorded decision.
- Create files with the Write tool; do not paste whole files into the chat.
`, lang)
	case ModeRefine:
		fmt.Fprintf(sb, `Refinement mode is active.
- Update the existing specs in place with the Edit tool rather than rewriting them.
- Bring the specs in line with the current requirements and decisions for %s.
- Keep unrelated sections unchanged.
`, lang)
	case ModeReview:
		sb.WriteString(`Review mode is active.
- Compare the existing specs against the requirements and decisions above.
- Report gaps, contradictions and unclear wording as a list.
- Do not modify any files.
`)
	default:
		sb.WriteString("Use the project context above when answering. Ask before creating or modifying files.\n")
	}
}
