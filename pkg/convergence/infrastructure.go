package convergence

// ReferenceType classifies a piece of discovered or user-supplied
// infrastructure that the convergence engine can point a strategy at.
type ReferenceType string

const (
	ReferenceCodeFile      ReferenceType = "code_file"
	ReferenceTestFile      ReferenceType = "test_file"
	ReferenceDocumentation ReferenceType = "documentation"
	ReferenceExample       ReferenceType = "example"
	ReferenceConfig        ReferenceType = "config"
)

// Reference points at one file relevant to convergence, with a human
// description of why it matters.
type Reference struct {
	Path        string
	Description string
	Type        ReferenceType
}

// TaskSubmission is the caller-facing request that seeds a trajectory: the
// raw description plus whatever specification-quality signals the caller
// chose to supply up front (spec.md §3, §4.5.2).
type TaskSubmission struct {
	Description        string
	AcceptanceTests    []string
	Examples           []string
	Invariants         []string
	AntiPatterns       []string
	ContextFiles       []string
	References         []Reference
	Hints              []string // free-form user hints, carried forward on a forced fresh start (spec.md §4.5.11)
	PriorityHint       PriorityHint
	InferredComplexity Complexity
}

// NewTaskSubmission seeds a submission with the spec.md default inferred
// complexity of Moderate, overridden once actual complexity inference runs.
func NewTaskSubmission(description string) TaskSubmission {
	return TaskSubmission{
		Description:        description,
		InferredComplexity: ComplexityModerate,
	}
}

func (s TaskSubmission) WithConstraint(constraint string) TaskSubmission {
	s.Invariants = append(s.Invariants, constraint)
	return s
}

func (s TaskSubmission) WithAntiPattern(pattern string) TaskSubmission {
	s.AntiPatterns = append(s.AntiPatterns, pattern)
	return s
}

func (s TaskSubmission) WithReference(ref Reference) TaskSubmission {
	s.References = append(s.References, ref)
	return s
}

func (s TaskSubmission) WithPriorityHint(hint PriorityHint) TaskSubmission {
	s.PriorityHint = hint
	return s
}

func (s TaskSubmission) WithHint(hint string) TaskSubmission {
	s.Hints = append(s.Hints, hint)
	return s
}

// DiscoveredInfrastructure is what the engine finds by inspecting the
// target repository before the first iteration: existing tests, examples,
// invariants already encoded, anti-examples, and the toolchain available
// to verify against.
type DiscoveredInfrastructure struct {
	AcceptanceTests []string
	Examples        []string
	Invariants      []string
	AntiExamples    []string
	ContextFiles    []string

	TestFramework string
	BuildTool     string
	TypeChecker   string
	Linter        string
}

// ConvergenceInfrastructure is the merged view — discovered infrastructure
// plus whatever the submission supplied — that strategies and overseers
// consult to judge a trajectory.
type ConvergenceInfrastructure struct {
	AcceptanceTests []string
	Examples        []string
	Invariants      []string
	AntiPatterns    []string
	ContextFiles    []string
	References      []Reference

	TestFramework string
	BuildTool     string
	TypeChecker   string
	Linter        string
}

// FromDiscovered seeds infrastructure from what was found on disk, before
// any user references are merged in.
func FromDiscovered(d DiscoveredInfrastructure) ConvergenceInfrastructure {
	return ConvergenceInfrastructure{
		AcceptanceTests: append([]string(nil), d.AcceptanceTests...),
		Examples:        append([]string(nil), d.Examples...),
		Invariants:      append([]string(nil), d.Invariants...),
		AntiPatterns:    append([]string(nil), d.AntiExamples...),
		ContextFiles:    append([]string(nil), d.ContextFiles...),
		TestFramework:   d.TestFramework,
		BuildTool:       d.BuildTool,
		TypeChecker:     d.TypeChecker,
		Linter:          d.Linter,
	}
}

// MergeUserReferences folds a submission's explicit references and
// acceptance tests into the infrastructure, de-duplicating by path/text.
func (ci *ConvergenceInfrastructure) MergeUserReferences(sub TaskSubmission) {
	ci.References = append(ci.References, sub.References...)
	ci.AcceptanceTests = appendUnique(ci.AcceptanceTests, sub.AcceptanceTests...)
	ci.Examples = appendUnique(ci.Examples, sub.Examples...)
	ci.ContextFiles = appendUnique(ci.ContextFiles, sub.ContextFiles...)
}

// AddInvariants appends newly discovered invariants, de-duplicated.
func (ci *ConvergenceInfrastructure) AddInvariants(invariants ...string) {
	ci.Invariants = appendUnique(ci.Invariants, invariants...)
}

// AddAntiPatterns appends newly discovered anti-patterns, de-duplicated.
func (ci *ConvergenceInfrastructure) AddAntiPatterns(patterns ...string) {
	ci.AntiPatterns = appendUnique(ci.AntiPatterns, patterns...)
}

func appendUnique(dst []string, items ...string) []string {
	seen := make(map[string]struct{}, len(dst))
	for _, d := range dst {
		seen[d] = struct{}{}
	}
	for _, item := range items {
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		dst = append(dst, item)
	}
	return dst
}

// InterventionPoint names where in a trajectory a human or a higher-level
// policy can step in (spec.md §4.5.8 escalation surface).
type InterventionPoint string

const (
	InterventionBeforeFirstIteration InterventionPoint = "before_first_iteration"
	InterventionAfterEachIteration   InterventionPoint = "after_each_iteration"
	InterventionBeforeDecomposition  InterventionPoint = "before_decomposition"
	InterventionOnExtensionRequest   InterventionPoint = "on_extension_request"
	InterventionOnTrapped            InterventionPoint = "on_trapped"
	InterventionBeforeFinalize       InterventionPoint = "before_finalize"
)

// BudgetExtension is a granted or requested top-up, carried in a
// trajectory's history so the audit log can show why a ceiling moved.
type BudgetExtension struct {
	AdditionalTokens     int64
	AdditionalIterations int
	Reason               string
}
