package research

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/opencode-ai/orchestrator/retriever"
	"github.com/opencode-ai/orchestrator/telemetry"
)

// minSubQuestions / maxSubQuestions are the range of sub-questions asked
// of the LLM; an LLM-provided list is truncated to maxSubQuestions. The
// no-LLM fallback is the topic alone, and no minimum is enforced.
const (
	minSubQuestions = 3
	maxSubQuestions = 5
)

// maxReviewRounds caps the adaptive progress-review loop at one review
// producing at most this many additional queries (section 4.10, step 4).
const maxReviewRounds = 2

// Progress checkpoints, matching section 4.10's stage percentages.
const (
	progressStart          = 5
	progressQuestionsReady = 15
	progressRetrievalEnd   = 75
	progressReviewDone     = 85
	progressComplete       = 100
)

// LLM is the minimal completion surface the Workflow needs: a single
// prompt-in, text-out call. Defined locally (rather than importing llm)
// so this package has no dependency on the LLM provider plumbing,
// mirroring planneractor's own local LLM interface.
type LLM interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Retriever is the subset of retriever.Retriever the Workflow needs.
type Retriever interface {
	Search(ctx context.Context, query string, topK int, opts retriever.SearchOptions) []retriever.Chunk
}

// StepSink receives a copy of every step appended to a task, in addition to
// it being recorded in the Workflow's own task map. It exists so a
// deployment can fan steps out to other instances (see
// research/pulsebroker) without research/httpapi's single-instance poll
// loop being the only way to observe progress.
type StepSink interface {
	Publish(ctx context.Context, taskID string, step Step)
}

// Workflow runs deep-research tasks to completion. Unlike the teacher's
// generic engine.Engine (workflow/activity registration, signals, child
// workflows), Workflow is purpose-built for this one fixed five-stage
// pipeline: the spec pins the exact stages and their progress bounds, so a
// general-purpose engine would add indirection without buying flexibility
// this package needs.
type Workflow struct {
	llm       LLM
	retriever Retriever
	log       telemetry.Logger
	sink      StepSink

	mu    sync.RWMutex
	tasks map[string]*Task

	newID func() string
}

// Option configures a Workflow.
type Option func(*Workflow)

// WithLogger attaches a Logger.
func WithLogger(l telemetry.Logger) Option {
	return func(w *Workflow) { w.log = l }
}

// WithIDFunc overrides how task IDs are generated. Defaults to
// "research-" followed by a random UUID; tests can inject a deterministic one.
func WithIDFunc(f func() string) Option {
	return func(w *Workflow) { w.newID = f }
}

// WithStepSink attaches a StepSink that mirrors every step to an external
// broker (research/pulsebroker in production). Steps are still recorded
// in-process regardless of whether a sink is configured.
func WithStepSink(sink StepSink) Option {
	return func(w *Workflow) { w.sink = sink }
}

// New constructs a Workflow. llm may be nil, in which case sub-question
// generation falls back to [topic] and report composition falls back to
// concatenation, matching section 4.10's documented LLM-unavailable paths.
func New(llm LLM, retriever Retriever, opts ...Option) *Workflow {
	w := &Workflow{
		llm:       llm,
		retriever: retriever,
		log:       telemetry.NewNoopLogger(),
		tasks:     make(map[string]*Task),
	}
	w.newID = func() string { return fmt.Sprintf("research-%s", uuid.NewString()) }
	for _, o := range opts {
		o(w)
	}
	return w
}

// StartResearch creates a Task in pending status and begins executing it
// asynchronously, returning its id immediately.
func (w *Workflow) StartResearch(ctx context.Context, topic string, documentFilter map[string][]string) string {
	id := w.newID()
	task := &Task{
		ID:             id,
		Topic:          topic,
		DocumentFilter: documentFilter,
		Status:         StatusPending,
		CreatedAt:      time.Now(),
	}
	w.mu.Lock()
	w.tasks[id] = task
	w.mu.Unlock()

	go w.run(context.WithoutCancel(ctx), id)

	return id
}

// GetTask returns a snapshot of the task with the given id, or false.
func (w *Workflow) GetTask(id string) (Task, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	t, ok := w.tasks[id]
	if !ok {
		return Task{}, false
	}
	return *t, true
}

// ListTasks returns a summary of every known task.
func (w *Workflow) ListTasks() []Summary {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]Summary, 0, len(w.tasks))
	for _, t := range w.tasks {
		out = append(out, t.summary())
	}
	return out
}

// run drives one task through its state machine. Any stage failure marks
// the last step error, records the error, sets status failed, and leaves
// whatever partial report exists intact (section 4.10, Failure handling).
func (w *Workflow) run(ctx context.Context, id string) {
	w.setStatus(id, StatusRunning, progressStart)
	w.addStep(id, "start", StepDone, "research task started", "")

	topic := w.topicOf(id)

	questions, err := w.generateSubQuestions(ctx, topic)
	if err != nil {
		w.fail(id, "sub_question_generation", err)
		return
	}
	w.addStep(id, "sub_question_generation", StepDone, fmt.Sprintf("%d sub-question(s) generated", len(questions)), "")
	w.setProgress(id, progressQuestionsReady)

	if err := w.runQuestions(ctx, id, questions, progressQuestionsReady, progressRetrievalEnd); err != nil {
		w.fail(id, "retrieval", err)
		return
	}

	extra, err := w.reviewProgress(ctx, id)
	if err != nil {
		w.fail(id, "progress_review", err)
		return
	}
	w.addStep(id, "progress_review", StepDone, fmt.Sprintf("%d additional quer(ies) identified", len(extra)), "")
	if len(extra) > 0 {
		if err := w.runQuestions(ctx, id, extra, progressRetrievalEnd, progressReviewDone); err != nil {
			w.fail(id, "retrieval_review", err)
			return
		}
	}
	w.setProgress(id, progressReviewDone)

	report, err := w.composeReport(ctx, id)
	if err != nil {
		w.fail(id, "final_report", err)
		return
	}
	w.addStep(id, "final_report", StepDone, "report composed", "")
	w.finish(id, report)
}

func (w *Workflow) topicOf(id string) string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.tasks[id].Topic
}

// generateSubQuestions asks the LLM for 3-5 sub-questions; on any LLM
// failure or absence it falls back to [topic], matching section 4.10 step 2.
func (w *Workflow) generateSubQuestions(ctx context.Context, topic string) ([]string, error) {
	if w.llm == nil {
		return []string{topic}, nil
	}
	prompt := fmt.Sprintf(
		"Break the research topic below into %d-%d focused sub-questions that together cover it. "+
			"Reply with one question per line, no numbering.\n\nTopic: %s", minSubQuestions, maxSubQuestions, topic)
	out, err := w.llm.Generate(ctx, prompt)
	if err != nil {
		w.log.Warn(ctx, "research: sub-question generation failed, falling back to topic", "error", err.Error())
		return []string{topic}, nil
	}
	questions := splitNonEmptyLines(out)
	if len(questions) == 0 {
		return []string{topic}, nil
	}
	if len(questions) > maxSubQuestions {
		questions = questions[:maxSubQuestions]
	}
	return questions, nil
}

// runQuestions retrieves and answers each question in turn, appending a
// Finding and step record for each, and spreads progress linearly over
// (startPct, endPct], the last question reaching endPct.
func (w *Workflow) runQuestions(ctx context.Context, id string, questions []string, startPct, endPct int) error {
	if len(questions) == 0 {
		return nil
	}
	span := endPct - startPct
	for i, q := range questions {
		chunks := w.search(ctx, id, q)
		answer := w.answerQuestion(ctx, q, chunks)
		sources := dedupeChunkSources(chunks)

		w.mu.Lock()
		t := w.tasks[id]
		t.Findings = append(t.Findings, Finding{Question: q, Answer: answer, SourcesCount: len(sources)})
		t.Sources = mergeSources(t.Sources, sources)
		w.mu.Unlock()

		w.addStep(id, fmt.Sprintf("question_%d", i+1), StepDone, q, "")
		pct := startPct + ((i + 1) * span / len(questions))
		w.setProgress(id, pct)
	}
	return nil
}

func (w *Workflow) search(ctx context.Context, id string, question string) []retriever.Chunk {
	if w.retriever == nil {
		return nil
	}
	w.mu.RLock()
	filter := retriever.Filter(w.tasks[id].DocumentFilter)
	w.mu.RUnlock()
	return w.retriever.Search(ctx, question, 8, retriever.SearchOptions{Filter: filter, UseHybrid: true})
}

// answerQuestion synthesizes a per-question answer from retrieved chunks,
// labeling each source by {file_name, page} as section 4.10 step 3 requires.
func (w *Workflow) answerQuestion(ctx context.Context, question string, chunks []retriever.Chunk) string {
	if len(chunks) == 0 {
		return "No supporting passages were found for this question."
	}
	if w.llm == nil {
		return concatenateChunks(chunks)
	}
	var b strings.Builder
	for _, c := range chunks {
		fmt.Fprintf(&b, "[%s p.%s] %s\n\n", c.Metadata.FileName, c.Metadata.PageLabel, c.Text)
	}
	prompt := fmt.Sprintf("Answer the question using only the labeled context below.\n\nQuestion: %s\n\nContext:\n%s", question, b.String())
	answer, err := w.llm.Generate(ctx, prompt)
	if err != nil {
		w.log.Warn(ctx, "research: per-question synthesis failed, concatenating context", "error", err.Error())
		return concatenateChunks(chunks)
	}
	return answer
}

// reviewProgress asks the LLM whether the findings so far cover the topic
// and, if not, returns up to maxReviewRounds additional queries. Absent an
// LLM this is a no-op, matching the conservative default of not expanding
// scope without a reviewer.
func (w *Workflow) reviewProgress(ctx context.Context, id string) ([]string, error) {
	if w.llm == nil {
		return nil, nil
	}
	w.mu.RLock()
	t := w.tasks[id]
	var b strings.Builder
	for _, f := range t.Findings {
		fmt.Fprintf(&b, "Q: %s\nA: %s\n\n", f.Question, f.Answer)
	}
	topic := t.Topic
	w.mu.RUnlock()

	prompt := fmt.Sprintf(
		"Topic: %s\n\nFindings so far:\n%s\nDo these findings fully cover the topic? "+
			"If yes, reply NONE. If not, reply with up to %d additional research queries, one per line.",
		topic, b.String(), maxReviewRounds)
	out, err := w.llm.Generate(ctx, prompt)
	if err != nil {
		w.log.Warn(ctx, "research: progress review failed, accepting findings as-is", "error", err.Error())
		return nil, nil
	}
	if strings.TrimSpace(strings.ToUpper(out)) == "NONE" {
		return nil, nil
	}
	extra := splitNonEmptyLines(out)
	if len(extra) > maxReviewRounds {
		extra = extra[:maxReviewRounds]
	}
	return extra, nil
}

// composeReport builds the final report from the plan->learnings->sources
// template via the LLM, or concatenates "## question\n\nanswer" sections
// prefixed by "# topic" when the LLM is unavailable or fails (section
// 4.10 step 5).
func (w *Workflow) composeReport(ctx context.Context, id string) (string, error) {
	w.mu.RLock()
	t := w.tasks[id]
	topic := t.Topic
	findings := append([]Finding(nil), t.Findings...)
	sources := append([]SourceRef(nil), t.Sources...)
	w.mu.RUnlock()

	if w.llm == nil {
		return fallbackReport(topic, findings), nil
	}

	var learnings strings.Builder
	for _, f := range findings {
		fmt.Fprintf(&learnings, "## %s\n\n%s\n\n", f.Question, f.Answer)
	}
	var refs strings.Builder
	for i, s := range sources {
		fmt.Fprintf(&refs, "[%d] %s (p.%s)\n", i+1, s.FileName, s.PageLabel)
	}
	prompt := fmt.Sprintf(
		"Compose a research report on the topic below using the plan, learnings, and sources provided. "+
			"Cite sources inline as [N] matching the reference list. Structure: an introduction, the "+
			"learnings organized by sub-question, and a references section.\n\n"+
			"# Topic\n%s\n\n# Learnings\n%s\n# Sources\n%s", topic, learnings.String(), refs.String())
	report, err := w.llm.Generate(ctx, prompt)
	if err != nil {
		w.log.Warn(ctx, "research: report composition failed, falling back to concatenation", "error", err.Error())
		return fallbackReport(topic, findings), nil
	}
	return report, nil
}

func fallbackReport(topic string, findings []Finding) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", topic)
	for _, f := range findings {
		fmt.Fprintf(&b, "## %s\n\n%s\n\n", f.Question, f.Answer)
	}
	return b.String()
}

func (w *Workflow) setStatus(id string, status Status, progress int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	t := w.tasks[id]
	t.Status = status
	if progress > t.Progress {
		t.Progress = progress
	}
}

func (w *Workflow) setProgress(id string, progress int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	t := w.tasks[id]
	if progress > t.Progress {
		t.Progress = progress
	}
}

func (w *Workflow) addStep(id, step string, status StepStatus, result, errMsg string) {
	entry := Step{Step: step, Status: status, Result: result, Error: errMsg}
	w.mu.Lock()
	entry.StartedAt = time.Now()
	entry.CompletedAt = entry.StartedAt
	w.tasks[id].Steps = append(w.tasks[id].Steps, entry)
	w.mu.Unlock()

	if w.sink != nil {
		w.sink.Publish(context.Background(), id, entry)
	}
}

func (w *Workflow) fail(id string, step string, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	now := time.Now()
	t := w.tasks[id]
	t.Steps = append(t.Steps, Step{Step: step, Status: StepError, Error: err.Error(), StartedAt: now, CompletedAt: now})
	t.Status = StatusFailed
	t.CompletedAt = now
}

func (w *Workflow) finish(id string, report string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	t := w.tasks[id]
	t.Report = report
	t.Status = StatusCompleted
	t.Progress = progressComplete
	t.CompletedAt = time.Now()
}

func splitNonEmptyLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-*0123456789. ")
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

func concatenateChunks(chunks []retriever.Chunk) string {
	var b strings.Builder
	for _, c := range chunks {
		b.WriteString(c.Text)
		b.WriteString("\n\n")
	}
	return strings.TrimSpace(b.String())
}

func dedupeChunkSources(chunks []retriever.Chunk) []SourceRef {
	seen := make(map[SourceRef]struct{})
	var out []SourceRef
	for _, c := range chunks {
		ref := SourceRef{FileName: c.Metadata.FileName, PageLabel: c.Metadata.PageLabel}
		if _, ok := seen[ref]; ok {
			continue
		}
		seen[ref] = struct{}{}
		out = append(out, ref)
	}
	return out
}

func mergeSources(existing, fresh []SourceRef) []SourceRef {
	seen := make(map[SourceRef]struct{}, len(existing))
	for _, s := range existing {
		seen[s] = struct{}{}
	}
	out := existing
	for _, s := range fresh {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
