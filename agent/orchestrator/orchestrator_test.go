package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	contractx "github.com/voca-labs/voca/agent/contract"
	sessionx "github.com/voca-labs/voca/agent/session"
	toolx "github.com/voca-labs/voca/agent/tool"
	customerx "github.com/voca-labs/voca/customer"
)

type fakeStore struct {
	records    map[string]customerx.Record
	updates    []string
	appended   []string
	failUpdate bool
	failGet    bool
}

func newFakeStore() *fakeStore {
	records := make(map[string]customerx.Record)
	for _, rec := range customerx.SeedRecords() {
		records[rec.CustomerID] = rec
	}
	return &fakeStore{records: records}
}

func (f *fakeStore) Get(ctx context.Context, customerID string) (customerx.Record, error) {
	if f.failGet {
		return customerx.Record{}, errors.New("connection refused")
	}
	rec, ok := f.records[customerID]
	if !ok {
		return customerx.Record{}, fmt.Errorf("%w: id=%s", customerx.ErrNotFound, customerID)
	}
	return rec.Clone(), nil
}

func (f *fakeStore) Update(ctx context.Context, customerID string, field string, value any) error {
	if f.failUpdate {
		return errors.New("disk full")
	}
	rec, ok := f.records[customerID]
	if !ok {
		return fmt.Errorf("%w: id=%s", customerx.ErrNotFound, customerID)
	}
	if err := rec.ApplyUpdate(field, value); err != nil {
		return err
	}
	f.records[customerID] = rec
	f.updates = append(f.updates, fmt.Sprintf("%s=%v", field, value))
	return nil
}

func (f *fakeStore) AddComplaint(ctx context.Context, customerID string, complaint string) (string, error) {
	rec, ok := f.records[customerID]
	if !ok {
		return "", fmt.Errorf("%w: id=%s", customerx.ErrNotFound, customerID)
	}
	rec.Complaint = complaint
	rec.ComplaintID = "COMPTEST0001"
	rec.Resolution = customerx.ResolutionOpen
	f.records[customerID] = rec
	return rec.ComplaintID, nil
}

func (f *fakeStore) AppendConversation(ctx context.Context, customerID string, transcript string) error {
	f.appended = append(f.appended, transcript)
	return nil
}

func (f *fakeStore) RandomID(ctx context.Context) (string, error) {
	return "CUST001", nil
}

type fakeGenerator struct {
	responses []contractx.TurnResponse
	err       error
	requests  []contractx.TurnRequest
	idx       int
}

func (f *fakeGenerator) Respond(ctx context.Context, req contractx.TurnRequest) (contractx.TurnResponse, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return contractx.TurnResponse{}, f.err
	}
	if f.idx >= len(f.responses) {
		return contractx.TurnResponse{}, errors.New("no fake response left")
	}
	resp := f.responses[f.idx]
	f.idx++
	return resp, nil
}

type fakeSummarizer struct {
	sum   contractx.Summary
	err   error
	calls int
}

func (f *fakeSummarizer) Summarize(ctx context.Context, turns []contractx.Turn) (contractx.Summary, error) {
	f.calls++
	if f.err != nil {
		return contractx.Summary{}, f.err
	}
	return f.sum, nil
}

func testClock() func() time.Time {
	now := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	return func() time.Time {
		now = now.Add(time.Second)
		return now
	}
}

func reply(text string) contractx.TurnResponse {
	return contractx.TurnResponse{Message: text}
}

func toolCall(tool string, args map[string]any) contractx.TurnResponse {
	return contractx.TurnResponse{ToolRequests: []contractx.ToolRequest{{Tool: tool, Args: args}}}
}

func newTestOrchestrator(t *testing.T, store *fakeStore, gen *fakeGenerator, sum *fakeSummarizer, cfg Config) *Orchestrator {
	t.Helper()
	if cfg.MaxTurns == 0 {
		cfg.MaxTurns = 30
	}
	if cfg.MaxEmptyTurns == 0 {
		cfg.MaxEmptyTurns = 3
	}
	orch, err := New(cfg, Deps{
		Store:      store,
		Generator:  gen,
		Summarizer: sum,
		Clock:      testClock(),
	}, "CUST001")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return orch
}

func startCall(t *testing.T, orch *Orchestrator) string {
	t.Helper()
	greeting, err := orch.Start(context.Background())
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	return greeting
}

func TestStartGreetsByName(t *testing.T) {
	t.Parallel()

	orch := newTestOrchestrator(t, newFakeStore(), &fakeGenerator{}, &fakeSummarizer{}, Config{})

	greeting := startCall(t, orch)
	if !strings.Contains(greeting, "Alice Johnson") {
		t.Fatalf("greeting %q does not address the customer", greeting)
	}
	if !strings.Contains(greeting, "RichDaddy Incorporation") {
		t.Fatalf("greeting %q missing company introduction", greeting)
	}

	sess := orch.Session()
	if sess.Phase != sessionx.PhaseActive {
		t.Fatalf("phase = %s, want active", sess.Phase)
	}
	if len(sess.Transcript) != 1 || sess.Transcript[0].Speaker != contractx.SpeakerAgent {
		t.Fatalf("unexpected transcript: %#v", sess.Transcript)
	}

	if _, err := orch.Start(context.Background()); err == nil {
		t.Fatal("second Start() must fail")
	}
}

func TestStartUnknownCustomer(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{}
	orch, err := New(Config{MaxTurns: 30, MaxEmptyTurns: 3}, Deps{
		Store:      newFakeStore(),
		Generator:  gen,
		Summarizer: &fakeSummarizer{},
		Clock:      testClock(),
	}, "CUST999")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if _, err := orch.Start(context.Background()); !errors.Is(err, customerx.ErrNotFound) {
		t.Fatalf("Start() error = %v, want ErrNotFound", err)
	}
}

func TestHandleUtteranceNormalTurn(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{responses: []contractx.TurnResponse{reply("Glad to hear it!")}}
	orch := newTestOrchestrator(t, newFakeStore(), gen, &fakeSummarizer{}, Config{})
	startCall(t, orch)

	got, err := orch.HandleUtterance(context.Background(), "doing great, thanks")
	if err != nil {
		t.Fatalf("HandleUtterance() error = %v", err)
	}
	if got != "Glad to hear it!" {
		t.Fatalf("reply = %q", got)
	}

	sess := orch.Session()
	if sess.Done() {
		t.Fatal("session must stay active after a normal turn")
	}
	if len(sess.Transcript) != 3 {
		t.Fatalf("transcript length = %d, want 3", len(sess.Transcript))
	}
	if sess.Transcript[1].Text != "doing great, thanks" {
		t.Fatalf("customer turn = %q", sess.Transcript[1].Text)
	}
	if err := sess.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	if gen.requests[0].Customer.CustomerID != "CUST001" {
		t.Fatal("generator did not receive the customer snapshot")
	}
}

func TestHandleUtteranceToolRound(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	gen := &fakeGenerator{responses: []contractx.TurnResponse{
		toolCall(toolx.ToolUpdateCustomerInfo, map[string]any{
			"customer_id": "CUST001",
			"field":       "payment_method",
			"value":       "paypal",
		}),
		reply("Done, your payment method is now PayPal."),
	}}
	orch := newTestOrchestrator(t, store, gen, &fakeSummarizer{}, Config{})
	startCall(t, orch)

	got, err := orch.HandleUtterance(context.Background(), "please switch me to paypal")
	if err != nil {
		t.Fatalf("HandleUtterance() error = %v", err)
	}
	if got != "Done, your payment method is now PayPal." {
		t.Fatalf("reply = %q", got)
	}

	if store.records["CUST001"].PaymentMethod != "paypal" {
		t.Fatal("tool round did not reach the store")
	}

	if len(gen.requests) != 2 {
		t.Fatalf("generator calls = %d, want 2", len(gen.requests))
	}
	second := gen.requests[1]
	if len(second.ToolResults) != 1 {
		t.Fatalf("tool results = %d, want 1", len(second.ToolResults))
	}
	if second.ToolResults[0].Error != "" {
		t.Fatalf("unexpected tool error: %s", second.ToolResults[0].Error)
	}
}

func TestToolErrorFedBackIntoTurn(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{responses: []contractx.TurnResponse{
		toolCall(toolx.ToolUpdateCustomerInfo, map[string]any{
			"customer_id": "CUST001",
			"field":       "name",
			"value":       "Mallory",
		}),
		reply("I'm sorry, I can't change that for you."),
	}}
	orch := newTestOrchestrator(t, newFakeStore(), gen, &fakeSummarizer{}, Config{})
	startCall(t, orch)

	got, err := orch.HandleUtterance(context.Background(), "change my name please")
	if err != nil {
		t.Fatalf("HandleUtterance() error = %v", err)
	}
	if got != "I'm sorry, I can't change that for you." {
		t.Fatalf("reply = %q", got)
	}

	second := gen.requests[1]
	if len(second.ToolResults) != 1 || second.ToolResults[0].Error == "" {
		t.Fatalf("tool error not fed back: %#v", second.ToolResults)
	}
}

func TestTerminatingUtteranceClosesCall(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	sum := &fakeSummarizer{sum: contractx.Summary{
		Sentiment:   customerx.SentimentPositive,
		OutcomeText: "Customer confirmed the delivery arrived and had no issues.",
	}}
	orch := newTestOrchestrator(t, store, &fakeGenerator{}, sum, Config{})
	startCall(t, orch)

	got, err := orch.HandleUtterance(context.Background(), "thanks, goodbye")
	if err != nil {
		t.Fatalf("HandleUtterance() error = %v", err)
	}
	if !strings.Contains(got, "Thank you for your time") {
		t.Fatalf("closing line = %q", got)
	}

	sess := orch.Session()
	if !sess.Done() {
		t.Fatal("session must be done")
	}
	if sess.Summary == nil || sess.Summary.Sentiment != customerx.SentimentPositive {
		t.Fatalf("summary = %#v", sess.Summary)
	}

	rec := store.records["CUST001"]
	if rec.Sentiment != customerx.SentimentPositive {
		t.Fatalf("persisted sentiment = %s", rec.Sentiment)
	}
	if rec.Review == "" {
		t.Fatal("review was not persisted")
	}
	if len(store.appended) != 1 {
		t.Fatalf("appended transcripts = %d, want 1", len(store.appended))
	}
	if !strings.Contains(store.appended[0], "customer: thanks, goodbye") {
		t.Fatalf("persisted transcript = %q", store.appended[0])
	}

	var lastContactSet bool
	for _, u := range store.updates {
		if strings.HasPrefix(u, "last_contact=") {
			lastContactSet = true
		}
	}
	if !lastContactSet {
		t.Fatal("last contact was not persisted")
	}
}

func TestGeneratorFailureClosesWithApology(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	gen := &fakeGenerator{err: errors.New("model upstream down")}
	orch := newTestOrchestrator(t, store, gen, &fakeSummarizer{sum: contractx.Summary{Sentiment: customerx.SentimentNeutral}}, Config{})
	startCall(t, orch)

	got, err := orch.HandleUtterance(context.Background(), "how is my order doing")
	if err != nil {
		t.Fatalf("HandleUtterance() error = %v", err)
	}
	if !strings.Contains(got, "technical difficulties") {
		t.Fatalf("apology line = %q", got)
	}
	if !orch.Session().Done() {
		t.Fatal("session must be done after a fatal turn")
	}
	if len(store.appended) != 1 {
		t.Fatal("transcript must still be persisted")
	}
}

func TestSecondToolRoundIsRejected(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{responses: []contractx.TurnResponse{
		toolCall(toolx.ToolGetCustomerInfo, map[string]any{"customer_id": "CUST001"}),
		toolCall(toolx.ToolGetCustomerInfo, map[string]any{"customer_id": "CUST001"}),
	}}
	orch := newTestOrchestrator(t, newFakeStore(), gen, &fakeSummarizer{sum: contractx.Summary{Sentiment: customerx.SentimentNeutral}}, Config{})
	startCall(t, orch)

	got, err := orch.HandleUtterance(context.Background(), "what do you have on file")
	if err != nil {
		t.Fatalf("HandleUtterance() error = %v", err)
	}
	if !strings.Contains(got, "technical difficulties") {
		t.Fatalf("reply = %q, want apology", got)
	}
	if !orch.Session().Done() {
		t.Fatal("session must be done")
	}
}

func TestEmptyStreakClosesCall(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{responses: []contractx.TurnResponse{reply("Are you still there?")}}
	sum := &fakeSummarizer{sum: contractx.Summary{Sentiment: customerx.SentimentNeutral}}
	orch := newTestOrchestrator(t, newFakeStore(), gen, sum, Config{MaxEmptyTurns: 2})
	startCall(t, orch)

	got, err := orch.HandleUtterance(context.Background(), "")
	if err != nil {
		t.Fatalf("HandleUtterance() error = %v", err)
	}
	if got != "Are you still there?" {
		t.Fatalf("first silent turn reply = %q", got)
	}

	got, err = orch.HandleUtterance(context.Background(), "  ")
	if err != nil {
		t.Fatalf("HandleUtterance() error = %v", err)
	}
	if !strings.Contains(got, "Thank you for your time") {
		t.Fatalf("second silent turn reply = %q, want closing line", got)
	}
	if !orch.Session().Done() {
		t.Fatal("session must be done after silence limit")
	}
}

func TestSpokenTurnResetsEmptyStreak(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{responses: []contractx.TurnResponse{
		reply("Are you still there?"),
		reply("Great, how can I help?"),
		reply("Still here."),
	}}
	orch := newTestOrchestrator(t, newFakeStore(), gen, &fakeSummarizer{}, Config{MaxEmptyTurns: 2})
	startCall(t, orch)

	if _, err := orch.HandleUtterance(context.Background(), ""); err != nil {
		t.Fatalf("HandleUtterance() error = %v", err)
	}
	if _, err := orch.HandleUtterance(context.Background(), "sorry, I'm here"); err != nil {
		t.Fatalf("HandleUtterance() error = %v", err)
	}
	if _, err := orch.HandleUtterance(context.Background(), ""); err != nil {
		t.Fatalf("HandleUtterance() error = %v", err)
	}
	if orch.Session().Done() {
		t.Fatal("streak must reset after a spoken turn")
	}
}

func TestMaxTurnsClosesCall(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{responses: []contractx.TurnResponse{reply("Tell me more.")}}
	sum := &fakeSummarizer{sum: contractx.Summary{Sentiment: customerx.SentimentNeutral}}
	orch := newTestOrchestrator(t, newFakeStore(), gen, sum, Config{MaxTurns: 2})
	startCall(t, orch)

	if _, err := orch.HandleUtterance(context.Background(), "first thing"); err != nil {
		t.Fatalf("HandleUtterance() error = %v", err)
	}

	got, err := orch.HandleUtterance(context.Background(), "second thing")
	if err != nil {
		t.Fatalf("HandleUtterance() error = %v", err)
	}
	if !strings.Contains(got, "Thank you for your time") {
		t.Fatalf("reply at turn limit = %q", got)
	}
	if !orch.Session().Done() {
		t.Fatal("session must be done at the turn limit")
	}
}

func TestHandleUtteranceAfterDone(t *testing.T) {
	t.Parallel()

	orch := newTestOrchestrator(t, newFakeStore(), &fakeGenerator{}, &fakeSummarizer{}, Config{})
	startCall(t, orch)

	if _, err := orch.HandleUtterance(context.Background(), "goodbye"); err != nil {
		t.Fatalf("HandleUtterance() error = %v", err)
	}

	_, err := orch.HandleUtterance(context.Background(), "wait, one more thing")
	if !errors.Is(err, contractx.ErrSessionDone) {
		t.Fatalf("HandleUtterance() error = %v, want ErrSessionDone", err)
	}
}

func TestHangupSkipsFarewellButPersists(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	gen := &fakeGenerator{responses: []contractx.TurnResponse{reply("Your order is on its way.")}}
	sum := &fakeSummarizer{sum: contractx.Summary{Sentiment: customerx.SentimentNeutral, OutcomeText: "Call dropped mid-conversation."}}
	orch := newTestOrchestrator(t, store, gen, sum, Config{})
	startCall(t, orch)

	if _, err := orch.HandleUtterance(context.Background(), "where is my order"); err != nil {
		t.Fatalf("HandleUtterance() error = %v", err)
	}

	if err := orch.Hangup(context.Background()); err != nil {
		t.Fatalf("Hangup() error = %v", err)
	}

	sess := orch.Session()
	if !sess.Done() {
		t.Fatal("session must be done after hangup")
	}
	last := sess.Transcript[len(sess.Transcript)-1]
	if last.Text != "Your order is on its way." {
		t.Fatalf("hangup appended a closing line: %q", last.Text)
	}
	if len(store.appended) != 1 {
		t.Fatal("transcript must be persisted on hangup")
	}
	if sum.calls != 1 {
		t.Fatalf("summarizer calls = %d, want 1", sum.calls)
	}

	if err := orch.Hangup(context.Background()); err != nil {
		t.Fatalf("repeated Hangup() error = %v", err)
	}
}

// blockingGenerator parks inside Respond until released, so a test can hold a
// turn open while poking the orchestrator from another goroutine.
type blockingGenerator struct {
	started chan struct{}
	release chan struct{}
	reply   string
}

func (g *blockingGenerator) Respond(ctx context.Context, req contractx.TurnRequest) (contractx.TurnResponse, error) {
	close(g.started)
	<-g.release
	return contractx.TurnResponse{Message: g.reply}, nil
}

func TestHangupWaitsForInFlightTurn(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	gen := &blockingGenerator{
		started: make(chan struct{}),
		release: make(chan struct{}),
		reply:   "Your order ships tomorrow.",
	}
	sum := &fakeSummarizer{sum: contractx.Summary{Sentiment: customerx.SentimentNeutral}}
	orch, err := New(Config{MaxTurns: 30, MaxEmptyTurns: 3}, Deps{
		Store:      store,
		Generator:  gen,
		Summarizer: sum,
		Clock:      testClock(),
	}, "CUST001")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	startCall(t, orch)

	turnDone := make(chan struct{})
	var turnReply string
	var turnErr error
	go func() {
		turnReply, turnErr = orch.HandleUtterance(context.Background(), "where is my order")
		close(turnDone)
	}()
	<-gen.started

	hangupDone := make(chan struct{})
	go func() {
		if err := orch.Hangup(context.Background()); err != nil {
			t.Errorf("Hangup() error = %v", err)
		}
		close(hangupDone)
	}()

	select {
	case <-hangupDone:
		t.Fatal("hangup completed while a turn was still in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(gen.release)
	<-turnDone
	<-hangupDone

	if turnErr != nil {
		t.Fatalf("HandleUtterance() error = %v", turnErr)
	}
	if turnReply != "Your order ships tomorrow." {
		t.Fatalf("reply = %q", turnReply)
	}
	if !orch.Done() {
		t.Fatal("session must be done after hangup")
	}

	sess := orch.Session()
	last := sess.Transcript[len(sess.Transcript)-1]
	if last.Text != "Your order ships tomorrow." {
		t.Fatalf("hangup ran before the turn's reply landed: %q", last.Text)
	}
	if len(store.appended) != 1 {
		t.Fatalf("appended transcripts = %d, want 1", len(store.appended))
	}
	if !strings.Contains(store.appended[0], "Your order ships tomorrow.") {
		t.Fatalf("persisted transcript is missing the in-flight reply: %q", store.appended[0])
	}
}

func TestRepeatPromptEntersTranscript(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	sum := &fakeSummarizer{sum: contractx.Summary{Sentiment: customerx.SentimentNeutral}}
	orch := newTestOrchestrator(t, store, &fakeGenerator{}, sum, Config{})
	startCall(t, orch)

	line, err := orch.PromptRepeat()
	if err != nil {
		t.Fatalf("PromptRepeat() error = %v", err)
	}
	if !strings.Contains(line, "Could you please repeat") {
		t.Fatalf("repeat prompt = %q", line)
	}

	sess := orch.Session()
	last := sess.Transcript[len(sess.Transcript)-1]
	if last.Speaker != contractx.SpeakerAgent || last.Text != line {
		t.Fatalf("repeat prompt not recorded as an agent turn: %#v", last)
	}

	if _, err := orch.HandleUtterance(context.Background(), "goodbye"); err != nil {
		t.Fatalf("HandleUtterance() error = %v", err)
	}
	if len(store.appended) != 1 || !strings.Contains(store.appended[0], line) {
		t.Fatalf("persisted transcript is missing the repeat prompt: %#v", store.appended)
	}

	if _, err := orch.PromptRepeat(); !errors.Is(err, contractx.ErrSessionDone) {
		t.Fatalf("PromptRepeat() after done error = %v, want ErrSessionDone", err)
	}
}

func TestResolvedComplaintUpdatesRecord(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	rec := store.records["CUST001"]
	rec.Complaint = "apples were bruised"
	rec.ComplaintID = "COMPTEST0001"
	rec.Resolution = customerx.ResolutionOpen
	store.records["CUST001"] = rec

	sum := &fakeSummarizer{sum: contractx.Summary{
		Sentiment:         customerx.SentimentPositive,
		OutcomeText:       "Complaint about bruised apples was settled with a refund.",
		ResolvedComplaint: true,
	}}
	orch := newTestOrchestrator(t, store, &fakeGenerator{}, sum, Config{})
	startCall(t, orch)

	if _, err := orch.HandleUtterance(context.Background(), "all sorted, goodbye"); err != nil {
		t.Fatalf("HandleUtterance() error = %v", err)
	}

	if store.records["CUST001"].Resolution != customerx.ResolutionResolved {
		t.Fatalf("resolution = %s, want resolved", store.records["CUST001"].Resolution)
	}
}

func TestPersistFailureStillReachesDone(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.failUpdate = true
	sum := &fakeSummarizer{sum: contractx.Summary{Sentiment: customerx.SentimentNeutral}}
	orch := newTestOrchestrator(t, store, &fakeGenerator{}, sum, Config{})
	startCall(t, orch)

	got, err := orch.HandleUtterance(context.Background(), "goodbye")
	if err != nil {
		t.Fatalf("HandleUtterance() error = %v", err)
	}
	if !strings.Contains(got, "Thank you for your time") {
		t.Fatalf("closing line = %q", got)
	}
	if !orch.Session().Done() {
		t.Fatal("write failures must not block the session from finishing")
	}
}

func TestSummarizerFailureFallsBackToHeuristic(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	sum := &fakeSummarizer{err: errors.New("summarizer down")}
	orch := newTestOrchestrator(t, store, &fakeGenerator{}, sum, Config{})
	startCall(t, orch)

	if _, err := orch.HandleUtterance(context.Background(), "I am unhappy, goodbye"); err != nil {
		t.Fatalf("HandleUtterance() error = %v", err)
	}

	sess := orch.Session()
	if sess.Summary == nil {
		t.Fatal("summary must be set even when the summarizer fails")
	}
	if sess.Summary.Sentiment != customerx.SentimentNegative {
		t.Fatalf("fallback sentiment = %s, want negative", sess.Summary.Sentiment)
	}
}

func TestSnapshotRefreshFailureUsesCachedRecord(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	gen := &fakeGenerator{responses: []contractx.TurnResponse{reply("Your apples shipped yesterday.")}}
	orch := newTestOrchestrator(t, store, gen, &fakeSummarizer{}, Config{})
	startCall(t, orch)

	store.failGet = true

	got, err := orch.HandleUtterance(context.Background(), "where is my order")
	if err != nil {
		t.Fatalf("HandleUtterance() error = %v", err)
	}
	if got != "Your apples shipped yesterday." {
		t.Fatalf("reply = %q", got)
	}
	if gen.requests[0].Customer.CustomerID != "CUST001" {
		t.Fatal("cached snapshot was not used")
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	if err := (Config{MaxTurns: 30, MaxEmptyTurns: 3}).Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if err := (Config{MaxTurns: 0, MaxEmptyTurns: 3}).Validate(); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("Validate() error = %v, want ErrValidation", err)
	}
	if err := (Config{MaxTurns: 30, MaxEmptyTurns: -1}).Validate(); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("Validate() error = %v, want ErrValidation", err)
	}
}
