package chat

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yanqian/ocean-insight/internal/domain/aggregation"
	"github.com/yanqian/ocean-insight/internal/domain/ocean"
	"github.com/yanqian/ocean-insight/internal/domain/query"
	apperrors "github.com/yanqian/ocean-insight/pkg/errors"
	"github.com/yanqian/ocean-insight/pkg/metrics"
	"github.com/yanqian/ocean-insight/pkg/util"
)

const (
	persistTimeout = 5 * time.Second
	eventBuffer    = 4
)

// Service answers research questions over live ocean data.
type Service interface {
	// Stream runs the pipeline and returns its event stream. Input errors
	// are returned directly; every later failure arrives as an error event.
	Stream(ctx context.Context, req Request) (<-chan StreamEvent, error)
	// Respond runs the pipeline and returns the whole answer.
	Respond(ctx context.Context, req Request) (Response, error)
	// Inspect resolves, classifies and fetches without generating.
	Inspect(ctx context.Context, req Request) (Inspection, error)
	// HandleJob executes background jobs enqueued by the service.
	HandleJob(ctx context.Context, name string, payload map[string]any) error
}

type service struct {
	cfg        Config
	resolver   *query.Resolver
	classifier *query.Classifier
	fetcher    aggregation.Fetcher
	assembler  *Assembler
	generators []Generator
	history    HistoryStore
	queue      JobQueue
	storage    ObjectStorage
	metrics    *metrics.Recorder
	clock      util.Clock
	logger     *slog.Logger
}

// NewService is a wire provider for the chat domain. generators are tried
// in order; history, queue and storage may be nil.
func NewService(cfg Config, resolver *query.Resolver, classifier *query.Classifier, fetcher aggregation.Fetcher, assembler *Assembler, generators []Generator, history HistoryStore, queue JobQueue, storage ObjectStorage, recorder *metrics.Recorder, logger *slog.Logger) Service {
	return &service{
		cfg:        cfg.withDefaults(),
		resolver:   resolver,
		classifier: classifier,
		fetcher:    fetcher,
		assembler:  assembler,
		generators: generators,
		history:    history,
		queue:      queue,
		storage:    storage,
		metrics:    recorder,
		clock:      util.NowUTC,
		logger:     logger.With("component", "chat.service"),
	}
}

// prepared is everything known before generation starts.
type prepared struct {
	req            Request
	mode           query.Mode
	conversationID string
	region         ocean.Region
	classification query.Classification
	data           ocean.AggregatedDataset
	fetched        bool
	history        []Turn
	now            time.Time
}

func (s *service) validate(req Request) (Request, query.Mode, error) {
	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		return req, "", apperrors.Wrap(apperrors.CodeInvalidInput, "message cannot be empty", nil)
	}
	mode, err := query.ParseMode(req.Context)
	if err != nil {
		return req, "", apperrors.Wrap(apperrors.CodeInvalidInput, "context must be analysis or research", err)
	}
	req.ConversationID = strings.TrimSpace(req.ConversationID)
	return req, mode, nil
}

// understand resolves the region and classifies the question.
func (s *service) understand(req Request, mode query.Mode) prepared {
	now := s.clock()
	p := prepared{req: req, mode: mode, conversationID: req.ConversationID, now: now}
	if p.conversationID == "" {
		p.conversationID = uuid.NewString()
	}
	p.region = s.resolver.Resolve(req.Message)
	p.classification = s.classifier.Classify(req.Message, mode, now)
	p.data = ocean.NewAggregatedDataset(p.region)
	return p
}

// gather fetches data unless the question is ambiguous, then loads history.
func (s *service) gather(ctx context.Context, p *prepared) {
	if !p.classification.Ambiguous && p.classification.Domains.Len() > 0 {
		p.data = s.fetcher.Fetch(ctx, aggregation.Plan{
			Region:  p.region,
			Domains: p.classification.Domains,
			Windows: p.classification.Windows,
		})
		p.fetched = true
	} else {
		s.logger.Debug("no ocean domains matched, skipping fetch", "conversation_id", p.conversationID)
	}
	p.history = s.loadHistory(ctx, p.conversationID)
}

func (s *service) loadHistory(ctx context.Context, conversationID string) []Turn {
	if s.history == nil {
		return nil
	}
	turns, err := s.history.Recent(ctx, conversationID, s.cfg.MaxHistoryTurns)
	if err != nil {
		s.logger.Warn("load conversation history failed", "conversation_id", conversationID, "error", err)
		return nil
	}
	return turns
}

func (s *service) prompt(p prepared) string {
	return s.assembler.Build(p.req.Message, p.data, p.history, p.now)
}

func (s *service) Stream(ctx context.Context, req Request) (<-chan StreamEvent, error) {
	req, mode, err := s.validate(req)
	if err != nil {
		return nil, err
	}
	em := newEmitter(ctx, eventBuffer)
	go s.run(ctx, em, s.understand(req, mode))
	return em.events(), nil
}

func (s *service) run(ctx context.Context, em *emitter, p prepared) {
	kind := EventDone
	defer func() { s.metrics.StreamTerminated(string(kind)) }()

	_ = em.advance(StateFetching)
	s.gather(ctx, &p)
	if p.fetched {
		data := p.data
		if err := em.metadata(Meta{OceanData: &data}); err != nil {
			kind = EventError
			_ = em.fail("request cancelled", err)
			return
		}
	}

	prompt := s.prompt(p)
	_ = em.advance(StateGenerating)

	genCtx, cancel := s.generationContext(ctx)
	defer cancel()

	started, err := s.start(genCtx, prompt, true)
	if err != nil {
		kind = EventError
		s.logger.Error("no generator available", "conversation_id", p.conversationID, "error", err)
		_ = em.fail(apperrors.MessageOf(err), err)
		return
	}
	if err := em.metadata(Meta{ModelUsed: started.model}); err != nil {
		kind = EventError
		started.close()
		_ = em.fail("request cancelled", err)
		return
	}

	answer, err := s.pump(em, started)
	if err != nil {
		kind = EventError
		if !errors.Is(err, ErrStreamTerminated) {
			s.logger.Error("generation failed", "conversation_id", p.conversationID, "model", started.model, "error", err)
			_ = em.fail(apperrors.MessageOf(err), err)
		}
		return
	}

	if p.mode == query.ModeResearch {
		if refs := references(p.data); len(refs) > 0 {
			if err := em.metadata(Meta{References: refs}); err != nil {
				kind = EventError
				_ = em.fail("request cancelled", err)
				return
			}
		}
	}
	if err := em.done(); err != nil {
		s.logger.Debug("stream reader left before done", "conversation_id", p.conversationID)
		return
	}
	s.finish(ctx, p, answer)
}

// pump forwards generated text as content events and returns the full
// answer.
func (s *service) pump(em *emitter, started startedGenerator) (string, error) {
	var answer strings.Builder
	if started.stream == nil {
		for _, chunk := range Segment(started.text, s.cfg.WordsPerChunk) {
			if err := em.content(chunk); err != nil {
				return "", s.cancelled(err)
			}
			answer.WriteString(chunk)
		}
		return answer.String(), nil
	}

	defer started.stream.Close()
	for {
		chunk, err := started.stream.Recv()
		if errors.Is(err, io.EOF) {
			if reporter, ok := started.stream.(UsageReporter); ok {
				s.metrics.TokensUsed(started.model, reporter.Usage())
			}
			return answer.String(), nil
		}
		if err != nil {
			return "", apperrors.Wrap(apperrors.CodeGeneratorError, "generation failed", err)
		}
		if chunk == "" {
			continue
		}
		if err := em.content(chunk); err != nil {
			return "", s.cancelled(err)
		}
		answer.WriteString(chunk)
	}
}

func (s *service) cancelled(err error) error {
	if errors.Is(err, ErrStreamTerminated) {
		return err
	}
	return apperrors.Wrap(apperrors.CodeGeneratorError, "request cancelled", err)
}

func (s *service) Respond(ctx context.Context, req Request) (Response, error) {
	req, mode, err := s.validate(req)
	if err != nil {
		return Response{}, err
	}
	p := s.understand(req, mode)
	s.gather(ctx, &p)
	prompt := s.prompt(p)

	genCtx, cancel := s.generationContext(ctx)
	defer cancel()
	started, err := s.start(genCtx, prompt, false)
	if err != nil {
		s.logger.Error("no generator available", "conversation_id", p.conversationID, "error", err)
		return Response{}, err
	}
	answer := strings.TrimSpace(started.text)
	if answer == "" {
		return Response{}, apperrors.Wrap(apperrors.CodeGeneratorError, "generator returned an empty answer", nil)
	}

	resp := Response{
		Response:       answer,
		Model:          started.model,
		Mode:           mode,
		Timestamp:      p.now,
		ConversationID: p.conversationID,
	}
	if p.fetched {
		data := p.data
		resp.OceanData = &data
	}
	if mode == query.ModeResearch {
		resp.References = references(p.data)
	}
	if !started.usage.IsZero() {
		usage := started.usage
		resp.Usage = &usage
	}
	s.metrics.TokensUsed(started.model, started.usage)
	s.finish(ctx, p, answer)
	return resp, nil
}

func (s *service) Inspect(ctx context.Context, req Request) (Inspection, error) {
	req, mode, err := s.validate(req)
	if err != nil {
		return Inspection{}, err
	}
	p := s.understand(req, mode)
	if !p.classification.Ambiguous {
		p.data = s.fetcher.Fetch(ctx, aggregation.Plan{
			Region:  p.region,
			Domains: p.classification.Domains,
			Windows: p.classification.Windows,
		})
	}
	return Inspection{Region: p.region, Classification: p.classification, OceanData: p.data}, nil
}

func (s *service) generationContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.GenerationTimeout > 0 {
		return context.WithTimeout(ctx, s.cfg.GenerationTimeout)
	}
	return context.WithCancel(ctx)
}

type startedGenerator struct {
	model  string
	stream ChunkStream
	text   string
	usage  metrics.TokenUsage
}

func (g startedGenerator) close() {
	if g.stream != nil {
		_ = g.stream.Close()
	}
}

// start walks the generator chain and returns the first one that starts.
func (s *service) start(ctx context.Context, prompt string, streaming bool) (startedGenerator, error) {
	if len(s.generators) == 0 {
		return startedGenerator{}, apperrors.Wrap(apperrors.CodeGeneratorUnavailable, "no language model configured", nil)
	}
	var errs []error
	for _, gen := range s.generators {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		if sg, ok := gen.(StreamingGenerator); ok && streaming {
			stream, err := sg.Stream(ctx, prompt)
			if err == nil {
				return startedGenerator{model: gen.Name(), stream: stream}, nil
			}
			s.logger.Warn("generator stream failed to start", "model", gen.Name(), "error", err)
			errs = append(errs, err)
			continue
		}
		completion, err := gen.Generate(ctx, prompt)
		if err == nil {
			return startedGenerator{model: gen.Name(), text: completion.Text, usage: completion.Usage}, nil
		}
		s.logger.Warn("generator failed", "model", gen.Name(), "error", err)
		errs = append(errs, err)
	}
	return startedGenerator{}, apperrors.Wrap(apperrors.CodeGeneratorUnavailable, "language model unavailable", errors.Join(errs...))
}

// references cites every domain served with live data, in canonical order.
func references(data ocean.AggregatedDataset) []Reference {
	var refs []Reference
	for _, domain := range data.Succeeded.List() {
		info := data.Sources[domain]
		refs = append(refs, Reference{Domain: domain, Label: info.Label, URL: data.PerDomain[domain].SourceURL})
	}
	return refs
}

// finish persists the exchange and archives research snapshots. It runs
// after the caller has its answer, so it is detached from cancellation.
func (s *service) finish(ctx context.Context, p prepared, answer string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	if s.history != nil {
		now := s.clock()
		err := s.history.Append(ctx,
			Turn{ConversationID: p.conversationID, Role: RoleUser, Content: p.req.Message, TokenCount: s.assembler.Count(p.req.Message), CreatedAt: p.now},
			Turn{ConversationID: p.conversationID, Role: RoleAssistant, Content: answer, TokenCount: s.assembler.Count(answer), CreatedAt: now},
		)
		if err != nil {
			s.logger.Warn("persist conversation failed", "conversation_id", p.conversationID, "error", err)
		}
	}

	if p.mode == query.ModeResearch && p.fetched && s.cfg.ArchiveEnabled {
		s.enqueueSnapshot(ctx, p)
	}
}
