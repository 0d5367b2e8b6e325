package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/trioagent/trio/internal/logging"
	"github.com/trioagent/trio/pkg/types"
)

// Retry tuning for streamWithRetry, the same constants (names aside) as the
// teacher's session/loop.go newRetryBackoff.
const (
	streamMaxRetries          = 3
	streamRetryInitialInterval = time.Second
	streamRetryMaxInterval     = 15 * time.Second
	streamRetryMaxElapsedTime  = time.Minute
)

// newStreamRetryBackoff builds an exponential backoff with jitter for model
// roundtrip retries, field-for-field the same construction as the teacher's
// newRetryBackoff (context-aware cancellation, bounded retry count).
func newStreamRetryBackoff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = streamRetryInitialInterval
	b.MaxInterval = streamRetryMaxInterval
	b.MaxElapsedTime = streamRetryMaxElapsedTime
	b.RandomizationFactor = 0.5
	b.Multiplier = 2.0
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, streamMaxRetries), ctx)
}

// streamWithRetry wraps one chatModel.Stream call in the backoff above so a
// handful of transient failures (connection resets, 5xx) are absorbed before
// the session gives up and emits a ProviderError-shaped message (spec.md §7).
func streamWithRetry(ctx context.Context, chatModel model.ToolCallingChatModel, history []*schema.Message) (*schema.StreamReader[*schema.Message], error) {
	var stream *schema.StreamReader[*schema.Message]
	err := backoff.Retry(func() error {
		s, err := chatModel.Stream(ctx, history)
		if err != nil {
			logging.Warn().Err(err).Msg("provider: stream call failed, retrying")
			return err
		}
		stream = s
		return nil
	}, newStreamRetryBackoff(ctx))
	return stream, err
}

// baseProvider implements the session-construction half of Provider; each
// concrete provider (AnthropicProvider, OpenAIProvider, ArkProvider) embeds
// it and supplies only its own chat-model wiring.
type baseProvider struct {
	id        string
	name      string
	chatModel model.ToolCallingChatModel
}

func (p *baseProvider) ID() string                          { return p.id }
func (p *baseProvider) Name() string                        { return p.name }
func (p *baseProvider) ChatModel() model.ToolCallingChatModel { return p.chatModel }

func (p *baseProvider) CreateOneShotSession(ctx context.Context, cfg OneShotConfig) (AgentSession, error) {
	chatModel := p.chatModel
	sess := newEinoSession(p.id, chatModel, cfg.SystemPrompt, cfg.MaxTurns, "", nil, nil)
	sess.oneShot = true
	return sess, nil
}

func (p *baseProvider) CreateStreamingSession(ctx context.Context, cfg StreamingConfig) (StreamingSession, error) {
	chatModel := p.chatModel
	allTools := make([]*ToolDefinition, 0, len(cfg.AdditionalMCPTools)+len(cfg.DomainTools))
	allTools = append(allTools, cfg.DomainTools...)
	allTools = append(allTools, cfg.AdditionalMCPTools...)
	if len(allTools) > 0 {
		tools := toEinoToolInfo(allTools)
		bound, err := chatModel.WithTools(tools)
		if err != nil {
			return nil, &ProviderError{Provider: p.id, Op: "model", Err: fmt.Errorf("bind tools: %w", err)}
		}
		chatModel = bound
	}
	sess := newEinoSession(p.id, chatModel, cfg.SystemPrompt, cfg.MaxTurns, string(cfg.Role), cfg.CanUseTool, cfg.Execute)
	return sess, nil
}

// maxStepsPerTurn bounds the number of model-roundtrip/tool-execution cycles
// within a single Turn (spec.md §9 "Turn"), independent of maxTurns which
// gates how many SendMessage/PushText exchanges the session accepts overall.
const maxStepsPerTurn = 50

// einoSession backs both AgentSession and StreamingSession. A one-shot
// session runs a single turn and closes; a streaming session stays alive
// across PushText calls until End or MaxTurns is exhausted (spec.md
// "Session lifecycle"). Interrupt cancels only the turn in flight.
type einoSession struct {
	providerID   string
	chatModel    model.ToolCallingChatModel
	systemPrompt string
	maxTurns     int
	role         string
	canUseTool   CanUseTool
	execute      ToolExecutor
	oneShot      bool

	mu        sync.Mutex
	history   []*schema.Message
	ended     bool
	runCancel context.CancelFunc

	msgCh   chan types.AgentMessage
	inputCh chan string

	loopCtx    context.Context
	loopCancel context.CancelFunc
	startLoop  sync.Once
}

func newEinoSession(providerID string, chatModel model.ToolCallingChatModel, systemPrompt string, maxTurns int, role string, canUseTool CanUseTool, execute ToolExecutor) *einoSession {
	loopCtx, loopCancel := context.WithCancel(context.Background())
	s := &einoSession{
		providerID:   providerID,
		chatModel:    chatModel,
		systemPrompt: systemPrompt,
		maxTurns:     maxTurns,
		role:         role,
		canUseTool:   canUseTool,
		execute:      execute,
		msgCh:        make(chan types.AgentMessage, 16),
		inputCh:      make(chan string, 1),
		loopCtx:      loopCtx,
		loopCancel:   loopCancel,
	}
	if systemPrompt != "" {
		s.history = append(s.history, schema.SystemMessage(systemPrompt))
	}
	return s
}

func (s *einoSession) Messages() <-chan types.AgentMessage { return s.msgCh }

func (s *einoSession) SendMessage(ctx context.Context, text string) error {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return fmt.Errorf("provider: session already ended")
	}
	s.mu.Unlock()

	s.startLoop.Do(func() { go s.loop() })

	select {
	case s.inputCh <- text:
		return nil
	case <-s.loopCtx.Done():
		return fmt.Errorf("provider: session already ended")
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *einoSession) PushText(ctx context.Context, text string) error {
	if s.oneShot {
		return fmt.Errorf("provider: one-shot session does not accept additional input")
	}
	return s.SendMessage(ctx, text)
}

func (s *einoSession) Interrupt() error {
	s.mu.Lock()
	cancel := s.runCancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return nil
}

func (s *einoSession) End() error {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return nil
	}
	s.ended = true
	s.mu.Unlock()
	s.loopCancel()
	return nil
}

// emit delivers m unless the session has been torn down; without the
// loopCtx escape a consumer that stopped ranging over Messages() would pin
// this goroutine forever.
func (s *einoSession) emit(m types.AgentMessage) bool {
	select {
	case s.msgCh <- m:
		return true
	case <-s.loopCtx.Done():
		return false
	}
}

// loop is the session's single input-consuming goroutine: one PushText is one
// Turn (spec.md §9), turns never overlap, and msgCh closes when the session
// dies so every consumer's range loop exits. A one-shot session handles
// exactly one input.
func (s *einoSession) loop() {
	defer close(s.msgCh)

	turn := 0
	for {
		var text string
		select {
		case <-s.loopCtx.Done():
			return
		case text = <-s.inputCh:
		}

		turn++
		if s.maxTurns > 0 && turn > s.maxTurns {
			s.emit(types.AgentMessage{Role: types.RoleSystem, System: types.SystemTurnLimitReached})
			return
		}

		s.mu.Lock()
		s.history = append(s.history, schema.UserMessage(text))
		s.mu.Unlock()

		runCtx, cancel := context.WithCancel(s.loopCtx)
		s.mu.Lock()
		s.runCancel = cancel
		s.mu.Unlock()

		s.runTurn(runCtx)
		cancel()

		if s.oneShot {
			return
		}
	}
}

// runTurn streams the model's reply and, for every approved tool call,
// executes it and feeds the result back for as many steps as the model keeps
// calling tools (bounded by maxStepsPerTurn), mirroring the teacher's
// runLoop step loop in session/loop.go. One Turn (spec.md §9) therefore spans
// possibly many model roundtrips and ends in exactly one Result, except that a
// failed roundtrip ends it with one assistant_error System message instead and
// a cancelled turn ends without either.
func (s *einoSession) runTurn(ctx context.Context) {
	for step := 0; step < maxStepsPerTurn; step++ {
		s.mu.Lock()
		history := append([]*schema.Message(nil), s.history...)
		s.mu.Unlock()

		stream, err := streamWithRetry(ctx, s.chatModel, history)
		if err != nil {
			if ctx.Err() == nil {
				s.emit(errorMessage(err))
			}
			return
		}

		reply, toolCalls, err := s.accumulate(ctx, stream)
		stream.Close()
		if err != nil {
			if ctx.Err() == nil {
				s.emit(errorMessage(err))
			}
			return
		}

		s.mu.Lock()
		s.history = append(s.history, reply)
		s.mu.Unlock()

		if len(toolCalls) == 0 {
			s.emit(types.AgentMessage{Role: types.RoleResult})
			return
		}

		s.runToolCalls(ctx, toolCalls)
	}

	s.emit(types.AgentMessage{Role: types.RoleResult})
}

// runToolCalls executes every approved tool call, appending its result to
// history as a schema.ToolMessage (so the next roundtrip sees it) and
// emitting the corresponding User/ToolResult AgentMessage the Driver's/
// Navigator's ToolTracker matches against the earlier ToolUse by id.
func (s *einoSession) runToolCalls(ctx context.Context, toolCalls []types.ToolUse) {
	for _, use := range toolCalls {
		var output string
		var isError bool
		if s.execute != nil {
			output, isError = s.execute(ctx, use.Name, use.Input)
		} else {
			output, isError = "", true
		}

		s.mu.Lock()
		s.history = append(s.history, &schema.Message{
			Role:       schema.Tool,
			Content:    output,
			ToolCallID: use.ID,
		})
		s.mu.Unlock()

		s.emit(types.AgentMessage{
			Role: types.RoleUser,
			User: []types.ToolResult{{ToolUseID: use.ID, Text: output, IsError: isError}},
		})
	}
}

type toolAccumulator struct {
	use   types.ToolUse
	input strings.Builder
}

// accumulate drains the stream, emitting one AgentMessage item per non-empty
// text chunk as it arrives and folding completed tool calls through canUseTool, mirroring
// the teacher's index-keyed delta accumulation in session/stream.go. It
// returns the reply (for history) and the subset of tool calls canUseTool
// approved (for execution).
func (s *einoSession) accumulate(ctx context.Context, stream *schema.StreamReader[*schema.Message]) (*schema.Message, []types.ToolUse, error) {
	var textBuilder strings.Builder
	tools := make(map[int]*toolAccumulator)
	var toolOrder []int

	for {
		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		default:
		}

		chunk, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, err
		}

		if chunk.Content != "" {
			textBuilder.WriteString(chunk.Content)
			s.emit(types.AgentMessage{
				Role:      types.RoleAssistant,
				Assistant: []types.ContentItem{{Text: chunk.Content}},
			})
		}

		for _, tc := range chunk.ToolCalls {
			idx := 0
			if tc.Index != nil {
				idx = *tc.Index
			}
			acc, ok := tools[idx]
			if !ok {
				acc = &toolAccumulator{use: types.ToolUse{ID: tc.ID, Name: tc.Function.Name}}
				tools[idx] = acc
				toolOrder = append(toolOrder, idx)
			}
			if tc.ID != "" {
				acc.use.ID = tc.ID
			}
			if tc.Function.Name != "" {
				acc.use.Name = tc.Function.Name
			}
			if tc.Function.Arguments != "" {
				acc.input.WriteString(tc.Function.Arguments)
			}
		}
	}

	reply := &schema.Message{Role: schema.Assistant, Content: textBuilder.String()}
	var approved []types.ToolUse

	for _, idx := range toolOrder {
		acc := tools[idx]
		var input map[string]any
		if raw := acc.input.String(); raw != "" {
			if err := json.Unmarshal([]byte(raw), &input); err != nil {
				logging.Warn().Err(err).Str("tool", acc.use.Name).Msg("provider: malformed tool input JSON")
			}
		}
		acc.use.Input = input

		if s.canUseTool != nil {
			decision, err := s.canUseTool(ctx, acc.use.Name, input)
			if err != nil {
				return nil, nil, err
			}
			if !decision.Allow {
				s.emit(types.AgentMessage{
					Role:   types.RoleSystem,
					System: types.SystemPermissionDenied,
					Error:  decision.Reason,
				})
				continue
			}
			if decision.UpdatedInput != nil {
				acc.use.Input = decision.UpdatedInput
				input = decision.UpdatedInput
			}
		}

		inputJSON, _ := json.Marshal(input)
		reply.ToolCalls = append(reply.ToolCalls, schema.ToolCall{
			ID: acc.use.ID,
			Function: schema.FunctionCall{
				Name:      acc.use.Name,
				Arguments: string(inputJSON),
			},
		})
		s.emit(types.AgentMessage{
			Role:      types.RoleAssistant,
			Assistant: []types.ContentItem{{ToolUse: &acc.use}},
		})
		approved = append(approved, acc.use)
	}

	return reply, approved, nil
}

func errorMessage(err error) types.AgentMessage {
	return types.AgentMessage{
		Role:   types.RoleSystem,
		System: types.SystemAssistantError,
		Error:  err.Error(),
	}
}
