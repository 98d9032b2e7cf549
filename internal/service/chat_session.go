package service

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/mitcstore/mitc-api/internal/dto"
)

// ErrSessionClosed is returned by Next once the session has been closed.
var ErrSessionClosed = errors.New("chat session closed")

const sessionFrameBuffer = 64

type stream int

const (
	streamControl stream = iota
	streamThreads
	streamMessages
	streamFeedEnded
	streamRebind
)

type sessionFrame struct {
	stream     stream
	generation uint64
	frame      dto.Frame
	identity   Identity
	err        error
}

// IdentityRefresher re-reads the identity behind a session from its token and profile.
// It returns ErrUnauthenticated once the token is revoked or the account is gone.
type IdentityRefresher func(ctx context.Context, userID string) (Identity, error)

// SessionOptions tunes a chat session.
type SessionOptions struct {
	RatePerSecond float64
	Burst         int
}

// Session is the state of one chat client: who it is, the live thread list and
// the feed of the active thread. It holds at most one subscription per stream.
type Session struct {
	service ChatService
	logger  zerolog.Logger
	limiter *rate.Limiter

	ctx    context.Context
	cancel context.CancelFunc
	out    chan sessionFrame

	mu           sync.Mutex
	identity     Identity
	threads      *forwarder
	threadsGen   uint64
	activeThread string
	messages     *forwarder
	messagesGen  uint64
	refresh      IdentityRefresher
	watch        *forwarder
	watchGen     uint64
	closed       bool
}

type forwarder struct {
	stop func()
	done chan struct{}
}

// NewSession starts an empty session bound to parent.
func NewSession(parent context.Context, service ChatService, opts SessionOptions, logger zerolog.Logger) *Session {
	if opts.RatePerSecond <= 0 {
		opts.RatePerSecond = 5
	}
	if opts.Burst <= 0 {
		opts.Burst = 10
	}

	ctx, cancel := context.WithCancel(parent)
	return &Session{
		service: service,
		logger:  logger.With().Str("component", "chat_session").Logger(),
		limiter: rate.NewLimiter(rate.Limit(opts.RatePerSecond), opts.Burst),
		ctx:     ctx,
		cancel:  cancel,
		out:     make(chan sessionFrame, sessionFrameBuffer),
	}
}

// Identity returns the identity bound to the session.
func (s *Session) Identity() Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

// ActiveThread returns the id of the active thread, empty when none.
func (s *Session) ActiveThread() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeThread
}

// WatchIdentity makes the session follow role changes and revocations of its user.
// Call it before SetIdentity.
func (s *Session) WatchIdentity(refresh IdentityRefresher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refresh = refresh
}

// SetIdentity rebinds the session. The previous thread list subscription is cancelled
// before a new one is opened. Any change of user or role also detaches the active thread.
func (s *Session) SetIdentity(identity Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	return s.bindLocked(identity)
}

func (s *Session) bindLocked(identity Identity) error {
	if identity != s.identity {
		s.stopMessagesLocked()
		if s.activeThread != "" {
			s.activeThread = ""
			s.emitLocked(streamControl, 0, dto.NewActiveThreadFrame(""))
		}
	}
	if identity.UserID != s.identity.UserID {
		s.stopWatchLocked()
	}
	s.stopThreadsLocked()
	s.identity = identity

	if !identity.Authenticated() {
		return nil
	}
	if s.watch == nil {
		s.startWatchLocked(identity.UserID)
	}

	sub, err := s.service.ListThreads(s.ctx, identity)
	if err != nil {
		return err
	}
	s.threadsGen++
	generation := s.threadsGen
	s.threads = s.forward(func(ctx context.Context) {
		for snapshot := range sub.Updates() {
			if !s.send(ctx, sessionFrame{stream: streamThreads, generation: generation, frame: dto.NewThreadsFrame(snapshot)}) {
				return
			}
		}
	}, sub.Cancel)
	return nil
}

// SetActiveThread attaches the message feed of threadID. The same id is a no-op and an
// empty id detaches the current feed.
func (s *Session) SetActiveThread(threadID string) error {
	threadID = strings.TrimSpace(threadID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if threadID == s.activeThread {
		return nil
	}

	s.stopMessagesLocked()
	s.activeThread = ""
	if threadID == "" {
		s.emitLocked(streamControl, 0, dto.NewActiveThreadFrame(""))
		return nil
	}

	sub, err := s.service.SubscribeMessages(s.ctx, s.identity, threadID)
	if err != nil {
		s.emitLocked(streamControl, 0, dto.NewActiveThreadFrame(""))
		return err
	}

	s.activeThread = threadID
	s.messagesGen++
	generation := s.messagesGen
	s.emitLocked(streamControl, 0, dto.NewActiveThreadFrame(threadID))
	s.messages = s.forward(func(ctx context.Context) {
		for snapshot := range sub.Updates() {
			if !s.send(ctx, sessionFrame{stream: streamMessages, generation: generation, frame: dto.NewMessagesFrame(threadID, snapshot)}) {
				return
			}
		}
		if err := sub.Err(); err != nil {
			s.send(ctx, sessionFrame{stream: streamFeedEnded, generation: generation, err: err})
		}
	}, sub.Cancel)
	return nil
}

func (s *Session) startWatchLocked(userID string) {
	if s.refresh == nil {
		return
	}
	listener := s.service.WatchIdentity(userID)
	if listener == nil {
		return
	}

	refresh := s.refresh
	s.watchGen++
	generation := s.watchGen
	s.watch = s.forward(func(ctx context.Context) {
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-listener.C():
				if !ok {
					return
				}
			}

			identity, err := refresh(ctx, userID)
			if ctx.Err() != nil {
				return
			}
			if err != nil && !errors.Is(err, ErrUnauthenticated) {
				s.logger.Warn().Err(err).Str("user_id", userID).Msg("identity refresh failed")
				continue
			}
			if !s.send(ctx, sessionFrame{stream: streamRebind, generation: generation, identity: identity, err: err}) {
				return
			}
		}
	}, listener.Close)
}

// CreateThread opens a thread with the optional counterparty and makes it active.
func (s *Session) CreateThread(ctx context.Context, counterpartyID string) (dto.ThreadResponse, error) {
	thread, err := s.service.CreateThread(ctx, s.Identity(), counterpartyID)
	if err != nil {
		return dto.ThreadResponse{}, err
	}
	if err := s.SetActiveThread(thread.ID); err != nil {
		return thread, err
	}
	return thread, nil
}

// Send posts text to the active thread. Timestamp zero means now.
func (s *Session) Send(ctx context.Context, text string, timestamp int64) (dto.MessageResponse, error) {
	s.mu.Lock()
	identity := s.identity
	threadID := s.activeThread
	closed := s.closed
	s.mu.Unlock()

	if closed {
		return dto.MessageResponse{}, ErrSessionClosed
	}
	if err := requireIdentity(identity); err != nil {
		return dto.MessageResponse{}, err
	}
	if threadID == "" {
		return dto.MessageResponse{}, invalidArgument("no active thread")
	}
	if !s.limiter.Allow() {
		return dto.MessageResponse{}, ErrRateLimited
	}

	return s.service.Send(ctx, identity, threadID, dto.SendMessageRequest{Text: text, Timestamp: timestamp})
}

// Handle executes one client command. Failures are also reported to the client as an error frame.
func (s *Session) Handle(ctx context.Context, frame dto.ClientFrame) error {
	var err error
	switch frame.Type {
	case dto.FrameSelectThread:
		err = s.SetActiveThread(frame.ThreadID)
	case dto.FrameCreateThread:
		_, err = s.CreateThread(ctx, frame.CounterpartyID)
	case dto.FrameSend:
		_, err = s.Send(ctx, frame.Text, frame.Timestamp)
	default:
		err = invalidArgument("unknown frame type %q", frame.Type)
	}

	if err != nil && !errors.Is(err, ErrSessionClosed) {
		s.Fail(err)
	}
	return err
}

// Fail pushes an error frame for err.
func (s *Session) Fail(err error) {
	code := ErrorCode(err)
	message := err.Error()
	if code == "internal" {
		s.logger.Error().Err(err).Msg("chat command failed")
		message = "internal error"
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.emitLocked(streamControl, 0, dto.NewErrorFrame(code, message))
}

// Next blocks until the next frame for the client. Snapshots from a stream that has since
// been replaced are skipped. Feed endings and identity refreshes are applied here.
func (s *Session) Next(ctx context.Context) (dto.Frame, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-s.ctx.Done():
			return nil, ErrSessionClosed
		case item := <-s.out:
			if frame, ok := s.resolve(item); ok {
				return frame, nil
			}
		}
	}
}

// Close cancels every subscription. It is safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.stopWatchLocked()
	s.stopThreadsLocked()
	s.stopMessagesLocked()
	s.cancel()
}

func (s *Session) resolve(item sessionFrame) (dto.Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch item.stream {
	case streamThreads:
		return item.frame, s.threads != nil && item.generation == s.threadsGen
	case streamMessages:
		return item.frame, s.messages != nil && item.generation == s.messagesGen
	case streamFeedEnded:
		if s.closed || s.messages == nil || item.generation != s.messagesGen {
			return nil, false
		}
		s.logger.Info().Err(item.err).Str("thread_id", s.activeThread).Str("user_id", s.identity.UserID).Msg("message feed ended")
		s.stopMessagesLocked()
		s.activeThread = ""
		s.emitLocked(streamControl, 0, dto.NewErrorFrame(ErrorCode(item.err), item.err.Error()))
		return dto.NewActiveThreadFrame(""), true
	case streamRebind:
		if s.closed || s.watch == nil || item.generation != s.watchGen {
			return nil, false
		}
		return s.rebindLocked(item)
	default:
		return item.frame, true
	}
}

func (s *Session) rebindLocked(item sessionFrame) (dto.Frame, bool) {
	if item.err != nil {
		s.logger.Info().Str("user_id", s.identity.UserID).Msg("chat identity revoked")
		_ = s.bindLocked(Identity{})
		return dto.NewErrorFrame(ErrorCode(item.err), item.err.Error()), true
	}
	if item.identity == s.identity {
		return nil, false
	}

	s.logger.Info().Str("user_id", item.identity.UserID).Str("role", item.identity.Role).Msg("chat identity refreshed")
	if err := s.bindLocked(item.identity); err != nil {
		return dto.NewErrorFrame(ErrorCode(err), err.Error()), true
	}
	return nil, false
}

func (s *Session) forward(run func(ctx context.Context), cancel func()) *forwarder {
	ctx, stop := context.WithCancel(s.ctx)
	fwd := &forwarder{done: make(chan struct{})}
	fwd.stop = func() {
		stop()
		cancel()
		<-fwd.done
	}
	go func() {
		defer close(fwd.done)
		run(ctx)
	}()
	return fwd
}

func (s *Session) stopThreadsLocked() {
	if s.threads != nil {
		s.threads.stop()
		s.threads = nil
	}
}

func (s *Session) stopWatchLocked() {
	if s.watch != nil {
		s.watch.stop()
		s.watch = nil
	}
}

func (s *Session) stopMessagesLocked() {
	if s.messages != nil {
		s.messages.stop()
		s.messages = nil
	}
}

func (s *Session) send(ctx context.Context, item sessionFrame) bool {
	select {
	case s.out <- item:
		return true
	case <-ctx.Done():
		return false
	}
}

// emitLocked queues a frame without blocking the caller holding mu. Control frames are
// dropped when the client stops reading.
func (s *Session) emitLocked(kind stream, generation uint64, frame dto.Frame) {
	select {
	case s.out <- sessionFrame{stream: kind, generation: generation, frame: frame}:
	default:
		s.logger.Warn().Str("frame", frame.FrameType()).Msg("dropping chat frame for slow client")
	}
}
