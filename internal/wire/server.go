package wire

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"tradebook/internal/book"
	"tradebook/internal/engine"
)

const (
	maxRecvSize      = 4 * 1024
	defaultNWorkers  = 10
	defaultConnTimeout = time.Second
)

var (
	// ErrImproperConversion signals a worker task that was not the
	// net.Conn the pool expects.
	ErrImproperConversion = errors.New("improper type conversion")
	// ErrSessionDoesNotExist signals a report addressed to a session
	// id the server is no longer tracking.
	ErrSessionDoesNotExist = errors.New("session does not exist")
)

// ClientSession is one connected TCP session, identified by a
// session-scoped uuid rather than a Tradable id (Tradable ids follow
// the spec's own {user}{product}{price}{tick} format and are never
// random).
type ClientSession struct {
	id   string
	conn net.Conn
}

// clientMessage links a parsed request to the session that sent it.
type clientMessage struct {
	sessionID string
	message   Message
}

// Server is the demonstration TCP front end: it accepts connections,
// parses requests off them, and serializes every one through a single
// dispatcher goroutine into an engine.Context, preserving the core's
// single-threaded contract even though the transport itself is
// concurrent.
type Server struct {
	address string
	port    int
	engine  *engine.Context

	pool WorkerPool

	cancel   context.CancelFunc
	sessions map[string]ClientSession
	sessLock sync.Mutex
	inbox    chan clientMessage
}

// New constructs a Server bound to address:port, dispatching requests
// into ctx.
func New(address string, port int, ctx *engine.Context) *Server {
	return &Server{
		address:  address,
		port:     port,
		engine:   ctx,
		pool:     NewWorkerPool(defaultNWorkers),
		sessions: make(map[string]ClientSession),
		inbox:    make(chan clientMessage, 1),
	}
}

// Shutdown stops the server's accept loop and worker pool.
func (s *Server) Shutdown() {
	log.Info().Msg("server shutting down")
	if s.cancel != nil {
		s.cancel()
	}
}

// Run accepts connections until ctx is cancelled; cancellation is
// noticed once the pending Accept returns. The listener is closed when
// Run returns.
func (s *Server) Run(ctx context.Context) {
	defer s.Shutdown()

	ctx, s.cancel = context.WithCancel(ctx)
	t, ctx := tomb.WithContext(ctx)

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", fmt.Sprintf("%s:%d", s.address, s.port))
	if err != nil {
		log.Error().Err(err).Msg("unable to start listener")
		return
	}
	defer func() {
		if err := listener.Close(); err != nil {
			log.Error().Err(err).Msg("unable to close listener")
		}
	}()

	t.Go(func() error {
		s.pool.Setup(t, s.handleConnection)
		return nil
	})

	t.Go(func() error {
		return s.dispatch(t)
	})

	log.Info().Msg("server running")

	for {
		select {
		case <-ctx.Done():
			return
		default:
			conn, err := listener.Accept()
			if err != nil {
				log.Error().Err(err).Msg("error accepting client")
				continue
			}

			id := uuid.New().String()
			log.Info().Str("session", id).Msg("new client added")
			s.addSession(id, conn)
			s.pool.AddTask(id)
		}
	}
}

// dispatch is the single goroutine that touches s.engine. Every
// request a worker parses off a connection lands here, in arrival
// order, before any engine method runs.
func (s *Server) dispatch(t *tomb.Tomb) error {
	for {
		select {
		case <-t.Dying():
			return nil
		case cm := <-s.inbox:
			s.handleMessage(cm)
		}
	}
}

func (s *Server) handleMessage(cm clientMessage) {
	tick := uint64(time.Now().UnixNano())
	var report *Report

	switch m := cm.message.(type) {
	case NewOrderMessage:
		snap, err := s.engine.SubmitOrder(m.User, m.Symbol, s.engine.Cache.Intern(int(m.PriceCents)), m.Side, int(m.Volume))
		report = reportOrError(tick, snap, err)
	case CancelOrderMessage:
		snap, ok, err := s.engine.CancelOrder(book.Snapshot{Product: m.Symbol, Side: m.Side, ID: m.ID})
		if err == nil && !ok {
			err = fmt.Errorf("cancel failed: id %q not resting", m.ID)
		}
		report = reportOrError(tick, snap, err)
	case QuoteMessage:
		q := book.Quote{
			User:      m.User,
			Product:   m.Symbol,
			BuyPrice:  s.engine.Cache.Intern(int(m.BuyPriceCents)),
			BuyVol:    int(m.BuyVolume),
			SellPrice: s.engine.Cache.Intern(int(m.SellPriceCents)),
			SellVol:   int(m.SellVolume),
		}
		buySnap, _, err := s.engine.SubmitQuote(q)
		report = reportOrError(tick, buySnap, err)
	case CancelQuoteMessage:
		buySnap, _, _, _, err := s.engine.CancelQuote(m.Symbol, m.User)
		report = reportOrError(tick, buySnap, err)
	case BaseMessage:
		if m.TypeOf == LogBook {
			log.Info().Str("session", cm.sessionID).Msg(s.engine.String())
			return
		}
		return
	default:
		return
	}

	if err := s.sendReport(cm.sessionID, report); err != nil {
		log.Error().Err(err).Str("session", cm.sessionID).Msg("unable to send report")
	}
}

func reportOrError(tick uint64, snap book.Snapshot, err error) *Report {
	if err != nil {
		return errorReport(tick, err)
	}
	return reportFromSnapshot(tick, snap)
}

// sendReport writes report's serialized form to sessionID's
// connection, dropping the session on write failure.
func (s *Server) sendReport(sessionID string, report *Report) error {
	s.sessLock.Lock()
	session, ok := s.sessions[sessionID]
	s.sessLock.Unlock()
	if !ok {
		return ErrSessionDoesNotExist
	}

	if _, err := session.conn.Write(report.Serialize()); err != nil {
		s.deleteSession(sessionID)
		return fmt.Errorf("unable to send report: %w", err)
	}
	return nil
}

// handleConnection reads the next request off the session identified
// by task, parses it, and forwards it to dispatch. Any error returned
// here is fatal to the worker pool, matching the teacher's contract.
func (s *Server) handleConnection(t *tomb.Tomb, task any) error {
	sessionID, ok := task.(string)
	if !ok {
		return ErrImproperConversion
	}

	s.sessLock.Lock()
	session, ok := s.sessions[sessionID]
	s.sessLock.Unlock()
	if !ok {
		return nil
	}

	closeConn := func() {
		if err := session.conn.Close(); err != nil {
			log.Error().Str("session", sessionID).Err(err).Msg("error closing connection")
		}
	}

	if err := session.conn.SetDeadline(time.Now().Add(defaultConnTimeout)); err != nil {
		log.Error().Str("session", sessionID).Err(err).Msg("failed setting deadline for connection")
		closeConn()
		return nil
	}

	buffer := make([]byte, maxRecvSize)
	select {
	case <-t.Dying():
		closeConn()
		return nil
	default:
		n, err := session.conn.Read(buffer)
		if err != nil {
			log.Error().Err(err).Str("session", sessionID).Msg("error reading from connection")
			s.deleteSession(sessionID)
			closeConn()
			return nil
		}

		message, err := ParseMessage(buffer[:n])
		if err != nil {
			log.Error().Err(err).Str("session", sessionID).Msg("error parsing message")
			s.deleteSession(sessionID)
			closeConn()
			return nil
		}

		s.inbox <- clientMessage{sessionID: sessionID, message: message}
		s.pool.AddTask(sessionID)
	}
	return nil
}

func (s *Server) addSession(id string, conn net.Conn) {
	s.sessLock.Lock()
	defer s.sessLock.Unlock()
	s.sessions[id] = ClientSession{id: id, conn: conn}
}

func (s *Server) deleteSession(id string) {
	s.sessLock.Lock()
	defer s.sessLock.Unlock()
	delete(s.sessions, id)
}
