// Package gateway is the front-end behind the wire listener. It
// accumulates magic-comment sessions per connection, answers the
// inception admin commands, and exposes the variable catalog over SET
// GLOBAL / SHOW GLOBAL VARIABLES.
package gateway

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"sql-gate/internal/auditlog"
	"sql-gate/internal/model"
	"sql-gate/internal/protocol"
	"sql-gate/internal/session"
	"sql-gate/internal/stream"
	"sql-gate/internal/vars"
)

// Gateway implements protocol.ConnectionHandler.
type Gateway struct {
	store    *vars.Store
	registry *session.Registry
	audit    *auditlog.Logger

	mu     sync.Mutex
	active map[uint64]*pendingSession
}

// pendingSession is a magic session still accumulating statements on
// one connection.
type pendingSession struct {
	sess   *session.Session
	stmts  []string
	opened time.Time
}

func New(store *vars.Store, registry *session.Registry, audit *auditlog.Logger) *Gateway {
	return &Gateway{
		store:    store,
		registry: registry,
		audit:    audit,
		active:   make(map[uint64]*pendingSession),
	}
}

// HandleQuery routes one COM_QUERY packet. Inside a magic session the
// packet is statement body; outside it is an admin command, a variable
// statement, or a magic start.
func (g *Gateway) HandleQuery(cs *protocol.ConnectionSession, query string) (*protocol.ResultSet, error) {
	g.mu.Lock()
	pending := g.active[cs.ConnID]
	g.mu.Unlock()

	if pending != nil {
		return g.accumulate(cs, pending, query)
	}

	if stream.IsMagicStart(query) {
		return g.openSession(cs, query)
	}

	if rs, err, handled := g.handleAdmin(cs, query); handled {
		return rs, err
	}
	if rs, err, handled := g.handleVariables(query); handled {
		return rs, err
	}

	// Anything else (client banners, ping-style selects) gets a plain
	// OK so stock clients stay happy.
	return nil, nil
}

// openSession parses the magic-start packet. With multi-statement
// clients the whole block usually arrives in one packet, so the body
// and the commit marker may already be here.
func (g *Gateway) openSession(cs *protocol.ConnectionSession, packet string) (*protocol.ResultSet, error) {
	opts, err := stream.ParseStart(packet)
	if err != nil {
		return nil, protocol.ErrBadCommand(err.Error())
	}

	snap := g.store.Snapshot()
	sess := session.Open(opts, snap, cs.User, cs.RemoteAddr)
	g.registry.Add(sess)

	pending := &pendingSession{sess: sess, opened: time.Now()}
	g.mu.Lock()
	g.active[cs.ConnID] = pending
	g.mu.Unlock()

	return g.accumulate(cs, pending, stream.StripStart(packet))
}

// accumulate splits a packet into statements, running the session once
// the commit marker shows up.
func (g *Gateway) accumulate(cs *protocol.ConnectionSession, pending *pendingSession, packet string) (*protocol.ResultSet, error) {
	for _, stmt := range stream.Split(packet) {
		if stream.IsMagicCommit(stmt) {
			return g.commit(cs, pending)
		}
		pending.stmts = append(pending.stmts, stmt)
	}
	if stream.IsMagicCommit(packet) {
		return g.commit(cs, pending)
	}
	// Still accumulating; acknowledge the packet.
	return nil, nil
}

// commit runs the session and shapes the mode's result set.
func (g *Gateway) commit(cs *protocol.ConnectionSession, pending *pendingSession) (*protocol.ResultSet, error) {
	g.mu.Lock()
	delete(g.active, cs.ConnID)
	g.mu.Unlock()

	sess := pending.sess
	defer g.registry.Remove(sess.ThreadID())
	defer sess.Close()

	res := sess.Run(context.Background(), pending.stmts)
	g.writeAuditLog(cs, sess, pending, res)

	log.Info().Uint32("thread_id", sess.ThreadID()).
		Str("mode", sess.Mode().String()).
		Int("statements", len(pending.stmts)).
		Msg("Session completed")

	switch sess.Mode() {
	case model.ModeSplit:
		return splitResultSet(res.Groups), nil
	case model.ModeQueryTree:
		return treeResultSet(res.Trees), nil
	default:
		return auditResultSet(res.Nodes, res.Profile), nil
	}
}

func (g *Gateway) writeAuditLog(cs *protocol.ConnectionSession, sess *session.Session, pending *pendingSession, res *session.Result) {
	path := g.store.Snapshot().Str(vars.AuditLog)
	if path == "" {
		return
	}

	errors := 0
	var stmts []auditlog.StatementRecord
	for _, node := range res.Nodes {
		result := "OK"
		if node.ErrLevel == model.SeverityError {
			result = "ERROR"
			errors++
		}
		stmts = append(stmts, auditlog.StatementRecord{
			ID:           node.ID,
			SQL:          node.SQL,
			Result:       result,
			AffectedRows: node.AffectedRows,
			ExecuteTime:  node.ExecuteTime,
		})
	}

	info := sess.Info()
	rec := auditlog.SessionRecord{
		User:       cs.User,
		ClientHost: cs.RemoteAddr,
		TargetUser: info.User,
		Mode:       info.Mode,
		Statements: len(pending.stmts),
		Errors:     errors,
		DurationMs: time.Since(pending.opened).Milliseconds(),
	}
	if info.Host != "" {
		rec.Target = info.Host + ":" + strconv.Itoa(info.Port)
	}
	if err := g.audit.Write(path, rec, stmts); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("Audit log write failed")
	}
}

// ConnectionClosed discards a half-open magic session.
func (g *Gateway) ConnectionClosed(cs *protocol.ConnectionSession) {
	g.mu.Lock()
	pending := g.active[cs.ConnID]
	delete(g.active, cs.ConnID)
	g.mu.Unlock()

	if pending == nil {
		return
	}
	g.registry.Remove(pending.sess.ThreadID())
	pending.sess.Close()
	log.Info().Uint32("thread_id", pending.sess.ThreadID()).
		Msg("Connection closed mid-session, batch discarded")
}

// normalize strips the trailing terminator and surrounding space from
// an admin or variable statement.
func normalize(query string) string {
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(query), ";"))
}
