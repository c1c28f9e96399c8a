// Package session orchestrates one magic-comment batch: pre-scan every
// statement through the rule engine, then run the selected mode. Each
// session owns its own parser, auditor and remote connection; sessions
// from different client connections run fully in parallel.
package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pingcap/tidb/parser/ast"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rs/zerolog/log"

	"sql-gate/internal/auditor"
	"sql-gate/internal/meta"
	"sql-gate/internal/model"
	"sql-gate/internal/parser"
	"sql-gate/internal/qtree"
	"sql-gate/internal/secret"
	"sql-gate/internal/vars"
)

var nextThreadID atomic.Uint32

// Session is one live audit batch, from magic-start to magic-commit.
type Session struct {
	threadID uint32
	opts     *model.SessionOptions
	snap     *vars.Snapshot

	clientUser string
	clientHost string

	// Resolved remote credentials, after inception_user/password
	// fallback and AES decryption.
	user     string
	password string

	sqlparser *parser.SQLParser
	provider  *meta.Provider
	profile   model.ServerProfile
	connErr   string
	auditor   *auditor.Auditor

	nodes []*model.CacheNode
	stmts []ast.StmtNode

	started  time.Time
	sleepMs  atomic.Uint64
	killed   atomic.Bool
	executed atomic.Int64

	// Last observed throttle probes, -1 until checked.
	lastThreads atomic.Int64
	lastDelay   atomic.Int64

	mu     sync.Mutex
	cancel context.CancelFunc
}

// Result is the output of one completed session, shaped per mode.
type Result struct {
	Nodes   []*model.CacheNode // CHECK and EXECUTE
	Groups  []model.SplitGroup // SPLIT
	Trees   []model.TreeNode   // QUERY_TREE
	Profile model.ServerProfile
}

// Open builds a session from parsed magic-start options. Credentials
// fall back to inception_user/inception_password; an AES: password is
// decrypted with the configured key. A remote connection failure does
// not fail the open; it surfaces as an error on every audited
// statement instead.
func Open(opts *model.SessionOptions, snap *vars.Snapshot, clientUser, clientHost string) *Session {
	s := &Session{
		threadID:   nextThreadID.Add(1),
		opts:       opts,
		snap:       snap,
		clientUser: clientUser,
		clientHost: clientHost,
		sqlparser:  parser.NewSQLParser(),
		started:    time.Now(),
	}
	s.sleepMs.Store(opts.SleepMs)
	s.lastThreads.Store(-1)
	s.lastDelay.Store(-1)

	s.user = opts.User
	if s.user == "" {
		s.user = snap.Str(vars.User)
	}
	s.password = opts.Password
	if s.password == "" {
		s.password = snap.Str(vars.Password)
	}
	if strings.HasPrefix(s.password, secret.Prefix) {
		s.password = secret.Decrypt(s.password, snap.Str(vars.PasswordEncryptKey))
	}

	if opts.Host != "" {
		p, err := meta.Connect(opts.Host, opts.Port, s.user, s.password)
		if err != nil {
			s.connErr = fmt.Sprintf("Cannot connect to remote server %s:%d (%v).", opts.Host, opts.Port, err)
			log.Warn().Uint32("thread_id", s.threadID).
				Str("addr", fmt.Sprintf("%s:%d", opts.Host, opts.Port)).
				Err(err).Msg("Remote connection failed")
		} else {
			s.provider = p
			s.profile = p.Profile()
		}
	}

	cfg := auditor.Config{
		Snap:      snap,
		Profile:   s.profile,
		ConnError: s.connErr,
	}
	if s.provider != nil {
		cfg.Meta = s.provider
		cfg.Rows = s.provider
	}
	s.auditor = auditor.New(cfg)

	log.Info().Uint32("thread_id", s.threadID).
		Str("mode", opts.Mode.String()).
		Str("host", clientHost).Msg("Session opened")
	return s
}

// Close releases the remote connection.
func (s *Session) Close() {
	if s.provider != nil {
		s.provider.Close()
	}
}

func (s *Session) ThreadID() uint32             { return s.threadID }
func (s *Session) Mode() model.Mode             { return s.opts.Mode }
func (s *Session) Profile() model.ServerProfile { return s.profile }
func (s *Session) Nodes() []*model.CacheNode    { return s.nodes }

// Run pre-scans the batch and runs the session's mode over it.
func (s *Session) Run(ctx context.Context, statements []string) *Result {
	runCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()
	defer cancel()

	s.scan(statements)

	res := &Result{Profile: s.profile}
	switch s.opts.Mode {
	case model.ModeSplit:
		res.Groups = s.split()
	case model.ModeQueryTree:
		res.Trees = s.queryTrees()
	case model.ModeExecute:
		if !s.blocked() {
			s.executeAll(runCtx)
		}
		res.Nodes = s.nodes
	default:
		res.Nodes = s.nodes
	}
	return res
}

// scan parses and audits every statement before anything touches the
// remote. A parse failure stays local to its statement.
func (s *Session) scan(statements []string) {
	for i, sql := range statements {
		node := &model.CacheNode{ID: i + 1, SQL: sql}
		stmt, err := s.sqlparser.Parse(sql)
		if err != nil {
			node.SQLType = "UNKNOWN"
			node.Stage = model.StageChecked
			node.StageStatus = "Audit completed"
			if s.connErr != "" {
				node.Append(model.SeverityError, s.connErr)
			}
			node.Append(model.SeverityError, fmt.Sprintf("SQL parse error: %v", err))
			node.SQLSha1 = parser.Fingerprint(sql)
			s.nodes = append(s.nodes, node)
			s.stmts = append(s.stmts, nil)
			continue
		}

		node.SQLType = parser.Classify(stmt)
		if alter, ok := stmt.(*ast.AlterTableStmt); ok {
			node.SubTypes = parser.AlterSubTypes(alter)
		}
		s.auditor.Check(stmt, node)
		s.nodes = append(s.nodes, node)
		s.stmts = append(s.stmts, stmt)
	}
}

// blocked decides whether EXECUTE may proceed. Any ERROR in the batch
// blocks; any WARNING blocks too unless ignore-warnings was set. Force
// never bypasses this decision.
func (s *Session) blocked() bool {
	for _, n := range s.nodes {
		if n.ErrLevel == model.SeverityError {
			return true
		}
		if n.ErrLevel == model.SeverityWarning && !s.opts.IgnoreWarnings {
			return true
		}
	}
	return false
}

// queryTrees renders one tree per statement, in input order. USE and
// SET update context but produce no row; ids renumber from 1 over the
// emitted rows.
func (s *Session) queryTrees() []model.TreeNode {
	var out []model.TreeNode
	db := ""
	for i, stmt := range s.stmts {
		switch n := stmt.(type) {
		case *ast.UseStmt:
			db = n.DBName
			continue
		case *ast.SetStmt:
			continue
		}

		js := ""
		if stmt != nil {
			var m model.MetaProvider
			if s.provider != nil {
				m = s.provider
			}
			tree := qtree.New(m, db).Extract(stmt)
			if j, err := tree.JSON(); err == nil {
				js = j
			}
		}
		out = append(out, model.TreeNode{ID: len(out) + 1, SQL: s.nodes[i].SQL, JSON: js})
	}
	return out
}

// Kill asks the session to stop. Graceful kill takes effect between
// statements; force also abandons the statement currently running on
// the remote.
func (s *Session) Kill(force bool) {
	s.killed.Store(true)
	if force {
		s.mu.Lock()
		if s.cancel != nil {
			s.cancel()
		}
		s.mu.Unlock()
	}
	log.Info().Uint32("thread_id", s.threadID).Bool("force", force).Msg("Session kill requested")
}

// SetSleep retunes the inter-statement delay of a running session.
func (s *Session) SetSleep(ms uint64) {
	s.sleepMs.Store(ms)
}

// Info is one row of "inception show sessions".
type Info struct {
	ThreadID       uint32
	Host           string
	Port           int
	User           string
	Mode           string
	DBType         string
	SleepMs        uint64
	TotalSQL       int
	ExecutedSQL    int64
	Elapsed        string
	ThreadsRunning string
	ReplDelay      string
}

// Info snapshots the session for the admin listing.
func (s *Session) Info() Info {
	threads := "-"
	if n := s.lastThreads.Load(); n >= 0 {
		threads = fmt.Sprintf("%d", n)
	}
	delay := "-"
	if n := s.lastDelay.Load(); n >= 0 {
		delay = fmt.Sprintf("%ds", n)
	}
	return Info{
		ThreadID:       s.threadID,
		Host:           s.opts.Host,
		Port:           s.opts.Port,
		User:           s.user,
		Mode:           s.opts.Mode.String(),
		DBType:         s.profile.Type.String(),
		SleepMs:        s.sleepMs.Load(),
		TotalSQL:       len(s.nodes),
		ExecutedSQL:    s.executed.Load(),
		Elapsed:        fmt.Sprintf("%.1fs", time.Since(s.started).Seconds()),
		ThreadsRunning: threads,
		ReplDelay:      delay,
	}
}

// Registry tracks live sessions by thread id for the admin commands.
type Registry struct {
	m *xsync.MapOf[uint32, *Session]
}

func NewRegistry() *Registry {
	return &Registry{m: xsync.NewMapOf[uint32, *Session]()}
}

func (r *Registry) Add(s *Session) {
	r.m.Store(s.threadID, s)
}

func (r *Registry) Remove(threadID uint32) {
	r.m.Delete(threadID)
}

// Kill signals a session by id, false when the id is not live.
func (r *Registry) Kill(threadID uint32, force bool) bool {
	s, ok := r.m.Load(threadID)
	if !ok {
		return false
	}
	s.Kill(force)
	return true
}

// SetSleep retunes a session's delay by id, false when not live.
func (r *Registry) SetSleep(threadID uint32, ms uint64) bool {
	s, ok := r.m.Load(threadID)
	if !ok {
		return false
	}
	s.SetSleep(ms)
	return true
}

// List snapshots every live session, ordered by thread id.
func (r *Registry) List() []Info {
	var infos []Info
	r.m.Range(func(_ uint32, s *Session) bool {
		infos = append(infos, s.Info())
		return true
	})
	for i := 1; i < len(infos); i++ {
		for j := i; j > 0 && infos[j].ThreadID < infos[j-1].ThreadID; j-- {
			infos[j], infos[j-1] = infos[j-1], infos[j]
		}
	}
	return infos
}
