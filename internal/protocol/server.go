// Package protocol is a minimal MySQL wire server: protocol 10
// handshake, accept-all authentication, and a COM_QUERY loop with text
// result sets. Everything beyond that (prepared statements, binary
// protocol, compression) is out of scope; stock clients in plain query
// mode work fine without it.
package protocol

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

// ServerVersion is what the handshake advertises.
const ServerVersion = "5.7.0-sql-gate"

// MySQL command bytes handled by the loop.
const (
	comQuit   = 0x01
	comInitDB = 0x02
	comQuery  = 0x03
	comPing   = 0x0E
)

// ConnectionSession is the per-connection state the handler sees.
type ConnectionSession struct {
	ConnID          uint64
	User            string
	CurrentDatabase string
	RemoteAddr      string
}

// ConnectionHandler receives each COM_QUERY packet. A nil ResultSet
// with a nil error turns into a plain OK packet. ConnectionClosed
// fires once per connection, whether the client quit or dropped.
type ConnectionHandler interface {
	HandleQuery(session *ConnectionSession, query string) (*ResultSet, error)
	ConnectionClosed(session *ConnectionSession)
}

// ResultSet is a text-protocol result. Nil cell values render as NULL.
type ResultSet struct {
	Columns      []ColumnDef
	Rows         [][]interface{}
	RowsAffected int64
}

// ColumnDef names one result column. Type is a MySQL protocol type
// byte; TypeVarString fits everything the gateway returns.
type ColumnDef struct {
	Name string
	Type byte
}

// TypeVarString is the MYSQL_TYPE_VAR_STRING protocol type.
const TypeVarString byte = 0xFD

// TextColumns builds an all-string column list from names.
func TextColumns(names ...string) []ColumnDef {
	cols := make([]ColumnDef, len(names))
	for i, n := range names {
		cols[i] = ColumnDef{Name: n, Type: TypeVarString}
	}
	return cols
}

// Server accepts MySQL client connections and feeds queries to the
// handler.
type Server struct {
	address  string
	listener net.Listener
	quit     chan struct{}
	wg       sync.WaitGroup
	handler  ConnectionHandler
	connID   atomic.Uint64
}

func NewServer(address string, handler ConnectionHandler) *Server {
	return &Server{
		address: address,
		quit:    make(chan struct{}),
		handler: handler,
	}
}

// Start begins listening and returns immediately.
func (s *Server) Start() error {
	l, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.address, err)
	}
	s.listener = l
	log.Info().Str("addr", s.address).Msg("Listener started")

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

// Addr returns the bound address, useful when listening on port 0.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Stop closes the listener and waits for in-flight connections.
func (s *Server) Stop() {
	close(s.quit)
	if s.listener != nil {
		s.listener.Close()
	}
	s.wg.Wait()
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.quit:
				return
			default:
				log.Error().Err(err).Msg("Accept failed")
				continue
			}
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(conn)
		}()
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()

	session := &ConnectionSession{
		ConnID:     s.connID.Add(1),
		RemoteAddr: conn.RemoteAddr().String(),
	}
	defer s.handler.ConnectionClosed(session)

	if err := s.writeHandshake(conn); err != nil {
		log.Error().Err(err).Msg("Handshake write failed")
		return
	}

	resp, err := s.readPacket(conn)
	if err != nil {
		log.Debug().Err(err).Msg("Handshake response read failed")
		return
	}
	if info, err := ParseHandshakeResponse(resp); err == nil {
		session.User = info.Username
		session.CurrentDatabase = info.Database
	}

	// Any credentials pass; the gateway is not the thing guarding the
	// remote.
	if err := s.writeOK(conn, 2, 0); err != nil {
		return
	}
	log.Debug().Uint64("conn_id", session.ConnID).
		Str("user", session.User).Str("addr", session.RemoteAddr).
		Msg("Connection established")

	for {
		payload, err := s.readPacket(conn)
		if err != nil {
			if err != io.EOF {
				log.Debug().Uint64("conn_id", session.ConnID).Err(err).Msg("Read failed")
			}
			return
		}
		if len(payload) == 0 {
			continue
		}

		switch payload[0] {
		case comQuit:
			return
		case comPing:
			s.writeOK(conn, 1, 0)
		case comInitDB:
			session.CurrentDatabase = string(payload[1:])
			s.writeOK(conn, 1, 0)
		case comQuery:
			s.processQuery(conn, session, string(payload[1:]))
		default:
			s.writeError(conn, 1, 1047, "HY000", "Unknown command")
		}
	}
}

func (s *Server) processQuery(conn net.Conn, session *ConnectionSession, query string) {
	rs, err := s.handler.HandleQuery(session, query)
	if err != nil {
		if me, ok := err.(*MySQLError); ok {
			s.writeError(conn, 1, me.Code, me.SQLState, me.Message)
		} else {
			s.writeError(conn, 1, 1105, "HY000", err.Error())
		}
		return
	}
	if rs == nil || len(rs.Columns) == 0 {
		var affected int64
		if rs != nil {
			affected = rs.RowsAffected
		}
		s.writeOK(conn, 1, affected)
		return
	}
	s.writeResultSet(conn, 1, rs)
}

func (s *Server) writeHandshake(w io.Writer) error {
	buf := new(bytes.Buffer)

	buf.WriteByte(10) // protocol version
	buf.WriteString(ServerVersion + "\x00")
	binary.Write(buf, binary.LittleEndian, uint32(1)) // connection id

	buf.WriteString("12345678") // auth plugin data part 1
	buf.WriteByte(0)

	// Lower capability bytes: LONG_PASSWORD | PROTOCOL_41 |
	// TRANSACTIONS | SECURE_CONNECTION.
	binary.Write(buf, binary.LittleEndian, uint16(0xa201))
	buf.WriteByte(33) // utf8_general_ci
	binary.Write(buf, binary.LittleEndian, uint16(2))
	// Upper capability bytes: PLUGIN_AUTH.
	binary.Write(buf, binary.LittleEndian, uint16(0x0008))
	buf.WriteByte(21)
	buf.Write(make([]byte, 10))
	buf.WriteString("123456789012\x00") // auth plugin data part 2
	buf.WriteString("mysql_native_password\x00")

	return s.writePacket(w, 0, buf.Bytes())
}

func (s *Server) writeOK(w io.Writer, seq byte, rowsAffected int64) error {
	buf := new(bytes.Buffer)
	buf.WriteByte(0x00)
	buf.Write(packLenEncInt(uint64(rowsAffected)))
	buf.Write(packLenEncInt(0)) // last insert id
	binary.Write(buf, binary.LittleEndian, uint16(0x0002))
	binary.Write(buf, binary.LittleEndian, uint16(0))
	return s.writePacket(w, seq, buf.Bytes())
}

func (s *Server) writeError(w io.Writer, seq byte, code uint16, sqlState, msg string) error {
	buf := new(bytes.Buffer)
	buf.WriteByte(0xFF)
	binary.Write(buf, binary.LittleEndian, code)
	buf.WriteByte('#')
	buf.WriteString(sqlState)
	buf.WriteString(msg)
	return s.writePacket(w, seq, buf.Bytes())
}

func (s *Server) writeResultSet(w io.Writer, seq byte, rs *ResultSet) error {
	if err := s.writePacket(w, seq, packLenEncInt(uint64(len(rs.Columns)))); err != nil {
		return err
	}
	seq++

	for _, col := range rs.Columns {
		buf := new(bytes.Buffer)
		writeLenEncString(buf, "def")
		writeLenEncString(buf, "")
		writeLenEncString(buf, "")
		writeLenEncString(buf, "")
		writeLenEncString(buf, col.Name)
		writeLenEncString(buf, col.Name)
		buf.WriteByte(0x0c)
		binary.Write(buf, binary.LittleEndian, uint16(33))
		binary.Write(buf, binary.LittleEndian, uint32(1024))
		buf.WriteByte(col.Type)
		binary.Write(buf, binary.LittleEndian, uint16(0))
		buf.WriteByte(0)
		buf.Write([]byte{0, 0})
		if err := s.writePacket(w, seq, buf.Bytes()); err != nil {
			return err
		}
		seq++
	}

	if err := s.writePacket(w, seq, eofPacket()); err != nil {
		return err
	}
	seq++

	for _, row := range rs.Rows {
		buf := new(bytes.Buffer)
		for _, val := range row {
			if val == nil {
				buf.WriteByte(0xFB)
				continue
			}
			writeLenEncString(buf, fmt.Sprintf("%v", val))
		}
		if err := s.writePacket(w, seq, buf.Bytes()); err != nil {
			return err
		}
		seq++
	}

	return s.writePacket(w, seq, eofPacket())
}

func eofPacket() []byte {
	return []byte{0xFE, 0, 0, 0x02, 0}
}

func (s *Server) writePacket(w io.Writer, seq byte, payload []byte) error {
	header := []byte{
		byte(len(payload)),
		byte(len(payload) >> 8),
		byte(len(payload) >> 16),
		seq,
	}
	if _, err := w.Write(header); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

func (s *Server) readPacket(r io.Reader) ([]byte, error) {
	header := make([]byte, 4)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}
	length := int(uint32(header[0]) | uint32(header[1])<<8 | uint32(header[2])<<16)
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

func packLenEncInt(n uint64) []byte {
	switch {
	case n < 251:
		return []byte{byte(n)}
	case n < 1<<16:
		return []byte{0xFC, byte(n), byte(n >> 8)}
	case n < 1<<24:
		return []byte{0xFD, byte(n), byte(n >> 8), byte(n >> 16)}
	}
	buf := make([]byte, 9)
	buf[0] = 0xFE
	binary.LittleEndian.PutUint64(buf[1:], n)
	return buf
}

func writeLenEncString(buf *bytes.Buffer, s string) {
	l := uint64(len(s))
	switch {
	case l < 251:
		buf.WriteByte(byte(l))
	case l < 1<<16:
		buf.WriteByte(0xFC)
		binary.Write(buf, binary.LittleEndian, uint16(l))
	default:
		buf.WriteByte(0xFD)
		binary.Write(buf, binary.LittleEndian, uint32(l))
	}
	buf.WriteString(s)
}
