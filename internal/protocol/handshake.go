package protocol

import (
	"encoding/binary"
	"fmt"
)

// Client capability flags we care about when parsing the handshake
// response. Names follow the protocol documentation.
const (
	capConnectWithDB        = 0x00000008
	capProtocol41           = 0x00000200
	capSecureConnection     = 0x00008000
	capPluginAuth           = 0x00080000
	capPluginAuthLenencData = 0x00200000
)

// HandshakeInfo is what we extract from a HandshakeResponse41 packet.
// The gateway accepts any credentials; the username is kept for the
// session listing and the audit log.
type HandshakeInfo struct {
	Username     string
	Database     string
	Capabilities uint32
}

// ParseHandshakeResponse parses a HandshakeResponse41 packet. Only
// protocol 4.1 clients are supported.
func ParseHandshakeResponse(data []byte) (*HandshakeInfo, error) {
	pos := 0
	info := &HandshakeInfo{}

	flags, pos, ok := readUint32(data, pos)
	if !ok {
		return nil, fmt.Errorf("handshake response truncated at capability flags")
	}
	info.Capabilities = flags
	if flags&capProtocol41 == 0 {
		return nil, fmt.Errorf("only MySQL protocol 4.1 clients are supported")
	}

	// Max packet size and character set, unused.
	if _, pos, ok = readUint32(data, pos); !ok {
		return nil, fmt.Errorf("handshake response truncated at max packet size")
	}
	if _, pos, ok = readByte(data, pos); !ok {
		return nil, fmt.Errorf("handshake response truncated at character set")
	}

	// 23 reserved bytes.
	if len(data) < pos+23 {
		return nil, fmt.Errorf("handshake response truncated at reserved bytes")
	}
	pos += 23

	username, pos, ok := readNullString(data, pos)
	if !ok {
		return nil, fmt.Errorf("handshake response truncated at username")
	}
	info.Username = username

	// Auth response, in one of three encodings. The bytes themselves
	// are discarded.
	switch {
	case flags&capPluginAuthLenencData != 0:
		n, newPos, ok := readLenEncInt(data, pos)
		if !ok || newPos+int(n) > len(data) {
			return nil, fmt.Errorf("handshake response truncated at auth data")
		}
		pos = newPos + int(n)
	case flags&capSecureConnection != 0:
		n, newPos, ok := readByte(data, pos)
		if !ok || newPos+int(n) > len(data) {
			return nil, fmt.Errorf("handshake response truncated at auth data")
		}
		pos = newPos + int(n)
	default:
		if _, pos, ok = readNullString(data, pos); !ok {
			return nil, fmt.Errorf("handshake response truncated at auth data")
		}
	}

	if flags&capConnectWithDB != 0 {
		db, _, ok := readNullString(data, pos)
		if ok {
			info.Database = db
		}
	}
	return info, nil
}

func readByte(data []byte, pos int) (byte, int, bool) {
	if pos >= len(data) {
		return 0, pos, false
	}
	return data[pos], pos + 1, true
}

func readUint32(data []byte, pos int) (uint32, int, bool) {
	if pos+4 > len(data) {
		return 0, pos, false
	}
	return binary.LittleEndian.Uint32(data[pos : pos+4]), pos + 4, true
}

func readNullString(data []byte, pos int) (string, int, bool) {
	start := pos
	for pos < len(data) && data[pos] != 0 {
		pos++
	}
	if pos >= len(data) {
		return "", pos, false
	}
	return string(data[start:pos]), pos + 1, true
}

func readLenEncInt(data []byte, pos int) (uint64, int, bool) {
	if pos >= len(data) {
		return 0, pos, false
	}
	switch data[pos] {
	case 0xFC:
		if pos+3 > len(data) {
			return 0, pos, false
		}
		return uint64(data[pos+1]) | uint64(data[pos+2])<<8, pos + 3, true
	case 0xFD:
		if pos+4 > len(data) {
			return 0, pos, false
		}
		return uint64(data[pos+1]) | uint64(data[pos+2])<<8 | uint64(data[pos+3])<<16, pos + 4, true
	case 0xFE:
		if pos+9 > len(data) {
			return 0, pos, false
		}
		return binary.LittleEndian.Uint64(data[pos+1 : pos+9]), pos + 9, true
	default:
		return uint64(data[pos]), pos + 1, true
	}
}
