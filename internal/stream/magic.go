package stream

import (
	"fmt"
	"strconv"
	"strings"

	"sql-gate/internal/model"
)

// The markers live inside the first comment of the packet:
//
//	/*--user=root;--host=10.0.0.1;--port=3306;--enable-check=1;inception_magic_start;*/
//	/*inception_magic_commit;*/
const (
	magicStart  = "inception_magic_start"
	magicCommit = "inception_magic_commit"
)

// firstComment returns the body of the leading /*...*/ comment, after
// skipping whitespace, or "" when the input does not start with one.
func firstComment(s string) string {
	s = strings.TrimLeft(s, " \t\r\n")
	if !strings.HasPrefix(s, "/*") {
		return ""
	}
	end := strings.Index(s[2:], "*/")
	if end < 0 {
		return ""
	}
	return s[2 : 2+end]
}

// IsMagicStart reports whether the packet opens a session. Only the
// first comment is searched, so a start marker quoted later in the
// body does not trigger.
func IsMagicStart(packet string) bool {
	return strings.Contains(strings.ToLower(firstComment(packet)), magicStart)
}

// IsMagicCommit reports whether the packet closes a session.
func IsMagicCommit(packet string) bool {
	return strings.Contains(strings.ToLower(firstComment(packet)), magicCommit)
}

// ParseStart extracts session options from a magic-start packet.
// Tokens are semicolon-separated "--key=value" pairs; unknown keys are
// ignored so newer clients stay compatible. The default mode is CHECK.
func ParseStart(packet string) (*model.SessionOptions, error) {
	body := firstComment(packet)
	if body == "" {
		return nil, fmt.Errorf("no comment block found in session start")
	}

	opts := &model.SessionOptions{Mode: model.ModeCheck, Port: 3306}
	explicitPort := false

	for _, token := range strings.Split(body, ";") {
		token = strings.TrimSpace(token)
		token = strings.TrimPrefix(token, "--")
		if token == "" || strings.EqualFold(token, magicStart) {
			continue
		}
		eq := strings.IndexByte(token, '=')
		if eq < 0 {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(token[:eq]))
		val := token[eq+1:]

		switch key {
		case "host":
			opts.Host = val
		case "user":
			opts.User = val
		case "password":
			opts.Password = val
		case "port":
			p, err := strconv.Atoi(val)
			if err != nil {
				return nil, fmt.Errorf("invalid port %q in session start", val)
			}
			opts.Port = p
			explicitPort = true
		case "enable-check":
			if enabled(val) {
				opts.Mode = model.ModeCheck
			}
		case "enable-execute":
			if enabled(val) {
				opts.Mode = model.ModeExecute
			}
		case "enable-split":
			if enabled(val) {
				opts.Mode = model.ModeSplit
			}
		case "enable-query-tree":
			if enabled(val) {
				opts.Mode = model.ModeQueryTree
			}
		case "enable-force":
			opts.Force = enabled(val)
		case "enable-remote-backup":
			opts.Backup = enabled(val)
		case "enable-ignore-warnings":
			opts.IgnoreWarnings = enabled(val)
		case "sleep":
			ms, err := strconv.ParseUint(val, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid sleep value %q in session start", val)
			}
			opts.SleepMs = ms
		case "slave-hosts", "slave_hosts":
			opts.SlaveHosts = parseSlaveHosts(val)
		}
	}

	if explicitPort && (opts.Port <= 0 || opts.Port > 65535) {
		return nil, fmt.Errorf("port %d out of range in session start", opts.Port)
	}
	return opts, nil
}

func enabled(val string) bool {
	return strings.HasPrefix(val, "1")
}

// parseSlaveHosts parses "ip1:port1,ip2:port2", dropping malformed
// entries rather than failing the whole session.
func parseSlaveHosts(val string) []model.HostPort {
	var hosts []model.HostPort
	for _, entry := range strings.Split(val, ",") {
		entry = strings.TrimSpace(entry)
		colon := strings.LastIndexByte(entry, ':')
		if colon <= 0 {
			continue
		}
		port, err := strconv.Atoi(entry[colon+1:])
		if err != nil || port <= 0 {
			continue
		}
		hosts = append(hosts, model.HostPort{Host: entry[:colon], Port: port})
	}
	return hosts
}

// StripStart removes the magic-start comment from a packet, leaving any
// trailing statements that shared the packet.
func StripStart(packet string) string {
	s := strings.TrimLeft(packet, " \t\r\n")
	if !strings.HasPrefix(s, "/*") {
		return packet
	}
	end := strings.Index(s, "*/")
	if end < 0 {
		return ""
	}
	return s[end+2:]
}
