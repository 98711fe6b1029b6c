package policy

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"go.polydawn.net/isolate/lib/errcat"
)

// Warning is a single non-fatal complaint raised while parsing a
// capability document: an unknown key, a malformed value, or a rule
// discarded for exceeding a count cap.  Per spec §4.1, a single bad line
// never aborts parsing -- it is recorded here and the line is skipped.
type Warning struct {
	Line    int
	Message string
}

func (w Warning) String() string {
	return fmt.Sprintf("line %d: %s", w.Line, w.Message)
}

const (
	maxNetworkRules = 16
	maxFileRules    = 32
	maxEnvRules     = 32
)

// Parse reads a capability document from r and returns the resulting
// Policy together with any non-fatal warnings encountered along the way.
// No document content, however malformed or however long its lines, makes
// Parse return an error -- see spec §8 invariant 5 ("parsing terminates
// and yields a Policy... never abort"); the error return (ErrParse) is
// non-nil only when reading from r itself fails.
func Parse(r io.Reader) (Policy, []Warning, error) {
	p := Default()
	var warnings []Warning
	warn := func(line int, format string, args ...interface{}) {
		warnings = append(warnings, Warning{line, fmt.Sprintf(format, args...)})
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(nil, int(^uint(0)>>1)) // no line-length cap
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if idx := strings.IndexByte(line, '#'); idx >= 0 {
			line = line[:idx]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		sep := strings.IndexByte(line, ':')
		if sep < 0 {
			warn(lineNo, "expected 'key: value', got %q", line)
			continue
		}
		key := strings.TrimSpace(line[:sep])
		value := strings.TrimSpace(line[sep+1:])

		switch key {
		case "user":
			if value == "auto" {
				p.Principal = EphemeralPrincipal()
			} else if value == "" {
				warn(lineNo, "user: value must not be empty")
			} else {
				p.Principal = NamedPrincipal(value)
			}

		case "memory":
			n, err := parseByteSize(value)
			if err != nil {
				warn(lineNo, "memory: %s", err)
				continue
			}
			p.Limits.MemoryBytes = n

		case "processes":
			n, err := strconv.Atoi(value)
			if err != nil || n < 0 {
				warn(lineNo, "processes: expected non-negative integer, got %q", value)
				continue
			}
			p.Limits.MaxProcesses = n

		case "files":
			n, err := strconv.Atoi(value)
			if err != nil || n < 0 {
				warn(lineNo, "files: expected non-negative integer, got %q", value)
				continue
			}
			p.Limits.MaxFiles = n

		case "cpu":
			n, err := strconv.Atoi(value)
			if err != nil || n < 0 {
				warn(lineNo, "cpu: expected non-negative integer, got %q", value)
				continue
			}
			p.Limits.MaxCPUPercent = n

		case "network":
			rule, err := parseNetworkRule(value)
			if err != nil {
				warn(lineNo, "network: %s", err)
				continue
			}
			if len(p.NetworkRules) >= maxNetworkRules {
				warn(lineNo, "network: discarding rule, already have %d (max %d)", len(p.NetworkRules), maxNetworkRules)
				continue
			}
			p.NetworkRules = append(p.NetworkRules, rule)

		case "filesystem", "file":
			rule, err := parseFileRule(value)
			if err != nil {
				warn(lineNo, "%s: %s", key, err)
				continue
			}
			if len(p.FileRules) >= maxFileRules {
				warn(lineNo, "%s: discarding rule, already have %d (max %d)", key, len(p.FileRules), maxFileRules)
				continue
			}
			p.FileRules = append(p.FileRules, rule)

		case "env":
			name, val, err := parseEnvRule(value)
			if err != nil {
				warn(lineNo, "env: %s", err)
				continue
			}
			if len(p.EnvRules) >= maxEnvRules {
				warn(lineNo, "env: discarding rule, already have %d (max %d)", len(p.EnvRules), maxEnvRules)
				continue
			}
			p.EnvRules = append(p.EnvRules, EnvRule{name, val})

		case "network_default":
			b, err := parseDenyAllow(value)
			if err != nil {
				warn(lineNo, "network_default: %s", err)
				continue
			}
			p.NetworkDefaultDeny = b

		case "filesystem_default":
			b, err := parseDenyAllow(value)
			if err != nil {
				warn(lineNo, "filesystem_default: %s", err)
				continue
			}
			p.FSDefaultDeny = b

		case "env_clear":
			b, err := parseBool(value)
			if err != nil {
				warn(lineNo, "env_clear: %s", err)
				continue
			}
			p.EnvClear = b

		case "workspace":
			clean, ok := canonicalAbsPath(value)
			if !ok {
				warn(lineNo, "workspace: expected absolute path, got %q", value)
				continue
			}
			p.WorkspacePath = clean

		default:
			warn(lineNo, "unknown key %q, skipping", key)
		}
	}
	if err := scanner.Err(); err != nil {
		return p, warnings, errcat.Errorw(ErrParse, err)
	}
	return p, warnings, nil
}

// Load reads the capability document at path.  A missing file is a
// recoverable condition per spec §4.1: it yields Default() plus one
// warning, not an error.  Any other I/O failure (permission denied, a
// directory where a file was expected, ...) is reported as ErrParse,
// since proceeding would silently ignore an operator's explicit intent.
func Load(path string) (Policy, []Warning, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), []Warning{{0, fmt.Sprintf("capability document %q not found, proceeding under default policy", path)}}, nil
		}
		return Policy{}, nil, errcat.Errorf(ErrParse, "cannot read capability document %q: %s", path, err)
	}
	defer f.Close()
	return Parse(f)
}

func parseByteSize(value string) (int64, error) {
	if value == "" {
		return 0, fmt.Errorf("expected a number, got empty value")
	}
	mult := int64(1)
	suffix := value[len(value)-1]
	numPart := value
	switch suffix {
	case 'b', 'B':
		numPart = value[:len(value)-1]
	case 'k', 'K':
		mult = 1 << 10
		numPart = value[:len(value)-1]
	case 'm', 'M':
		mult = 1 << 20
		numPart = value[:len(value)-1]
	case 'g', 'G':
		mult = 1 << 30
		numPart = value[:len(value)-1]
	}
	if numPart == "" {
		return 0, fmt.Errorf("expected a number before the suffix, got %q", value)
	}
	n, err := strconv.ParseInt(numPart, 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("expected a non-negative number, got %q", value)
	}
	return n * mult, nil
}

func parseBool(value string) (bool, error) {
	switch strings.ToLower(value) {
	case "true", "1":
		return true, nil
	case "false", "0":
		return false, nil
	default:
		return false, fmt.Errorf("expected true/false/1/0, got %q", value)
	}
}

func parseDenyAllow(value string) (bool, error) {
	switch strings.ToLower(value) {
	case "deny":
		return true, nil
	case "allow":
		return false, nil
	default:
		return false, fmt.Errorf("expected deny/allow, got %q", value)
	}
}

func parseEnvRule(value string) (name, val string, err error) {
	idx := strings.IndexByte(value, '=')
	if idx <= 0 {
		return "", "", fmt.Errorf("expected NAME=VALUE, got %q", value)
	}
	return value[:idx], value[idx+1:], nil
}

func isPermChar(r rune) bool {
	switch r {
	case 'r', 'w', 'x', 'R', 'W', 'X':
		return true
	default:
		return false
	}
}

func parseFileRule(value string) (FileRule, error) {
	if value == "" {
		return FileRule{}, fmt.Errorf("expected a path, got empty value")
	}
	pathPart := value
	permsPart := "r"
	if idx := strings.LastIndexByte(value, ':'); idx >= 0 {
		candidate := value[idx+1:]
		ok := candidate != ""
		for _, r := range candidate {
			if !isPermChar(r) {
				ok = false
				break
			}
		}
		if ok {
			pathPart = value[:idx]
			permsPart = candidate
		}
	}
	clean, ok := canonicalAbsPath(pathPart)
	if !ok {
		return FileRule{}, fmt.Errorf("expected absolute path, got %q", pathPart)
	}
	perms := map[Perm]bool{}
	for _, r := range permsPart {
		switch r {
		case 'r', 'R':
			perms[PermRead] = true
		case 'w', 'W':
			perms[PermWrite] = true
		case 'x', 'X':
			perms[PermExecute] = true
		}
	}
	return FileRule{Path: clean, Perms: perms}, nil
}

func isDirectionToken(s string) (Direction, bool) {
	switch strings.ToLower(s) {
	case "in", "inbound":
		return DirIn, true
	case "out", "outbound":
		return DirOut, true
	default:
		return DirBoth, false
	}
}

func parsePort(s string) (int, bool) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > 65535 {
		return 0, false
	}
	return n, true
}

func parseNetworkRule(value string) (NetworkRule, error) {
	if value == "" {
		return NetworkRule{}, fmt.Errorf("expected a protocol, got empty value")
	}
	fields := strings.Split(value, ":")
	protoStr := strings.ToLower(fields[0])

	switch protoStr {
	case "none":
		if len(fields) != 1 {
			return NetworkRule{}, fmt.Errorf("'none' takes no further fields, got %q", value)
		}
		return NetworkRule{Protocol: ProtoNone, Port: PortAny}, nil

	case "unix":
		if len(fields) < 2 || fields[1] == "" {
			return NetworkRule{}, fmt.Errorf("'unix' requires a path, got %q", value)
		}
		return NetworkRule{
			Protocol: ProtoUnix,
			Address:  strings.Join(fields[1:], ":"),
			Port:     PortAny,
		}, nil

	case "tcp", "udp":
		proto := ProtoTCP
		if protoStr == "udp" {
			proto = ProtoUDP
		}
		rest := fields[1:]
		direction := DirBoth
		if len(rest) > 0 {
			if d, ok := isDirectionToken(rest[len(rest)-1]); ok {
				direction = d
				rest = rest[:len(rest)-1]
			}
		}
		switch len(rest) {
		case 0:
			return NetworkRule{Protocol: proto, Address: "0.0.0.0", Port: PortAny, Direction: direction}, nil
		case 1:
			if port, ok := parsePort(rest[0]); ok {
				return NetworkRule{Protocol: proto, Address: "0.0.0.0", Port: port, Direction: direction}, nil
			}
			return NetworkRule{Protocol: proto, Address: rest[0], Port: PortAny, Direction: direction}, nil
		case 2:
			port, ok := parsePort(rest[1])
			if !ok {
				return NetworkRule{}, fmt.Errorf("expected a numeric port, got %q", rest[1])
			}
			return NetworkRule{Protocol: proto, Address: rest[0], Port: port, Direction: direction}, nil
		default:
			return NetworkRule{}, fmt.Errorf("too many fields in network rule %q", value)
		}

	default:
		return NetworkRule{}, fmt.Errorf("unrecognized protocol %q", fields[0])
	}
}

// canonicalAbsPath enforces spec §3's path invariant: absolute, no . or
// .. components, no trailing slash except root.
func canonicalAbsPath(p string) (string, bool) {
	if p == "" || p[0] != '/' {
		return "", false
	}
	clean := cleanPath(p)
	return clean, true
}

// cleanPath is filepath.Clean, spelled out locally so this package does
// not need to import path/filepath just for one call with OS-specific
// separator behavior we don't want (capability documents always use '/',
// regardless of host OS).
func cleanPath(p string) string {
	segments := strings.Split(p, "/")
	var out []string
	for _, seg := range segments {
		switch seg {
		case "", ".":
			continue
		case "..":
			if len(out) > 0 {
				out = out[:len(out)-1]
			}
		default:
			out = append(out, seg)
		}
	}
	return "/" + strings.Join(out, "/")
}
