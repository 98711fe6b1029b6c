/*
	Package policy defines the in-memory schema for a capability document
	(the "Policy" in this codebase's vocabulary) and the parser that reads
	one off disk.

	A Policy is immutable once parsed.  It is shared read-only between the
	orchestrator, the host primitives, and the launcher -- none of them
	ever mutate it, so passing it by value (it's small) or by pointer are
	both fine; we pass by value to keep that guarantee visible at call
	sites.
*/
package policy

// Principal selects which OS identity the payload runs as.
type Principal struct {
	// Ephemeral is true when a fresh per-invocation principal should be
	// synthesized during orchestration ("auto" in the document).
	Ephemeral bool

	// Name is the identifier of an existing host principal.  Only
	// meaningful when Ephemeral is false.
	Name string
}

func EphemeralPrincipal() Principal { return Principal{Ephemeral: true} }
func NamedPrincipal(name string) Principal { return Principal{Name: name} }

// Perm is a single filesystem permission bit.
type Perm rune

const (
	PermRead    Perm = 'r'
	PermWrite   Perm = 'w'
	PermExecute Perm = 'x'
)

// FileRule grants access to one absolute host path.
type FileRule struct {
	Path  string
	Perms map[Perm]bool
}

func (r FileRule) Has(p Perm) bool { return r.Perms[p] }

// Protocol is the network-rule transport selector.
type Protocol int

const (
	ProtoNone Protocol = iota
	ProtoTCP
	ProtoUDP
	ProtoUnix
)

func (p Protocol) String() string {
	switch p {
	case ProtoNone:
		return "none"
	case ProtoTCP:
		return "tcp"
	case ProtoUDP:
		return "udp"
	case ProtoUnix:
		return "unix"
	default:
		return "unknown"
	}
}

// Direction constrains which way traffic may flow for a NetworkRule.
type Direction int

const (
	DirBoth Direction = iota
	DirOut
	DirIn
)

func (d Direction) String() string {
	switch d {
	case DirOut:
		return "out"
	case DirIn:
		return "in"
	default:
		return "both"
	}
}

// PortAny marks a NetworkRule.Port as "any port" (e.g. for unix sockets,
// or a bare "none" rule).
const PortAny = 0

// NetworkRule is one line of declared network intent.  Per spec §9, the
// current host primitive has no per-rule firewall, so rules are parsed,
// validated, and retained, but not enforced: the container-level
// booleans in hostprim.ContainerSpec are fixed by the orchestrator and
// do not depend on them (see orchestrate's network-policy step).
type NetworkRule struct {
	Protocol  Protocol
	Address   string
	Port      int // 1-65535, or PortAny
	Direction Direction
}

// EnvRule is one injected environment variable.
type EnvRule struct {
	Name  string
	Value string
}

// Limits are resource-accounting ceilings; zero means "unset".
type Limits struct {
	MemoryBytes   int64
	MaxProcesses  int
	MaxFiles      int
	MaxCPUPercent int
}

// Policy is the fully parsed, validated capability document.
type Policy struct {
	Principal Principal

	WorkspacePath string // "" if unset

	FileRules    []FileRule
	NetworkRules []NetworkRule
	EnvRules     []EnvRule

	EnvClear bool

	NetworkDefaultDeny bool
	FSDefaultDeny      bool

	Limits Limits
}

// Default returns the Policy used when no capability document exists on
// disk.  Per spec §4.1: ephemeral auto principal, both default-deny flags
// false, env not cleared, no limits, no rules.
func Default() Policy {
	return Policy{
		Principal: EphemeralPrincipal(),
	}
}

// Equal reports whether two policies are the same value, field for field.
func (p Policy) Equal(o Policy) bool {
	if p.Principal != o.Principal ||
		p.WorkspacePath != o.WorkspacePath ||
		p.EnvClear != o.EnvClear ||
		p.NetworkDefaultDeny != o.NetworkDefaultDeny ||
		p.FSDefaultDeny != o.FSDefaultDeny ||
		p.Limits != o.Limits {
		return false
	}
	if len(p.FileRules) != len(o.FileRules) ||
		len(p.NetworkRules) != len(o.NetworkRules) ||
		len(p.EnvRules) != len(o.EnvRules) {
		return false
	}
	for i := range p.FileRules {
		a, b := p.FileRules[i], o.FileRules[i]
		if a.Path != b.Path || len(a.Perms) != len(b.Perms) {
			return false
		}
		for k, v := range a.Perms {
			if b.Perms[k] != v {
				return false
			}
		}
	}
	for i := range p.NetworkRules {
		if p.NetworkRules[i] != o.NetworkRules[i] {
			return false
		}
	}
	for i := range p.EnvRules {
		if p.EnvRules[i] != o.EnvRules[i] {
			return false
		}
	}
	return true
}
