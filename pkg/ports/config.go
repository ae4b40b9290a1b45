package ports

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

var specLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Int", Pattern: `[0-9]+`},
	{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_]*`},
	{Name: "Punct", Pattern: `[=:,]`},
	{Name: "Whitespace", Pattern: `[ \t\r\n]+`},
})

// portSpec is `0=on, 1=off, 3=off`.
type portSpec struct {
	Entries []*portEntry `parser:"( @@ ( ',' @@ )* ','? )?"`
}

type portEntry struct {
	Pos   lexer.Position
	Port  int    `parser:"@Int ( '=' | ':' )"`
	State string `parser:"@Ident"`
}

var specParser = participle.MustBuild[portSpec](
	participle.Lexer(specLexer),
	participle.Elide("Whitespace"),
)

// ParsePortSpec parses a comma separated list of port states such as
// "0=on, 1=off". States are on/off, true/false or enabled/disabled.
func ParsePortSpec(spec string) (PortMap, error) {
	ast, err := specParser.ParseString("ports", spec)
	if err != nil {
		return nil, fmt.Errorf("invalid port spec: %w", err)
	}
	m := make(PortMap, len(ast.Entries))
	for _, e := range ast.Entries {
		on, ok := parseState(e.State)
		if !ok {
			return nil, fmt.Errorf("invalid port spec: %s: unknown state %q for port %d", e.Pos, e.State, e.Port)
		}
		if _, dup := m[e.Port]; dup {
			return nil, fmt.Errorf("invalid port spec: %s: port %d listed twice", e.Pos, e.Port)
		}
		m[e.Port] = on
	}
	return m, nil
}

func parseState(s string) (bool, bool) {
	switch strings.ToLower(s) {
	case "on", "true", "enabled":
		return true, true
	case "off", "false", "disabled":
		return false, true
	}
	return false, false
}

// ParsePortConfig decodes a JSON object mapping port numbers to enabled
// flags, e.g. {"1": false}.
func ParsePortConfig(data []byte) (PortMap, error) {
	var raw map[string]bool
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid port config: %w", err)
	}
	m := make(PortMap, len(raw))
	for k, on := range raw {
		port, err := strconv.Atoi(strings.TrimSpace(k))
		if err != nil {
			return nil, fmt.Errorf("invalid port config: port %q is not an integer", k)
		}
		m[port] = on
	}
	return m, nil
}

// String renders m in the port spec syntax, ports in increasing order.
func (m PortMap) String() string {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		state := "on"
		if !m[k] {
			state = "off"
		}
		parts[i] = fmt.Sprintf("%d=%s", k, state)
	}
	return strings.Join(parts, ", ")
}
