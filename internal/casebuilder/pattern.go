package casebuilder

import (
	"bufio"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/pkg/errors"

	"gridvolt/internal/powerflow"
)

// Pattern is a network operation pattern: the mapped buses and branches that
// are out of service in one topology. It renders as a single line,
//
//	Pattern-1, missingBus [ Bus15 ], missingBranch [ Bus9->Bus15(1) ]
type Pattern struct {
	Name            string
	MissingBuses    []string
	MissingBranches []string
}

func (p Pattern) String() string {
	return fmt.Sprintf("%s, missingBus %s, missingBranch %s",
		p.Name, bracketList(p.MissingBuses), bracketList(p.MissingBranches))
}

func bracketList(ids []string) string {
	if len(ids) == 0 {
		return "[ ]"
	}
	return "[ " + strings.Join(ids, " ") + " ]"
}

// Matches reports whether p describes exactly the ids missing from net.
func (p Pattern) Matches(m *Mapping, net *powerflow.Network) bool {
	buses, branches := m.MissingInNetwork(net)
	return sameIDs(p.MissingBuses, buses) && sameIDs(p.MissingBranches, branches)
}

func sameIDs(a, b []string) bool {
	a, b = slices.Clone(a), slices.Clone(b)
	slices.Sort(a)
	slices.Sort(b)
	return slices.Equal(a, b)
}

// PatternOf names the operation pattern of net relative to m.
func (m *Mapping) PatternOf(name string, net *powerflow.Network) Pattern {
	buses, branches := m.MissingInNetwork(net)
	return Pattern{Name: name, MissingBuses: buses, MissingBranches: branches}
}

// ParsePattern reads the single-line form produced by Pattern.String.
func ParsePattern(line string) (Pattern, error) {
	name, rest, ok := strings.Cut(line, ",")
	if !ok || strings.TrimSpace(name) == "" {
		return Pattern{}, errors.Errorf("pattern %q: missing name", line)
	}
	buses, rest, err := parseSection(rest, "missingBus")
	if err != nil {
		return Pattern{}, errors.Wrapf(err, "pattern %q", line)
	}
	rest, ok = strings.CutPrefix(strings.TrimSpace(rest), ",")
	if !ok {
		return Pattern{}, errors.Errorf("pattern %q: want \", missingBranch [...]\"", line)
	}
	branches, rest, err := parseSection(rest, "missingBranch")
	if err != nil {
		return Pattern{}, errors.Wrapf(err, "pattern %q", line)
	}
	if strings.TrimSpace(rest) != "" {
		return Pattern{}, errors.Errorf("pattern %q: trailing %q", line, rest)
	}
	return Pattern{Name: strings.TrimSpace(name), MissingBuses: buses, MissingBranches: branches}, nil
}

// parseSection consumes `<label> [ id id ... ]` and returns what follows.
func parseSection(s, label string) ([]string, string, error) {
	s, ok := strings.CutPrefix(strings.TrimSpace(s), label)
	if !ok {
		return nil, "", errors.Errorf("want %s", label)
	}
	s, ok = strings.CutPrefix(strings.TrimSpace(s), "[")
	if !ok {
		return nil, "", errors.Errorf("%s: want [", label)
	}
	body, rest, ok := strings.Cut(s, "]")
	if !ok {
		return nil, "", errors.Errorf("%s: unterminated list", label)
	}
	ids := strings.Fields(body)
	if len(ids) == 0 {
		ids = nil
	}
	return ids, rest, nil
}

// LoadPatterns reads one pattern per line, skipping blanks and # comments.
func LoadPatterns(path string) ([]Pattern, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []Pattern
	seen := make(map[string]bool)
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		p, err := ParsePattern(line)
		if err != nil {
			return nil, errors.Wrapf(err, "%s:%d", path, lineNo)
		}
		if seen[p.Name] {
			return nil, errors.Errorf("%s:%d: duplicate pattern %s", path, lineNo, p.Name)
		}
		seen[p.Name] = true
		out = append(out, p)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// SavePatterns writes patterns in the format LoadPatterns reads.
func SavePatterns(path string, patterns []Pattern) error {
	var b strings.Builder
	for _, p := range patterns {
		b.WriteString(p.String())
		b.WriteByte('\n')
	}
	return os.WriteFile(path, []byte(b.String()), 0o644)
}

// MatchPattern returns the first pattern describing net.
func MatchPattern(patterns []Pattern, m *Mapping, net *powerflow.Network) (Pattern, bool) {
	for _, p := range patterns {
		if p.Matches(m, net) {
			return p, true
		}
	}
	return Pattern{}, false
}
