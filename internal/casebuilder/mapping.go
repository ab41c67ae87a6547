package casebuilder

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"gridvolt/internal/powerflow"
)

// Mapping pins bus and branch ids to fixed sample indices so models trained
// on one topology line up with cases from another.
type Mapping struct {
	Bus    map[string]int
	Branch map[string]int
}

// LoadMapping reads optional bus and branch mapping files. An empty path
// leaves that side unmapped. Each non-comment line is "<id> <index>".
func LoadMapping(busFile, branchFile string) (*Mapping, error) {
	m := &Mapping{}
	var err error
	if busFile != "" {
		if m.Bus, err = readMappingFile(busFile); err != nil {
			return nil, errors.Wrap(err, "bus mapping")
		}
	}
	if branchFile != "" {
		if m.Branch, err = readMappingFile(branchFile); err != nil {
			return nil, errors.Wrap(err, "branch mapping")
		}
	}
	return m, nil
}

// MappingOf assigns indices to the active buses and branches of net in
// network order.
func MappingOf(net *powerflow.Network) *Mapping {
	m := &Mapping{Bus: make(map[string]int), Branch: make(map[string]int)}
	for _, b := range net.Buses {
		if b.Active {
			m.Bus[b.ID] = len(m.Bus)
		}
	}
	for _, br := range net.Branches {
		if br.Active {
			m.Branch[br.ID] = len(m.Branch)
		}
	}
	return m
}

// Save writes the bus and branch sides in index order, in the format
// LoadMapping reads. An empty path or an unset side is skipped.
func (m *Mapping) Save(busFile, branchFile string) error {
	if busFile != "" && m.HasBus() {
		if err := writeMappingFile(busFile, m.Bus); err != nil {
			return errors.Wrap(err, "bus mapping")
		}
	}
	if branchFile != "" && m.HasBranch() {
		if err := writeMappingFile(branchFile, m.Branch); err != nil {
			return errors.Wrap(err, "branch mapping")
		}
	}
	return nil
}

func writeMappingFile(path string, ids map[string]int) error {
	byIndex := make([]string, 0, len(ids))
	for id := range ids {
		byIndex = append(byIndex, id)
	}
	sort.Slice(byIndex, func(i, j int) bool { return ids[byIndex[i]] < ids[byIndex[j]] })

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	for _, id := range byIndex {
		fmt.Fprintf(w, "%s %d\n", id, ids[id])
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func readMappingFile(path string) (map[string]int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	out := make(map[string]int)
	used := make(map[int]string)
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, errors.Errorf("%s:%d: want \"<id> <index>\"", path, lineNo)
		}
		idx, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, errors.Wrapf(err, "%s:%d", path, lineNo)
		}
		if prev, dup := used[idx]; dup {
			return nil, errors.Errorf("%s:%d: index %d already used by %s", path, lineNo, idx, prev)
		}
		used[idx] = fields[0]
		out[fields[0]] = idx
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	for idx := range used {
		if idx < 0 || idx >= len(out) {
			return nil, errors.Errorf("%s: index %d outside [0,%d)", path, idx, len(out))
		}
	}
	return out, nil
}

// HasBus reports whether a bus mapping is configured.
func (m *Mapping) HasBus() bool { return m != nil && m.Bus != nil }

// HasBranch reports whether a branch mapping is configured.
func (m *Mapping) HasBranch() bool { return m != nil && m.Branch != nil }

// MissingInMapping lists active network ids the mapping does not cover.
func (m *Mapping) MissingInMapping(net *powerflow.Network) (buses, branches []string) {
	for _, b := range net.Buses {
		if b.Active && m.HasBus() {
			if _, ok := m.Bus[b.ID]; !ok {
				buses = append(buses, b.ID)
			}
		}
	}
	for _, br := range net.Branches {
		if br.Active && m.HasBranch() {
			if _, ok := m.Branch[br.ID]; !ok {
				branches = append(branches, br.ID)
			}
		}
	}
	return buses, branches
}

// MissingInNetwork lists mapped ids that are absent or out of service in net.
func (m *Mapping) MissingInNetwork(net *powerflow.Network) (buses, branches []string) {
	if m.HasBus() {
		for id := range m.Bus {
			if b := net.Bus(id); b == nil || !b.Active {
				buses = append(buses, id)
			}
		}
	}
	if m.HasBranch() {
		for id := range m.Branch {
			if br := net.Branch(id); br == nil || !br.Active {
				branches = append(branches, id)
			}
		}
	}
	sort.Strings(buses)
	sort.Strings(branches)
	return buses, branches
}
