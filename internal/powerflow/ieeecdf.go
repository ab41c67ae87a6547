package powerflow

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const (
	sectionNone = iota
	sectionBus
	sectionBranch
	sectionSkip
)

// LoadIEEECDF reads an IEEE Common Data Format case from path.
func LoadIEEECDF(path string) (*Network, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open case")
	}
	defer f.Close()

	net, err := ParseIEEECDF(f)
	if err != nil {
		return nil, errors.Wrapf(err, "parse case %s", path)
	}
	return net, nil
}

// ParseIEEECDF parses the title, bus and branch sections of an IEEE Common
// Data Format file. Other sections are skipped.
func ParseIEEECDF(r io.Reader) (*Network, error) {
	scanner := bufio.NewScanner(r)
	var net *Network
	section := sectionNone
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if net == nil {
			net = parseTitle(line)
			continue
		}
		if strings.HasPrefix(trimmed, "END OF DATA") {
			break
		}
		switch section {
		case sectionNone:
			switch {
			case strings.HasPrefix(trimmed, "BUS DATA FOLLOWS"):
				section = sectionBus
			case strings.HasPrefix(trimmed, "BRANCH DATA FOLLOWS"):
				section = sectionBranch
			case strings.Contains(trimmed, "FOLLOWS"):
				section = sectionSkip
			}
			continue
		default:
			if strings.HasPrefix(trimmed, "-9") {
				section = sectionNone
				continue
			}
		}
		switch section {
		case sectionBus:
			bus, err := parseBusCard(line)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			net.AddBus(bus)
		case sectionBranch:
			br, err := parseBranchCard(net, line)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			net.Branches = append(net.Branches, br)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if net == nil || len(net.Buses) == 0 {
		return nil, errors.New("no bus data")
	}
	for _, b := range net.Buses {
		b.LoadP /= net.BaseMVA
		b.LoadQ /= net.BaseMVA
		b.GenP /= net.BaseMVA
		b.GenQ /= net.BaseMVA
	}
	return net, nil
}

func parseTitle(line string) *Network {
	base := 100.0
	if len(line) >= 37 {
		if v, err := strconv.ParseFloat(strings.TrimSpace(line[31:37]), 64); err == nil && v > 0 {
			base = v
		}
	}
	name := ""
	if len(line) > 45 {
		name = strings.TrimSpace(line[45:])
	}
	return NewNetwork(name, base)
}

// parseBusCard reads the fixed-column number and name, then the
// whitespace separated numeric fields that follow column 18.
func parseBusCard(line string) (*Bus, error) {
	if len(line) < 18 {
		return nil, errors.New("bus card too short")
	}
	number, err := strconv.Atoi(strings.TrimSpace(line[0:4]))
	if err != nil {
		return nil, errors.Wrap(err, "bus number")
	}
	fields := strings.Fields(line[17:])
	if len(fields) < 9 {
		return nil, errors.Errorf("bus %d: expected at least 9 fields, got %d", number, len(fields))
	}
	vals, err := parseFloats(fields)
	if err != nil {
		return nil, errors.Wrapf(err, "bus %d", number)
	}
	bus := &Bus{
		Number: number,
		ID:     "Bus" + strconv.Itoa(number),
		Name:   strings.TrimSpace(line[5:17]),
		Active: true,
		VMag:   vals[3],
		VAng:   deg2rad(vals[4]),
		LoadP:  vals[5],
		LoadQ:  vals[6],
		GenP:   vals[7],
		GenQ:   vals[8],
	}
	switch int(vals[2]) {
	case 0, 1:
		bus.Type = PQ
	case 2:
		bus.Type = PV
	case 3:
		bus.Type = Swing
	default:
		bus.Type = PQ
		bus.Active = false
	}
	if len(vals) > 9 {
		bus.BaseKV = vals[9]
	}
	bus.VSpec = bus.VMag
	if len(vals) > 10 && vals[10] > 0 {
		bus.VSpec = vals[10]
	}
	if len(vals) > 14 {
		bus.ShuntG = vals[13]
		bus.ShuntB = vals[14]
	}
	return bus, nil
}

func parseBranchCard(net *Network, line string) (*Branch, error) {
	fields := strings.Fields(line)
	if len(fields) < 9 {
		return nil, errors.Errorf("branch: expected at least 9 fields, got %d", len(fields))
	}
	vals, err := parseFloats(fields)
	if err != nil {
		return nil, errors.Wrap(err, "branch")
	}
	fromNo, toNo := int(vals[0]), int(vals[1])
	from, ok := net.BusPos(fromNo)
	if !ok {
		return nil, errors.Errorf("branch references unknown bus %d", fromNo)
	}
	to, ok := net.BusPos(toNo)
	if !ok {
		return nil, errors.Errorf("branch references unknown bus %d", toNo)
	}
	circuit := fields[4]
	br := &Branch{
		ID:      fmt.Sprintf("Bus%d->Bus%d(%s)", fromNo, toNo, circuit),
		From:    from,
		To:      to,
		Circuit: circuit,
		Active:  true,
		R:       vals[6],
		X:       vals[7],
		B:       vals[8],
	}
	if len(vals) > 14 {
		br.Ratio = vals[14]
	}
	if len(vals) > 15 {
		br.Shift = deg2rad(vals[15])
	}
	return br, nil
}

func parseFloats(fields []string) ([]float64, error) {
	out := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "field %d", i+1)
		}
		out[i] = v
	}
	return out, nil
}
