package ipm

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/soniakeys/unit"
)

// StandardGravity converts between g and m/s².
const StandardGravity = 9.80665

// degPerHour is one deg/hr expressed in rad/s.
var degPerHour = unit.AngleFromDeg(1).Rad() / 3600

// Conversion maps a raw IPM unit onto the engine's internal unit.
type Conversion struct {
	Internal string
	Factor   float64
}

// unitTable is built once at package initialisation and never written again.
// Keys are lower case.
var unitTable = map[string]Conversion{
	"m/s2":       {"m/s2", 1},
	"m/s^2":      {"m/s2", 1},
	"g":          {"m/s2", StandardGravity},
	"mg":         {"m/s2", StandardGravity / 1000},
	"nt":         {"nT", 1},
	"ut":         {"nT", 1000},
	"µt":         {"nT", 1000},
	"deg":        {"rad", unit.AngleFromDeg(1).Rad()},
	"rad":        {"rad", 1},
	"deg/hr":     {"rad/s", degPerHour},
	"rad/s":      {"rad/s", 1},
	"deg/hr/g":   {"rad/s/g", degPerHour},
	"deg/hr/g2":  {"rad/s/g2", degPerHour},
	"deg/hr/g^2": {"rad/s/g2", degPerHour},
	"m":          {"m", 1},
	"ft":         {"m", 0.3048},
	"1/m":        {"1/m", 1},
	"-":          {"-", 1},
	"ppm":        {"-", 1e-6},
	"%":          {"-", 0.01},
}

// LookupUnit returns the conversion for a raw unit string.
func LookupUnit(raw string) (Conversion, bool) {
	c, ok := unitTable[strings.ToLower(strings.TrimSpace(raw))]
	return c, ok
}

// ToSI converts a raw value in the given unit to the internal unit.
func ToSI(value float64, raw string) (float64, error) {
	c, ok := LookupUnit(raw)
	if !ok {
		return 0, fmt.Errorf("unrecognised unit %q", raw)
	}
	return value * c.Factor, nil
}

// FromSI converts an internal value into the target unit. The target must share
// the internal unit of siUnit.
func FromSI(value float64, siUnit, target string) (float64, error) {
	c, ok := LookupUnit(target)
	if !ok {
		return 0, fmt.Errorf("unrecognised unit %q", target)
	}
	if !strings.EqualFold(c.Internal, siUnit) {
		return 0, fmt.Errorf("cannot express %s in %s", siUnit, target)
	}
	return value / c.Factor, nil
}

// Units lists the recognised raw unit strings in sorted order.
func Units() []string {
	out := make([]string, 0, len(unitTable))
	for k := range unitTable {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
