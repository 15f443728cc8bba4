package branches

import (
	"errors"
	"fmt"
	"strings"

	"github.com/samber/lo"
)

// OrgType is the top-level business line a branch reports under.
type OrgType string

const (
	CS  OrgType = "CS"
	LBF OrgType = "LBF"
	SME OrgType = "SME"
)

// ErrUnknownOrgType is returned when an org type outside CS/LBF/SME is requested.
var ErrUnknownOrgType = errors.New("branches: unknown org type")

// OrgTypes lists the org types in their canonical display order.
func OrgTypes() []OrgType {
	return []OrgType{CS, LBF, SME}
}

// ParseOrgType accepts CS, LBF or SME in any case.
func ParseOrgType(s string) (OrgType, error) {
	switch OrgType(strings.ToUpper(strings.TrimSpace(s))) {
	case CS:
		return CS, nil
	case LBF:
		return LBF, nil
	case SME:
		return SME, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownOrgType, s)
}

// Valid reports whether o is one of the known org types.
func (o OrgType) Valid() bool {
	return o == CS || o == LBF || o == SME
}

// HasZones reports whether clusters of this org type are split into zones.
func (o OrgType) HasZones() bool {
	return o == CS
}

// Mapping places a leaf branch in the organization. Zone is empty for branches
// attached directly to their cluster.
type Mapping struct {
	OrgType OrgType `json:"org_type" yaml:"org_type"`
	Cluster string  `json:"cluster" yaml:"cluster"`
	Zone    string  `json:"zone,omitempty" yaml:"zone,omitempty"`
}

// NormalizeName trims s and collapses internal whitespace runs to one space.
func NormalizeName(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// nameKey is the case-folded normalized form used for identity comparisons.
func nameKey(s string) string {
	return strings.ToLower(NormalizeName(s))
}

// SameName reports whether two branch-like names refer to the same entity.
func SameName(a, b string) bool {
	return nameKey(a) == nameKey(b)
}

// Mapper resolves free-text branch names against a fixed mapping table.
// A Mapper is immutable after construction and safe for concurrent use.
type Mapper struct {
	exact  map[string]Mapping
	folded map[string]Mapping
}

var defaultMapper = newMapper(defaultTable)

// Default returns the mapper over the built-in branch table.
func Default() *Mapper {
	return defaultMapper
}

// NewMapper returns a mapper over the built-in table plus extra entries.
// Extra entries must not rename or re-home a built-in branch, must use a known
// org type and cluster, and may carry a zone only when the org type has zones.
func NewMapper(extra map[string]Mapping) (*Mapper, error) {
	if len(extra) == 0 {
		return defaultMapper, nil
	}
	table := lo.Assign(defaultTable)
	for name, m := range extra {
		norm := NormalizeName(name)
		if norm == "" {
			return nil, errors.New("branches: empty branch name in extra mappings")
		}
		if _, ok := defaultMapper.Lookup(norm); ok {
			return nil, fmt.Errorf("branches: %q is already mapped", norm)
		}
		if _, ok := sentinels[nameKey(norm)]; ok {
			return nil, fmt.Errorf("branches: %q is a rollup name", norm)
		}
		if err := checkPlacement(m); err != nil {
			return nil, fmt.Errorf("branches: %q: %w", norm, err)
		}
		table[norm] = m
	}
	return newMapper(table), nil
}

func newMapper(table map[string]Mapping) *Mapper {
	m := &Mapper{
		exact:  make(map[string]Mapping, len(table)),
		folded: make(map[string]Mapping, len(table)),
	}
	for k, v := range table {
		m.exact[k] = v
		m.folded[nameKey(k)] = v
	}
	return m
}

// Lookup maps a branch name to its placement. The name is normalized first, then
// matched exactly, then case-insensitively, and finally the raw input is tried
// as given. A false result means the branch is unknown and its rows are dropped.
func (m *Mapper) Lookup(name string) (Mapping, bool) {
	norm := NormalizeName(name)
	if norm == "" {
		return Mapping{}, false
	}
	if v, ok := m.exact[norm]; ok {
		return v, true
	}
	if v, ok := m.folded[strings.ToLower(norm)]; ok {
		return v, true
	}
	v, ok := m.exact[name]
	return v, ok
}

// Clusters returns the cluster names known for an org type, in display order.
func Clusters(org OrgType) []string {
	return append([]string(nil), clusterOrder[org]...)
}

// Zones returns the zone names of a cluster, in display order.
func Zones(org OrgType, cluster string) []string {
	if !org.HasZones() {
		return nil
	}
	return append([]string(nil), zoneOrder[cluster]...)
}

func checkPlacement(m Mapping) error {
	if !m.OrgType.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownOrgType, m.OrgType)
	}
	if !lo.Contains(clusterOrder[m.OrgType], m.Cluster) {
		return fmt.Errorf("unknown cluster %q for %s", m.Cluster, m.OrgType)
	}
	if m.Zone == "" {
		return nil
	}
	if !m.OrgType.HasZones() {
		return fmt.Errorf("%s has no zones", m.OrgType)
	}
	if lo.Contains(zoneOrder[m.Cluster], m.Zone) {
		return nil
	}
	return fmt.Errorf("unknown zone %q in %s", m.Zone, m.Cluster)
}
