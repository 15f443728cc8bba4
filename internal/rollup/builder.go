package rollup

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/vinodismyname/branchrollup/internal/branches"
)

// Builder turns report row batches into a Hierarchy.
// A zero Builder uses the default branch table and exempt set.
type Builder struct {
	Mapper *branches.Mapper
	Exempt ExemptSet
}

// Build classifies every row of every report and places it in a fresh
// Hierarchy. Unmapped rows are dropped and counted. Reports are consumed in
// the order given; that order only matters for the first-wins rule on exempt
// branches.
func (b *Builder) Build(reports []Report) *Hierarchy {
	mapper := b.Mapper
	if mapper == nil {
		mapper = branches.Default()
	}
	exempt := b.Exempt
	if exempt.names == nil {
		exempt = DefaultExempt()
	}

	h := &Hierarchy{
		orgs:    make(map[branches.OrgType]map[string]*ClusterNode),
		columns: DetectNumericColumns(reports),
		exempt:  exempt,
	}
	numeric := lo.SliceToMap(h.columns, func(c string) (string, struct{}) { return c, struct{}{} })

	// leaf names keyed by (cluster, zone, nameKey) so spelling variants collapse
	leafNames := make(map[leafSlot]string)
	seenExempt := make(map[string]struct{})
	dropped := make(map[string]struct{})

	h.stats.Reports = len(reports)
	for _, rep := range reports {
		for _, raw := range rep.Rows {
			h.stats.Rows++
			name := branches.NormalizeName(branchValue(raw[BranchColumn]))
			if name == "" {
				h.stats.BlankRows++
				continue
			}
			cls, ok := mapper.Classify(name)
			if !ok {
				h.stats.DroppedRows++
				dropped[name] = struct{}{}
				continue
			}

			cn := h.cluster(cls.OrgType, cls.Cluster)
			if exempt.Contains(name) {
				key := strings.Join([]string{string(cls.OrgType), cls.Cluster, strings.ToLower(name), DateKey(rep.Date)}, "\x00")
				if _, dup := seenExempt[key]; dup {
					h.stats.ExemptSkipped++
					continue
				}
				seenExempt[key] = struct{}{}
			}

			row := toMetricRow(rep, raw, name, cls, numeric)
			cn.rows = append(cn.rows, row)
			h.stats.KeptRows++

			switch cls.Kind {
			case branches.KindZoneRollup:
				zn := cn.zone(cls.Zone)
				zn.rows = append(zn.rows, row)
			case branches.KindLeaf:
				slot := leafSlot{org: cls.OrgType, cluster: cls.Cluster, zone: cls.Zone, key: strings.ToLower(name)}
				if prev, ok := leafNames[slot]; !ok || name < prev {
					leafNames[slot] = name
				}
				if cls.Zone != "" {
					cn.zone(cls.Zone)
				}
			}
		}
	}

	for slot, name := range leafNames {
		cn := h.orgs[slot.org][slot.cluster]
		if slot.zone == "" {
			cn.branches = append(cn.branches, name)
		} else {
			zn := cn.zones[slot.zone]
			zn.branches = append(zn.branches, name)
		}
	}
	for _, clusters := range h.orgs {
		for _, cn := range clusters {
			sortRows(cn.rows)
			sort.Strings(cn.branches)
			for _, zn := range cn.zones {
				sortRows(zn.rows)
				sort.Strings(zn.branches)
			}
		}
	}

	h.stats.DroppedNames = lo.Keys(dropped)
	sort.Strings(h.stats.DroppedNames)
	return h
}

type leafSlot struct {
	org     branches.OrgType
	cluster string
	zone    string
	key     string
}

func (h *Hierarchy) cluster(org branches.OrgType, name string) *ClusterNode {
	clusters, ok := h.orgs[org]
	if !ok {
		clusters = make(map[string]*ClusterNode)
		h.orgs[org] = clusters
	}
	cn, ok := clusters[name]
	if !ok {
		cn = &ClusterNode{name: name, orgType: org, zones: make(map[string]*ZoneNode)}
		clusters[name] = cn
	}
	return cn
}

func (c *ClusterNode) zone(name string) *ZoneNode {
	zn, ok := c.zones[name]
	if !ok {
		zn = &ZoneNode{name: name}
		c.zones[name] = zn
	}
	return zn
}

func toMetricRow(rep Report, raw RawRow, name string, cls branches.Classification, numeric map[string]struct{}) MetricRow {
	row := MetricRow{
		BranchName: name,
		ReportDate: rep.Date,
		ReportID:   rep.ID,
		FileName:   rep.FileName,
		Kind:       cls.Kind,
		OrgType:    cls.OrgType,
		Cluster:    cls.Cluster,
		Zone:       cls.Zone,
		Metrics:    make(map[string]float64),
	}
	for col, v := range raw {
		if col == BranchColumn || v == nil {
			continue
		}
		if _, ok := numeric[col]; ok {
			// malformed values in a numeric column are absent for this row
			if f, ok := asNumber(v); ok {
				row.Metrics[col] = f
			}
			continue
		}
		s := attributeValue(v)
		if s == "" {
			continue
		}
		if row.Attributes == nil {
			row.Attributes = make(map[string]string)
		}
		row.Attributes[col] = s
	}
	return row
}

// DetectNumericColumns returns, sorted, the columns that carry a number in at
// least one row of the dataset, excluding the branch column and date-like headers.
func DetectNumericColumns(reports []Report) []string {
	cols := make(map[string]struct{})
	for _, rep := range reports {
		for _, raw := range rep.Rows {
			for col, v := range raw {
				if _, done := cols[col]; done {
					continue
				}
				if col == BranchColumn || isDateLikeHeader(col) {
					continue
				}
				if _, ok := asNumber(v); ok {
					cols[col] = struct{}{}
				}
			}
		}
	}
	out := lo.Keys(cols)
	sort.Strings(out)
	return out
}

var dateLikeHints = []string{"date", "time", "created", "updated"}

func isDateLikeHeader(col string) bool {
	lc := strings.ToLower(col)
	return lo.SomeBy(dateLikeHints, func(h string) bool { return strings.Contains(lc, h) })
}

func asNumber(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case int32:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint64:
		f = float64(n)
	case uint32:
		f = float64(n)
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func branchValue(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		return fmt.Sprint(s)
	}
}

func attributeValue(v any) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case time.Time:
		return s.UTC().Format(time.RFC3339)
	case bool:
		return strconv.FormatBool(s)
	default:
		if f, ok := asNumber(v); ok {
			return strconv.FormatFloat(f, 'f', -1, 64)
		}
		return fmt.Sprint(s)
	}
}

// sortRows puts rows in canonical order so that the same multiset of input rows
// always yields the same node contents.
func sortRows(rows []MetricRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if ka, kb := DateKey(a.ReportDate), DateKey(b.ReportDate); ka != kb {
			return ka < kb
		}
		if !a.ReportDate.Equal(b.ReportDate) {
			return a.ReportDate.Before(b.ReportDate)
		}
		if a.ReportID != b.ReportID {
			return a.ReportID < b.ReportID
		}
		if a.FileName != b.FileName {
			return a.FileName < b.FileName
		}
		if a.BranchName != b.BranchName {
			return a.BranchName < b.BranchName
		}
		return rowDigest(a) < rowDigest(b)
	})
}

func rowDigest(r MetricRow) string {
	var sb strings.Builder
	keys := lo.Keys(r.Metrics)
	sort.Strings(keys)
	for _, k := range keys {
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(strconv.FormatFloat(r.Metrics[k], 'g', -1, 64))
		sb.WriteByte(';')
	}
	keys = lo.Keys(r.Attributes)
	sort.Strings(keys)
	for _, k := range keys {
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(r.Attributes[k])
		sb.WriteByte(';')
	}
	return sb.String()
}
