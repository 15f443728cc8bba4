package branches

// Kind tells what a row's Branch value denotes.
type Kind int

const (
	KindLeaf Kind = iota
	KindZoneRollup
	KindClusterRollup
)

func (k Kind) String() string {
	switch k {
	case KindLeaf:
		return "leaf"
	case KindZoneRollup:
		return "zone_rollup"
	case KindClusterRollup:
		return "cluster_rollup"
	}
	return "unknown"
}

// Classification is the outcome of classifying a branch name. For rollups,
// Cluster and Zone name the node the row totals.
type Classification struct {
	Kind    Kind
	OrgType OrgType
	Cluster string
	Zone    string
}

// sentinels holds the cluster and zone names that appear as Branch values on
// pre-aggregated rows, keyed by nameKey.
var sentinels = buildSentinels()

func buildSentinels() map[string]Classification {
	out := make(map[string]Classification)
	for org, clusters := range clusterOrder {
		for _, c := range clusters {
			out[nameKey(c)] = Classification{Kind: KindClusterRollup, OrgType: org, Cluster: c}
			for _, z := range zoneOrder[c] {
				out[nameKey(z)] = Classification{Kind: KindZoneRollup, OrgType: org, Cluster: c, Zone: z}
			}
		}
	}
	return out
}

// IsRollupName reports whether name is a cluster or zone sentinel.
func IsRollupName(name string) bool {
	_, ok := sentinels[nameKey(name)]
	return ok
}

// Classify decides whether name is a cluster rollup, a zone rollup or a leaf
// branch. Sentinel names win over the branch table. A false result means the
// name is unmapped and the row must be discarded.
func (m *Mapper) Classify(name string) (Classification, bool) {
	if c, ok := sentinels[nameKey(name)]; ok {
		return c, true
	}
	mp, ok := m.Lookup(name)
	if !ok {
		return Classification{}, false
	}
	return Classification{Kind: KindLeaf, OrgType: mp.OrgType, Cluster: mp.Cluster, Zone: mp.Zone}, true
}
