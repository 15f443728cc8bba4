package rollup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vinodismyname/branchrollup/internal/branches"
)

func TestAggregateByDate_SumsAndKeepsFirstMetadata(t *testing.T) {
	rows := []MetricRow{
		{BranchName: "Arusha", ReportDate: day(t, "2024-01-06"), ReportID: "b", FileName: "b.xlsx", Metrics: map[string]float64{"D": 1}, Attributes: map[string]string{"Note": "first"}},
		{BranchName: "Arusha", ReportDate: day(t, "2024-01-05"), ReportID: "a", FileName: "a.xlsx", Metrics: map[string]float64{"D": 2, "C": 1}},
		{BranchName: "Arusha", ReportDate: day(t, "2024-01-06").Add(13 * time.Hour), ReportID: "c", FileName: "c.xlsx", Metrics: map[string]float64{"D": 3}, Attributes: map[string]string{"Note": "last"}},
	}
	got := AggregateByDate(rows, "Arusha", DefaultExempt())
	require.Len(t, got, 2)
	require.Equal(t, "2024-01-05", got[0].Date)
	require.Equal(t, 2.0, got[0].Value("D"))
	require.Equal(t, 1, got[0].RowCount)

	require.Equal(t, "2024-01-06", got[1].Date)
	require.Equal(t, 4.0, got[1].Value("D"))
	require.Equal(t, 0.0, got[1].Value("C"))
	require.Equal(t, "b", got[1].ReportID)
	require.Equal(t, "b.xlsx", got[1].FileName)
	require.Equal(t, "last", got[1].Attributes["Note"])
	require.Equal(t, 2, got[1].RowCount)

	require.Equal(t, 1.0, rows[0].Metrics["D"], "input rows must not be mutated")
}

func TestAggregateByDate_ExemptNoDoubleCount(t *testing.T) {
	rows := []MetricRow{
		{BranchName: "ZANZIBAR", ReportDate: day(t, "2024-03-01"), ReportID: "first", Metrics: map[string]float64{"D": 500}},
		{BranchName: "ZANZIBAR", ReportDate: day(t, "2024-03-01"), ReportID: "second", Metrics: map[string]float64{"D": 520}},
	}
	got := AggregateByDate(rows, "zanzibar", DefaultExempt())
	require.Len(t, got, 1)
	require.Equal(t, 500.0, got[0].Value("D"))
	require.Equal(t, "first", got[0].ReportID)

	summed := AggregateByDate(rows, "Arusha", DefaultExempt())
	require.Equal(t, 1020.0, summed[0].Value("D"))
}

func TestAggregateByDate_Empty(t *testing.T) {
	require.Empty(t, AggregateByDate(nil, "", DefaultExempt()))
}

func TestExemptSet(t *testing.T) {
	s := DefaultExempt()
	require.True(t, s.Contains(" cs  call CENTER"))
	require.True(t, s.Contains("ZANZIBAR"))
	require.False(t, s.Contains("Cluster 1"))
	require.Equal(t, []string{"CS Call center", "ZANZIBAR"}, s.Names())
}

func TestResolve_ZoneFallsBackToLeafRows(t *testing.T) {
	reps := []Report{report(t, "r", "2024-01-05",
		RawRow{"Branch": "Arusha", "Disbursements": 100.0},
		RawRow{"Branch": "Korogwe", "Disbursements": 50.0},
	)}
	h := (&Builder{}).Build(reps)
	got, err := Resolve(h, SelectionPath{OrgType: branches.CS, Cluster: "Cluster 1", Zone: "Northern Zone", Branch: Total})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "2024-01-05", got[0].Date)
	require.Equal(t, 150.0, got[0].Value("Disbursements"))
}

func TestResolve_ZoneRollupWinsOverLeaves(t *testing.T) {
	reps := []Report{report(t, "r", "2024-01-05",
		RawRow{"Branch": "Arusha", "Disbursements": 100.0},
		RawRow{"Branch": "Korogwe", "Disbursements": 50.0},
		RawRow{"Branch": "Northern Zone", "Disbursements": 175.0},
	)}
	h := (&Builder{}).Build(reps)
	got, err := Resolve(h, SelectionPath{OrgType: branches.CS, Cluster: "Cluster 1", Zone: "Northern Zone"})
	require.NoError(t, err)
	require.Equal(t, 175.0, got[0].Value("Disbursements"))

	// no cluster rollup row: the cluster is the sum of its zones
	cl, err := Resolve(h, SelectionPath{OrgType: branches.CS, Cluster: "Cluster 1"})
	require.NoError(t, err)
	require.Equal(t, 175.0, cl[0].Value("Disbursements"))
}

func TestResolve_ClusterRollupWins(t *testing.T) {
	reps := []Report{report(t, "r", "2024-01-05",
		RawRow{"Branch": "Mwanza", "Disbursements": 70.0},
		RawRow{"Branch": "Western Zone", "Disbursements": 90.0},
		RawRow{"Branch": "Cluster 2", "Disbursements": 400.0},
	)}
	h := (&Builder{}).Build(reps)
	got, err := Resolve(h, SelectionPath{OrgType: branches.CS, Cluster: "Cluster 2"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, 400.0, got[0].Value("Disbursements"))
	require.Equal(t, 1, got[0].RowCount)
}

func TestResolve_SumConsistencyWithoutRollups(t *testing.T) {
	reps := []Report{
		report(t, "r1", "2024-01-05",
			RawRow{"Branch": "Arusha", "Disbursements": 100.0, "Count": 1.0},
			RawRow{"Branch": "Dodoma", "Disbursements": 20.0},
			RawRow{"Branch": "Kibaha", "Disbursements": 7.0, "Count": 2.0},
		),
		report(t, "r2", "2024-01-06",
			RawRow{"Branch": "Arusha", "Disbursements": 110.0},
			RawRow{"Branch": "Kibaha", "Disbursements": 8.0},
		),
		report(t, "r3", "2024-01-06",
			RawRow{"Branch": "Arusha", "Disbursements": 1.0},
		),
	}
	h := (&Builder{}).Build(reps)
	cluster, err := Resolve(h, SelectionPath{OrgType: branches.CS, Cluster: "Cluster 1", Zone: Total, Branch: Total})
	require.NoError(t, err)

	cn, _ := h.Cluster(branches.CS, "Cluster 1")
	var parts [][]AggregatedPoint
	for _, b := range cn.LeafBranches() {
		s, err := Resolve(h, SelectionPath{OrgType: branches.CS, Cluster: "Cluster 1", Branch: b})
		require.NoError(t, err)
		parts = append(parts, s)
	}
	want := sumSeries(parts...)
	require.Len(t, cluster, len(want))
	for i := range want {
		require.Equal(t, want[i].Date, cluster[i].Date)
		require.Equal(t, want[i].Metrics, cluster[i].Metrics)
	}
	require.Equal(t, 127.0, cluster[0].Value("Disbursements"))
	require.Equal(t, 119.0, cluster[1].Value("Disbursements"))
}

func TestResolve_BranchFilter(t *testing.T) {
	h := (&Builder{}).Build(sampleReports(t))
	got, err := Resolve(h, SelectionPath{OrgType: branches.CS, Cluster: "Cluster 1", Zone: "Northern Zone", Branch: "ARUSHA"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, 100.0, got[0].Value("Disbursements"))
	require.Equal(t, 110.0, got[1].Value("Disbursements"))

	// cluster Total searches every cluster of the org type
	got, err = Resolve(h, SelectionPath{OrgType: branches.CS, Branch: "Mwanza"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, 70.0, got[0].Value("Disbursements"))
}

func TestResolve_OrgTotalSumsClusters(t *testing.T) {
	h := (&Builder{}).Build(sampleReports(t))
	got, err := Resolve(h, SelectionPath{OrgType: branches.CS, Cluster: Total})
	require.NoError(t, err)
	require.Len(t, got, 2)
	// only cluster rollup rows count: leaves and zone rollups never reach the total
	require.Equal(t, "2024-01-05", got[0].Date)
	require.Equal(t, 400.0, got[0].Value("Disbursements"))
	require.Equal(t, 1, got[0].RowCount)
	require.Equal(t, "2024-01-06", got[1].Date)
	require.Equal(t, 80.0, got[1].Value("Disbursements"))
}

func TestResolve_OrgTotalIgnoresLeafFallback(t *testing.T) {
	h := (&Builder{}).Build([]Report{
		report(t, "r1", "2024-01-05",
			RawRow{"Branch": "Cluster 2", "Disbursements": 400.0},
			RawRow{"Branch": "Arusha", "Disbursements": 100.0},
			RawRow{"Branch": "Korogwe", "Disbursements": 50.0},
		),
	})
	got, err := Resolve(h, SelectionPath{OrgType: branches.CS})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, 400.0, got[0].Value("Disbursements"))

	// Cluster 1 on its own still falls back to its leaves
	c1, err := Resolve(h, SelectionPath{OrgType: branches.CS, Cluster: "Cluster 1"})
	require.NoError(t, err)
	require.Equal(t, 150.0, c1[0].Value("Disbursements"))

	// an org type without any cluster rollup row has an empty total
	lbf := (&Builder{}).Build([]Report{
		report(t, "r1", "2024-01-05", RawRow{"Branch": "LBF Tabata", "Disbursements": 5.0}),
	})
	got, err = Resolve(lbf, SelectionPath{OrgType: branches.LBF})
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestResolve_ErrorsAndEmpty(t *testing.T) {
	h := (&Builder{}).Build(sampleReports(t))

	_, err := Resolve(h, SelectionPath{OrgType: "RETAIL"})
	require.ErrorIs(t, err, branches.ErrUnknownOrgType)

	_, err = Resolve(h, SelectionPath{OrgType: branches.LBF, Cluster: branches.LBFCluster, Zone: "Northern Zone"})
	require.ErrorIs(t, err, ErrZonesUnsupported)

	got, err := Resolve(h, SelectionPath{OrgType: branches.CS, Cluster: "Cluster 9"})
	require.NoError(t, err)
	require.Empty(t, got)

	got, err = Resolve(h, SelectionPath{OrgType: branches.CS, Cluster: "Cluster 3", Zone: "Nyasa Zone"})
	require.NoError(t, err)
	require.Empty(t, got)

	got, err = Resolve(h, SelectionPath{OrgType: branches.CS, Cluster: "Cluster 1", Branch: "New Branch XYZ"})
	require.NoError(t, err)
	require.Empty(t, got)
}
