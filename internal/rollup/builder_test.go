package rollup

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vinodismyname/branchrollup/internal/branches"
)

func day(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse(time.DateOnly, s)
	require.NoError(t, err)
	return d
}

func report(t *testing.T, id, date string, rows ...RawRow) Report {
	t.Helper()
	return Report{ID: id, FileName: id + ".xlsx", Date: day(t, date), Rows: rows}
}

func sampleReports(t *testing.T) []Report {
	t.Helper()
	return []Report{
		report(t, "r1", "2024-01-05",
			RawRow{"Branch": "Arusha", "Disbursements": 100.0, "Region": "North"},
			RawRow{"Branch": "Korogwe", "Disbursements": 50.0},
			RawRow{"Branch": "Mwanza", "Disbursements": 70.0, "Collections": 5},
			RawRow{"Branch": "Cluster 2", "Disbursements": 400.0},
			RawRow{"Branch": "Pemba Branch", "Disbursements": 9.0},
			RawRow{"Branch": "LBF Tabata", "Disbursements": 30.0},
			RawRow{"Branch": "SMEs", "Disbursements": 12.0},
			RawRow{"Branch": "New Branch XYZ", "Disbursements": 999.0},
			RawRow{"Branch": "", "Disbursements": 1.0},
		),
		report(t, "r2", "2024-01-06",
			RawRow{"Branch": "arusha ", "Disbursements": 110.0, "Report Date": 45000.0},
			RawRow{"Branch": "Northern Zone", "Disbursements": 160.0},
			RawRow{"Branch": "ZANZIBAR", "Disbursements": 80.0},
			RawRow{"Branch": "LBF  Tabata", "Disbursements": "n/a"},
		),
	}
}

func TestBuild_PlacesRowsByKind(t *testing.T) {
	h := (&Builder{}).Build(sampleReports(t))

	require.Equal(t, []branches.OrgType{branches.CS, branches.LBF, branches.SME}, h.OrgTypes())
	require.Equal(t, []string{"Cluster 1", "Cluster 2", "ZANZIBAR"}, h.Clusters(branches.CS))

	c1, ok := h.Cluster(branches.CS, "cluster 1")
	require.True(t, ok)
	require.Len(t, c1.Rows(), 4)
	require.Equal(t, []string{"Northern Zone"}, c1.Zones())
	require.Empty(t, c1.Branches())

	nz, ok := c1.Zone("Northern Zone")
	require.True(t, ok)
	require.Equal(t, []string{"Arusha", "Korogwe"}, nz.Branches())
	require.Len(t, nz.Rows(), 1)
	require.Equal(t, "Northern Zone", nz.Rows()[0].BranchName)
	require.True(t, nz.HasRollup())
	require.False(t, c1.HasRollup())

	zan, ok := h.Cluster(branches.CS, branches.Zanzibar)
	require.True(t, ok)
	require.Equal(t, []string{"Pemba Branch"}, zan.Branches())
	require.Equal(t, []string{"Pemba Branch"}, zan.LeafBranches())
	require.True(t, zan.HasRollup())

	lbf, ok := h.Cluster(branches.LBF, branches.LBFCluster)
	require.True(t, ok)
	require.Equal(t, []string{"LBF Tabata"}, lbf.Branches())
	rows := lbf.Rows()
	require.Len(t, rows, 2)
	_, has := rows[1].Metrics["Disbursements"]
	require.False(t, has, "malformed metric must be absent")

	require.Equal(t, []string{"Collections", "Disbursements"}, h.NumericColumns())

	st := h.Stats()
	require.Equal(t, 2, st.Reports)
	require.Equal(t, 13, st.Rows)
	require.Equal(t, 1, st.DroppedRows)
	require.Equal(t, []string{"New Branch XYZ"}, st.DroppedNames)
	require.Equal(t, 1, st.BlankRows)
	require.Equal(t, 11, st.KeptRows)
}

func TestBuild_AttributesAndDateColumns(t *testing.T) {
	h := (&Builder{}).Build(sampleReports(t))
	c1, _ := h.Cluster(branches.CS, branches.Cluster1)
	var found bool
	for _, r := range c1.Rows() {
		if r.ReportID == "r2" && r.BranchName == "arusha" {
			found = true
			require.Equal(t, "45000", r.Attributes["Report Date"])
			require.NotContains(t, r.Metrics, "Report Date")
		}
		if r.BranchName == "Arusha" {
			require.Equal(t, "North", r.Attributes["Region"])
		}
	}
	require.True(t, found)
}

func TestBuild_UnmappedNeverAppears(t *testing.T) {
	h := (&Builder{}).Build(sampleReports(t))
	for _, org := range h.OrgTypes() {
		for _, c := range h.Clusters(org) {
			cn, _ := h.Cluster(org, c)
			require.NotContains(t, cn.LeafBranches(), "New Branch XYZ")
			for _, r := range cn.Rows() {
				require.NotEqual(t, "New Branch XYZ", r.BranchName)
			}
		}
	}
}

func TestBuild_Idempotent(t *testing.T) {
	b := &Builder{}
	require.Equal(t, b.Build(sampleReports(t)), b.Build(sampleReports(t)))
}

func TestBuild_OrderIndependent(t *testing.T) {
	reps := sampleReports(t)
	want := (&Builder{}).Build(reps)

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 10; i++ {
		shuffled := make([]Report, len(reps))
		for j, r := range reps {
			rows := append([]RawRow(nil), r.Rows...)
			rng.Shuffle(len(rows), func(a, b int) { rows[a], rows[b] = rows[b], rows[a] })
			r.Rows = rows
			shuffled[j] = r
		}
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		require.Equal(t, want, (&Builder{}).Build(shuffled))
	}
}

func TestBuild_ExemptFirstReportWins(t *testing.T) {
	reps := []Report{
		report(t, "early", "2024-02-01", RawRow{"Branch": "CS Call center", "Disbursements": 200.0}),
		report(t, "late", "2024-02-01", RawRow{"Branch": "CS Call center", "Disbursements": 210.0}),
	}
	h := (&Builder{}).Build(reps)
	cn, ok := h.Cluster(branches.CS, branches.CSCallCenter)
	require.True(t, ok)
	rows := cn.Rows()
	require.Len(t, rows, 1)
	require.Equal(t, "early", rows[0].ReportID)
	require.Equal(t, 1, h.Stats().ExemptSkipped)

	series, err := Resolve(h, SelectionPath{OrgType: branches.CS, Cluster: branches.CSCallCenter})
	require.NoError(t, err)
	require.Len(t, series, 1)
	require.Equal(t, "2024-02-01", series[0].Date)
	require.Equal(t, 200.0, series[0].Value("Disbursements"))
}

func TestBuild_CustomExemptSet(t *testing.T) {
	reps := []Report{
		report(t, "a", "2024-02-01", RawRow{"Branch": "ZANZIBAR", "Disbursements": 1.0}),
		report(t, "b", "2024-02-01", RawRow{"Branch": "ZANZIBAR", "Disbursements": 2.0}),
	}
	h := (&Builder{Exempt: NewExemptSet()}).Build(reps)
	series, err := Resolve(h, SelectionPath{OrgType: branches.CS, Cluster: branches.Zanzibar})
	require.NoError(t, err)
	require.Len(t, series, 1)
	require.Equal(t, 3.0, series[0].Value("Disbursements"))
}

func TestBuild_LeavesDisjointAcrossClusters(t *testing.T) {
	h := (&Builder{}).Build(sampleReports(t))
	for _, org := range h.OrgTypes() {
		owner := map[string]string{}
		for _, c := range h.Clusters(org) {
			cn, _ := h.Cluster(org, c)
			for _, b := range cn.LeafBranches() {
				prev, dup := owner[b]
				require.False(t, dup, "%s under %s and %s", b, prev, c)
				owner[b] = c
			}
		}
	}
}

func TestBuild_AccessorsReturnCopies(t *testing.T) {
	h := (&Builder{}).Build(sampleReports(t))
	c1, _ := h.Cluster(branches.CS, branches.Cluster1)
	rows := c1.Rows()
	rows[0].Metrics["Disbursements"] = -1
	rows[0].BranchName = "mutated"
	again := c1.Rows()
	require.NotEqual(t, "mutated", again[0].BranchName)
	require.NotEqual(t, -1.0, again[0].Metrics["Disbursements"])
}

func TestBuild_Empty(t *testing.T) {
	h := (&Builder{}).Build(nil)
	require.True(t, h.Empty())
	require.Empty(t, h.OrgTypes())
	series, err := Resolve(h, SelectionPath{OrgType: branches.CS})
	require.NoError(t, err)
	require.Empty(t, series)
}

func TestDetectNumericColumns(t *testing.T) {
	reps := []Report{
		report(t, "a", "2024-01-01",
			RawRow{"Branch": "Arusha", "Amount": "oops", "Created At": 3.0, "Count": int64(4)},
			RawRow{"Branch": 12.0, "Amount": 5.0, "Note": "x"},
		),
	}
	require.Equal(t, []string{"Amount", "Count"}, DetectNumericColumns(reps))
}
