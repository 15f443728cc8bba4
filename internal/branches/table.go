package branches

// Cluster and zone names as they appear in the Branch column of the Country
// sheet. Rows carrying these names are upstream rollups, not branches.
const (
	Cluster1      = "Cluster 1"
	Cluster2      = "Cluster 2"
	Cluster3      = "Cluster 3"
	Zanzibar      = "ZANZIBAR"
	CSCallCenter  = "CS Call center"
	LBFCallCenter = "Lbf Call Center"
	LBFCluster    = "Lbf Cluster"
	SMEs          = "SMEs"

	NorthernZone         = "Northern Zone"
	PwaniZone            = "Pwani Zone"
	CentralZone          = "Central Zone"
	WesternZone          = "Western Zone"
	LakeVictoriaZone     = "Lake Victoria Zone"
	HighlandZone         = "Highland Zone"
	SouthernHighlandZone = "Southern Highland Zone"
	NyasaZone            = "Nyasa Zone"
)

var clusterOrder = map[OrgType][]string{
	CS:  {Cluster1, Cluster2, Cluster3, Zanzibar, CSCallCenter},
	LBF: {LBFCallCenter, LBFCluster},
	SME: {SMEs},
}

var zoneOrder = map[string][]string{
	Cluster1: {NorthernZone, PwaniZone, CentralZone},
	Cluster2: {WesternZone, LakeVictoriaZone, HighlandZone},
	Cluster3: {SouthernHighlandZone, NyasaZone},
}

func cs(cluster, zone string) Mapping { return Mapping{OrgType: CS, Cluster: cluster, Zone: zone} }

var defaultTable = map[string]Mapping{
	"Arusha":  cs(Cluster1, NorthernZone),
	"Korogwe": cs(Cluster1, NorthernZone),
	"Lushoto": cs(Cluster1, NorthernZone),
	"Moshi":   cs(Cluster1, NorthernZone),
	"Tanga":   cs(Cluster1, NorthernZone),

	"Dar es Salaam": cs(Cluster1, PwaniZone),
	"Kibaha":        cs(Cluster1, PwaniZone),
	"Lindi":         cs(Cluster1, PwaniZone),
	"Mkuranga":      cs(Cluster1, PwaniZone),

	"Dodoma":   cs(Cluster1, CentralZone),
	"Kilosa":   cs(Cluster1, CentralZone),
	"Manyara":  cs(Cluster1, CentralZone),
	"Morogoro": cs(Cluster1, CentralZone),
	"Singida":  cs(Cluster1, CentralZone),

	"Bariadi":   cs(Cluster2, WesternZone),
	"Chato":     cs(Cluster2, WesternZone),
	"Geita":     cs(Cluster2, WesternZone),
	"Kahama":    cs(Cluster2, WesternZone),
	"Shinyanga": cs(Cluster2, WesternZone),

	"Bukoba":  cs(Cluster2, LakeVictoriaZone),
	"Musoma":  cs(Cluster2, LakeVictoriaZone),
	"Mwanza":  cs(Cluster2, LakeVictoriaZone),
	"Ukerewe": cs(Cluster2, LakeVictoriaZone),

	"Kasulu": cs(Cluster2, HighlandZone),
	"Kigoma": cs(Cluster2, HighlandZone),
	"Nzega":  cs(Cluster2, HighlandZone),
	"Tabora": cs(Cluster2, HighlandZone),
	"Urambo": cs(Cluster2, HighlandZone),

	"Ifakara":    cs(Cluster3, SouthernHighlandZone),
	"Iringa":     cs(Cluster3, SouthernHighlandZone),
	"Mbeya":      cs(Cluster3, SouthernHighlandZone),
	"Mpanda":     cs(Cluster3, SouthernHighlandZone),
	"Sumbawanga": cs(Cluster3, SouthernHighlandZone),
	"Vwawa":      cs(Cluster3, SouthernHighlandZone),

	"Masasi":     cs(Cluster3, NyasaZone),
	"Mtwara":     cs(Cluster3, NyasaZone),
	"Nachingwea": cs(Cluster3, NyasaZone),
	"Njombe":     cs(Cluster3, NyasaZone),
	"Songea":     cs(Cluster3, NyasaZone),
	"Tunduru":    cs(Cluster3, NyasaZone),

	"Michenzani Mall Branch": cs(Zanzibar, ""),
	"Pemba Branch":           cs(Zanzibar, ""),
	"Zanzibar Main Branch":   cs(Zanzibar, ""),

	// Shadowed by the CS Call center rollup sentinel; kept so Lookup answers for it.
	"CS Call center": cs(CSCallCenter, ""),

	"Lbf Call Center zone": {OrgType: LBF, Cluster: LBFCallCenter},
	"LBF Call Center":      {OrgType: LBF, Cluster: LBFCallCenter},

	"LBF Arusha Branch":    {OrgType: LBF, Cluster: LBFCluster},
	"LBF Babati Branch":    {OrgType: LBF, Cluster: LBFCluster},
	"LBF CITY CENTRE":      {OrgType: LBF, Cluster: LBFCluster},
	"LBF City Mall":        {OrgType: LBF, Cluster: LBFCluster},
	"LBF Geita":            {OrgType: LBF, Cluster: LBFCluster},
	"LBF IRINGA BRANCH":    {OrgType: LBF, Cluster: LBFCluster},
	"LBF KIGAMBONI BRANCH": {OrgType: LBF, Cluster: LBFCluster},
	"LBF Kahama Branch":    {OrgType: LBF, Cluster: LBFCluster},
	"LBF Kigoma Branch":    {OrgType: LBF, Cluster: LBFCluster},
	"LBF MOROGORO BRANCH":  {OrgType: LBF, Cluster: LBFCluster},
	"LBF Mikocheni Branch": {OrgType: LBF, Cluster: LBFCluster},
	"LBF Mlimani Branch":   {OrgType: LBF, Cluster: LBFCluster},
	"LBF Musoma Branch":    {OrgType: LBF, Cluster: LBFCluster},
	"LBF Mwanza Branch":    {OrgType: LBF, Cluster: LBFCluster},
	"LBF NJOMBE":           {OrgType: LBF, Cluster: LBFCluster},
	"LBF Office Dodoma":    {OrgType: LBF, Cluster: LBFCluster},
	"LBF TAZARA BRANCH":    {OrgType: LBF, Cluster: LBFCluster},
	"LBF Tabata":           {OrgType: LBF, Cluster: LBFCluster},
	"LBF Tanga":            {OrgType: LBF, Cluster: LBFCluster},
	"LBF Tegeta Branch":    {OrgType: LBF, Cluster: LBFCluster},
	"LBF office Mbeya":     {OrgType: LBF, Cluster: LBFCluster},

	"SME ARUSHA BRANCH":   {OrgType: SME, Cluster: SMEs},
	"SME MBEYA BRANCH":    {OrgType: SME, Cluster: SMEs},
	"SME MOROGORO BRANCH": {OrgType: SME, Cluster: SMEs},
	"SME Njombe":          {OrgType: SME, Cluster: SMEs},
	"SME Tazara Branch":   {OrgType: SME, Cluster: SMEs},
}
