package insights

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"github.com/vinodismyname/branchrollup/internal/branches"
	"github.com/vinodismyname/branchrollup/internal/rollup"
	"github.com/vinodismyname/branchrollup/internal/runtime"
	"github.com/vinodismyname/branchrollup/internal/sheets"
	"github.com/vinodismyname/branchrollup/pkg/pagination"
)

// Granularity values accepted by series-returning tools.
const (
	Daily   = "daily"
	Monthly = "monthly"
)

// Selection names one node of the org type > cluster > zone > branch tree.
// Empty levels below org_type mean Total.
type Selection struct {
	OrgType string `json:"org_type" validate:"required,org_type" jsonschema_description:"Org type: CS, LBF or SME"`
	Cluster string `json:"cluster,omitempty" jsonschema_description:"Cluster name, or Total (default)"`
	Zone    string `json:"zone,omitempty" jsonschema_description:"Zone name (CS only), or Total (default)"`
	Branch  string `json:"branch,omitempty" jsonschema_description:"Branch name, or Total (default)"`
}

// Path converts the selection into a rollup selection path.
func (s Selection) Path() (rollup.SelectionPath, error) {
	org, err := branches.ParseOrgType(s.OrgType)
	if err != nil {
		return rollup.SelectionPath{}, err
	}
	return rollup.SelectionPath{OrgType: org, Cluster: s.Cluster, Zone: s.Zone, Branch: s.Branch}, nil
}

// key is a stable, case-insensitive identity of the selection for cursors.
func (s Selection) key() string {
	level := func(v string) string {
		v = strings.ToLower(branches.NormalizeName(v))
		if v == "" {
			return strings.ToLower(rollup.Total)
		}
		return v
	}
	return strings.Join([]string{strings.ToUpper(strings.TrimSpace(s.OrgType)), level(s.Cluster), level(s.Zone), level(s.Branch)}, "/")
}

// ErrInvalidSelection wraps selection errors that come from caller input.
var ErrInvalidSelection = errors.New("insights: invalid selection")

// Analyzer loads report sets, builds hierarchies and answers selection queries.
type Analyzer struct {
	Limits  runtime.Limits
	Loader  *sheets.Loader
	Builder *rollup.Builder
	Store   *DatasetStore
}

// Dataset returns the hierarchy for a report set, loading and building it when
// it is not cached.
func (a *Analyzer) Dataset(ctx context.Context, refs []sheets.ReportRef) (*Dataset, error) {
	key := datasetKey(refs)
	if a.Store != nil {
		if d, ok := a.Store.Get(key); ok {
			return d, nil
		}
	}

	reports, err := a.Loader.Load(ctx, refs)
	if err != nil {
		return nil, err
	}
	builder := a.Builder
	if builder == nil {
		builder = &rollup.Builder{}
	}
	h := builder.Build(reports)

	st := h.Stats()
	log := zerolog.Ctx(ctx)
	if st.DroppedRows > 0 {
		log.Warn().
			Int("dropped_rows", st.DroppedRows).
			Strs("names", st.DroppedNames).
			Msg("rows with unmapped branch names dropped")
	}
	log.Debug().Str("dataset", key).Int("reports", st.Reports).Int("kept_rows", st.KeptRows).Msg("dataset built")

	d := &Dataset{Key: key, Hierarchy: h, Reports: len(reports)}
	if a.Store != nil {
		a.Store.Put(d)
	}
	return d, nil
}

// datasetKey fingerprints the report references together with each file's
// modification time, so edited reports produce a new dataset.
func datasetKey(refs []sheets.ReportRef) string {
	parts := lo.FlatMap(refs, func(r sheets.ReportRef, _ int) []string {
		mod := ""
		if info, err := os.Stat(r.Path); err == nil {
			mod = strconv.FormatInt(info.ModTime().UnixNano(), 10)
		}
		return []string{r.Path, r.ID, r.FileName, strings.TrimSpace(r.Date), mod}
	})
	return pagination.Fingerprint(parts...)
}

// window parses optional inclusive date bounds.
func window(from, to string) (rollup.Window, error) {
	w, err := rollup.ParseWindow(from, to)
	if err != nil {
		return w, fmt.Errorf("%w: %v", ErrInvalidSelection, err)
	}
	return w, nil
}

// series resolves the selection, applies the window and granularity.
func series(h *rollup.Hierarchy, sel Selection, w rollup.Window, granularity string) ([]rollup.AggregatedPoint, error) {
	path, err := sel.Path()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSelection, err)
	}
	points, err := rollup.Resolve(h, path)
	if err != nil {
		if errors.Is(err, rollup.ErrZonesUnsupported) || errors.Is(err, branches.ErrUnknownOrgType) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSelection, err)
		}
		return nil, err
	}
	points = w.Filter(points)
	if granularity == Monthly {
		points = rollup.Monthly(points)
	}
	return points, nil
}
