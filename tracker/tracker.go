// Package tracker implements spec.md §4.7's front-end interface: per-frame
// feature accumulation into running tracks, grid-downsampling to bound
// density, and a terminate-or-continue state machine that hands off
// completed tracks to ekf/msckfupdate.
//
// Grounded on fusion/dim_constrain.go's DimConstrain history-ring-buffer
// (per-anchor rolling [hisLen][...] arrays examined each sample) adapted
// from per-anchor range history to per-feature pixel-track history.
package tracker

import (
	"math"

	"ekfcal-go/tsqueue"
)

// Config holds spec.md §6's per-tracker key tree.
type Config struct {
	MinTrackLength int
	MaxTrackLength int
	MinFeatDist    float64
	GridRows       int
	GridCols       int
	FrameWidth     float64
	FrameHeight    float64
}

// Tracker accumulates FeaturePoints into running tracks keyed by a
// synthetic feature id assigned on first sighting (spec.md §4.7: the
// upstream frame source has no persistent feature identity, only raw
// per-frame pixel detections, so correspondence across frames is nearest-
// neighbor matched here under min_feat_dist).
type Tracker struct {
	cfg Config

	active map[uint64][]tsqueue.FeaturePoint
	latest map[uint64]tsqueue.FeaturePoint
	nextID uint64
}

// New returns an empty Tracker for the given configuration.
func New(cfg Config) *Tracker {
	return &Tracker{
		cfg:    cfg,
		active: map[uint64][]tsqueue.FeaturePoint{},
		latest: map[uint64]tsqueue.FeaturePoint{},
	}
}

// ProcessFrame folds one FrameSample into the running tracks and returns
// every FeatureTrack that terminated this frame (not seen, or reached
// max_track_length) and has at least min_track_length points; shorter
// terminated tracks are discarded. Raw detections are first grid-downsampled to bound
// density before matching.
func (t *Tracker) ProcessFrame(frame tsqueue.FrameSample) []tsqueue.FeatureTrack {
	candidates := t.downsample(frame.Features)
	claimed := make([]bool, len(candidates))

	var terminated []tsqueue.FeatureTrack

	for id, pts := range t.active {
		last := t.latest[id]
		bestIdx := -1
		bestDist := math.Inf(1)
		for i, c := range candidates {
			if claimed[i] {
				continue
			}
			d := hypot(last.U-c.U, last.V-c.V)
			if d < t.cfg.MinFeatDist && d < bestDist {
				bestDist = d
				bestIdx = i
			}
		}
		if bestIdx == -1 {
			terminated = append(terminated, tsqueue.FeatureTrack{FeatureID: id, Points: pts})
			delete(t.active, id)
			delete(t.latest, id)
			continue
		}
		claimed[bestIdx] = true
		c := candidates[bestIdx]
		pts = append(pts, c)
		t.active[id] = pts
		t.latest[id] = c
		if len(pts) >= t.cfg.MaxTrackLength {
			terminated = append(terminated, tsqueue.FeatureTrack{FeatureID: id, Points: pts})
			delete(t.active, id)
			delete(t.latest, id)
		}
	}

	for i, c := range candidates {
		if claimed[i] {
			continue
		}
		if t.tooCloseToExisting(c) {
			continue
		}
		id := t.nextID
		t.nextID++
		t.active[id] = []tsqueue.FeaturePoint{c}
		t.latest[id] = c
	}

	return filterMinLength(terminated, t.cfg.MinTrackLength)
}

func filterMinLength(tracks []tsqueue.FeatureTrack, min int) []tsqueue.FeatureTrack {
	out := make([]tsqueue.FeatureTrack, 0, len(tracks))
	for _, tr := range tracks {
		if len(tr.Points) >= min {
			out = append(out, tr)
		}
	}
	return out
}

func (t *Tracker) tooCloseToExisting(c tsqueue.FeaturePoint) bool {
	for _, last := range t.latest {
		if hypot(last.U-c.U, last.V-c.V) < t.cfg.MinFeatDist {
			return true
		}
	}
	return false
}

// downsample bins raw detections into a GridRows x GridCols grid over the
// configured frame extent and keeps one candidate per occupied bin (the
// point closest to the bin's center), bounding feature density per frame
// (spec.md §4.7).
func (t *Tracker) downsample(points []tsqueue.FeaturePoint) []tsqueue.FeaturePoint {
	if t.cfg.GridRows <= 0 || t.cfg.GridCols <= 0 || t.cfg.FrameWidth <= 0 || t.cfg.FrameHeight <= 0 {
		return points
	}
	type best struct {
		pt   tsqueue.FeaturePoint
		dist float64
	}
	bins := map[[2]int]best{}
	cellW := t.cfg.FrameWidth / float64(t.cfg.GridCols)
	cellH := t.cfg.FrameHeight / float64(t.cfg.GridRows)

	for _, p := range points {
		col := clampInt(int(p.U/cellW), 0, t.cfg.GridCols-1)
		row := clampInt(int(p.V/cellH), 0, t.cfg.GridRows-1)
		cx := (float64(col)+0.5)*cellW
		cy := (float64(row)+0.5)*cellH
		d := hypot(p.U-cx, p.V-cy)
		key := [2]int{row, col}
		if cur, ok := bins[key]; !ok || d < cur.dist {
			bins[key] = best{pt: p, dist: d}
		}
	}
	out := make([]tsqueue.FeaturePoint, 0, len(bins))
	for _, b := range bins {
		out = append(out, b.pt)
	}
	return out
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func hypot(dx, dy float64) float64 {
	return math.Hypot(dx, dy)
}
