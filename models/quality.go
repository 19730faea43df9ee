package models

import "fmt"

// QualityTier is a single video-quality bucket, represented as one bit so
// that sets of tiers pack into an integer mask.
type QualityTier int64

const (
	QualitySDTV QualityTier = 1 << iota
	QualitySDDVD
	QualityHDTV
	QualityRawHDTV
	QualityFullHDTV
	QualityHDWebDL
	QualityFullHDWebDL
	QualityHDBluray
	QualityFullHDBluray
	QualityUHD4KTV
	QualityUHD4KWebDL
	QualityUHD4KBluray
	QualityUHD8KTV
	QualityUHD8KWebDL
	QualityUHD8KBluray
	// QualityUnknown is the sentinel for releases whose quality could not
	// be parsed. It participates in masks like any other tier.
	QualityUnknown
)

// upgradeShift is the bit offset of the upgrade set inside a composite
// quality value: low 16 bits hold the initial tiers, high bits the upgrade
// tiers.
const upgradeShift = 16

const initialMask = (int64(1) << upgradeShift) - 1

// qualityOrder lists every tier from lowest to highest. Decomposition
// follows this order so round-trips are stable.
var qualityOrder = []QualityTier{
	QualitySDTV,
	QualitySDDVD,
	QualityHDTV,
	QualityRawHDTV,
	QualityFullHDTV,
	QualityHDWebDL,
	QualityFullHDWebDL,
	QualityHDBluray,
	QualityFullHDBluray,
	QualityUHD4KTV,
	QualityUHD4KWebDL,
	QualityUHD4KBluray,
	QualityUHD8KTV,
	QualityUHD8KWebDL,
	QualityUHD8KBluray,
	QualityUnknown,
}

var qualityNames = map[QualityTier]string{
	QualitySDTV:         "SDTV",
	QualitySDDVD:        "SD DVD",
	QualityHDTV:         "HDTV",
	QualityRawHDTV:      "Raw HDTV",
	QualityFullHDTV:     "1080p HDTV",
	QualityHDWebDL:      "720p WEB-DL",
	QualityFullHDWebDL:  "1080p WEB-DL",
	QualityHDBluray:     "720p BluRay",
	QualityFullHDBluray: "1080p BluRay",
	QualityUHD4KTV:      "4K UHD TV",
	QualityUHD4KWebDL:   "4K UHD WEB-DL",
	QualityUHD4KBluray:  "4K UHD BluRay",
	QualityUHD8KTV:      "8K UHD TV",
	QualityUHD8KWebDL:   "8K UHD WEB-DL",
	QualityUHD8KBluray:  "8K UHD BluRay",
	QualityUnknown:      "Unknown",
}

// AllQualityTiers returns every known tier, lowest first.
func AllQualityTiers() []QualityTier {
	out := make([]QualityTier, len(qualityOrder))
	copy(out, qualityOrder)
	return out
}

// Valid reports whether t is exactly one known tier.
func (t QualityTier) Valid() bool {
	_, ok := qualityNames[t]
	return ok
}

func (t QualityTier) String() string {
	if name, ok := qualityNames[t]; ok {
		return name
	}
	return fmt.Sprintf("QualityTier(%d)", int64(t))
}

// Quality holds the two tier sets an edit-show form submits: tiers eligible
// for a first snatch and tiers worth replacing an existing download with.
// The sets may overlap; both may be empty, which means "never download".
type Quality struct {
	Initial []QualityTier `json:"initial"`
	Upgrade []QualityTier `json:"upgrade"`
}

// ComposeQuality packs the two tier sets into a single integer: initial
// tiers in the low 16 bits, upgrade tiers shifted into the high bits. The
// packing is lossless for any pair of subsets of the known tiers.
func ComposeQuality(initial, upgrade []QualityTier) int64 {
	var v int64
	for _, t := range initial {
		v |= int64(t)
	}
	for _, t := range upgrade {
		v |= int64(t) << upgradeShift
	}
	return v
}

// DecomposeQuality splits a composite quality value back into its initial
// and upgrade tier sets, lowest tier first. Unknown bits are dropped.
func DecomposeQuality(v int64) (initial, upgrade []QualityTier) {
	low := v & initialMask
	high := v >> upgradeShift
	for _, t := range qualityOrder {
		if low&int64(t) != 0 {
			initial = append(initial, t)
		}
		if high&int64(t) != 0 {
			upgrade = append(upgrade, t)
		}
	}
	return initial, upgrade
}

// Composite returns the packed integer form of q.
func (q Quality) Composite() int64 {
	return ComposeQuality(q.Initial, q.Upgrade)
}

// QualityFromComposite builds a Quality from its packed integer form.
func QualityFromComposite(v int64) Quality {
	initial, upgrade := DecomposeQuality(v)
	return Quality{Initial: initial, Upgrade: upgrade}
}

// Allows reports whether t is acceptable either as an initial snatch or as
// an upgrade.
func (q Quality) Allows(t QualityTier) bool {
	for _, c := range q.Initial {
		if c == t {
			return true
		}
	}
	for _, c := range q.Upgrade {
		if c == t {
			return true
		}
	}
	return false
}
