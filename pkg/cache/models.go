package cache

import (
	"time"

	"github.com/pvemon/pvemon/pkg/image"
)

// Entry is one cached manifest with its write timestamp. The JSON shape is
// the on-disk format:
//
//	{"manifest": {"digest": "...", "version": "..."}, "updated_date": "..."}
type Entry struct {
	Manifest    image.ManifestRecord `json:"manifest"`
	UpdatedDate time.Time            `json:"updated_date"`
}
