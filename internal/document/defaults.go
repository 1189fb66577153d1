package document

import (
	"path"
	"strings"
	"time"
)

// Defaults is the one place default metadata values are decided. The title
// comes from the humanized file name and the subtype from the parent
// directory; everything else is fixed apart from the timestamps.
func Defaults(p string, now time.Time) Metadata {
	return Metadata{
		Title:      Ptr(Humanize(path.Base(p))),
		Type:       Ptr(TypeGeneral),
		Subtype:    Ptr(defaultSubtype(p)),
		Tags:       []string{},
		Created:    Ptr(now),
		Modified:   Ptr(now),
		Version:    Ptr(DefaultVersion),
		ShipFactor: Ptr(DefaultShipFactor),
		Deprecated: Ptr(false),
	}
}

func defaultSubtype(p string) string {
	segs := strings.Split(strings.Trim(p, "/"), "/")
	if len(segs) < 2 {
		return string(TypeGeneral)
	}
	return segs[len(segs)-2]
}
