package camera

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/camprobe/camprobe/pkg/gstcaps"
)

// formatTable accumulates discovered resolutions, in discovery order,
// with exact duplicates collapsed.
type formatTable struct {
	formats []Format
	logger  *slog.Logger
}

func (t *formatTable) add(f Format) {
	for _, existing := range t.formats {
		if existing == f {
			return
		}
	}
	t.logger.Debug("Discovered format", "width", f.Width, "height", f.Height)
	t.formats = append(t.formats, f)
}

// deriveFormats walks the filtered capability structures and builds the
// resolution table. Fixed widths contribute a single entry. Ranged
// widths are swept twice: doubling up from the minimum and halving down
// from the maximum, which lands on the common capture sizes without
// enumerating every value the hardware would accept. Structures whose
// width is any other kind, or whose height does not match the width's
// kind, are logged and skipped.
func deriveFormats(caps *gstcaps.Caps, logger *slog.Logger) []Format {
	t := &formatTable{logger: logger}

	for i := 0; i < caps.Size(); i++ {
		st := caps.StructureAt(i)
		width, _ := st.Value("width")
		height, _ := st.Value("height")

		switch w := width.(type) {
		case gstcaps.Int:
			h, ok := height.(gstcaps.Int)
			if !ok {
				logger.Warn("Skipping structure with fixed width but unfixed height",
					"structure", st.Name(), "height", valueKind(height))
				continue
			}
			t.add(Format{Width: int(w), Height: int(h)})
		case gstcaps.IntRange:
			h, ok := height.(gstcaps.IntRange)
			if !ok {
				logger.Warn("Skipping structure with ranged width but unranged height",
					"structure", st.Name(), "height", valueKind(height))
				continue
			}
			sweepRange(t, w, h)
		default:
			logger.Error("Value type cannot be handled for resolution width",
				"structure", st.Name(), "width", valueKind(width))
		}
	}

	return t.formats
}

func sweepRange(t *formatTable, w, h gstcaps.IntRange) {
	// Drivers sometimes report a range with min == max; <= here (and
	// not in the halving pass) keeps those single sizes.
	curW, curH := w.Min, h.Min
	for curW <= w.Max && curH <= h.Max {
		t.add(Format{Width: curW, Height: curH})
		if curW < 1 || curH < 1 {
			break
		}
		curW *= 2
		curH *= 2
	}

	curW, curH = w.Max, h.Max
	for curW > w.Min && curH > h.Min {
		t.add(Format{Width: curW, Height: curH})
		curW /= 2
		curH /= 2
	}
}

// sortedByArea returns a copy ordered largest resolution first. Equal
// areas keep their discovery order.
func sortedByArea(formats []Format) []Format {
	out := make([]Format, len(formats))
	copy(out, formats)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].area() > out[j].area()
	})
	return out
}

func valueKind(v gstcaps.Value) string {
	if v == nil {
		return "absent"
	}
	return fmt.Sprintf("%T", v)
}
