package inventory

import (
	"sort"
	"strconv"
)

// Summary aggregates an inventory.
type Summary struct {
	Slides          int            `json:"slides" yaml:"slides"`
	Failed          int            `json:"failed" yaml:"failed"`
	Gigapixels      float64        `json:"gigapixels" yaml:"gigapixels"`
	ByExtension     map[string]int `json:"by_extension" yaml:"by_extension"`
	ByMagnification map[string]int `json:"by_magnification" yaml:"by_magnification"`
	Largest         string         `json:"largest,omitempty" yaml:"largest,omitempty"`
}

func Summarize(records []Record) Summary {
	s := Summary{
		ByExtension:     map[string]int{},
		ByMagnification: map[string]int{},
	}
	var largest int64
	for _, r := range records {
		s.Slides++
		if r.Error != "" {
			s.Failed++
			continue
		}
		ext := r.Extension
		if ext == "" {
			ext = "(none)"
		}
		s.ByExtension[ext]++
		s.ByMagnification[magnificationLabel(r.Magnification)]++

		pixels := r.Width * r.Height
		s.Gigapixels += float64(pixels) / 1e9
		if pixels > largest {
			largest = pixels
			s.Largest = r.Path
		}
	}
	return s
}

// Extensions returns the extensions of s sorted by descending count.
func (s Summary) Extensions() []string {
	exts := make([]string, 0, len(s.ByExtension))
	for ext := range s.ByExtension {
		exts = append(exts, ext)
	}
	sort.Slice(exts, func(i, j int) bool {
		if s.ByExtension[exts[i]] != s.ByExtension[exts[j]] {
			return s.ByExtension[exts[i]] > s.ByExtension[exts[j]]
		}
		return exts[i] < exts[j]
	})
	return exts
}

func magnificationLabel(m float64) string {
	if m <= 0 {
		return "unknown"
	}
	return strconv.FormatFloat(m, 'f', -1, 64) + "x"
}
