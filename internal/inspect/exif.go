// Package inspect implements the built-in exif and mime viewers.
package inspect

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"
)

// ErrNoEXIF is returned when a file carries no EXIF block.
var ErrNoEXIF = errors.New("no EXIF metadata")

// EXIF is the decoded metadata of one image.
type EXIF struct {
	Camera      string
	Lens        string
	FocalLength float32
	Aperture    float32
	Exposure    string
	ISO         int
	Taken       *time.Time
	Latitude    *float64
	Longitude   *float64

	// Tags holds every tag by field name, rendered as text.
	Tags map[string]string
}

// ReadEXIF decodes the EXIF block of r.
func ReadEXIF(r io.Reader) (*EXIF, error) {
	x, err := exif.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoEXIF, err)
	}

	e := &EXIF{Tags: make(map[string]string)}
	x.Walk(tagCollector(e.Tags))

	mk, model := tagString(x, exif.Make), tagString(x, exif.Model)
	switch {
	case mk != "" && model != "":
		e.Camera = mk + " " + model
	default:
		e.Camera = mk + model
	}
	e.Lens = tagString(x, exif.LensModel)
	e.FocalLength = tagRatio(x, exif.FocalLength)
	e.Aperture = tagRatio(x, exif.FNumber)

	if tag, err := x.Get(exif.ExposureTime); err == nil {
		if num, denom, err := tag.Rat2(0); err == nil {
			if denom == 1 {
				e.Exposure = fmt.Sprintf("%ds", num)
			} else {
				e.Exposure = fmt.Sprintf("%d/%ds", num, denom)
			}
		}
	}
	if tag, err := x.Get(exif.ISOSpeedRatings); err == nil {
		if v, err := tag.Int(0); err == nil {
			e.ISO = v
		}
	}
	if dt, err := x.DateTime(); err == nil {
		e.Taken = &dt
	}
	if lat, lon, err := x.LatLong(); err == nil && !math.IsNaN(lat) && !math.IsNaN(lon) {
		e.Latitude, e.Longitude = &lat, &lon
	}
	return e, nil
}

type tagCollector map[string]string

func (c tagCollector) Walk(name exif.FieldName, tag *tiff.Tag) error {
	if tag.Format() == tiff.StringVal {
		if s, err := tag.StringVal(); err == nil {
			c[string(name)] = s
			return nil
		}
	}
	c[string(name)] = tag.String()
	return nil
}

func tagString(x *exif.Exif, f exif.FieldName) string {
	tag, err := x.Get(f)
	if err != nil {
		return ""
	}
	if tag.Format() == tiff.StringVal {
		s, _ := tag.StringVal()
		return s
	}
	return tag.String()
}

func tagRatio(x *exif.Exif, f exif.FieldName) float32 {
	tag, err := x.Get(f)
	if err != nil {
		return 0
	}
	num, denom, err := tag.Rat2(0)
	if err != nil || denom == 0 {
		return 0
	}
	return float32(num) / float32(denom)
}

type field struct {
	label, value string
}

// WriteEXIF prints the metadata of the image at path: a summary, then every
// tag sorted by name.
func WriteEXIF(w io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	e, err := ReadEXIF(f)
	if errors.Is(err, ErrNoEXIF) {
		fmt.Fprintln(w, ErrNoEXIF)
		return nil
	}
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	summary := []field{
		{"Camera", e.Camera},
		{"Lens", e.Lens},
		{"Exposure", e.Exposure},
	}
	if e.FocalLength > 0 {
		summary = append(summary, field{"Focal length", fmt.Sprintf("%.1fmm", e.FocalLength)})
	}
	if e.Aperture > 0 {
		summary = append(summary, field{"Aperture", fmt.Sprintf("f/%.1f", e.Aperture)})
	}
	if e.ISO > 0 {
		summary = append(summary, field{"ISO", fmt.Sprint(e.ISO)})
	}
	if e.Taken != nil {
		summary = append(summary, field{"Taken", e.Taken.Format(time.DateTime)})
	}
	if e.Latitude != nil {
		summary = append(summary, field{"GPS", fmt.Sprintf("%.6f, %.6f", *e.Latitude, *e.Longitude)})
	}
	for _, s := range summary {
		if s.value != "" {
			fmt.Fprintf(tw, "%s:\t%s\n", s.label, s.value)
		}
	}

	names := make([]string, 0, len(e.Tags))
	for name := range e.Tags {
		names = append(names, name)
	}
	sort.Strings(names)
	if len(names) > 0 {
		fmt.Fprintln(tw, "\t")
	}
	for _, name := range names {
		fmt.Fprintf(tw, "%s\t%s\n", name, e.Tags[name])
	}
	return tw.Flush()
}
