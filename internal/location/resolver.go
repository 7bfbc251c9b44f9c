// Package location maps free-text venue names to campus coordinates.
package location

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Place is one row of the lookup table. The first place with any keyword
// contained in the lower-cased text wins, so more specific places go first.
type Place struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
	Lat      float64  `yaml:"lat"`
	Long     float64  `yaml:"long"`
}

// DefaultPlaces is the Grinnell campus table.
var DefaultPlaces = []Place{
	{"HSSC", []string{"hssc", "humanities and social science"}, 41.750897, -92.72107},
	{"Noyce", []string{"noyce"}, 41.748778, -92.720069},
	{"JRC", []string{"jrc", "rosenfield center"}, 41.74929, -92.720118},
	{"Burling", []string{"burling"}, 41.74672, -92.720287},
	{"Bucksbaum", []string{"bucksbaum"}, 41.746485, -92.721170},
	{"Steiner", []string{"steiner"}, 41.747309, -92.722076},
	{"CRSSJ", []string{"crssj"}, 41.749286, -92.723188},
	{"Forum", []string{"forum"}, 41.74748, -92.720104},
	{"Kington", []string{"kington"}, 41.748449, -92.721456},
	{"Harris", []string{"harris"}, 41.751082, -92.720641},
	{"Herrick", []string{"herrick"}, 41.747604, -92.722204},
	{"Main Hall", []string{"main hall"}, 41.74664, -92.718331},
	{"Bear", []string{"bear", "charles benson", "brac", "darby"}, 41.752130, -92.719527},
	{"Rosenbloom", []string{"rosenbloom", "football field", "stride field"}, 41.75318, -92.719881},
	{"Osgood", []string{"osgood", "natatorium"}, 41.752342, -92.720638},
	{"Track", []string{"track"}, 41.752342, -92.720638},
	{"Tennis Courts", []string{"tennis courts"}, 41.752765, -92.718050},
	{"Central Park", []string{"central park"}, 41.74238, -92.723181},
	{"Stew", []string{"stew"}, 41.744202, -92.724325},
}

type Resolver struct {
	places []Place
}

// NewResolver builds a resolver over places, or DefaultPlaces when empty.
func NewResolver(places []Place) *Resolver {
	if len(places) == 0 {
		places = DefaultPlaces
	}
	ps := make([]Place, len(places))
	for i, p := range places {
		kw := make([]string, 0, len(p.Keywords))
		for _, k := range p.Keywords {
			if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
				kw = append(kw, k)
			}
		}
		p.Keywords = kw
		ps[i] = p
	}
	return &Resolver{places: ps}
}

// Resolve returns the coordinates of the first matching place.
// ok is false when nothing matches.
func (r *Resolver) Resolve(text string) (lat, long float64, ok bool) {
	t := strings.ToLower(text)
	if strings.TrimSpace(t) == "" {
		return 0, 0, false
	}
	for _, p := range r.places {
		for _, k := range p.Keywords {
			if strings.Contains(t, k) {
				return p.Lat, p.Long, true
			}
		}
	}
	return 0, 0, false
}

type placesFile struct {
	Places []Place `yaml:"places"`
}

// LoadPlaces reads an ordered place table from a YAML file of the form
//
//	places:
//	  - name: HSSC
//	    keywords: [hssc, humanities and social science]
//	    lat: 41.750897
//	    long: -92.72107
func LoadPlaces(path string) ([]Place, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read locations file")
	}
	var f placesFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, errors.Wrap(err, "parse locations file")
	}
	for i, p := range f.Places {
		if len(p.Keywords) == 0 {
			return nil, errors.Errorf("place %d (%s): keywords required", i, p.Name)
		}
		if p.Lat < -90 || p.Lat > 90 || p.Long < -180 || p.Long > 180 {
			return nil, errors.Errorf("place %d (%s): coordinates out of range", i, p.Name)
		}
	}
	if len(f.Places) == 0 {
		return nil, errors.New("locations file has no places")
	}
	return f.Places, nil
}
