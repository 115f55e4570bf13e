// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package scrape

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"

	"github.com/autobrr/curator/internal/models"
)

// Per-site rating ceilings; scraped ratings are normalized to a 10-point
// scale for <rating> and a percentage for <criticrating>.
var siteTopRating = map[string]float64{
	"javdb":      5,
	"javlibrary": 10,
}

type cdata struct {
	Value string `xml:",cdata"`
}

type nfoActor struct {
	Name  string `xml:"name"`
	Thumb string `xml:"thumb,omitempty"`
}

type nfoSiteRating struct {
	Name    string `xml:"name,attr"`
	Max     int    `xml:"max,attr"`
	Default bool   `xml:"default,attr"`
	Value   string `xml:"value"`
	Votes   int    `xml:"votes,omitempty"`
}

type nfoRatings struct {
	Ratings []nfoSiteRating `xml:"rating"`
}

type movieNFO struct {
	XMLName       xml.Name    `xml:"movie"`
	Title         cdata       `xml:"title"`
	OriginalTitle cdata       `xml:"originaltitle"`
	SortTitle     cdata       `xml:"sorttitle"`
	CustomRating  string      `xml:"customrating"`
	MPAA          string      `xml:"mpaa"`
	Set           string      `xml:"set,omitempty"`
	Studio        string      `xml:"studio,omitempty"`
	Year          string      `xml:"year,omitempty"`
	Outline       cdata       `xml:"outline"`
	Plot          cdata       `xml:"plot"`
	Runtime       string      `xml:"runtime,omitempty"`
	Director      string      `xml:"director,omitempty"`
	Poster        string      `xml:"poster"`
	Thumb         string      `xml:"thumb"`
	Fanart        string      `xml:"fanart"`
	Actors        []nfoActor  `xml:"actor"`
	Maker         string      `xml:"maker,omitempty"`
	Label         string      `xml:"label,omitempty"`
	Tags          []string    `xml:"tag"`
	Genres        []string    `xml:"genre"`
	Num           string      `xml:"num"`
	Premiered     string      `xml:"premiered,omitempty"`
	ReleaseDate   string      `xml:"releasedate,omitempty"`
	Release       string      `xml:"release,omitempty"`
	Rating        string      `xml:"rating,omitempty"`
	CriticRating  string      `xml:"criticrating,omitempty"`
	Ratings       *nfoRatings `xml:"ratings,omitempty"`
	Cover         string      `xml:"cover,omitempty"`
	Trailer       string      `xml:"trailer,omitempty"`
	Website       string      `xml:"website,omitempty"`
}

// writeNFO renders the Kodi/Emby movie NFO next to the placed video. The
// basename prefixes the artwork references so the library scanner picks
// them up without a folder scan.
func writeNFO(path string, meta *models.Metadata, basename string) error {
	nfo := &movieNFO{
		Title:         cdata{Value: meta.Title},
		OriginalTitle: cdata{Value: meta.Title},
		SortTitle:     cdata{Value: basename},
		CustomRating:  "JP-18+",
		MPAA:          "JP-18+",
		Set:           meta.Series,
		Studio:        meta.Studio,
		Year:          meta.Year,
		Outline:       cdata{Value: meta.Number + "#" + meta.Outline},
		Plot:          cdata{Value: meta.Number + "#" + meta.Outline},
		Runtime:       meta.Runtime,
		Director:      meta.Director,
		Poster:        basename + "-poster.jpg",
		Thumb:         basename + "-thumb.jpg",
		Fanart:        basename + "-fanart.jpg",
		Actors:        nfoActors(meta),
		Maker:         meta.Studio,
		Label:         meta.Label,
		Tags:          splitCSV(meta.Tag),
		Genres:        splitCSV(meta.Genre),
		Num:           meta.Number,
		Premiered:     meta.Release,
		ReleaseDate:   meta.Release,
		Release:       meta.Release,
		Cover:         meta.Cover,
		Trailer:       meta.Trailer,
		Website:       meta.DetailURL,
	}

	if top, ok := siteTopRating[strings.ToLower(meta.Site)]; ok && meta.UserRating > 0 {
		nfo.Rating = fmt.Sprintf("%.1f", meta.UserRating*10/top)
		nfo.CriticRating = fmt.Sprintf("%.0f", meta.UserRating*100/top)
		nfo.Ratings = &nfoRatings{Ratings: []nfoSiteRating{{
			Name:    meta.Site,
			Max:     int(top),
			Default: true,
			Value:   fmt.Sprintf("%.1f", meta.UserRating),
			Votes:   meta.UserVotes,
		}}}
	}

	body, err := xml.MarshalIndent(nfo, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal nfo")
	}

	content := append([]byte(xml.Header), body...)
	content = append(content, '\n')
	if err := os.WriteFile(path, content, 0644); err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	return nil
}

// nfoActors splits the joined actor list, attaching photo thumbs when the
// scraper supplied them as a name-to-URL map.
func nfoActors(meta *models.Metadata) []nfoActor {
	photos := make(map[string]string)
	if meta.ActorPhoto != "" {
		// Best effort; a malformed photo map only costs the thumbs.
		_ = json.Unmarshal([]byte(meta.ActorPhoto), &photos)
	}

	var actors []nfoActor
	for _, name := range splitCSV(meta.Actor) {
		actors = append(actors, nfoActor{Name: name, Thumb: photos[name]})
	}
	return actors
}

func splitCSV(csv string) []string {
	if csv == "" {
		return nil
	}
	var out []string
	for _, v := range strings.FieldsFunc(csv, func(r rune) bool { return r == ',' || r == '，' }) {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
