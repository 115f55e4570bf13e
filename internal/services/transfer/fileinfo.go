// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package transfer

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/autobrr/curator/internal/models"
)

// SourceFile is the parsed identity of one discovered video file. The
// relative position under the pipeline's source folder and the episode
// information are resolved once and never updated afterwards.
type SourceFile struct {
	FullPath     string
	ParentFolder string
	Filename     string
	Basename     string
	Ext          string

	RootFolder     string
	FolderSegments []string
	TopFolder      string
	SecondFolder   string

	// IsEpisode is set when the basename carries a recognizable episode
	// marker. OriginalMarker holds the raw matched text ("[013]", ".E11.")
	// or markerPass for an exact SxxEyy name. EpisodeText carries
	// non-integer designators such as "13.5" or "13v2"; Episode is -1 then.
	IsEpisode      bool
	OriginalMarker string
	Season         int
	Episode        int
	EpisodeText    string
}

// NewSourceFile parses the basename of path; SetRootFolder must be called
// before the folder fields are usable.
func NewSourceFile(path string) *SourceFile {
	f := &SourceFile{
		FullPath:     path,
		ParentFolder: filepath.Dir(path),
		Filename:     filepath.Base(path),
		Season:       -1,
		Episode:      -1,
	}
	f.Ext = filepath.Ext(f.Filename)
	f.Basename = strings.TrimSuffix(f.Filename, f.Ext)
	f.parseEpisodeInfo()
	return f
}

// SetRootFolder resolves the top and second folder from the file's position
// relative to the pipeline source folder. A file directly under the root has
// an empty top folder.
func (f *SourceFile) SetRootFolder(root string) {
	f.RootFolder = root
	relative := strings.TrimLeft(strings.TrimPrefix(f.ParentFolder, root), `\/`)
	if relative == "" || relative == "." {
		f.FolderSegments = nil
		f.TopFolder = ""
		f.SecondFolder = ""
		return
	}
	f.FolderSegments = strings.Split(filepath.Clean(relative), string(filepath.Separator))
	f.TopFolder = f.FolderSegments[0]
	if len(f.FolderSegments) > 1 {
		f.SecondFolder = f.FolderSegments[1]
	} else {
		f.SecondFolder = ""
	}
}

func (f *SourceFile) parseEpisodeInfo() {
	if season, episode := matchSeries(f.Basename); season > -1 && episode > -1 {
		f.IsEpisode = true
		f.Season = season
		f.Episode = episode
		f.OriginalMarker = markerPass
		return
	}

	marker := matchEpPart(f.Basename)
	if marker == "" {
		return
	}
	epText := extractEpNum(marker)
	if epText == "" {
		return
	}

	f.IsEpisode = true
	f.OriginalMarker = marker
	if n, err := strconv.Atoi(epText); err == nil {
		f.Episode = n
	} else {
		f.EpisodeText = epText
	}
}

// TargetFile accumulates the planned destination for one source file.
type TargetFile struct {
	RootFolder string
	Filename   string
	Basename   string
	Ext        string

	IsEpisode     bool
	ForcedSeason  bool
	Season        int
	ForcedEpisode bool
	Episode       int
	EpisodeText   string

	TopFolder    string
	SecondFolder string
	FullPath     string
}

func NewTargetFile(root string) *TargetFile {
	return &TargetFile{RootFolder: root, Season: -1, Episode: -1}
}

// ApplyRecord forces episode identity from a prior record: user-edited
// season or episode values override whatever the parser finds.
func (t *TargetFile) ApplyRecord(r *models.TransferRecord) {
	if !r.IsEpisode {
		return
	}
	t.IsEpisode = true
	if r.Season > -1 {
		t.ForcedSeason = true
		t.Season = r.Season
	}
	if r.Episode > -1 {
		t.ForcedEpisode = true
		t.Episode = r.Episode
	}
}
