// Package audio builds the audio beds that back slideshow renders.
package audio

import (
	"fmt"
	"math"
	"strings"
)

// EntryKind distinguishes the two kinds of bed entries.
type EntryKind string

const (
	// EntrySource plays the full source track once.
	EntrySource EntryKind = "source"
	// EntryGap is a silenced stretch covering a separator.
	EntryGap EntryKind = "gap"
)

// Entry is one stretch of the audio bed.
type Entry struct {
	// Kind is the entry type.
	Kind EntryKind
	// Seconds is the gap length. Zero for source entries, which always
	// span the full track.
	Seconds float64
}

// Bed is the planned audio timeline for a render: the source track repeated
// once per image segment, with silenced gaps between repeats while the
// separators play. A gap longer than the source track is clamped to the
// track length, which in turn clamps the final cut via -shortest.
type Bed struct {
	Entries []Entry
}

// BuildBed lays out the bed for imageSegments image segments separated by
// gaps of gapSeconds. Fewer than one segment yields an empty bed.
func BuildBed(imageSegments int, gapSeconds float64) Bed {
	if imageSegments <= 0 {
		return Bed{}
	}
	entries := make([]Entry, 0, 2*imageSegments-1)
	for i := 0; i < imageSegments; i++ {
		if i > 0 {
			entries = append(entries, Entry{Kind: EntryGap, Seconds: gapSeconds})
		}
		entries = append(entries, Entry{Kind: EntrySource})
	}
	return Bed{Entries: entries}
}

// Repeats returns how many times the source track plays.
func (b Bed) Repeats() int {
	count := 0
	for _, e := range b.Entries {
		if e.Kind == EntrySource {
			count++
		}
	}
	return count
}

// Gaps returns the number of silenced gaps.
func (b Bed) Gaps() int {
	return len(b.Entries) - b.Repeats()
}

// IsPassthrough reports whether the bed is just the source track once, in
// which case callers can map the audio stream directly instead of building
// a filtergraph.
func (b Bed) IsPassthrough() bool {
	return len(b.Entries) == 1 && b.Entries[0].Kind == EntrySource
}

// Seconds returns the bed duration for a given source track length.
func (b Bed) Seconds(sourceSeconds float64) float64 {
	var total float64
	for _, e := range b.Entries {
		switch e.Kind {
		case EntrySource:
			total += sourceSeconds
		case EntryGap:
			total += math.Min(e.Seconds, sourceSeconds)
		}
	}
	return total
}

// FilterGraph renders the ffmpeg filter_complex expression for the bed,
// reading the audio from the given input stream index and labelling the
// result [aout]. Gaps reuse the head of the source track with the volume
// zeroed, so they match the track's sample rate and channel layout without
// extra inputs. Not meaningful for passthrough beds; check IsPassthrough
// first.
func (b Bed) FilterGraph(input int) string {
	repeats := b.Repeats()
	gaps := b.Gaps()
	total := repeats + gaps

	var sb strings.Builder

	// One split output per use of the source track.
	fmt.Fprintf(&sb, "[%d:a]asplit=%d", input, total)
	for i := 0; i < repeats; i++ {
		fmt.Fprintf(&sb, "[src%d]", i)
	}
	for i := 0; i < gaps; i++ {
		fmt.Fprintf(&sb, "[gsrc%d]", i)
	}
	sb.WriteString(";")

	gapIdx := 0
	for _, e := range b.Entries {
		if e.Kind != EntryGap {
			continue
		}
		fmt.Fprintf(&sb, "[gsrc%d]atrim=0:%.6f,volume=0[gap%d];", gapIdx, e.Seconds, gapIdx)
		gapIdx++
	}

	srcN, gapN := 0, 0
	for _, e := range b.Entries {
		if e.Kind == EntrySource {
			fmt.Fprintf(&sb, "[src%d]", srcN)
			srcN++
		} else {
			fmt.Fprintf(&sb, "[gap%d]", gapN)
			gapN++
		}
	}
	fmt.Fprintf(&sb, "concat=n=%d:v=0:a=1[aout]", total)

	return sb.String()
}
