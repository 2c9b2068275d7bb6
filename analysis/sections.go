package analysis

import (
	"math"

	"github.com/RyanBlaney/sonido-analyze/algorithms/common"
	"github.com/RyanBlaney/sonido-analyze/algorithms/framing"
)

// SectionType is the structural role guessed for a section
type SectionType string

const (
	SectionIntro        SectionType = "intro"
	SectionVerse        SectionType = "verse"
	SectionChorus       SectionType = "chorus"
	SectionBridge       SectionType = "bridge"
	SectionBreakdown    SectionType = "breakdown"
	SectionInstrumental SectionType = "instrumental"
	SectionOutro        SectionType = "outro"
)

// Mood is a coarse character label derived from tempo and energy
type Mood string

const (
	MoodEnergetic   Mood = "energetic"
	MoodCalm        Mood = "calm"
	MoodUplifting   Mood = "uplifting"
	MoodMelancholic Mood = "melancholic"
	MoodDramatic    Mood = "dramatic"
)

// ToneAttributes describe how a section feels
type ToneAttributes struct {
	Energy      int  `json:"energy"`    // 0-100
	Intensity   int  `json:"intensity"` // 0-100
	StrongStart bool `json:"strong_start"`
	BuildingUp  bool `json:"building_up"`
	SlowingDown bool `json:"slowing_down"`
	Mood        Mood `json:"mood"`
}

// Section is the span between two consecutive boundaries
type Section struct {
	Index     int            `json:"index"`
	Type      SectionType    `json:"type"`
	StartTime float64        `json:"start_time"`
	EndTime   float64        `json:"end_time"`
	Duration  float64        `json:"duration"`
	Tone      ToneAttributes `json:"tone_attributes"`
}

// BuildSections labels the spans of [0, segments..., duration]. The first
// span is the intro and the last the outro; the rest are typed by their mean
// RMS energy and length relative to an even split.
func BuildSections(result *AnalysisResult, hopSize int) []Section {
	bounds := make([]float64, 0, len(result.SegmentsSec)+2)
	bounds = append(bounds, 0)
	bounds = append(bounds, result.SegmentsSec...)
	bounds = append(bounds, result.DurationSec)

	total := len(bounds)
	avgDuration := result.DurationSec / float64(total)
	sections := make([]Section, 0, total-1)

	for i := 0; i < total-1; i++ {
		start, end := bounds[i], bounds[i+1]
		energy := sectionEnergy(result.EnergyRMS, start, end, i == total-2, hopSize, result.SampleRate)

		sections = append(sections, Section{
			Index:     i,
			Type:      sectionType(i, total, end-start, avgDuration, energy),
			StartTime: start,
			EndTime:   end,
			Duration:  end - start,
			Tone:      toneAttributes(i, total, energy, result.TempoBPM),
		})
	}

	return sections
}

// sectionEnergy averages the RMS of the frames starting inside [start, end),
// closing the interval for the final section
func sectionEnergy(rms []float64, start, end float64, last bool, hopSize, sampleRate int) float64 {
	var values []float64
	for i, v := range rms {
		t := framing.FrameToSeconds(i, hopSize, sampleRate)
		if t >= start && (t < end || (last && t <= end)) {
			values = append(values, v)
		}
	}
	return common.Mean(values)
}

func sectionType(index, total int, duration, avgDuration, energy float64) SectionType {
	switch {
	case index == 0:
		return SectionIntro
	case index == total-2:
		return SectionOutro
	case energy > 0.3 && duration > avgDuration*1.2:
		return SectionChorus
	case energy > 0.5:
		return SectionBreakdown
	case energy > 0.15:
		return SectionVerse
	case duration < avgDuration*0.8:
		return SectionBridge
	default:
		return SectionInstrumental
	}
}

func toneAttributes(index, total int, energy, tempo float64) ToneAttributes {
	return ToneAttributes{
		Energy:      int(math.Round(common.Clamp(energy*100, 0, 100))),
		Intensity:   int(math.Round(common.Clamp(energy*200, 0, 100))),
		StrongStart: index == 0 || energy > 0.4,
		BuildingUp:  float64(index) < float64(total)/2,
		SlowingDown: float64(index) > float64(total)*0.7,
		Mood:        mood(tempo, energy),
	}
}

func mood(tempo, energy float64) Mood {
	switch {
	case tempo > 120 && energy > 0.3:
		return MoodEnergetic
	case tempo < 80 && energy < 0.2:
		return MoodCalm
	case tempo >= 100 && tempo <= 140 && energy > 0.25:
		return MoodUplifting
	case tempo < 70:
		return MoodMelancholic
	case tempo > 140:
		return MoodDramatic
	default:
		return MoodUplifting
	}
}
