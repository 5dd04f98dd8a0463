package analyzer

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"wisefido-risk/internal/models"
)

// Keyword lists are matched case-insensitively as substrings. A note counts
// once per category however many keywords it contains.
var (
	painKeywords = []string{"pain", "ache", "aching", "hurt", "sore", "cramp"}

	moodKeywords = []string{
		"sad", "depressed", "anxious", "lonely", "withdrawn",
		"agitated", "crying", "upset", "irritable", "hopeless",
	}

	symptomKeywords = []string{
		"dizzy", "dizziness", "nausea", "vomit", "fever", "fell", "fall",
		"short of breath", "shortness of breath", "confused", "confusion",
		"swelling", "cough", "fatigue", "weak",
	}
)

type note struct {
	at   time.Time
	text string
}

// windowNotes gathers dose and meal notes logged in the current window.
func windowNotes(in Input) []note {
	var notes []note
	for _, d := range in.Doses {
		if d.Note == nil || !in.Window.Contains(d.ScheduledTime) {
			continue
		}
		notes = append(notes, note{at: d.ScheduledTime, text: *d.Note})
	}
	for _, e := range in.Intakes {
		if e.Note == nil || !in.Window.Contains(e.Timestamp) {
			continue
		}
		notes = append(notes, note{at: e.Timestamp, text: *e.Note})
	}
	return notes
}

// scan returns matching notes and the sorted set of keywords seen.
func scan(notes []note, keywords []string) (matched []note, hits []string) {
	seen := make(map[string]bool)
	for _, n := range notes {
		text := strings.ToLower(n.text)
		found := false
		for _, kw := range keywords {
			if strings.Contains(text, kw) {
				found = true
				seen[kw] = true
			}
		}
		if found {
			matched = append(matched, n)
		}
	}
	for kw := range seen {
		hits = append(hits, kw)
	}
	sort.Strings(hits)
	return matched, hits
}

func PainMentions(in Input, p Profile) *models.RiskFactor {
	matched, hits := scan(windowNotes(in), painKeywords)
	if len(matched) < p.PainMinMentions || len(matched) == 0 {
		return nil
	}
	sev, points := models.FactorWarning, 3
	if len(matched) >= 5 {
		sev, points = models.FactorCritical, 4
	}
	return newFactor(models.FactorPainMentions, sev, points,
		fmt.Sprintf("Pain mentioned in %d notes", len(matched)),
		map[string]interface{}{
			"mentions": len(matched),
			"keywords": hits,
		})
}

// MoodMentions also requires the mentions to span MoodMinDays calendar days,
// so a single bad afternoon does not count as a pattern.
func MoodMentions(in Input, p Profile) *models.RiskFactor {
	matched, hits := scan(windowNotes(in), moodKeywords)
	if len(matched) < p.MoodMinMentions || len(matched) == 0 {
		return nil
	}
	days := make(map[string]bool)
	for _, n := range matched {
		days[dayKey(n.at, in.loc())] = true
	}
	if len(days) < p.MoodMinDays {
		return nil
	}
	return newFactor(models.FactorMoodMentions, models.FactorWarning, 2,
		fmt.Sprintf("Mood concerns noted on %d days", len(days)),
		map[string]interface{}{
			"mentions":      len(matched),
			"distinct_days": len(days),
			"keywords":      hits,
		})
}

func SymptomMentions(in Input, p Profile) *models.RiskFactor {
	matched, hits := scan(windowNotes(in), symptomKeywords)
	if len(matched) < p.SymptomMinMentions || len(matched) == 0 {
		return nil
	}
	sev, points := models.FactorWarning, 2
	if len(matched) >= 4 {
		sev, points = models.FactorCritical, 3
	}
	return newFactor(models.FactorSymptomMentions, sev, points,
		fmt.Sprintf("Physical symptoms mentioned in %d notes", len(matched)),
		map[string]interface{}{
			"mentions": len(matched),
			"keywords": hits,
		})
}
