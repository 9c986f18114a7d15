package supervisor

import (
	"fmt"
	"time"
)

// FeedEntry dispenses a fixed amount at a wall-clock time every day.
type FeedEntry struct {
	At    string `json:"at"` // "HH:MM"
	Grams int    `json:"grams"`
}

// LightEntry switches the grow LED on and off at wall-clock times.
type LightEntry struct {
	On         string `json:"on"`  // "HH:MM"
	Off        string `json:"off"` // "HH:MM"
	Brightness int    `json:"brightness"`
}

const clockLayout = "15:04"

func validClock(s string) error {
	if _, err := time.Parse(clockLayout, s); err != nil {
		return fmt.Errorf("%w: %q", errBadClockTime, s)
	}

	return nil
}

// scheduler fires each schedule entry once per matching minute. The tick
// period is shorter than a minute, so every entry is tracked by the last
// minute it fired.
type scheduler struct {
	feed      []FeedEntry
	light     []LightEntry
	lastFired map[string]string // entry key -> "HH:MM" minute it last fired
}

func newScheduler(feed []FeedEntry, light []LightEntry) *scheduler {
	return &scheduler{
		feed:      feed,
		light:     light,
		lastFired: make(map[string]string),
	}
}

// action is one schedule firing, expressed as a console command line.
type action struct {
	key  string
	line string
}

// due returns the command lines to run at now, at most once per entry
// per minute.
func (s *scheduler) due(now time.Time) []action {
	minute := now.Format(clockLayout)

	var actions []action

	for i, entry := range s.feed {
		key := fmt.Sprintf("feed:%d", i)
		if entry.At == minute && s.lastFired[key] != minute {
			s.lastFired[key] = minute
			actions = append(actions, action{
				key:  key,
				line: fmt.Sprintf("feed %d", entry.Grams),
			})
		}
	}

	for i, entry := range s.light {
		onKey := fmt.Sprintf("light_on:%d", i)
		if entry.On == minute && s.lastFired[onKey] != minute {
			s.lastFired[onKey] = minute
			actions = append(actions, action{
				key:  onKey,
				line: fmt.Sprintf("led %d", entry.Brightness),
			})
		}

		offKey := fmt.Sprintf("light_off:%d", i)
		if entry.Off == minute && s.lastFired[offKey] != minute {
			s.lastFired[offKey] = minute
			actions = append(actions, action{
				key:  offKey,
				line: "led 0",
			})
		}
	}

	return actions
}
