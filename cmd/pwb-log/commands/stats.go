package commands

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"time"

	"github.com/powerbridge/pwb-go/pkg/log"
	"github.com/powerbridge/pwb-go/pkg/od"
)

// Stats aggregates a capture file.
type Stats struct {
	TotalEvents int
	Start, End  time.Time

	Layers      map[log.Layer]int
	Categories  map[log.Category]int
	Directions  map[log.Direction]int
	Objects     map[od.Index]int // requests per object index
	Aborts      map[string]int
	Connections map[string]*ConnectionStats
	UpdateRuns  map[string]string // run id to last phase
	Errors      int
}

// ConnectionStats aggregates the events of one gateway connection.
type ConnectionStats struct {
	FirstSeen, LastSeen time.Time
	Events              int
	Remote              string
}

func newStats() *Stats {
	return &Stats{
		Layers:      map[log.Layer]int{},
		Categories:  map[log.Category]int{},
		Directions:  map[log.Direction]int{},
		Objects:     map[od.Index]int{},
		Aborts:      map[string]int{},
		Connections: map[string]*ConnectionStats{},
		UpdateRuns:  map[string]string{},
	}
}

// RunStats reads the whole capture file and prints its statistics.
func RunStats(path string, w io.Writer) error {
	reader, err := log.NewReader(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	s := newStats()
	for event, err := range reader.Events() {
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		s.add(event)
	}
	s.print(w)
	return nil
}

func (s *Stats) add(ev log.Event) {
	s.TotalEvents++
	s.Layers[ev.Layer]++
	s.Categories[ev.Category]++
	s.Directions[ev.Direction]++
	if s.TotalEvents == 1 || ev.Timestamp.Before(s.Start) {
		s.Start = ev.Timestamp
	}
	if ev.Timestamp.After(s.End) {
		s.End = ev.Timestamp
	}

	if id := ev.ConnectionID; id != "" {
		c := s.Connections[id]
		if c == nil {
			c = &ConnectionStats{FirstSeen: ev.Timestamp, Remote: ev.RemoteAddr}
			s.Connections[id] = c
		}
		c.Events++
		if ev.Timestamp.After(c.LastSeen) {
			c.LastSeen = ev.Timestamp
		}
		if c.Remote == "" {
			c.Remote = ev.RemoteAddr
		}
	}

	switch {
	case ev.Message != nil:
		if ev.Message.Type == log.MessageTypeRequest {
			s.Objects[od.Index(ev.Message.Index)]++
		}
		if ev.Message.Abort != nil {
			s.Aborts[ev.Message.Abort.String()]++
		}
	case ev.Update != nil && ev.Update.RunID != "":
		s.UpdateRuns[ev.Update.RunID] = ev.Update.Phase
	}
	if ev.Error != nil {
		s.Errors++
	}
}

// counts prints a titled section of non-zero counters in the order of keys.
func counts[K comparable](w io.Writer, title string, keys []K, m map[K]int, name func(K) string) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, title)
	for _, k := range keys {
		if n := m[k]; n > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", name(k)+":", n)
		}
	}
}

func (s *Stats) print(w io.Writer) {
	fmt.Fprintln(w, "=== Power Bridge Protocol Log Statistics ===")
	if s.TotalEvents > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Time Range: %s to %s\n", s.Start.Format(time.RFC3339), s.End.Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:   %s\n", s.End.Sub(s.Start).Round(time.Second))
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Total Events: %d\n", s.TotalEvents)

	counts(w, "Events by Layer:", []log.Layer{log.LayerTransport, log.LayerSDO, log.LayerUpdate}, s.Layers, log.Layer.String)
	counts(w, "Events by Category:", []log.Category{log.CategoryMessage, log.CategoryProgress, log.CategoryState, log.CategoryError}, s.Categories, log.Category.String)
	counts(w, "Events by Direction:", []log.Direction{log.DirectionIn, log.DirectionOut}, s.Directions, log.Direction.String)

	if len(s.Objects) > 0 {
		counts(w, "Requests by Object:", slices.Sorted(maps.Keys(s.Objects)), s.Objects, od.Index.String)
	}
	if len(s.Aborts) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Aborts:")
		for _, name := range slices.Sorted(maps.Keys(s.Aborts)) {
			fmt.Fprintf(w, "  %s: %d\n", name, s.Aborts[name])
		}
	}

	if len(s.Connections) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Connections: %d\n", len(s.Connections))
		ids := slices.SortedFunc(maps.Keys(s.Connections), func(a, b string) int {
			return s.Connections[a].FirstSeen.Compare(s.Connections[b].FirstSeen)
		})
		for _, id := range ids {
			c := s.Connections[id]
			fmt.Fprintf(w, "  [%s] %d events, duration %s", short(id), c.Events, c.LastSeen.Sub(c.FirstSeen).Round(time.Millisecond))
			if c.Remote != "" {
				fmt.Fprintf(w, ", remote %s", c.Remote)
			}
			fmt.Fprintln(w)
		}
	}

	if len(s.UpdateRuns) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Update Runs: %d\n", len(s.UpdateRuns))
		for _, id := range slices.Sorted(maps.Keys(s.UpdateRuns)) {
			fmt.Fprintf(w, "  [%s] %s\n", short(id), s.UpdateRuns[id])
		}
	}

	if s.Errors > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Errors: %d\n", s.Errors)
	}
}
