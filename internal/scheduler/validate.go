package scheduler

import (
	"fmt"
	"strings"

	"github.com/gammazero/toposort"
)

// Validate checks the registered tasks before a run, using the advisory
// Produces sets to build producer -> consumer edges.
// Returns task IDs in a dependency-respecting order, or an error naming a
// requirement no task declares it produces, or a cycle.
//
// The check is conservative: a task with several producers of one fact gets
// an edge from each of them, even though a single producer would suffice at run time.
func (s *Scheduler) Validate() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	producers := make(map[Prerequisite][]string)
	for _, task := range s.pending {
		for fact := range task.Produces {
			producers[fact] = append(producers[fact], task.ID)
		}
	}

	// Every requirement must have at least one declared producer
	var unproduced []string
	for _, task := range s.pending {
		for _, fact := range task.Requires.Sorted() {
			if len(producers[fact]) == 0 {
				unproduced = append(unproduced, fmt.Sprintf("%s requires %s", task.ID, fact))
			}
		}
	}
	if len(unproduced) > 0 {
		return nil, fmt.Errorf("no task produces: %s", strings.Join(unproduced, "; "))
	}

	// Edge (producer, consumer) means producer must run before consumer
	var edges []toposort.Edge
	for _, task := range s.pending {
		if len(task.Requires) == 0 {
			// Root task - add edge from nil to ensure it's included
			edges = append(edges, toposort.Edge{nil, task.ID})
			continue
		}
		for fact := range task.Requires {
			for _, producerID := range producers[fact] {
				edges = append(edges, toposort.Edge{producerID, task.ID})
			}
		}
	}

	sorted, err := toposort.Toposort(edges)
	if err != nil {
		return nil, fmt.Errorf("prerequisites contain cycle: %w", err)
	}

	order := make([]string, 0, len(sorted))
	for _, id := range sorted {
		if id != nil {
			order = append(order, id.(string))
		}
	}

	if len(order) != len(s.pending) {
		return nil, fmt.Errorf("topological sort kept %d of %d tasks", len(order), len(s.pending))
	}

	return order, nil
}
