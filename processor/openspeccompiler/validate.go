package openspeccompiler

import (
	"sort"
	"strings"

	"github.com/c360studio/taskorchestrator/processor/personacatalog"
	"github.com/c360studio/taskorchestrator/processor/personapolicy"
)

// defaultTargetPath is assigned to a task whose tasks.md entry declares no
// target paths, matching every file collision-wise.
const defaultTargetPath = "*"

func validateCompiledPayload(draft *draftPayload, changeID string) (*CompiledConfig, error) {
	if len(draft.Tasks) == 0 {
		return nil, newCompileError("change %s: no tasks to compile", changeID)
	}

	ids := make(map[string]struct{}, len(draft.Tasks))
	tasks := make([]CompiledTask, 0, len(draft.Tasks))
	var autoTargetPathTasks []string

	for _, t := range draft.Tasks {
		if strings.TrimSpace(t.ID) == "" {
			return nil, newCompileError("change %s: task with empty id", changeID)
		}
		if _, dup := ids[t.ID]; dup {
			return nil, newCompileError("change %s: duplicate task id %s", changeID, t.ID)
		}
		ids[t.ID] = struct{}{}
		if strings.TrimSpace(t.Title) == "" {
			return nil, newCompileError("change %s: task %s has no title", changeID, t.ID)
		}

		targetPaths := t.TargetPaths
		if len(targetPaths) == 0 {
			targetPaths = []string{defaultTargetPath}
			autoTargetPathTasks = append(autoTargetPathTasks, t.ID)
		}

		tasks = append(tasks, CompiledTask{
			ID:           t.ID,
			Title:        t.Title,
			Description:  t.Description,
			TargetPaths:  targetPaths,
			DependsOn:    t.DependsOn,
			RequiresPlan: t.RequiresPlan,
		})
	}

	for _, t := range tasks {
		for _, dep := range t.DependsOn {
			if _, ok := ids[dep]; !ok {
				return nil, newCompileError("change %s: task %s depends on unknown task %s", changeID, t.ID, dep)
			}
		}
	}
	if cyclePath, ok := findDependencyCycle(tasks); ok {
		return nil, newCompileError("change %s: dependency cycle detected: %s", changeID, strings.Join(cyclePath, " -> "))
	}

	sourceLabel := "change " + changeID
	personas, err := personacatalog.Load(draft.Personas, sourceLabel)
	if err != nil {
		return nil, newCompileError("change %s: %v", changeID, err)
	}
	knownPersonaIDs := make(map[string]struct{}, len(personas))
	for _, p := range personas {
		knownPersonaIDs[p.ID] = struct{}{}
	}

	resolvedDefaults, err := personapolicy.NormalizeGlobalConfig(draft.PersonaDefaults, sourceLabel, knownPersonaIDs)
	if err != nil {
		return nil, newCompileError("change %s: %v", changeID, err)
	}
	var personaDefaults *personapolicy.GlobalConfig
	if draft.PersonaDefaults != nil {
		personaDefaults = &resolvedDefaults
	}

	for i, t := range draft.Tasks {
		policy, err := personapolicy.NormalizeTaskPolicy(t.PersonaPolicy, sourceLabel, t.ID, knownPersonaIDs)
		if err != nil {
			return nil, newCompileError("change %s: %v", changeID, err)
		}
		tasks[i].PersonaPolicy = policy
	}

	meta := map[string]any{
		"change_id": changeID,
	}
	if len(autoTargetPathTasks) > 0 {
		sort.Strings(autoTargetPathTasks)
		meta["auto_target_path_tasks"] = autoTargetPathTasks
	}
	if len(draft.VerificationItems) > 0 {
		meta["verification_item_count"] = len(draft.VerificationItems)
	}

	sortedCompiledTasks(tasks)

	return &CompiledConfig{
		Teammates:       draft.Teammates,
		Tasks:           tasks,
		Personas:        personas,
		PersonaDefaults: personaDefaults,
		Meta:            meta,
	}, nil
}

// findDependencyCycle runs a DFS over the depends_on graph and returns the
// first cycle encountered as an ordered id path, or ok=false if the graph
// is acyclic.
func findDependencyCycle(tasks []CompiledTask) ([]string, bool) {
	byID := make(map[string]CompiledTask, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}

	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := make(map[string]int, len(tasks))
	var path []string

	var visit func(id string) ([]string, bool)
	visit = func(id string) ([]string, bool) {
		switch state[id] {
		case visiting:
			cycleStart := 0
			for i, p := range path {
				if p == id {
					cycleStart = i
					break
				}
			}
			cycle := append(append([]string{}, path[cycleStart:]...), id)
			return cycle, true
		case done:
			return nil, false
		}
		state[id] = visiting
		path = append(path, id)
		for _, dep := range byID[id].DependsOn {
			if cycle, found := visit(dep); found {
				return cycle, true
			}
		}
		path = path[:len(path)-1]
		state[id] = done
		return nil, false
	}

	ids := make([]string, 0, len(tasks))
	for _, t := range tasks {
		ids = append(ids, t.ID)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if state[id] == unvisited {
			if cycle, found := visit(id); found {
				return cycle, true
			}
		}
	}
	return nil, false
}

