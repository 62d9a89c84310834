package openspeccompiler

import (
	"bufio"
	"os"
	"sort"
	"strings"
)

// ParsedTask is one task header parsed out of a tasks.md document, before
// persona-policy normalization or override application.
type ParsedTask struct {
	ID           string
	Title        string
	Description  string
	TargetPaths  []string
	DependsOn    []string
	RequiresPlan bool
	PersonaPolicy map[string]any
}

// VerificationItem is one checklist line under a verification-style
// section heading (e.g. "## Verification Checklist").
type VerificationItem struct {
	Text    string
	Checked bool
	Line    int
}

// PersonaDirectives is the change-wide persona configuration gathered from
// directive lines that appear before the first task header.
type PersonaDirectives struct {
	Personas              []any
	PersonaDefaults       map[string]any
	GlobalDisablePersonas []string
}

type taskParser struct {
	path                  string
	tasks                 []*ParsedTask
	verificationItems     []VerificationItem
	personaDefaults       map[string]any
	personas              []any
	globalDisablePersonas []string
	current               *ParsedTask
	descriptionParts      []string
	currentSection        string
	knownIDs              map[string]struct{}
	autoIDCounter         int
}

func (p *taskParser) finalizeCurrent() {
	if p.current == nil {
		return
	}
	p.current.Description = strings.TrimSpace(strings.Join(p.descriptionParts, "\n"))
	p.tasks = append(p.tasks, p.current)
	p.current = nil
}

func (p *taskParser) mergeTaskPolicy(fragment map[string]any) {
	existing := p.current.PersonaPolicy
	if existing == nil {
		existing = map[string]any{}
	}
	p.current.PersonaPolicy = mergePersonaPolicy(existing, fragment)
}

// ParseTasksMarkdown parses an openspec change's tasks.md file.
func ParseTasksMarkdown(path string) ([]*ParsedTask, []VerificationItem, PersonaDirectives, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, PersonaDirectives{}, err
	}

	p := &taskParser{path: path, knownIDs: map[string]struct{}{}, autoIDCounter: 1}
	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()

		if m := headingPattern.FindStringSubmatch(line); m != nil {
			p.finalizeCurrent()
			p.descriptionParts = nil
			p.currentSection = strings.TrimSpace(m[1])
			continue
		}

		if isVerificationSection(p.currentSection) {
			if m := checkItemPattern.FindStringSubmatch(line); m != nil {
				p.verificationItems = append(p.verificationItems, VerificationItem{
					Text:    strings.TrimSpace(m[2]),
					Checked: strings.EqualFold(strings.TrimSpace(m[1]), "x"),
					Line:    lineNo,
				})
				continue
			}
		}

		if m := taskHeaderPattern.FindStringSubmatch(line); m != nil {
			p.finalizeCurrent()
			taskID, titleRaw := extractTaskIDAndTitle(m[1], p.autoIDCounter)
			p.autoIDCounter++
			if _, ok := p.knownIDs[taskID]; ok {
				return nil, nil, PersonaDirectives{}, newCompileError("duplicate task id %s at %s:%d", taskID, path, lineNo)
			}
			p.knownIDs[taskID] = struct{}{}
			requiresPlan := extractRequiresPlan(titleRaw)
			title := strings.TrimSpace(requiresPlanTitleSuffixPattern.ReplaceAllString(titleRaw, ""))
			if title == "" {
				title = titleRaw
			}
			p.current = &ParsedTask{ID: taskID, Title: title, RequiresPlan: requiresPlan}
			p.descriptionParts = nil
			continue
		}

		if p.current == nil {
			if err := p.parsePreTaskDirective(line, lineNo); err != nil {
				return nil, nil, PersonaDirectives{}, err
			}
			continue
		}

		if err := p.parseTaskDirective(line, lineNo); err != nil {
			return nil, nil, PersonaDirectives{}, err
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, PersonaDirectives{}, err
	}

	p.finalizeCurrent()
	if len(p.tasks) == 0 {
		return nil, nil, PersonaDirectives{}, newCompileError("no tasks found in %s", path)
	}

	directives := PersonaDirectives{}
	if p.personas != nil {
		directives.Personas = p.personas
	}
	if p.personaDefaults != nil {
		directives.PersonaDefaults = p.personaDefaults
	}
	if len(p.globalDisablePersonas) > 0 {
		directives.GlobalDisablePersonas = p.globalDisablePersonas
	}
	return p.tasks, p.verificationItems, directives, nil
}

func (p *taskParser) parsePreTaskDirective(line string, lineNo int) error {
	if m := personaDefaultsPattern.FindStringSubmatch(line); m != nil {
		parsed, err := parseInlineJSONObject(m[1], "persona_defaults", p.path, lineNo)
		if err != nil {
			return err
		}
		p.personaDefaults = mergeDictValues(p.personaDefaults, parsed)
		return nil
	}
	if m := personasPattern.FindStringSubmatch(line); m != nil {
		parsed, err := parseInlineJSONArray(m[1], "personas", p.path, lineNo)
		if err != nil {
			return err
		}
		for _, item := range parsed {
			if _, ok := item.(map[string]any); !ok {
				return newCompileError("personas must be an array of objects at %s:%d", p.path, lineNo)
			}
		}
		p.personas = parsed
		return nil
	}
	if m := disablePersonasPattern.FindStringSubmatch(line); m != nil {
		p.globalDisablePersonas = mergeUnique(p.globalDisablePersonas, parsePersonaIDList(m[1]))
		return nil
	}
	if m := phaseAssignmentsPattern.FindStringSubmatch(line); m != nil {
		assignments, err := parsePhaseAssignments(m[1], p.path, lineNo)
		if err != nil {
			return err
		}
		if p.personaDefaults == nil {
			p.personaDefaults = map[string]any{}
		}
		phasePolicies, _ := p.personaDefaults["phase_policies"].(map[string]any)
		p.personaDefaults["phase_policies"] = mergeDictValues(phasePolicies, assignments)
		phaseOrder, _ := toStringList(p.personaDefaults["phase_order"])
		extra := make([]string, 0, len(assignments))
		for phase := range assignments {
			extra = append(extra, phase)
		}
		sort.Strings(extra)
		for _, phase := range append(append([]string(nil), DefaultPersonaPhaseOrder...), extra...) {
			if _, ok := assignments[phase]; !ok {
				continue
			}
			found := false
			for _, existing := range phaseOrder {
				if existing == phase {
					found = true
					break
				}
			}
			if !found {
				phaseOrder = append(phaseOrder, phase)
			}
		}
		p.personaDefaults["phase_order"] = anySlice(phaseOrder)
		return nil
	}
	return nil
}

func (p *taskParser) parseTaskDirective(line string, lineNo int) error {
	if m := taskPersonaPolicyPattern.FindStringSubmatch(line); m != nil {
		parsed, err := parseInlineJSONObject(m[1], "persona_policy", p.path, lineNo)
		if err != nil {
			return err
		}
		p.mergeTaskPolicy(parsed)
		return nil
	}
	if m := phaseOverridesPattern.FindStringSubmatch(line); m != nil {
		parsed, err := parseInlineJSONObject(m[1], "phase_overrides", p.path, lineNo)
		if err != nil {
			return err
		}
		p.mergeTaskPolicy(map[string]any{"phase_overrides": parsed})
		return nil
	}
	if m := disablePersonasPattern.FindStringSubmatch(line); m != nil {
		p.mergeTaskPolicy(map[string]any{"disable_personas": anySlice(parsePersonaIDList(m[1]))})
		return nil
	}
	if m := phaseAssignmentsPattern.FindStringSubmatch(line); m != nil {
		assignments, err := parsePhaseAssignments(m[1], p.path, lineNo)
		if err != nil {
			return err
		}
		p.mergeTaskPolicy(map[string]any{"phase_overrides": assignments})
		return nil
	}
	if m := dependencyPattern.FindStringSubmatch(line); m != nil {
		deps, err := parseDependencyValue(m[1], p.path, lineNo)
		if err != nil {
			return err
		}
		p.current.DependsOn = deps
		return nil
	}
	if m := targetPathsPattern.FindStringSubmatch(line); m != nil {
		p.current.TargetPaths = parsePathValue(m[1])
		return nil
	}
	if m := descriptionPattern.FindStringSubmatch(line); m != nil {
		p.descriptionParts = append(p.descriptionParts, strings.TrimSpace(m[1]))
		return nil
	}
	return nil
}
