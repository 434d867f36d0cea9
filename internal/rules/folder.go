package rules

import "github.com/xaenox/memo-desk/internal/models"

func EvaluateGroup(note models.Note, group models.RuleGroup) bool {
	return defaultMatcher.EvaluateGroup(note, group)
}

// EvaluateGroup reports whether note satisfies every condition of group. A
// group without conditions matches nothing.
func (m *Matcher) EvaluateGroup(note models.Note, group models.RuleGroup) bool {
	if len(group.Conditions) == 0 {
		return false
	}
	for _, c := range group.Conditions {
		if !m.EvaluateCondition(note, c) {
			return false
		}
	}
	return true
}

func NoteMatchesFolderRules(note models.Note, folder models.Folder) bool {
	return defaultMatcher.NoteMatchesFolderRules(note, folder)
}

// NoteMatchesFolderRules combines the folder's rule groups with AND or OR
// according to its match type. It ignores the folder kind; callers decide
// whether rules apply. No groups, or an unknown match type, means no match.
func (m *Matcher) NoteMatchesFolderRules(note models.Note, folder models.Folder) bool {
	if len(folder.RuleGroups) == 0 {
		return false
	}

	switch models.NormalizeMatchType(folder.MatchType) {
	case models.MatchAll:
		for _, g := range folder.RuleGroups {
			if !m.EvaluateGroup(note, g) {
				return false
			}
		}
		return true
	case models.MatchAny:
		for _, g := range folder.RuleGroups {
			if m.EvaluateGroup(note, g) {
				return true
			}
		}
		return false
	}
	return false
}

func MembersOf(notes []models.Note, folder models.Folder) []models.Note {
	return defaultMatcher.MembersOf(notes, folder)
}

// MembersOf returns the notes that belong to folder, in input order. Manual
// folders use only the note's folder assignment, dynamic folders only rules,
// and hybrid folders either. Each note appears at most once.
func (m *Matcher) MembersOf(notes []models.Note, folder models.Folder) []models.Note {
	out := make([]models.Note, 0)
	for _, n := range notes {
		if m.IsMember(n, folder) {
			out = append(out, n)
		}
	}
	return out
}

// IsMember is the single-note form of MembersOf.
func (m *Matcher) IsMember(note models.Note, folder models.Folder) bool {
	switch folder.Kind {
	case models.FolderManual:
		return note.HasFolder(folder.ID)
	case models.FolderDynamic:
		return m.NoteMatchesFolderRules(note, folder)
	case models.FolderHybrid:
		return note.HasFolder(folder.ID) || m.NoteMatchesFolderRules(note, folder)
	}
	return false
}
