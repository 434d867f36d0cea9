package rules

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/memo-desk/internal/models"
)

func fixedClock(t *testing.T, value string) Option {
	t.Helper()
	now, ok := models.ParseTime(value)
	require.True(t, ok, "parse clock %q", value)
	return WithClock(func() time.Time { return now })
}

func cond(field models.Field, op models.Operator, value string) models.Condition {
	return models.Condition{Field: field, Operator: op, Value: value}
}

func strPtr(s string) *string { return &s }

func TestTitleContainsIsCaseInsensitive(t *testing.T) {
	note := models.Note{Title: "Grocery List", Tags: []string{"home"}}
	assert.True(t, EvaluateCondition(note, cond(models.FieldTitle, models.OpContains, "grocery")))
}

func TestTextOperators(t *testing.T) {
	note := models.Note{Title: "March Invoice", Content: "<p>Pay the <b>ACME</b> bill &amp; file it</p>"}
	cases := []struct {
		c    models.Condition
		want bool
	}{
		{cond(models.FieldTitle, models.OpStartsWith, "march"), true},
		{cond(models.FieldTitle, models.OpStartsWith, "invoice"), false},
		{cond(models.FieldTitle, models.OpEndsWith, "INVOICE"), true},
		{cond(models.FieldTitle, models.OpEquals, "march invoice"), true},
		{cond(models.FieldTitle, models.OpEquals, "march"), false},
		{cond(models.FieldTitle, models.OpNotEquals, "march"), true},
		{cond(models.FieldTitle, models.OpNotContains, "april"), true},
		{cond(models.FieldContent, models.OpContains, "acme bill & file"), true},
		{cond(models.FieldContent, models.OpContains, "<b>"), false},
		{cond(models.FieldContent, models.OpNotContains, "acme"), false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, EvaluateCondition(note, tc.c), "%+v", tc.c)
	}
}

func TestEmptyValueNeverMatches(t *testing.T) {
	note := models.Note{Title: "anything", Content: "text", Tags: []string{"a"}, CreatedAt: time.Now()}
	for _, field := range models.Fields() {
		for _, op := range field.Operators() {
			if op == models.OpHasAny || op == models.OpHasAll {
				continue
			}
			assert.False(t, EvaluateCondition(note, cond(field, op, "")), "%s %s", field, op)
		}
	}
}

func TestTagOperators(t *testing.T) {
	note := models.Note{Tags: []string{"Work", "urgent"}}

	assert.True(t, EvaluateCondition(note, cond(models.FieldTags, models.OpHasAll, "work, urgent")))
	assert.False(t, EvaluateCondition(note, cond(models.FieldTags, models.OpHasAll, "work, urgent, billing")))
	assert.True(t, EvaluateCondition(note, cond(models.FieldTags, models.OpHasAny, "billing, URGENT")))
	assert.True(t, EvaluateCondition(note, cond(models.FieldTags, models.OpContains, "billing,work")))
	assert.False(t, EvaluateCondition(note, cond(models.FieldTags, models.OpContains, "billing")))
	assert.True(t, EvaluateCondition(note, cond(models.FieldTags, models.OpNotContains, "billing, home")))
	assert.False(t, EvaluateCondition(note, cond(models.FieldTags, models.OpNotContains, "home, work")))
}

func TestTagOperatorsWithEmptyOperandSet(t *testing.T) {
	note := models.Note{Tags: []string{"work"}}

	assert.False(t, EvaluateCondition(note, cond(models.FieldTags, models.OpHasAny, "")))
	assert.False(t, EvaluateCondition(note, cond(models.FieldTags, models.OpContains, " , ")))
	assert.True(t, EvaluateCondition(note, cond(models.FieldTags, models.OpHasAll, "")))
	assert.True(t, EvaluateCondition(models.Note{}, cond(models.FieldTags, models.OpNotContains, "work")))
}

func TestHasAllIsMonotonic(t *testing.T) {
	notes := []models.Note{
		{Tags: []string{"a", "b", "c"}},
		{Tags: []string{"a"}},
		{},
	}
	operands := []string{"", "a", "a,b", "a,b,c", "a,b,c,d"}

	for _, n := range notes {
		prev := true
		for _, op := range operands {
			got := EvaluateCondition(n, cond(models.FieldTags, models.OpHasAll, op))
			if got {
				assert.True(t, prev, "has_all flipped to true at %q for %v", op, n.Tags)
			}
			prev = got
		}
	}
}

func TestLastNDays(t *testing.T) {
	note := models.Note{CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := cond(models.FieldCreatedDate, models.OpLastNDays, "30")

	assert.True(t, NewMatcher(fixedClock(t, "2024-01-15")).EvaluateCondition(note, c))
	assert.False(t, NewMatcher(fixedClock(t, "2024-03-01")).EvaluateCondition(note, c))
	assert.True(t, NewMatcher(fixedClock(t, "2024-01-31")).EvaluateCondition(note, c))
	assert.False(t, NewMatcher(fixedClock(t, "2024-01-15")).EvaluateCondition(note, cond(models.FieldCreatedDate, models.OpLastNDays, "thirty")))
}

func TestBeforeAfter(t *testing.T) {
	note := models.Note{
		CreatedAt: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
	}

	assert.True(t, EvaluateCondition(note, cond(models.FieldCreatedDate, models.OpBefore, "2024-01-02")))
	assert.False(t, EvaluateCondition(note, cond(models.FieldCreatedDate, models.OpAfter, "2024-01-02")))
	assert.True(t, EvaluateCondition(note, cond(models.FieldUpdatedDate, models.OpAfter, "2024-05-31T23:59:59Z")))
	assert.False(t, EvaluateCondition(note, cond(models.FieldUpdatedDate, models.OpBefore, "not a date")))
	assert.False(t, EvaluateCondition(note, cond(models.FieldUpdatedDate, models.OpAfter, "not a date")))
}

func TestMissingDateNeverMatches(t *testing.T) {
	note := models.Note{Title: "undated"}
	assert.False(t, EvaluateCondition(note, cond(models.FieldCreatedDate, models.OpBefore, "2100-01-01")))
	assert.False(t, EvaluateCondition(note, cond(models.FieldUpdatedDate, models.OpLastNDays, "100000")))
}

func TestUnknownFieldOrOperatorFailsClosed(t *testing.T) {
	note := models.Note{Title: "hello", Content: "hello", Tags: []string{"hello"}}

	assert.False(t, EvaluateCondition(note, cond("author", models.OpContains, "hello")))
	assert.False(t, EvaluateCondition(note, cond(models.FieldTitle, "matches", "hello")))
	assert.False(t, EvaluateCondition(note, cond(models.FieldContent, models.OpEquals, "hello")))
	assert.False(t, EvaluateCondition(note, cond(models.FieldTags, models.OpStartsWith, "hello")))
	assert.False(t, EvaluateCondition(note, cond(models.FieldTitle, models.OpHasAny, "hello")))
}

func TestEmptyGroupMatchesNothing(t *testing.T) {
	// Deliberately not vacuous truth: a malformed empty group must not pull
	// every note into a folder.
	assert.False(t, EvaluateGroup(models.Note{Title: "x"}, models.RuleGroup{}))
}

func TestGroupRequiresEveryCondition(t *testing.T) {
	group := models.RuleGroup{Conditions: []models.Condition{
		cond(models.FieldTitle, models.OpContains, "invoice"),
		cond(models.FieldTags, models.OpHasAny, "finance"),
	}}

	assert.True(t, EvaluateGroup(models.Note{Title: "Invoice", Tags: []string{"finance"}}, group))
	assert.False(t, EvaluateGroup(models.Note{Title: "Invoice", Tags: []string{"personal"}}, group))
}

func TestLegacyRuleEvaluatesLikeOneConditionGroup(t *testing.T) {
	legacy := []byte(`[{"field": "title", "operator": "starts_with", "value": "march"}]`)
	groups, err := models.DecodeRuleGroups(legacy)
	require.NoError(t, err)
	require.Len(t, groups, 1)

	original := cond(models.FieldTitle, models.OpStartsWith, "march")
	for _, n := range []models.Note{{Title: "March Invoice"}, {Title: "April"}, {}} {
		assert.Equal(t, EvaluateCondition(n, original), EvaluateGroup(n, groups[0]), n.Title)
	}
}

func invoiceFolder(match models.MatchType) models.Folder {
	return models.Folder{
		ID:        "f-invoices",
		Name:      "Invoices",
		Kind:      models.FolderDynamic,
		MatchType: match,
		RuleGroups: []models.RuleGroup{
			{Conditions: []models.Condition{cond(models.FieldTitle, models.OpContains, "invoice")}},
			{Conditions: []models.Condition{cond(models.FieldTags, models.OpHasAny, "finance")}},
		},
	}
}

func TestFolderMatchTypes(t *testing.T) {
	finance := models.Note{ID: "1", Title: "March Invoice", Tags: []string{"finance"}}
	personal := models.Note{ID: "2", Title: "March Invoice", Tags: []string{"personal"}}

	all := invoiceFolder(models.MatchAll)
	assert.True(t, NoteMatchesFolderRules(finance, all))
	assert.False(t, NoteMatchesFolderRules(personal, all))

	anyOf := invoiceFolder(models.MatchAny)
	assert.True(t, NoteMatchesFolderRules(finance, anyOf))
	assert.True(t, NoteMatchesFolderRules(personal, anyOf))
}

func TestFolderWithoutRulesOrBadMatchType(t *testing.T) {
	note := models.Note{Title: "March Invoice", Tags: []string{"finance"}}

	empty := invoiceFolder(models.MatchAny)
	empty.RuleGroups = nil
	assert.False(t, NoteMatchesFolderRules(note, empty))

	odd := invoiceFolder("most")
	assert.False(t, NoteMatchesFolderRules(note, odd))

	unset := invoiceFolder("")
	assert.True(t, NoteMatchesFolderRules(note, unset))
}

func TestAllMembershipIsSubsetOfAny(t *testing.T) {
	notes := []models.Note{
		{ID: "1", Title: "March Invoice", Tags: []string{"finance"}},
		{ID: "2", Title: "March Invoice", Tags: []string{"personal"}},
		{ID: "3", Title: "Budget", Tags: []string{"finance"}},
		{ID: "4", Title: "Shopping"},
	}

	all := MembersOf(notes, invoiceFolder(models.MatchAll))
	anyOf := MembersOf(notes, invoiceFolder(models.MatchAny))

	anyIDs := map[string]bool{}
	for _, n := range anyOf {
		anyIDs[n.ID] = true
	}
	for _, n := range all {
		assert.True(t, anyIDs[n.ID], "note %s in all but not any", n.ID)
	}
	assert.Len(t, all, 1)
	assert.Len(t, anyOf, 3)
}

func TestMembershipByFolderKind(t *testing.T) {
	assigned := models.Note{ID: "assigned", Title: "Recipes", FolderID: strPtr("f-invoices")}
	matching := models.Note{ID: "matching", Title: "May invoice"}
	both := models.Note{ID: "both", Title: "June invoice", FolderID: strPtr("f-invoices")}
	neither := models.Note{ID: "neither", Title: "Holiday"}
	notes := []models.Note{assigned, matching, both, neither}

	folder := invoiceFolder(models.MatchAny)

	folder.Kind = models.FolderManual
	assert.Equal(t, []string{"assigned", "both"}, ids(MembersOf(notes, folder)))

	folder.Kind = models.FolderDynamic
	assert.Equal(t, []string{"matching", "both"}, ids(MembersOf(notes, folder)))

	folder.Kind = models.FolderHybrid
	assert.Equal(t, []string{"assigned", "matching", "both"}, ids(MembersOf(notes, folder)))

	folder.Kind = "smart"
	assert.Empty(t, MembersOf(notes, folder))
}

func TestStoredFolderWithUnreadableGroup(t *testing.T) {
	stored := []byte(`[
		{"conditions": [{"field": "title", "operator": "contains", "value": "invoice"}]},
		{"field": "created_date", "operator": "last_n_days", "value": 30},
		{"conditions": [{"field": "tags", "operator": "has_any", "value": {"bad": true}}]}
	]`)
	groups, err := models.DecodeRuleGroups(stored)
	require.NoError(t, err)

	m := NewMatcher(fixedClock(t, "2024-03-01"))
	old := models.Note{ID: "old", Title: "March Invoice", CreatedAt: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)}
	recent := models.Note{ID: "recent", Title: "Groceries", CreatedAt: time.Date(2024, 2, 20, 0, 0, 0, 0, time.UTC)}
	notes := []models.Note{old, recent}

	anyFolder := models.Folder{Kind: models.FolderDynamic, MatchType: models.MatchAny, RuleGroups: groups}
	assert.Equal(t, []string{"old", "recent"}, ids(m.MembersOf(notes, anyFolder)))

	// The unreadable group can never hold, so an all folder matches nothing.
	allFolder := models.Folder{Kind: models.FolderDynamic, MatchType: models.MatchAll, RuleGroups: groups}
	assert.Empty(t, m.MembersOf(notes, allFolder))
}

func TestManualFolderIgnoresRules(t *testing.T) {
	folder := invoiceFolder(models.MatchAny)
	folder.Kind = models.FolderManual

	got := MembersOf([]models.Note{{ID: "x", Title: "invoice"}}, folder)
	assert.Empty(t, got)
}

func TestPlainText(t *testing.T) {
	assert.Equal(t, "", PlainText(""))
	assert.Equal(t, "plain", PlainText("plain"))
	assert.Equal(t, "Hello world", PlainText("<div><h1>Hello</h1> <i>world</i></div>"))
	assert.Equal(t, "a < b & c", PlainText("a &lt; b &amp; c"))
	assert.Contains(t, PlainText("<p>kept</p><b"), "kept")
}

func ids(notes []models.Note) []string {
	out := make([]string, 0, len(notes))
	for _, n := range notes {
		out = append(out, n.ID)
	}
	return out
}
