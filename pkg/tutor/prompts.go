package tutor

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/matzehuels/ercanvas/pkg/diagram"
)

// DefaultLanguage is the language generated text is written in.
const DefaultLanguage = "Brazilian Portuguese (pt-BR)"

// FallbackHint is returned when the text service sends an empty hint.
const FallbackHint = "Continue analisando os requisitos cuidadosamente."

// sqlFallback is the DDL returned when the text service sends nothing. It is
// a comment so that it can still be piped into a SQL client.
func sqlFallback(d Dialect) string {
	return "-- Erro ao gerar SQL para " + d.DisplayName()
}

var difficultyScope = map[Difficulty]string{
	Basic:        "2 to 3 simple entities, focused on fundamental concepts.",
	Intermediate: "4 to 7 entities, including the need for associative entities (many-to-many).",
	Advanced:     "more than 7 entities, with hard-to-read cardinalities, self-relationships and normalization challenges.",
}

func scenarioPrompt(d Difficulty, lang string) string {
	return fmt.Sprintf(`Act as an experienced database professor and an excellent writer.
Write a new case study for a data modeling exercise.
Difficulty: %s (%s)

CONTENT AND LANGUAGE RULES:
1. Write entirely in prose, organized in narrative paragraphs.
2. Write in %s with correct spelling, accents and punctuation.
3. Do not use lists, bullets, hyphens, asterisks or numbering to describe requirements.
4. Describe the everyday operation of an organization and its information needs.
5. Embed the business rules in the narrative so the student must identify the entities, their essential attributes and the relationship cardinalities on their own.
6. Avoid obvious table names; focus on describing processes.

FORMAT RULES:
1. Do not use any Markdown formatting.
2. Return plain text only, with no introduction or conclusion.`,
		strings.ToUpper(string(d)), difficultyScope[d], lang)
}

// entitySummary is the compact view of an entity sent in prompts.
type entitySummary struct {
	Name  string   `json:"name"`
	Attrs []string `json:"attrs"`
}

// relationshipSummary names both endpoints instead of their ids.
type relationshipSummary struct {
	From        string `json:"from"`
	To          string `json:"to"`
	Cardinality string `json:"cardinality"`
	Name        string `json:"name,omitempty"`
}

func summarizeEntities(m diagram.Model) []entitySummary {
	out := make([]entitySummary, len(m.Entities))
	for i, e := range m.Entities {
		attrs := make([]string, len(e.Attributes))
		for j, a := range e.Attributes {
			attrs[j] = a.Name
			if a.PK {
				attrs[j] += " (PK)"
			}
			if c := a.EffectiveCategory(); c != diagram.Identifier && c != diagram.Descriptive {
				attrs[j] += " [" + string(c) + "]"
			}
		}
		out[i] = entitySummary{Name: e.Name, Attrs: attrs}
	}
	return out
}

func summarizeRelationships(m diagram.Model) []relationshipSummary {
	idx := m.EntityIndex()
	out := make([]relationshipSummary, 0, len(m.Relationships))
	for _, r := range m.Relationships {
		out = append(out, relationshipSummary{
			From:        idx[r.FromID].Name,
			To:          idx[r.ToID].Name,
			Cardinality: string(r.Cardinality),
			Name:        r.Name,
		})
	}
	return out
}

func mustJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "[]"
	}
	return string(data)
}

func evaluatePrompt(m diagram.Model, lang string) string {
	return fmt.Sprintf(`Act as a professor specializing in entity-relationship modeling.

CASE STUDY:
%q

THE STUDENT MODELED THE FOLLOWING:
Entities and attributes: %s
Relationships: %s

Assess whether the student's model correctly reflects the business rules of the case study.
Consider whether the student identified the primary keys (PK) correctly.
Give a score from 0 to 100.
Write constructive feedback in %s.`,
		m.CaseStudy, mustJSON(summarizeEntities(m)), mustJSON(summarizeRelationships(m)), lang)
}

// evaluationSchema constrains the JSON the service returns for evaluations.
var evaluationSchema = map[string]any{
	"type": "OBJECT",
	"properties": map[string]any{
		"score":    map[string]any{"type": "INTEGER"},
		"feedback": map[string]any{"type": "STRING"},
		"details": map[string]any{
			"type": "OBJECT",
			"properties": map[string]any{
				"entities":      map[string]any{"type": "STRING"},
				"attributes":    map[string]any{"type": "STRING"},
				"relationships": map[string]any{"type": "STRING"},
			},
			"required": []string{"entities", "attributes", "relationships"},
		},
	},
	"required": []string{"score", "feedback", "details"},
}

var dialectRules = map[Dialect]string{
	MySQL: `MYSQL RULES:
1. Use MySQL CREATE TABLE syntax.
2. Use AUTO_INCREMENT for numeric primary keys where appropriate.
3. Add ENGINE=InnoDB to every table.
4. Resolve N:N relationships with associative tables.
5. Declare FOREIGN KEY constraints with the required integrity rules.`,
	Postgres: `POSTGRESQL RULES:
1. Use PostgreSQL CREATE TABLE syntax.
2. Use SERIAL or BIGSERIAL for auto-increment primary keys.
3. Resolve N:N relationships with associative tables.
4. Quote table or column names only when they are reserved words; prefer snake_case.
5. Declare FOREIGN KEY constraints with the required integrity rules.`,
}

func sqlPrompt(m diagram.Model, d Dialect, lang string) string {
	payload := struct {
		Entities      []entitySummary       `json:"entities"`
		Relationships []relationshipSummary `json:"relationships"`
	}{summarizeEntities(m), summarizeRelationships(m)}

	return fmt.Sprintf(`Act as an expert database developer. Convert the following data model (entities and relationships) into a SQL DDL script compatible with %s.

%s
6. Add explanatory comments in %s.

MODEL:
%s

Reply ONLY with SQL ready to run, without Markdown code fences or extra text.`,
		d.DisplayName(), dialectRules[d], lang, mustJSON(payload))
}

func hintPrompt(m diagram.Model, lang string) string {
	names := make([]string, len(m.Entities))
	for i, e := range m.Entities {
		names[i] = e.Name
	}
	return fmt.Sprintf(`Act as a data modeling mentor. The student is working on this case study:
%q

Current model:
Entities: %s
Relationships: %d created.

Do not give the full answer. Give a SHORT HINT (at most 2 sentences) to help the student take the next step or fix a likely mistake.
Focus on a missing entity, a forgotten key attribute or a cardinality that looks wrong.
Reply in %s.`,
		m.CaseStudy, strings.Join(names, ", "), len(m.Relationships), lang)
}

// stripFences removes a surrounding Markdown code fence, which the service
// sometimes adds despite being asked not to.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
