package config

// GetDefaultSystemPrompt returns the system prompt for program generation
func GetDefaultSystemPrompt() string {
	return `You are an experienced strength and conditioning coach who writes structured training programs. You only prescribe exercises from the catalog you are given and you always answer with a single JSON object.`
}

// GetDefaultChunkTemplate returns the default template for one generation chunk
func GetDefaultChunkTemplate() string {
	return `{{.Instruction}}

CLIENT:
- Goal: {{.Goal}}
- Level: {{.Level}}
- Sessions per week: {{.SessionsPerWeek}}
- Minutes per session: {{.SessionMinutes}}
{{- if .Exclusions}}
- Restrictions: {{join .Exclusions ", "}}
{{- end}}

EXERCISE CATALOG (use exercise_id values exactly as written, nothing else):
{{range .Catalog}}- {{.ID}} | {{.Name}} | {{.Category}} | {{.Movement}}
{{end}}
Return ONLY a valid JSON object with this structure (no markdown, no additional text):
{
  "program_name": "<name>",
  "description": "<one or two sentences>",
  "weeks": [
    {
      "week": {{.StartWeek}},
      "focus": "<theme of the week>",
      "sessions": [
        {
          "day": 1,
          "name": "<session name>",
          "exercises": [
            {"exercise_id": "<catalog id>", "name": "<catalog name>", "sets": 3, "reps": "8-10", "rest_seconds": 90, "notes": ""}
          ]
        }
      ]
    }
  ]
}

Include exactly weeks {{.StartWeek}} through {{.EndWeek}}, each with {{.SessionsPerWeek}} sessions.`
}
