// Package assistant turns free-text questions into query hints and query
// results back into prose. The model is only ever shown data that came out
// of the record source.
package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/zombor/bill-tracker/internal/query"
	"github.com/zombor/bill-tracker/internal/scanning"
)

// maxAnswerRecords caps how many records are shown to the model
const maxAnswerRecords = 5

// intentSchema only rejects replies that cannot be hints at all. Values
// are normalised later, so unknown words are fine here.
var intentSchema = gojsonschema.NewStringLoader(`{
  "type": "object",
  "properties": {
    "query_type":     {"type": ["string", "null"]},
    "category":       {"type": ["string", "null"]},
    "vendor":         {"type": ["string", "null"]},
    "time_reference": {"type": ["string", "null"]},
    "payment_status": {"type": ["string", "null"]},
    "aggregation":    {"type": ["string", "null"]},
    "group_by":       {"type": ["string", "null"]},
    "limit":          {"type": ["number", "string", "null"]}
  }
}`)

// Agent talks to a text model. A nil generator is allowed: questions then
// become unconstrained lists and answers are built without a model.
type Agent struct {
	gen scanning.Generator
}

// NewAgent creates an Agent
func NewAgent(gen scanning.Generator) *Agent {
	return &Agent{gen: gen}
}

// ParseQuestion asks the model for query hints. Any failure yields a plain
// list intent so the question is still answered from data.
func (a *Agent) ParseQuestion(ctx context.Context, question string) query.Intent {
	fallback := query.Intent{QueryType: string(query.TypeList)}
	if a.gen == nil {
		return fallback
	}

	text, err := a.gen.Generate(ctx, fmt.Sprintf(parsePrompt, question))
	if err != nil {
		slog.Warn("Error parsing question", "error", err)
		return fallback
	}

	raw, err := scanning.ExtractJSON(text)
	if err != nil {
		slog.Warn("Question parse returned no JSON", "response", text)
		return fallback
	}

	result, err := gojsonschema.Validate(intentSchema, gojsonschema.NewStringLoader(raw))
	if err != nil || !result.Valid() {
		slog.Warn("Question parse returned unexpected JSON", "response", raw)
		return fallback
	}

	var hints map[string]any
	if err := json.Unmarshal([]byte(raw), &hints); err != nil {
		slog.Warn("Question parse returned invalid JSON", "error", err)
		return fallback
	}

	return query.IntentFromMap(hints)
}

// Answer phrases res for the user. When nothing was found, or the query
// failed, the answer is fixed text and the model is not consulted.
func (a *Agent) Answer(ctx context.Context, q query.Query, res query.Result) string {
	if !res.Success {
		msg := res.ErrorMessage
		if msg == "" {
			msg = res.Description
		}
		return fmt.Sprintf("Sorry, I couldn't look that up. (%s)", msg)
	}
	if !res.DataFound {
		return fmt.Sprintf("I don't have any records matching your question. (%s)", res.Description)
	}

	data := dataLines(res)
	if a.gen != nil {
		text, err := a.gen.Generate(ctx, fmt.Sprintf(answerPrompt, q.Question, res.Description, res.ResultCount, strings.Join(data, "\n")))
		switch {
		case err != nil:
			slog.Warn("Error generating answer", "error", err)
		case strings.TrimSpace(text) != "":
			return strings.TrimSpace(text)
		}
	}

	if res.Aggregation != nil {
		return "Based on your records: " + strings.Join(data, ", ")
	}
	return fmt.Sprintf("Found %d matching records.", res.ResultCount)
}

func dataLines(res query.Result) []string {
	var lines []string

	if agg := res.Aggregation; agg != nil {
		lines = append(lines,
			"function: "+string(agg.Function),
			"value: "+agg.Value.StringFixed(2),
			fmt.Sprintf("count: %d", agg.Count),
		)
		if agg.GroupBy != "" {
			lines = append(lines, "group_by: "+string(agg.GroupBy))
			keys := make([]string, 0, len(agg.Breakdown))
			for k := range agg.Breakdown {
				keys = append(keys, k)
			}
			slices.Sort(keys)
			for _, k := range keys {
				lines = append(lines, k+": "+agg.Breakdown[k].StringFixed(2))
			}
		}
	}

	for i, r := range res.Results {
		if i == maxAnswerRecords {
			break
		}
		var parts []string
		for _, key := range []string{"answer", "vendor_name", "total_amount", "bill_date", "payment_status"} {
			if v, ok := r[key]; ok && v != nil {
				parts = append(parts, fmt.Sprint(v))
			}
		}
		if len(parts) > 0 {
			lines = append(lines, strings.Join(parts, " | "))
		}
	}

	if len(lines) == 0 {
		lines = append(lines, "No details available")
	}
	return lines
}
