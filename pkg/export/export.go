// Package export renders a finished coding run into human-readable
// artifacts: a Markdown codebook for researchers and a JSON dump of the
// full result for downstream tooling.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tessera-labs/weave/pkg/coding"
)

// WriteJSON writes the complete run result as indented JSON.
func WriteJSON(w io.Writer, result *coding.RunResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// WriteMarkdown renders the codebook: the taxonomy as an indented tree
// with frequencies, followed by the entity and relationship tables and
// the run summary.
func WriteMarkdown(w io.Writer, result *coding.RunResult) error {
	var b strings.Builder

	fmt.Fprintf(&b, "# Codebook for project %s\n\n", result.ProjectID)
	fmt.Fprintf(&b, "Run `%s`\n\n", result.RunID)

	b.WriteString("## Themes\n\n")
	if len(result.Taxonomy.Codes) == 0 {
		b.WriteString("_No codes were produced._\n")
	} else {
		writeCodeTree(&b, &result.Taxonomy)
	}

	b.WriteString("\n## Entities\n\n")
	if len(result.Entities) == 0 {
		b.WriteString("_No entities were extracted._\n")
	} else {
		b.WriteString("| Name | Type | Quotes | Confidence | Status |\n")
		b.WriteString("| --- | --- | ---: | ---: | --- |\n")
		for _, e := range result.Entities {
			fmt.Fprintf(&b, "| %s | %s | %d | %.2f | %s |\n",
				escapeCell(e.Name), e.Type, len(e.QuoteIDs), e.Confidence, e.Status)
		}
	}

	b.WriteString("\n## Relationships\n\n")
	if len(result.Relationships) == 0 {
		b.WriteString("_No relationships were extracted._\n")
	} else {
		b.WriteString("| Source | Label | Target | Confidence | Status |\n")
		b.WriteString("| --- | --- | --- | ---: | --- |\n")
		for _, r := range result.Relationships {
			fmt.Fprintf(&b, "| %s | %s | %s | %.2f | %s |\n",
				escapeCell(r.SourceName), escapeCell(r.Label), escapeCell(r.TargetName), r.Confidence, r.Status)
		}
	}

	b.WriteString("\n## Quotes\n\n")
	if len(result.Quotes) == 0 {
		b.WriteString("_No quotes were segmented._\n")
	} else {
		writeQuotes(&b, result)
	}

	b.WriteString("\n## Summary\n\n")
	s := result.Summary
	fmt.Fprintf(&b, "- Interviews processed: %d\n", s.InterviewsProcessed)
	fmt.Fprintf(&b, "- Codes: %d\n", s.CodesFound)
	fmt.Fprintf(&b, "- Entities: %d\n", s.EntitiesFound)
	fmt.Fprintf(&b, "- Relationships: %d\n", s.RelationshipsFound)
	if len(s.Errors) > 0 {
		b.WriteString("- Failed interviews:\n")
		for _, e := range s.Errors {
			fmt.Fprintf(&b, "  - `%s`: %s\n", e.InterviewID, e.Reason)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// WriteFiles writes codebook.md and result.json into dir, creating it if
// needed.
func WriteFiles(dir string, result *coding.RunResult) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	md, err := os.Create(filepath.Join(dir, "codebook.md"))
	if err != nil {
		return err
	}
	defer md.Close()
	if err := WriteMarkdown(md, result); err != nil {
		return err
	}

	js, err := os.Create(filepath.Join(dir, "result.json"))
	if err != nil {
		return err
	}
	defer js.Close()
	return WriteJSON(js, result)
}

// writeCodeTree prints codes depth first. Siblings are ordered by
// frequency, then name, so the most prominent themes come first.
func writeCodeTree(b *strings.Builder, tax *coding.Taxonomy) {
	children := make(map[string][]*coding.Code)
	for i := range tax.Codes {
		c := &tax.Codes[i]
		children[c.ParentID] = append(children[c.ParentID], c)
	}
	for _, siblings := range children {
		sort.Slice(siblings, func(i, j int) bool {
			if siblings[i].Frequency != siblings[j].Frequency {
				return siblings[i].Frequency > siblings[j].Frequency
			}
			return siblings[i].Name < siblings[j].Name
		})
	}

	var walk func(parentID string, depth int)
	walk = func(parentID string, depth int) {
		for _, c := range children[parentID] {
			indent := strings.Repeat("  ", depth)
			fmt.Fprintf(b, "%s- **%s** (%d)", indent, c.Name, c.Frequency)
			if c.Description != "" {
				fmt.Fprintf(b, " %s", c.Description)
			}
			b.WriteString("\n")
			walk(c.ID, depth+1)
		}
	}
	walk("", 0)
}

// writeQuotes lists every segmented quote grouped by interview, with the
// speaker and the names of the codes applied to it.
func writeQuotes(b *strings.Builder, result *coding.RunResult) {
	interviewIDs := make([]string, 0, len(result.Quotes))
	for id := range result.Quotes {
		interviewIDs = append(interviewIDs, id)
	}
	sort.Strings(interviewIDs)

	for _, interviewID := range interviewIDs {
		fmt.Fprintf(b, "### %s\n\n", interviewID)
		for _, q := range result.Quotes[interviewID] {
			speaker := q.Speaker
			if speaker == "" {
				speaker = "Unknown"
			}
			fmt.Fprintf(b, "> %s\n", strings.ReplaceAll(q.Text, "\n", "\n> "))
			fmt.Fprintf(b, "\n%s", speaker)
			if names := codeNames(&result.Taxonomy, q.CodeIDs); len(names) > 0 {
				fmt.Fprintf(b, " (codes: %s)", strings.Join(names, ", "))
			}
			b.WriteString("\n\n")
		}
	}
}

func codeNames(tax *coding.Taxonomy, ids []string) []string {
	var names []string
	for _, id := range ids {
		if c := tax.CodeByID(id); c != nil {
			names = append(names, c.Name)
		}
	}
	sort.Strings(names)
	return names
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}
