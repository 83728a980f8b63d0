package commands

import (
	"bufio"
	"fmt"
	"strings"
	"time"

	"github.com/anmolarora1/em/domain/core/aggregates"
	"github.com/anmolarora1/em/domain/core/entities"
	"github.com/anmolarora1/em/domain/core/valueobjects"
	pkgerrors "github.com/anmolarora1/em/pkg/errors"
)

// OutlineLine is one parsed line of an indented outline
type OutlineLine struct {
	Depth int
	Value string
}

// ParseOutline parses an outline where each level is indented by two spaces or a tab and
// lines may carry a "- " or "* " bullet. Blank lines are skipped. Depth is relative to
// the first line and never jumps by more than one level.
func ParseOutline(text string) ([]OutlineLine, error) {
	var (
		lines  []OutlineLine
		base   = -1
		prev   = -1
		reader = bufio.NewScanner(strings.NewReader(text))
	)
	reader.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for reader.Scan() {
		raw := strings.TrimRight(reader.Text(), " \t\r")
		if strings.TrimSpace(raw) == "" {
			continue
		}

		indent := 0
		i := 0
	scan:
		for ; i < len(raw); i++ {
			switch raw[i] {
			case '\t':
				indent += 2
			case ' ':
				indent++
			default:
				break scan
			}
		}

		level := indent / 2
		if base < 0 {
			base = level
		}
		depth := level - base
		if depth < 0 {
			depth = 0
		}
		if depth > prev+1 {
			depth = prev + 1
		}
		prev = depth

		lines = append(lines, OutlineLine{Depth: depth, Value: stripBullet(raw[i:])})
	}
	if err := reader.Err(); err != nil {
		return nil, fmt.Errorf("failed to read outline: %w", err)
	}
	return lines, nil
}

// FormatOutline renders lines as a bulleted outline that ParseOutline reads back
func FormatOutline(lines []OutlineLine) string {
	var b strings.Builder
	for _, line := range lines {
		b.WriteString(strings.Repeat("  ", line.Depth))
		b.WriteString("- ")
		b.WriteString(line.Value)
		b.WriteByte('\n')
	}
	return b.String()
}

func stripBullet(s string) string {
	for _, bullet := range []string{"- ", "* "} {
		if strings.HasPrefix(s, bullet) {
			return strings.TrimSpace(s[len(bullet):])
		}
	}
	if s == "-" || s == "*" {
		return ""
	}
	return strings.TrimSpace(s)
}

// importText appends the outline under At. Each thought goes after the existing children of
// its context; a value already present in a context is reused so re-importing is harmless.
func (r *Reducer) importText(g *aggregates.ThoughtGraph, c ImportText, now time.Time) (Result, error) {
	lines, err := ParseOutline(c.Text)
	if err != nil {
		return unchanged(g), pkgerrors.NewValidationError(err.Error())
	}
	if len(lines) > r.maxEntries {
		return unchanged(g), pkgerrors.NewValidationError(fmt.Sprintf("outline has %d thoughts, limit is %d", len(lines), r.maxEntries))
	}

	base, err := r.resolver.ResolveContext(g, c.At)
	if err != nil {
		return unchanged(g), nil
	}

	tx := g.Begin(now)
	stack := []valueobjects.Context{base}
	for _, line := range lines {
		ctx := stack[line.Depth]
		childCtx := ctx.Append(line.Value)
		if err := r.validator.ValidateContext(childCtx); err != nil {
			return unchanged(g), err
		}
		if !aggregates.HasChild(tx, ctx, line.Value) {
			tx.AddChildToContext(ctx, entities.ChildRef{Value: line.Value, Rank: r.ranker.NextRank(tx, ctx)})
		}
		stack = append(stack[:line.Depth+1], childCtx)
	}
	return committed(tx, c.At), nil
}
