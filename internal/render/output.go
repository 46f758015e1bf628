// Package render provides output formatting for terminal and JSON consumption.
package render

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/Ananthavalli1991/ananthi-tdsproj1/internal/operation"
)

// Renderer handles output formatting.
type Renderer struct {
	pretty bool
	json   bool
}

// New creates a new renderer. Color follows the pretty flag.
func New(pretty, asJSON bool) *Renderer {
	return &Renderer{pretty: pretty && !asJSON, json: asJSON}
}

// Result formats one task outcome.
func (r *Renderer) Result(res operation.Result) string {
	if r.json {
		return r.marshal(res)
	}

	var sb strings.Builder
	status := color.GreenString("✓")
	if !res.OK() {
		status = color.RedString("✗")
	}

	if r.pretty {
		fmt.Fprintf(&sb, "%s %s %s\n", status, color.CyanString(string(res.Operation)),
			color.HiBlackString(FormatDuration(res.Duration)))
		if !res.OK() {
			fmt.Fprintf(&sb, "  %s %s\n", color.RedString(string(res.Kind)+":"), res.Output)
		} else if res.Output != "" {
			for _, line := range strings.Split(strings.TrimRight(res.Output, "\n"), "\n") {
				fmt.Fprintf(&sb, "  %s\n", line)
			}
		}
	} else {
		fmt.Fprintf(&sb, "status=%s operation=%s task=%s", res.Status, res.Operation, res.TaskID)
		if res.Kind != "" {
			fmt.Fprintf(&sb, " kind=%s", res.Kind)
		}
		fmt.Fprintf(&sb, "\n%s\n", res.Output)
	}
	return sb.String()
}

// Content formats a file read through the guard.
func (r *Renderer) Content(path string, data []byte) string {
	if r.json {
		return r.marshal(map[string]string{"status": operation.StatusSuccess, "content": string(data)})
	}
	if r.pretty {
		return color.HiBlackString("── "+path+" ──") + "\n" + string(data)
	}
	return string(data)
}

// Operations lists the catalog.
func (r *Renderer) Operations(specs []operation.Spec) string {
	if r.json {
		type entry struct {
			ID          operation.ID `json:"id"`
			Family      string       `json:"family"`
			Effects     string       `json:"effects"`
			Description string       `json:"description"`
		}
		out := make([]entry, len(specs))
		for i, s := range specs {
			out[i] = entry{s.ID, s.Family.String(), s.Effects.String(), s.Description}
		}
		return r.marshal(out)
	}

	var sb strings.Builder
	w := NewWriter(&sb)
	family := ""
	for _, s := range specs {
		if f := s.Family.String(); f != family {
			family = f
			if r.pretty {
				w.Section(family)
			} else {
				w.Println("[%s]", family)
			}
		}
		if r.pretty {
			w.Item("%-28s %s", color.CyanString(string(s.ID)), Truncate(s.Description, 72))
			if s.Effects != 0 {
				w.Nested("%s", color.HiBlackString(s.Effects.String()))
			}
		} else {
			w.Item("%s\t%s\t%s", s.ID, s.Effects, s.Description)
		}
	}
	return sb.String()
}

func (r *Renderer) marshal(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf(`{"status":"error","output":%q}`, err.Error())
	}
	return string(data) + "\n"
}

// FormatDuration formats a duration in human-readable form.
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
}
