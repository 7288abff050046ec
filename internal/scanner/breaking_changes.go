package scanner

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/agentops/sge/internal/finding"
	"github.com/agentops/sge/internal/guardrail"
)

var (
	exportedFuncRe = regexp.MustCompile(`(?m)^\s*(?:export\s+)?(?:function|fn|func|def)\s+([A-Za-z_][A-Za-z0-9_]*)\s*\(([^)]*)\)\s*(?::\s*([A-Za-z_][A-Za-z0-9_<>\[\],\s]*))?`)
	exportedTypeRe = regexp.MustCompile(`(?m)^\s*(?:export\s+)?(?:interface|type|class)\s+([A-Za-z_][A-Za-z0-9_]*)`)
	exportedConstRe = regexp.MustCompile(`(?m)^\s*(?:export\s+)?const\s+([A-Za-z_][A-Za-z0-9_]*)\s*:\s*([A-Za-z_][A-Za-z0-9_<>\[\],\s]*?)\s*=`)
)

// exportSignature is the extracted shape of one exported function: its
// parameter list (raw, comma-split) and declared return type.
type exportSignature struct {
	params     []string
	returnType string
}

// exportSurface is everything BreakingChangesScanner extracts from one
// file's content (spec §4.2.3): functions keyed by name, and
// types/interfaces/classes/typed-consts keyed by name to their declared
// type (empty for types/interfaces/classes, which have no type body).
type exportSurface struct {
	funcs map[string]exportSignature
	decls map[string]string
}

func extractExportSurface(content string) exportSurface {
	surface := exportSurface{funcs: map[string]exportSignature{}, decls: map[string]string{}}

	for _, m := range exportedFuncRe.FindAllStringSubmatch(content, -1) {
		name, rawParams, returnType := m[1], m[2], strings.TrimSpace(m[3])
		surface.funcs[name] = exportSignature{params: splitParams(rawParams), returnType: returnType}
	}
	for _, m := range exportedTypeRe.FindAllStringSubmatch(content, -1) {
		if _, isFunc := surface.funcs[m[1]]; isFunc {
			continue
		}
		surface.decls[m[1]] = ""
	}
	for _, m := range exportedConstRe.FindAllStringSubmatch(content, -1) {
		surface.decls[m[1]] = strings.TrimSpace(m[2])
	}
	return surface
}

// splitParams splits a raw parameter list on top-level commas, ignoring
// commas nested inside <...> or [...] generic/array annotations.
func splitParams(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	var params []string
	depth := 0
	start := 0
	for i, r := range raw {
		switch r {
		case '<', '[', '(':
			depth++
		case '>', ']', ')':
			depth--
		case ',':
			if depth == 0 {
				params = append(params, strings.TrimSpace(raw[start:i]))
				start = i + 1
			}
		}
	}
	params = append(params, strings.TrimSpace(raw[start:]))
	return params
}

// BreakingChangesScanner is the Post-phase, Warn-by-default scanner from
// spec §4.2.3: it diffs the exported surface of every modified file
// between its old and new content.
type BreakingChangesScanner struct{}

// NewBreakingChangesScanner constructs the breaking-changes scanner.
func NewBreakingChangesScanner() *BreakingChangesScanner { return &BreakingChangesScanner{} }

func (s *BreakingChangesScanner) ID() string                       { return "breaking-changes" }
func (s *BreakingChangesScanner) Name() string                     { return "Breaking Changes" }
func (s *BreakingChangesScanner) Phase() finding.Phase             { return finding.PhasePostExecution }
func (s *BreakingChangesScanner) DefaultSeverity() finding.Severity { return finding.SeverityWarn }
func (s *BreakingChangesScanner) Description() string {
	return "Diffs the exported surface of modified files and flags removed or incompatibly changed exports."
}

func (s *BreakingChangesScanner) Execute(ctx guardrail.Context, effectiveSeverity finding.Severity) finding.Finding {
	if ctx.Result == nil {
		return finding.Skipped(s.ID(), "no change set to scan (pre-execution context)")
	}

	var criticalLines, moderateLines, minorLines []string
	for _, change := range ctx.Result.Changes {
		before, ok := ctx.OriginalContent(change.Path)
		if !ok {
			continue
		}
		diffExportSurface(change.Path, extractExportSurface(before), extractExportSurface(change.NewContent),
			&criticalLines, &moderateLines, &minorLines)
	}

	if len(criticalLines) == 0 && len(moderateLines) == 0 && len(minorLines) == 0 {
		return finding.Passed(s.ID(), "no breaking changes detected in modified exports")
	}

	all := append(append(append([]string{}, criticalLines...), moderateLines...), minorLines...)
	suggestions := []string{
		"Preserve the old export as a deprecated alias if external callers may depend on it.",
		"Bump the major/minor version to signal the incompatibility.",
		"Document the change in a migration note.",
	}
	message := fmt.Sprintf("%d critical, %d moderate, %d minor export change(s) detected",
		len(criticalLines), len(moderateLines), len(minorLines))

	if len(criticalLines) > 0 && effectiveSeverity == finding.SeverityBlock {
		return finding.Failed(s.ID(), finding.SeverityBlock, message, all, suggestions)
	}
	return finding.Warning(s.ID(), message, all, suggestions)
}

func diffExportSurface(path string, before, after exportSurface, critical, moderate, minor *[]string) {
	for name, beforeSig := range before.funcs {
		afterSig, stillExported := after.funcs[name]
		if !stillExported {
			*critical = append(*critical, fmt.Sprintf("%s: removed exported function %q", path, name))
			continue
		}
		classifyFuncDiff(path, name, beforeSig, afterSig, critical, moderate, minor)
	}
	for name, beforeType := range before.decls {
		afterType, stillExported := after.decls[name]
		if !stillExported {
			*critical = append(*critical, fmt.Sprintf("%s: removed exported declaration %q", path, name))
			continue
		}
		if beforeType != "" && afterType != "" && beforeType != afterType {
			*moderate = append(*moderate, fmt.Sprintf("%s: exported const %q changed type %s -> %s", path, name, beforeType, afterType))
		}
	}
}

func classifyFuncDiff(path, name string, before, after exportSignature, critical, moderate, minor *[]string) {
	if before.returnType != "" && after.returnType != "" && before.returnType != after.returnType {
		*moderate = append(*moderate, fmt.Sprintf("%s: %q return type changed %s -> %s", path, name, before.returnType, after.returnType))
	}

	if len(after.params) < len(before.params) {
		*critical = append(*critical, fmt.Sprintf("%s: %q lost %d parameter(s)", path, name, len(before.params)-len(after.params)))
		return
	}

	for i, beforeParam := range before.params {
		afterParam := after.params[i]
		if beforeParam == afterParam {
			continue
		}
		beforeType := paramType(beforeParam)
		afterType := paramType(afterParam)
		if beforeType != afterType {
			*moderate = append(*moderate, fmt.Sprintf("%s: %q parameter %d type changed %q -> %q", path, name, i+1, beforeType, afterType))
		} else {
			*minor = append(*minor, fmt.Sprintf("%s: %q parameter %d reformatted", path, name, i+1))
		}
	}

	for i := len(before.params); i < len(after.params); i++ {
		added := after.params[i]
		if strings.Contains(added, "?") || strings.Contains(added, "=") {
			*minor = append(*minor, fmt.Sprintf("%s: %q gained optional parameter %q", path, name, strings.TrimSpace(added)))
		} else {
			*critical = append(*critical, fmt.Sprintf("%s: %q gained required parameter %q", path, name, strings.TrimSpace(added)))
		}
	}
}

func paramType(param string) string {
	if idx := strings.Index(param, ":"); idx != -1 {
		return strings.TrimSpace(strings.TrimSuffix(param[idx+1:], "?"))
	}
	return ""
}
