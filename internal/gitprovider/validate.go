package gitprovider

import (
	"fmt"
	"regexp"
	"strings"
)

// shellMetacharacters is checked against every argument SGE passes to
// git, even though exec.CommandContext never invokes a shell: a
// malicious ref/branch/label could still be misinterpreted by git
// itself (e.g. an argument beginning with "-" read as a flag), so
// arguments are validated before being placed in the structured argv
// array (spec §6, §9 "Shell-argument handling").
var shellMetacharacters = regexp.MustCompile(`[;&|$` + "`" + `\\"'<>(){}\n\r]`)

// validateArg rejects shell metacharacters, path-traversal sequences,
// and option-injection-shaped arguments (a leading "-").
func validateArg(name, value string) error {
	if value == "" {
		return fmt.Errorf("%w: %s is empty", ErrInvalidArgument, name)
	}
	if shellMetacharacters.MatchString(value) {
		return fmt.Errorf("%w: %s contains a shell metacharacter", ErrInvalidArgument, name)
	}
	if strings.Contains(value, "..") {
		return fmt.Errorf("%w: %s contains a path-traversal sequence", ErrInvalidArgument, name)
	}
	if strings.HasPrefix(value, "-") {
		return fmt.Errorf("%w: %s looks like a flag, not a value", ErrInvalidArgument, name)
	}
	return nil
}
