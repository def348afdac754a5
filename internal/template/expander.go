package template

import (
	"os"
	"regexp"
	"strings"
)

// Context is the per-event variable bag used to parameterize worker launch
// and health-check commands. Variables typically carries event data such as
// deviceId; InstallFolder is the agent's installation root.
type Context struct {
	InstallFolder string
	Variables     map[string]string
}

// Lookup resolves a variable name case-insensitively.
func (c *Context) Lookup(name string) (string, bool) {
	if c == nil {
		return "", false
	}
	for k, v := range c.Variables {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return "", false
}

var (
	// curlyPattern also captures an optional leading $ so that the first
	// pass can leave ${NAME} references untouched for the second pass.
	curlyPattern  = regexp.MustCompile(`\$?\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)
	dollarPattern = regexp.MustCompile(`\$\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)
)

// Expand substitutes placeholders in text against the context.
//
// Pass 1 replaces {name} tokens by case-insensitive lookup in the context
// variables; the reserved name installFolder resolves to the context's
// install folder. Pass 2 replaces ${NAME} tokens: INSTALL_FOLDER is
// reserved, then the process environment is consulted, then the context
// variables (case-insensitively). Tokens that resolve nowhere are left
// verbatim in both passes.
func Expand(text string, ctx *Context) string {
	result := curlyPattern.ReplaceAllStringFunc(text, func(match string) string {
		if strings.HasPrefix(match, "$") {
			return match // belongs to pass 2
		}
		name := match[1 : len(match)-1]
		if v, ok := ctx.Lookup(name); ok {
			return v
		}
		if strings.EqualFold(name, "installFolder") && ctx != nil {
			return ctx.InstallFolder
		}
		return match
	})

	return dollarPattern.ReplaceAllStringFunc(result, func(match string) string {
		name := match[2 : len(match)-1]
		if name == "INSTALL_FOLDER" && ctx != nil {
			return ctx.InstallFolder
		}
		if v, ok := os.LookupEnv(name); ok {
			return v
		}
		if v, ok := ctx.Lookup(name); ok {
			return v
		}
		return match
	})
}

// ExpandList applies Expand to every element.
func ExpandList(items []string, ctx *Context) []string {
	if items == nil {
		return nil
	}
	result := make([]string, len(items))
	for i, item := range items {
		result[i] = Expand(item, ctx)
	}
	return result
}

// ExpandMap applies Expand to every key and value.
func ExpandMap(m map[string]string, ctx *Context) map[string]string {
	if m == nil {
		return nil
	}
	result := make(map[string]string, len(m))
	for k, v := range m {
		result[Expand(k, ctx)] = Expand(v, ctx)
	}
	return result
}
