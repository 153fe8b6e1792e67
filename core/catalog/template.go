package catalog

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/shlex"
)

// Template is an ordered list of argument tokens. Tokens may embed
// placeholders of the form $NAME$ which Expand substitutes. In JSON a
// template is either an array of tokens or a single shell-style string;
// the string form is tokenized first and substituted after, so values
// containing spaces can never split into extra arguments.
type Template []string

func (t *Template) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*t = list
		return nil
	}
	var line string
	if err := json.Unmarshal(data, &line); err != nil {
		return fmt.Errorf("command must be a string or an array of strings")
	}
	tokens, err := shlex.Split(line)
	if err != nil {
		return fmt.Errorf("tokenize command %q: %w", line, err)
	}
	*t = tokens
	return nil
}

var placeholderRx = regexp.MustCompile(`\$([A-Za-z][A-Za-z0-9_]*)\$`)

// Expand substitutes every placeholder from vars (keys matched
// case-insensitively) and returns the final argv. A placeholder with
// no value is an error: a command with a hole in it must never reach
// an encoder.
func (t Template) Expand(vars map[string]string) ([]string, error) {
	lowered := make(map[string]string, len(vars))
	for k, v := range vars {
		lowered[strings.ToLower(k)] = v
	}

	out := make([]string, 0, len(t))
	var missing []string
	for _, token := range t {
		expanded := placeholderRx.ReplaceAllStringFunc(token, func(m string) string {
			name := strings.ToLower(m[1 : len(m)-1])
			if v, ok := lowered[name]; ok {
				return v
			}
			missing = append(missing, m)
			return m
		})
		out = append(out, expanded)
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("unresolved placeholders: %s", strings.Join(missing, ", "))
	}
	return out, nil
}

// Placeholders lists the distinct placeholder names used by the
// template, lowercased, in first-appearance order.
func (t Template) Placeholders() []string {
	seen := make(map[string]struct{})
	var names []string
	for _, token := range t {
		for _, m := range placeholderRx.FindAllStringSubmatch(token, -1) {
			name := strings.ToLower(m[1])
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			names = append(names, name)
		}
	}
	return names
}
