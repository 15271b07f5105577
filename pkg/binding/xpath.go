package binding

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"
)

// compileXPath translates a namespace-qualified XPath expression into an
// etree path. Prefixed name tests are rewritten into local-name and
// namespace-uri predicates, so the expression does not depend on the
// prefixes used in the document. Predicates are copied unchanged.
//
// Supported: child and descendant steps ('/', '//'), '.', '..', '*',
// 'p:*', index and attribute predicates.
func compileXPath(expr string, namespaces map[string]string) (etree.Path, error) {
	var b strings.Builder
	depth := 0
	var quote byte

	for i := 0; i < len(expr); {
		c := expr[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
			b.WriteByte(c)
			i++
		case c == '\'' || c == '"':
			quote = c
			b.WriteByte(c)
			i++
		case c == '[':
			depth++
			b.WriteByte(c)
			i++
		case c == ']':
			depth--
			b.WriteByte(c)
			i++
		case depth == 0 && isNameStart(c):
			j := i
			for j < len(expr) && isNameChar(expr[j]) {
				j++
			}
			name := expr[i:j]
			i = j
			prefix, local, qualified := strings.Cut(name, ":")
			if !qualified {
				b.WriteString(name)
				continue
			}
			ns, ok := namespaces[prefix]
			if !ok {
				return etree.Path{}, fmt.Errorf("undeclared prefix %q in %q", prefix, expr)
			}
			if local == "" && i < len(expr) && expr[i] == '*' {
				i++
				fmt.Fprintf(&b, "*[namespace-uri()='%s']", ns)
				continue
			}
			if local == "" {
				return etree.Path{}, fmt.Errorf("unsupported step %q in %q", name, expr)
			}
			fmt.Fprintf(&b, "*[local-name()='%s'][namespace-uri()='%s']", local, ns)
		default:
			b.WriteByte(c)
			i++
		}
	}
	if quote != 0 || depth != 0 {
		return etree.Path{}, fmt.Errorf("unbalanced expression %q", expr)
	}

	path, err := etree.CompilePath(b.String())
	if err != nil {
		return etree.Path{}, fmt.Errorf("compiling %q: %w", expr, err)
	}
	return path, nil
}

func isNameStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isNameChar(c byte) bool {
	return isNameStart(c) || c == '-' || c == '.' || c == ':' || (c >= '0' && c <= '9')
}
