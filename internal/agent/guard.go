package agent

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrUnsafeSQL is returned for generated SQL the guard refuses to run.
var ErrUnsafeSQL = errors.New("generated SQL rejected")

var (
	fenceRe   = regexp.MustCompile("(?s)```(?:sql|SQL)?\\s*(.*?)```")
	stringRe  = regexp.MustCompile(`'(?:[^'\\]|\\.|'')*'`)
	commentRe = regexp.MustCompile(`(?s)--[^\n]*|/\*.*?\*/`)
	tokenRe   = regexp.MustCompile("[a-z_][a-z0-9_]*(?:\\.[a-z_][a-z0-9_]*)*|\"[^\"]*\"|`[^`]*`|''|[0-9][a-z0-9_.]*|\\S")
	identRe   = regexp.MustCompile(`^[a-z_][a-z0-9_]*(?:\.[a-z_][a-z0-9_]*)*$`)
	cteRe     = regexp.MustCompile(`(?i)(?:\bwith|,)\s*([a-z_][a-z0-9_]*)\s+as\s*\(`)
	limitRe   = regexp.MustCompile(`(?i)\blimit\s+\d+`)
	wordRe    = regexp.MustCompile(`[a-z_]+`)
	forbidden = map[string]bool{
		"insert": true, "update": true, "delete": true, "drop": true, "alter": true,
		"create": true, "truncate": true, "grant": true, "revoke": true, "attach": true,
		"detach": true, "rename": true, "optimize": true, "system": true, "kill": true,
		"replace": true, "merge": true, "copy": true, "into": true, "outfile": true,
		"set": true, "call": true, "exec": true, "execute": true,
	}
	// clauseWords end a table reference; anything else after a table is an alias.
	clauseWords = map[string]bool{
		"where": true, "group": true, "order": true, "limit": true, "having": true,
		"join": true, "inner": true, "left": true, "right": true, "full": true, "cross": true,
		"outer": true, "natural": true, "on": true, "using": true, "union": true,
		"except": true, "intersect": true, "final": true, "sample": true, "prewhere": true,
		"array": true, "global": true, "any": true, "all": true, "asof": true, "semi": true,
		"anti": true, "settings": true, "format": true, "window": true, "qualify": true,
	}
)

// Guard vets generated SQL before it reaches the warehouse: one read-only
// SELECT/WITH statement over allow-listed tables, with a bounded row count.
type Guard struct {
	allowed map[string]bool
	limit   int
}

func NewGuard(tables []string, rowLimit int) *Guard {
	g := &Guard{allowed: make(map[string]bool, len(tables)), limit: rowLimit}
	for _, t := range tables {
		g.allowed[strings.ToLower(t)] = true
	}
	return g
}

// Sanitize extracts the statement from raw model output and validates it.
func (g *Guard) Sanitize(raw string) (string, error) {
	stmt := strings.TrimSpace(raw)
	if m := fenceRe.FindStringSubmatch(stmt); m != nil {
		stmt = strings.TrimSpace(m[1])
	}
	stmt = strings.TrimSpace(strings.TrimRight(strings.TrimSpace(stmt), ";"))
	if stmt == "" {
		return "", fmt.Errorf("%w: empty statement", ErrUnsafeSQL)
	}

	// literals and comments cannot smuggle keywords past the checks below
	scan := stringRe.ReplaceAllString(stmt, "''")
	scan = strings.ToLower(commentRe.ReplaceAllString(scan, " "))

	if strings.Contains(scan, ";") {
		return "", fmt.Errorf("%w: multiple statements", ErrUnsafeSQL)
	}
	if strings.Contains(scan, "/*") {
		return "", fmt.Errorf("%w: unterminated comment", ErrUnsafeSQL)
	}
	fields := strings.Fields(scan)
	if len(fields) == 0 {
		return "", fmt.Errorf("%w: empty statement", ErrUnsafeSQL)
	}
	if first := fields[0]; first != "select" && first != "with" {
		return "", fmt.Errorf("%w: statement must start with SELECT or WITH, got %q", ErrUnsafeSQL, first)
	}
	for _, w := range wordRe.FindAllString(scan, -1) {
		if forbidden[w] {
			return "", fmt.Errorf("%w: %q is not allowed", ErrUnsafeSQL, strings.ToUpper(w))
		}
	}

	ctes := map[string]bool{}
	for _, m := range cteRe.FindAllStringSubmatch(scan, -1) {
		ctes[m[1]] = true
	}
	sources, err := g.checkSources(tokenRe.FindAllString(scan, -1), ctes)
	if err != nil {
		return "", err
	}
	if sources == 0 {
		return "", fmt.Errorf("%w: no table referenced", ErrUnsafeSQL)
	}

	if g.limit > 0 && !limitRe.MatchString(scan) {
		// own line, so a trailing line comment cannot swallow it
		stmt += "\nLIMIT " + strconv.Itoa(g.limit)
	}
	return stmt, nil
}

// checkSources walks every FROM and JOIN clause, including comma separated
// table lists, and returns how many tables were referenced. Subqueries are
// skipped here; their own FROM clauses are visited by the outer loop.
func (g *Guard) checkSources(toks []string, ctes map[string]bool) (int, error) {
	sources := 0
	for i, tok := range toks {
		if tok != "from" && tok != "join" {
			continue
		}
		j := i + 1
		for {
			if j >= len(toks) {
				return 0, fmt.Errorf("%w: missing table after %s", ErrUnsafeSQL, strings.ToUpper(tok))
			}
			if toks[j] == "(" {
				if j = skipParens(toks, j); j < 0 {
					return 0, fmt.Errorf("%w: unbalanced parentheses", ErrUnsafeSQL)
				}
			} else {
				name := unquote(toks[j])
				if !identRe.MatchString(name) {
					return 0, fmt.Errorf("%w: unexpected %q after %s", ErrUnsafeSQL, toks[j], strings.ToUpper(tok))
				}
				if j+1 < len(toks) && toks[j+1] == "(" {
					return 0, fmt.Errorf("%w: table function %s is not allowed", ErrUnsafeSQL, name)
				}
				if k := strings.LastIndex(name, "."); k >= 0 {
					name = name[k+1:]
				}
				if !g.allowed[name] && !ctes[name] {
					return 0, fmt.Errorf("%w: table %s is not in the semantic model", ErrUnsafeSQL, name)
				}
				sources++
				j++
			}

			// optional alias
			if j < len(toks) && toks[j] == "as" {
				j += 2
			} else if j < len(toks) && identRe.MatchString(unquote(toks[j])) && !clauseWords[toks[j]] {
				j++
			}
			if j < len(toks) && toks[j] == "," {
				j++
				continue
			}
			break
		}
	}
	return sources, nil
}

// skipParens returns the index after the parenthesis closing toks[open],
// or -1 when it is never closed.
func skipParens(toks []string, open int) int {
	depth := 0
	for i := open; i < len(toks); i++ {
		switch toks[i] {
		case "(":
			depth++
		case ")":
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}
	return -1
}

func unquote(tok string) string {
	if len(tok) >= 2 && (tok[0] == '"' || tok[0] == '`') && tok[len(tok)-1] == tok[0] {
		return tok[1 : len(tok)-1]
	}
	return tok
}
