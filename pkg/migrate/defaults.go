package migrate

import (
	"regexp"
	"strings"
)

// DefaultKind classifies a PostgreSQL column default expression
type DefaultKind int

const (
	DefaultNone DefaultKind = iota
	DefaultSequence
	DefaultCurrentTimestamp
	DefaultBoolean
	DefaultString
	DefaultNumeric
	DefaultUnsupported
)

func (k DefaultKind) String() string {
	switch k {
	case DefaultNone:
		return "none"
	case DefaultSequence:
		return "sequence"
	case DefaultCurrentTimestamp:
		return "current_timestamp"
	case DefaultBoolean:
		return "boolean"
	case DefaultString:
		return "string"
	case DefaultNumeric:
		return "numeric"
	default:
		return "unsupported"
	}
}

// ParsedDefault is a default expression reduced to a portable form
type ParsedDefault struct {
	Kind  DefaultKind
	Value string
	Bool  bool
	Raw   string
}

var (
	castSuffix     = regexp.MustCompile(`^(.*?)(::[a-zA-Z_][\w\s]*(\(\d+(,\s*\d+)?\))?(\[\])?)+$`)
	numericLiteral = regexp.MustCompile(`^-?\d+(\.\d+)?([eE][-+]?\d+)?$`)
)

var timestampFuncs = map[string]bool{
	"now()":                   true,
	"current_timestamp":       true,
	"localtimestamp":          true,
	"transaction_timestamp()": true,
	"statement_timestamp()":   true,
	"clock_timestamp()":       true,
}

// ParseDefault classifies a column_default expression such as
// "nextval('students_id_seq'::regclass)", "now()" or "'pending'::character varying".
func ParseDefault(expr string) ParsedDefault {
	raw := strings.TrimSpace(expr)
	if raw == "" {
		return ParsedDefault{Kind: DefaultNone}
	}
	p := ParsedDefault{Raw: raw}

	lower := strings.ToLower(raw)
	if strings.HasPrefix(lower, "nextval(") {
		p.Kind = DefaultSequence
		return p
	}

	if strings.HasPrefix(raw, "'") {
		if value, rest, ok := unquote(raw); ok && (rest == "" || castSuffix.MatchString("x"+rest)) {
			p.Kind = DefaultString
			p.Value = value
			return p
		}
		p.Kind = DefaultUnsupported
		return p
	}

	bare := stripCasts(lower)
	if strings.HasPrefix(bare, "(") && strings.HasSuffix(bare, ")") {
		bare = strings.TrimSpace(bare[1 : len(bare)-1])
	}

	switch {
	case timestampFuncs[bare] || strings.HasPrefix(bare, "current_timestamp("):
		p.Kind = DefaultCurrentTimestamp
	case bare == "true" || bare == "false":
		p.Kind = DefaultBoolean
		p.Bool = bare == "true"
	case numericLiteral.MatchString(bare):
		p.Kind = DefaultNumeric
		p.Value = bare
	default:
		p.Kind = DefaultUnsupported
	}
	return p
}

// stripCasts removes trailing ::type casts
func stripCasts(s string) string {
	for {
		m := castSuffix.FindStringSubmatch(s)
		if m == nil || m[1] == s {
			return s
		}
		s = strings.TrimSpace(m[1])
	}
}

// unquote reads a single-quoted SQL literal at the start of s, returning the
// unescaped value and whatever follows the closing quote.
func unquote(s string) (value, rest string, ok bool) {
	var b strings.Builder
	for i := 1; i < len(s); i++ {
		if s[i] != '\'' {
			b.WriteByte(s[i])
			continue
		}
		if i+1 < len(s) && s[i+1] == '\'' {
			b.WriteByte('\'')
			i++
			continue
		}
		return b.String(), strings.TrimSpace(s[i+1:]), true
	}
	return "", "", false
}

// renderDefault turns a parsed default into the target's DEFAULT value. ok is
// false when the default must be dropped; reason then explains why.
func renderDefault(d Dialect, p ParsedDefault, targetType string) (clause string, ok bool, reason string) {
	switch p.Kind {
	case DefaultNone, DefaultSequence:
		return "", false, ""
	case DefaultCurrentTimestamp:
		if clause, ok := d.CurrentTimestamp(targetType); ok {
			return clause, true, ""
		}
		return "", false, "current timestamp default not supported for " + targetType
	case DefaultBoolean:
		return d.BoolLiteral(p.Bool), true, ""
	case DefaultString, DefaultNumeric:
		if !d.AllowsLiteralDefault(targetType) {
			return "", false, "literal default not allowed on " + targetType
		}
		if p.Kind == DefaultNumeric {
			return p.Value, true, ""
		}
		return d.QuoteString(p.Value), true, ""
	default:
		return "", false, "unsupported default expression " + p.Raw
	}
}
