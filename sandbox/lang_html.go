package sandbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"golang.org/x/net/html"
)

var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"param": true, "source": true, "track": true, "wbr": true,
}

// optionalEnd lists elements whose end tag may be omitted.
var optionalEnd = map[string]bool{
	"html": true, "head": true, "body": true, "p": true, "li": true,
	"dt": true, "dd": true, "option": true, "optgroup": true, "rt": true,
	"rp": true, "tr": true, "td": true, "th": true, "thead": true,
	"tbody": true, "tfoot": true, "colgroup": true, "caption": true,
}

// impliedClose maps a start tag to the open elements it implicitly closes.
var impliedClose = map[string][]string{
	"li":     {"li"},
	"dt":     {"dt", "dd"},
	"dd":     {"dt", "dd"},
	"tr":     {"tr", "td", "th"},
	"td":     {"td", "th"},
	"th":     {"td", "th"},
	"option": {"option"},
	"p":      {"p"},
	"body":   {"head"},
	"tbody":  {"thead", "tbody", "tr", "td", "th"},
	"tfoot":  {"tbody", "tr", "td", "th"},
}

type openElement struct {
	tag  string
	line int
}

// htmlAdapter checks that a document is well-formed without rendering it.
type htmlAdapter struct{}

func (htmlAdapter) Name() string       { return LanguageHTML }
func (htmlAdapter) Kind() AdapterKind  { return AdapterValidation }
func (htmlAdapter) EvalMode() EvalMode { return EvalWholeProgram }
func (htmlAdapter) Match() MatchRule   { return MatchExact }

func (htmlAdapter) RenderProbe(string) string { return "" }

func (htmlAdapter) Execute(ctx context.Context, job Job) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", newError(KindInternal, err, "validation cancelled: %v", err)
	}

	var (
		stack    []openElement
		tags     = make(map[string]bool)
		elements int
		comments int
		doctype  string
		line     = 1
	)

	z := html.NewTokenizer(strings.NewReader(job.Source))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if errors.Is(z.Err(), io.EOF) {
				break
			}
			return "", validationError(line, "%v", z.Err())
		}
		tokenLine := line
		line += strings.Count(string(z.Raw()), "\n")

		switch tt {
		case html.DoctypeToken:
			doctype = strings.TrimSpace(string(z.Text()))
		case html.CommentToken:
			comments++
		case html.SelfClosingTagToken:
			name, _ := z.TagName()
			elements++
			tags[string(name)] = true
		case html.StartTagToken:
			raw, _ := z.TagName()
			name := string(raw)
			elements++
			tags[name] = true
			stack = closeImplied(stack, name)
			if !voidElements[name] {
				stack = append(stack, openElement{tag: name, line: tokenLine})
			}
		case html.EndTagToken:
			raw, _ := z.TagName()
			name := string(raw)
			if voidElements[name] {
				continue
			}
			var err error
			if stack, err = closeElement(stack, name, tokenLine); err != nil {
				return "", err
			}
		}
	}

	for i := len(stack) - 1; i >= 0; i-- {
		if !optionalEnd[stack[i].tag] {
			return "", validationError(stack[i].line, "<%s> is never closed", stack[i].tag)
		}
	}

	names := make([]string, 0, len(tags))
	for name := range tags {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("HTML is well-formed.\n")
	if doctype != "" {
		fmt.Fprintf(&b, "Doctype: %s\n", doctype)
	}
	fmt.Fprintf(&b, "Elements: %d\n", elements)
	fmt.Fprintf(&b, "Tags: %s\n", strings.Join(names, ", "))
	fmt.Fprintf(&b, "Comments: %d", comments)
	return b.String(), nil
}

// closeImplied pops optional-end elements that a new start tag closes.
func closeImplied(stack []openElement, name string) []openElement {
	closes := impliedClose[name]
	for len(stack) > 0 {
		top := stack[len(stack)-1].tag
		if !optionalEnd[top] || !containsTag(closes, top) {
			break
		}
		stack = stack[:len(stack)-1]
	}
	return stack
}

// closeElement pops the element matching an end tag, along with any
// optional-end elements still open above it.
func closeElement(stack []openElement, name string, line int) ([]openElement, error) {
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i].tag == name {
			return stack[:i], nil
		}
		if !optionalEnd[stack[i].tag] {
			return stack, validationError(line, "unexpected </%s>, expected </%s> for <%s> opened on line %d",
				name, stack[i].tag, stack[i].tag, stack[i].line)
		}
	}
	return stack, validationError(line, "</%s> has no matching opening tag", name)
}

func containsTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

func validationError(line int, format string, args ...any) *Error {
	return &Error{Kind: KindValidationError, Message: fmt.Sprintf("line %d: ", line) + fmt.Sprintf(format, args...)}
}
