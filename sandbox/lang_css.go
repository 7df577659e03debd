package sandbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
)

// cssAdapter checks stylesheet syntax at the token level.
type cssAdapter struct{}

func (cssAdapter) Name() string       { return LanguageCSS }
func (cssAdapter) Kind() AdapterKind  { return AdapterValidation }
func (cssAdapter) EvalMode() EvalMode { return EvalWholeProgram }
func (cssAdapter) Match() MatchRule   { return MatchExact }

func (cssAdapter) RenderProbe(string) string { return "" }

// cssSegment tracks the tokens since the last '{', ';' or '}'.
type cssSegment struct {
	started   bool
	atRule    bool
	property  bool
	declaring bool
}

func (cssAdapter) Execute(ctx context.Context, job Job) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", newError(KindInternal, err, "validation cancelled: %v", err)
	}

	var (
		stack        []openElement
		seg          cssSegment
		rules        int
		atRules      int
		declarations int
		line         = 1
	)

	endSegment := func() {
		if seg.declaring {
			declarations++
		}
		seg = cssSegment{}
	}

	l := css.NewLexer(parse.NewInputString(job.Source))
	for {
		tt, data := l.Next()
		if tt == css.ErrorToken {
			if err := l.Err(); err != nil && !errors.Is(err, io.EOF) {
				return "", validationError(line, "%v", err)
			}
			break
		}
		tokenLine := line
		line += strings.Count(string(data), "\n")

		switch tt {
		case css.WhitespaceToken, css.CommentToken, css.CDOToken, css.CDCToken:
			continue
		case css.BadStringToken:
			return "", validationError(tokenLine, "unterminated string")
		case css.BadURLToken:
			return "", validationError(tokenLine, "malformed url()")
		case css.LeftBraceToken:
			if !seg.atRule {
				rules++
			}
			stack = append(stack, openElement{tag: "{", line: tokenLine})
			seg = cssSegment{}
			continue
		case css.RightBraceToken:
			endSegment()
			var err error
			if stack, err = closeCSS(stack, "{", "}", tokenLine); err != nil {
				return "", err
			}
			continue
		case css.SemicolonToken:
			endSegment()
			continue
		case css.LeftParenthesisToken, css.FunctionToken:
			stack = append(stack, openElement{tag: "(", line: tokenLine})
		case css.RightParenthesisToken:
			var err error
			if stack, err = closeCSS(stack, "(", ")", tokenLine); err != nil {
				return "", err
			}
		case css.LeftBracketToken:
			stack = append(stack, openElement{tag: "[", line: tokenLine})
		case css.RightBracketToken:
			var err error
			if stack, err = closeCSS(stack, "[", "]", tokenLine); err != nil {
				return "", err
			}
		}

		if !seg.started {
			seg.started = true
			switch tt {
			case css.AtKeywordToken:
				seg.atRule = true
				atRules++
			case css.IdentToken, css.CustomPropertyNameToken:
				seg.property = len(stack) > 0 && stack[len(stack)-1].tag == "{"
			}
			continue
		}
		if seg.property && !seg.declaring && tt == css.ColonToken {
			seg.declaring = true
		} else if seg.property && !seg.declaring {
			seg.property = false
		}
	}

	if len(stack) > 0 {
		open := stack[len(stack)-1]
		return "", validationError(open.line, "'%s' is never closed", open.tag)
	}

	return fmt.Sprintf("CSS is valid.\nRules: %d\nAt-rules: %d\nDeclarations: %d", rules, atRules, declarations), nil
}

func closeCSS(stack []openElement, opener, closer string, line int) ([]openElement, error) {
	if len(stack) == 0 {
		return stack, validationError(line, "unexpected '%s'", closer)
	}
	top := stack[len(stack)-1]
	if top.tag != opener {
		return stack, validationError(line, "unexpected '%s', '%s' opened on line %d is still open", closer, top.tag, top.line)
	}
	return stack[:len(stack)-1], nil
}
