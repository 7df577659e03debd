// Package evaluator runs submitted code against ordered test cases.
//
// For languages that can print an expression (python, javascript, sql) each
// test case input is appended to the source as a probe and the printed value
// is compared with the expected output. Compiled languages and the
// validation-only languages are run as a whole, with the test case input on
// stdin, and their complete output is compared instead. LanguageInfo tells
// callers which mode a language uses.
//
// An empty test list passes vacuously, except for an unsupported language:
// that result always carries the error and AllPassed false.
//
// Usage:
//
//	eval := evaluator.New(logger, engine)
//	result := eval.Evaluate(ctx, "def add(a, b):\n    return a + b", "python", []evaluator.TestCase{
//	    {Input: "add(2, 3)", ExpectedOutput: "5"},
//	})
//	fmt.Println(result.AllPassed)
package evaluator
