package sandbox

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func requireTool(t *testing.T, name string) {
	t.Helper()
	if _, err := exec.LookPath(name); err != nil {
		t.Skipf("%s not available", name)
	}
}

func TestPythonIntegration(t *testing.T) {
	requireTool(t, "python3")

	engine, err := NewExecutor(zaptest.NewLogger(t), testConfig())
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("Print", func(t *testing.T) {
		result := engine.Execute(ctx, ExecuteRequest{Language: "python", Source: "print(1 + 1)"})
		require.True(t, result.Success, result.Error)
		assert.Equal(t, "2", result.Output)
	})

	t.Run("NamespaceIsFreshPerCall", func(t *testing.T) {
		first := engine.Execute(ctx, ExecuteRequest{Language: "python", Source: "leaked = 42"})
		require.True(t, first.Success, first.Error)
		assert.Equal(t, NoOutputMessage, first.Output)

		second := engine.Execute(ctx, ExecuteRequest{Language: "python", Source: "print(leaked)"})
		assert.False(t, second.Success)
		assert.Equal(t, KindRuntimeError, second.ErrorKind)
		assert.Equal(t, "NameError: name 'leaked' is not defined", second.Error)
	})

	t.Run("ExceptionWithoutTraceback", func(t *testing.T) {
		result := engine.Execute(ctx, ExecuteRequest{Language: "python", Source: "print('before')\n1/0"})
		assert.False(t, result.Success)
		assert.Equal(t, "ZeroDivisionError: division by zero", result.Error)
		assert.NotContains(t, result.Error, "Traceback")
	})

	t.Run("ProgramReadsStdin", func(t *testing.T) {
		source := "name = input()\nprint('héllo ' + name)"
		result := engine.Execute(ctx, ExecuteRequest{Language: "python", Source: source, Stdin: "Ann\n"})
		require.True(t, result.Success, result.Error)
		assert.Equal(t, "héllo Ann", result.Output)
	})

	t.Run("FunctionsSeeModuleGlobals", func(t *testing.T) {
		source := "import math\nFACTOR = 3\ndef scale(x):\n    return math.floor(x * FACTOR)\nprint(scale(2.5))"
		result := engine.Execute(ctx, ExecuteRequest{Language: "python", Source: source})
		require.True(t, result.Success, result.Error)
		assert.Equal(t, "7", result.Output)
	})
}

func TestJavascriptIntegration(t *testing.T) {
	requireTool(t, "node")

	engine, err := NewExecutor(zaptest.NewLogger(t), testConfig())
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("Print", func(t *testing.T) {
		result := engine.Execute(ctx, ExecuteRequest{Language: "JavaScript", Source: "console.log([1, 2].map(x => x * 2).join(','))"})
		require.True(t, result.Success, result.Error)
		assert.Equal(t, "2,4", result.Output)
	})

	t.Run("ThrownError", func(t *testing.T) {
		result := engine.Execute(ctx, ExecuteRequest{Language: "javascript", Source: "throw new TypeError('bad input')"})
		assert.False(t, result.Success)
		assert.Equal(t, KindRuntimeError, result.ErrorKind)
		assert.Contains(t, result.Error, "TypeError: bad input")
		assert.NotContains(t, result.Error, "    at ")
		assert.False(t, strings.Contains(result.Error, "Node.js v"))
	})
}

func TestCppIntegration(t *testing.T) {
	requireTool(t, "g++")

	engine, err := NewExecutor(zaptest.NewLogger(t), testConfig())
	require.NoError(t, err)

	source := "#include <iostream>\nint main() { int a, b; std::cin >> a >> b; std::cout << a + b << std::endl; }\n"
	result := engine.Execute(context.Background(), ExecuteRequest{Language: "c++", Source: source, Stdin: "2 3"})
	require.True(t, result.Success, result.Error)
	assert.Equal(t, "5", result.Output)
}

func TestCppConcurrentIntegration(t *testing.T) {
	requireTool(t, "g++")

	cfg := testConfig()
	cfg.Sandbox.WorkDir = t.TempDir()
	engine, err := NewExecutor(zaptest.NewLogger(t), cfg)
	require.NoError(t, err)

	const jobs = 6
	results := make([]ExecuteResult, jobs)
	var wg sync.WaitGroup
	for i := 0; i < jobs; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			source := fmt.Sprintf("#include <iostream>\nint main() { std::cout << %d * 7 << std::endl; }\n", i)
			results[i] = engine.Execute(context.Background(), ExecuteRequest{Language: "cpp", Source: source})
		}(i)
	}
	wg.Wait()

	for i, result := range results {
		require.True(t, result.Success, result.Error)
		assert.Equal(t, fmt.Sprint(i*7), result.Output)
	}

	entries, err := os.ReadDir(cfg.Sandbox.WorkDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
