package tool

import (
	"fmt"
	"sort"

	"github.com/google/shlex"
)

// splitCommand splits a tool server command line into argv with shell
// quoting rules. No expansion is performed.
func splitCommand(line string) ([]string, error) {
	args, err := shlex.Split(line)
	if err != nil {
		return nil, fmt.Errorf("parse command %q: %w", line, err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("empty command")
	}
	return args, nil
}

// envSlice converts a map of env vars to sorted KEY=VALUE pairs.
func envSlice(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	result := make([]string, 0, len(env))
	for k, v := range env {
		result = append(result, k+"="+v)
	}
	sort.Strings(result)
	return result
}
