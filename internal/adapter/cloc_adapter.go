package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	m "auditscope.dev/pkg/auditscope/internal/model"
)

// DefaultClocTimeout bounds a single cloc invocation.
const DefaultClocTimeout = 5 * time.Minute

// CodeCounter counts blank, comment and code lines for a set of files.
type CodeCounter interface {
	// Count returns line counts for files, given relative to root.
	// ErrToolUnavailable is returned when the counter is not installed.
	Count(ctx context.Context, root m.Path, files []m.Path) (m.CodeCount, error)
}

// ClocCounter implements CodeCounter with the cloc binary.
type ClocCounter struct {
	runner toolRunner
	binary string
}

// NewClocCounter constructs a ClocCounter. A non-positive timeout selects
// DefaultClocTimeout.
func NewClocCounter(timeout time.Duration) *ClocCounter {
	if timeout <= 0 {
		timeout = DefaultClocTimeout
	}

	return &ClocCounter{runner: toolRunner{timeout: timeout}, binary: "cloc"}
}

// Count runs cloc over files using a list file.
func (c *ClocCounter) Count(ctx context.Context, root m.Path, files []m.Path) (m.CodeCount, error) {
	if len(files) == 0 {
		return m.CodeCount{Language: map[string]int{}}, nil
	}

	listFile, err := os.CreateTemp("", "auditscope-cloc-*.txt")
	if err != nil {
		return m.CodeCount{}, fmt.Errorf("create cloc list file: %w", err)
	}

	defer func() {
		_ = os.Remove(listFile.Name())
	}()

	var list strings.Builder
	for _, f := range files {
		list.WriteString(string(f))
		list.WriteByte('\n')
	}

	_, err = listFile.WriteString(list.String())
	if closeErr := listFile.Close(); err == nil {
		err = closeErr
	}

	if err != nil {
		return m.CodeCount{}, fmt.Errorf("write cloc list file: %w", err)
	}

	out, err := c.runner.run(ctx, root, c.binary, "--json", "--quiet", "--list-file="+listFile.Name())
	if err != nil {
		return m.CodeCount{}, err
	}

	return parseClocJSON([]byte(out))
}

type clocEntry struct {
	Files   int `json:"nFiles"`
	Blank   int `json:"blank"`
	Comment int `json:"comment"`
	Code    int `json:"code"`
}

// parseClocJSON sums the per-language entries of cloc's JSON report. The
// header and SUM entries are ignored.
func parseClocJSON(data []byte) (m.CodeCount, error) {
	count := m.CodeCount{Language: map[string]int{}}

	if strings.TrimSpace(string(data)) == "" {
		return count, nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return m.CodeCount{}, fmt.Errorf("parse cloc output: %w", err)
	}

	for language, body := range raw {
		if language == "header" || language == "SUM" {
			continue
		}

		var entry clocEntry
		if err := json.Unmarshal(body, &entry); err != nil {
			return m.CodeCount{}, fmt.Errorf("parse cloc entry %q: %w", language, err)
		}

		count.Files += entry.Files
		count.Blank += entry.Blank
		count.Comment += entry.Comment
		count.Code += entry.Code
		count.Language[language] = entry.Code
	}

	return count, nil
}
