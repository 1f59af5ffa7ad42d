package analysis

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"text/template"
	"time"
	"unicode/utf8"

	"github.com/nilomr/majorvocal/internal/conf"
	"github.com/nilomr/majorvocal/internal/detection"
	"github.com/nilomr/majorvocal/internal/errors"
)

// waitDelay bounds how long a killed classifier may hold its output pipes.
const waitDelay = 5 * time.Second

// ClassifierRequest holds the values available to classifier argument
// templates, e.g. "{{.Path}}" or "{{.MinConfidence}}".
type ClassifierRequest struct {
	Path          string  // audio file
	Latitude      float64 // recording site latitude
	Longitude     float64 // recording site longitude
	Date          string  // recording date, 2006-01-02
	Week          int     // ISO week of the recording date
	MinConfidence float64 // confidence threshold
	OutputDir     string  // scratch directory the command may write CSV into
}

// Classifier produces the species segments of one audio file.
type Classifier interface {
	Classify(ctx context.Context, req ClassifierRequest) ([]detection.Segment, error)
}

// ClassifierFunc adapts a function to Classifier.
type ClassifierFunc func(ctx context.Context, req ClassifierRequest) ([]detection.Segment, error)

// Classify calls f.
func (f ClassifierFunc) Classify(ctx context.Context, req ClassifierRequest) ([]detection.Segment, error) {
	return f(ctx, req)
}

// CommandClassifier runs an external classifier per file. The command must
// write a CSV table either to stdout or into OutputDir.
type CommandClassifier struct {
	command string
	args    []*template.Template
	timeout time.Duration
}

// NewCommandClassifier parses the argument templates of cs.
func NewCommandClassifier(cs conf.ClassifierSettings) (*CommandClassifier, error) {
	if strings.TrimSpace(cs.Command) == "" {
		return nil, errors.Newf("classifier command is not set").
			Component("analysis").
			Category(errors.CategoryConfiguration).
			Context("operation", "new_classifier").
			Build()
	}

	c := &CommandClassifier{command: cs.Command, timeout: cs.Timeout}
	for i, arg := range cs.Args {
		tmpl, err := template.New(fmt.Sprintf("arg%d", i)).Option("missingkey=error").Parse(arg)
		if err != nil {
			return nil, errors.New(fmt.Errorf("invalid classifier argument %q: %w", arg, err)).
				Component("analysis").
				Category(errors.CategoryConfiguration).
				Context("operation", "new_classifier").
				Context("argument_index", i).
				Build()
		}
		c.args = append(c.args, tmpl)
	}
	return c, nil
}

// Args renders the argument list for req.
func (c *CommandClassifier) Args(req ClassifierRequest) ([]string, error) {
	args := make([]string, 0, len(c.args))
	var buf bytes.Buffer
	for _, tmpl := range c.args {
		buf.Reset()
		if err := tmpl.Execute(&buf, req); err != nil {
			return nil, err
		}
		args = append(args, buf.String())
	}
	return args, nil
}

// Classify runs the command for req.Path. When req.OutputDir is empty a
// temporary directory is created for the call and removed afterwards.
func (c *CommandClassifier) Classify(ctx context.Context, req ClassifierRequest) ([]detection.Segment, error) {
	if req.OutputDir == "" {
		dir, err := os.MkdirTemp("", "majorvocal-classify-*")
		if err != nil {
			return nil, classifierError(err, req.Path, "create_output_dir")
		}
		defer os.RemoveAll(dir)
		req.OutputDir = dir
	}

	args, err := c.Args(req)
	if err != nil {
		return nil, classifierError(err, req.Path, "render_arguments")
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, c.command, args...) //nolint:gosec // G204: command and arguments come from the operator's config
	cmd.Env = classifierEnvironment()
	cmd.WaitDelay = waitDelay
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	startTime := time.Now()
	if err := cmd.Run(); err != nil {
		exitCode := -1
		if cmd.ProcessState != nil {
			exitCode = cmd.ProcessState.ExitCode()
		}
		category := errors.CategoryCommandExecution
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			category = errors.CategoryTimeout
		}
		return nil, errors.New(err).
			Component("analysis").
			Category(category).
			Context("operation", "run_classifier").
			Context("file_path", req.Path).
			Context("exit_code", exitCode).
			Context("stderr", truncate(stderr.String(), 512)).
			Timing("run_classifier", time.Since(startTime)).
			Build()
	}

	segments, err := readClassifierOutput(req.OutputDir, &stdout)
	if err != nil {
		return nil, errors.New(err).
			Component("analysis").
			Category(errors.CategoryFileParsing).
			Context("operation", "parse_classifier_output").
			Context("file_path", req.Path).
			Build()
	}
	return segments, nil
}

// readClassifierOutput parses the CSV files the command left in dir, in name
// order, or stdout when there are none.
func readClassifierOutput(dir string, stdout io.Reader) ([]detection.Segment, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return ParseClassifierCSV(stdout)
	}

	var segments []detection.Segment
	for _, name := range files {
		f, err := os.Open(name)
		if err != nil {
			return nil, err
		}
		s, err := ParseClassifierCSV(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(name), err)
		}
		segments = append(segments, s...)
	}
	return segments, nil
}

// classifierColumns maps header keywords to segment fields. Matching is a
// case-insensitive substring test against each header cell.
var classifierColumns = []string{"start", "end", "scientific", "common", "confidence"}

// ParseClassifierCSV reads a classifier table with a header containing
// start, end, scientific name, common name and confidence columns, in any
// order, e.g. "Start (s),End (s),Scientific name,Common name,Confidence".
// A "Begin" column stands in for start. The common name is optional. Empty
// input yields no segments.
func ParseClassifierCSV(r io.Reader) ([]detection.Segment, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read classifier header: %w", err)
	}

	index := make(map[string]int, len(classifierColumns))
	for i, cell := range header {
		cell = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(cell, "\ufeff")))
		for _, key := range classifierColumns {
			if _, seen := index[key]; !seen && matchesColumn(cell, key) {
				index[key] = i
				break
			}
		}
	}
	for _, key := range classifierColumns {
		if key == "common" {
			continue
		}
		if _, ok := index[key]; !ok {
			return nil, fmt.Errorf("classifier output has no %s column", key)
		}
	}

	var segments []detection.Segment
	for line := 2; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if len(row) == 1 && strings.TrimSpace(row[0]) == "" {
			continue
		}

		seg, err := parseSegmentRow(row, index)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		segments = append(segments, seg)
	}
	return segments, nil
}

func matchesColumn(cell, key string) bool {
	if key == "start" && strings.Contains(cell, "begin") {
		return true
	}
	return strings.Contains(cell, key)
}

func parseSegmentRow(row []string, index map[string]int) (detection.Segment, error) {
	field := func(key string) string {
		i, ok := index[key]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var seg detection.Segment
	var err error
	if seg.StartTime, err = strconv.ParseFloat(field("start"), 64); err != nil {
		return seg, fmt.Errorf("invalid start time: %w", err)
	}
	if seg.EndTime, err = strconv.ParseFloat(field("end"), 64); err != nil {
		return seg, fmt.Errorf("invalid end time: %w", err)
	}
	if seg.Confidence, err = strconv.ParseFloat(field("confidence"), 64); err != nil {
		return seg, fmt.Errorf("invalid confidence: %w", err)
	}
	seg.ScientificName = field("scientific")
	seg.CommonName = field("common")
	if seg.ScientificName == "" {
		return seg, fmt.Errorf("empty scientific name")
	}
	return seg, nil
}

// filterConfidence drops segments below minConfidence, keeping order.
func filterConfidence(segments []detection.Segment, minConfidence float64) []detection.Segment {
	kept := make([]detection.Segment, 0, len(segments))
	for _, s := range segments {
		if s.Confidence >= minConfidence {
			kept = append(kept, s)
		}
	}
	return kept
}

// classifierEnvironment returns a minimal environment for the classifier.
func classifierEnvironment() []string {
	env := []string{
		"PATH=" + os.Getenv("PATH"),
		"HOME=" + os.Getenv("HOME"),
		"TMPDIR=" + os.TempDir(),
	}
	if runtime.GOOS == "windows" {
		env = append(env, "SystemRoot="+os.Getenv("SystemRoot"))
	}
	return env
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}

func classifierError(err error, path, operation string) error {
	return errors.New(err).
		Component("analysis").
		Category(errors.CategoryCommandExecution).
		Context("operation", operation).
		Context("file_path", path).
		Build()
}
