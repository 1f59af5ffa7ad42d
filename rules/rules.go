//go:build ruleguard

// Package gorules defines custom linter rules for this repository.
package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

// WaitGroupGo detects the manual Add/Done pattern and suggests wg.Go().
//
//	wg.Add(1)
//	go func() {
//	    defer wg.Done()
//	    work()
//	}()
//
// becomes
//
//	wg.Go(work)
//
// See: https://pkg.go.dev/sync#WaitGroup.Go
func WaitGroupGo(m dsl.Matcher) {
	m.Match(
		`$wg.Add(1); go func() { defer $wg.Done(); $*body }()`,
	).
		Where(m["wg"].Type.Is("*sync.WaitGroup") || m["wg"].Type.Is("sync.WaitGroup")).
		Report("use $wg.Go(func() { $body }) instead of manual Add/Done pattern (Go 1.25+)").
		Suggest("$wg.Go(func() { $body })")
}

// ExecWithContext flags child processes started without a context. A
// classifier run that outlives a cancelled pipeline keeps the worker busy.
func ExecWithContext(m dsl.Matcher) {
	m.Match(
		`exec.Command($*args)`,
	).
		Where(m.File().Imports("os/exec")).
		Report("use exec.CommandContext so the child is killed on cancellation").
		Suggest("exec.CommandContext(ctx, $args)")
}

// TimeLayoutConstants detects magic date and time layouts that have named
// constants in the time package.
//
// See: https://pkg.go.dev/time#pkg-constants
func TimeLayoutConstants(m dsl.Matcher) {
	m.Match(`$t.Format("2006-01-02 15:04:05")`).
		Report(`use $t.Format(time.DateTime) instead of magic format string`).
		Suggest(`$t.Format(time.DateTime)`)

	m.Match(`$t.Format("2006-01-02")`).
		Report(`use $t.Format(time.DateOnly) instead of magic format string`).
		Suggest(`$t.Format(time.DateOnly)`)

	m.Match(`time.Parse("2006-01-02", $s)`).
		Report(`use time.Parse(time.DateOnly, $s) instead of magic format string`).
		Suggest(`time.Parse(time.DateOnly, $s)`)

	m.Match(`$t.Format("15:04:05")`).
		Report(`use $t.Format(time.TimeOnly) instead of magic format string`).
		Suggest(`$t.Format(time.TimeOnly)`)
}
