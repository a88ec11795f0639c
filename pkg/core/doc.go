// Package core provides a small, stable facade over promptscan's internal
// packages for external integrations: detecting secrets in a single prompt,
// redacting them, and scanning files.
//
// Example:
//
//	out := core.ScanText(ctx, prompt)
//	if out.OK() && out.FoundLength() > 0 { /* block the prompt */ }
//
//	findings, err := core.Scan(ctx, core.Config{Root: "."})
//	if err != nil { /* handle */ }
//	_ = core.MarshalFindings(os.Stdout, findings)
package core
