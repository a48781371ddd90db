// Package ui provides terminal output components for wsecho-cli.
//
// Components are rendered with Lipgloss and follow a "run once and exit"
// pattern: they print polished output but never wait for input, apart from
// Confirm.
//
//   - Header: command banner with ordered parameters
//   - Progress: bubbles progress bar plus a step list
//   - Result: success, failure or warning box
//   - Runner: drives header → steps → result for one command
//
// # Usage Pattern
//
//	runner := ui.NewRunner(ui.RunnerConfig{
//	    Title:     "Echo",
//	    Command:   "wsecho-cli send",
//	    Params:    []ui.Param{{Key: "Server", Value: url}},
//	    StepNames: []string{"Connect", "Send message", "Await echo", "Close"},
//	})
//
//	err := runner.Run("Echo received", func(onStep ui.StepCallback) ([]ui.Param, error) {
//	    onStep(1, ui.StepRunning, "")
//	    // ... do work ...
//	    onStep(1, ui.StepComplete, "")
//	    return []ui.Param{{Key: "Reply", Value: reply}}, nil
//	})
//
// # Logging Integration
//
// Logging is controlled by WSECHO_LOG_LEVEL. When unset, zap output is
// silent so only the curated UI output appears.
package ui
