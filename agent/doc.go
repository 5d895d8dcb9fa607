// Package agent implements the plan-execute-observe loop.
//
// A language model is shown an interpreter transcript, continues it with
// Lua code, and sees the results of running that code. The transcript
// opens with executed example sessions so the model learns the format
// before it reaches the task.
//
// # Architecture
//
//   - Session: seeds an environment, binds tools and runs one task to an
//     Outcome, emitting typed events along the way.
//   - Solver: the loop itself. Each iteration either plans or executes one
//     statement and costs one unit of the budget; a fault drops the queued
//     statements and forces a new plan.
//   - Planner: formats the session as a prompt, asks a Completer to
//     continue it, and parses the reply into statements.
//   - Formatter: renders history as the transcript the model continues.
//   - Scratch: an optional second interpreter exposed as a tool.
//
// # Quick Start
//
//	session, err := agent.NewSession(ctx, "What is the 30th Fibonacci number?", client, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer session.Close()
//
//	go func() {
//	    for ev := range session.Events() {
//	        fmt.Printf("[%s] cost=%d\n", ev.Kind, ev.Cost)
//	    }
//	}()
//
//	out, err := session.Run(ctx)
package agent
