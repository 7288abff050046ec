// Package safety documents the threat model behind the Safety
// Guardrail Engine's own defensive posture. SGE sits between an
// autonomous coding agent and a real repository: it inspects proposed
// changes, runs them in a sandbox, and can roll back a working tree
// unattended. The guardrails, providers, and CLI in this module all
// assume the threats below.
//
// # Threat Model
//
// T1 - Command Injection via Provider Arguments: the Working-Tree and
// Container-Runtime providers shell out to git and docker. Caller
// input (refs, branch names, stash labels) must never reach those
// binaries as concatenated strings. Mitigations: structured argv
// arrays passed straight to exec.CommandContext (never through a
// shell), plus explicit rejection of shell metacharacters,
// path-traversal sequences, and flag-shaped arguments before a value
// is placed in argv (internal/gitprovider's validateArg).
//
// T2 - Secret Exfiltration via Findings: the Secret Scanner's own
// output could leak the very credentials it detects if findings
// embedded raw matches. Mitigation: every secret match is redacted to
// its first/last few characters before it appears in a Finding's
// detail lines or reaches logs (internal/scanner's redact).
//
// T3 - Destructive Rollback: AutoRollback and RollbackCommits reset a
// working tree to an arbitrary commit without operator confirmation.
// An uncommitted change lost to a hard reset is unrecoverable.
// Mitigation: every rollback path stashes current modifications before
// resetting, and a rollback never partially applies — it either
// stashes-then-resets cleanly or reports failure without mutating the
// tree further (checkpoint.Manager.rollbackTo).
//
// T4 - Sandbox Escape via Resource Exhaustion: code executed through
// the Isolated Executor is untrusted by construction. Mitigations:
// container runs are bounded by cpu/memory/network flags passed to the
// container runtime, every invocation carries a hard timeout that
// force-terminates the process, and captured stdout/stderr is capped
// per stream so a runaway process cannot exhaust the caller's memory
// reading its output.
//
// T5 - Scanner Panics Crashing the Pipeline: a third-party-influenced
// scanner (AI model output, audit service response) can panic on
// malformed input. Mitigation: the Guardrail Registry recovers every
// scanner invocation and converts a panic into a Failed finding at the
// scanner's configured severity rather than aborting the run.
//
// T6 - Provider Unavailability Silently Passing Findings: if an
// external provider (audit service, AI model) is unreachable, a naive
// implementation might report "no issues" when really it never asked.
// Mitigation: provider errors degrade scanners to an explicit Skipped
// finding, which is visually and programmatically distinct from
// Passed, so a human or downstream policy can tell the difference.
//
// # Design Principles
//
// Fail closed on ambiguity, fail visible on unavailability: a
// scanner that cannot determine an answer reports Skipped rather than
// Passed, and a Block-severity finding always stops the pipeline
// regardless of what other scanners report.
//
// Structured everywhere: every provider boundary (git, docker, audit
// HTTP, AI completion) takes typed request structs and returns typed
// results; nothing downstream of a provider call parses a raw string
// except the tolerant JSON extraction the AI Code Review scanner uses
// for a model's free-form reply.
package safety
