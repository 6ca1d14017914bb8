// Command trustgate runs the trust-and-evidence gate: an embeddable
// verification pipeline for LLM host applications, its standalone evidence
// sidecar, and the operational tooling (audit-pack export, replay
// evaluation, retention sweeps, kill-switch control) built around them.
//
// Examples:
//
//	# Run the embedded gate against a draft answer and raw evidence file
//	trustgate gate run --draft draft.txt --evidence evidence.json
//
//	# Start the standalone evidence sidecar
//	trustgate sidecar serve --config config.yaml
//
//	# Export an audit pack for a recorded trace
//	trustgate audit-pack export <trace-id> --config config.yaml -o pack.zip
//
//	# Re-run the claim engine against a stored trace and compare outcomes
//	trustgate replay <trace-id> --config config.yaml
package main

func main() {
	Execute()
}
