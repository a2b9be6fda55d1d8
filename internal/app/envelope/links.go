package envelope

import "fmt"

// Links composes the hypermedia `_links` map attached to actor and
// execution responses. This is a pure function of (api_server, actor id,
// execution id?) — no I/O, per spec.md §9 design note; links are
// decorative, never authoritative.
func Links(apiServer, actorID string) map[string]string {
	base := fmt.Sprintf("%s/actors/v2/%s", apiServer, actorID)
	return map[string]string{
		"self":        base,
		"messages":    base + "/messages",
		"executions":  base + "/executions",
		"workers":     base + "/workers",
		"permissions": base + "/permissions",
	}
}

// ExecutionLinks extends Links with the execution and its logs, used by
// the execution-logs and messages-POST responses (SPEC_FULL.md §C,
// "Hypermedia on logs/messages responses").
func ExecutionLinks(apiServer, actorID, executionID string) map[string]string {
	links := Links(apiServer, actorID)
	execBase := fmt.Sprintf("%s/actors/v2/%s/executions/%s", apiServer, actorID, executionID)
	links["execution"] = execBase
	links["logs"] = execBase + "/logs"
	return links
}
