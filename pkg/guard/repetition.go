package guard

import (
	"encoding/json"
	"hash/fnv"

	"github.com/sipeed/clawguard/pkg/session"
)

// sentinelHash is the hash assigned to calls with no structured arguments.
// All such calls collide, so a run of argument-less calls to the same tool
// counts as repetition. That is intentional: no-argument tool spamming is
// exactly the loop signature the repetition guard exists to catch.
const sentinelHash uint64 = 0

// ArgsHash computes a canonical hash of a tool call's arguments. Maps
// serialize with lexicographically sorted keys (encoding/json's map
// behavior), so argument order never affects the hash.
func ArgsHash(args map[string]any) uint64 {
	if args == nil {
		return sentinelHash
	}
	data, err := json.Marshal(args)
	if err != nil {
		// Unserializable args (channels, funcs smuggled into the map)
		// collapse to the sentinel rather than failing the call.
		return sentinelHash
	}
	h := fnv.New64a()
	h.Write(data)
	return h.Sum64()
}

// repetitionRun counts how many of the newest history entries are identical
// to the newest one, comparing tool name and argument hash. The scan stops
// at the first mismatch, so a differing call in between restarts the run at
// length 1.
func repetitionRun(history []session.ToolCallRecord) int {
	if len(history) == 0 {
		return 0
	}
	newest := history[len(history)-1]
	run := 0
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Tool != newest.Tool || history[i].ArgsHash != newest.ArgsHash {
			break
		}
		run++
	}
	return run
}
