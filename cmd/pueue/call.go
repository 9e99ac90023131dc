package main

import (
	"encoding/json"
	"strconv"

	"github.com/google/uuid"

	"pueued/internal/wire"
)

// parseTaskIds converts the positional string args of a subcommand into task
// ids, exiting with a usage error on the first non-integer argument.
func parseTaskIds(args []string) []int {
	ids := make([]int, 0, len(args))
	for _, a := range args {
		id, err := strconv.Atoi(a)
		if err != nil {
			exitWithError("task ids must be integers, got "+a, nil)
		}
		ids = append(ids, id)
	}
	return ids
}

// call dials the daemon, sends one message, and closes the connection. Every
// subcommand is a single request/response — there is no held-open session
// protocol on the client side.
func call(msgType wire.MessageType, payload any) wire.Response {
	c := dial()
	defer c.Close()

	resp, err := c.Call(wire.Message{ID: uuid.NewString(), Type: msgType, Payload: payload})
	if err != nil {
		exitWithError("daemon request failed", err)
	}
	if !resp.Ok {
		exitWithError(resp.Error, nil)
	}
	return resp
}

// decodePayload re-marshals resp's generic Payload (decoded by transport as
// map[string]any/[]any) into a concrete type, since JSON is the only contract
// between the wire.Response envelope and its any-typed Payload field.
func decodePayload(resp wire.Response, out any) {
	raw, err := json.Marshal(resp.Payload)
	if err != nil {
		exitWithError("malformed daemon response", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		exitWithError("malformed daemon response", err)
	}
}
