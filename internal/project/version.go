package project

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// InputVersion computes the content fingerprint of one action: a short
// sha256 over the canonical JSON of the fields that affect its output.
// Dependency edges and the force flag are excluded; they change how the
// action is scheduled, not what it produces.
func InputVersion(a *Action) string {
	canonical := struct {
		Kind    string      `json:"kind"`
		Name    string      `json:"name"`
		Command []string    `json:"command,omitempty"`
		Env     [][2]string `json:"env,omitempty"`
	}{
		Kind:    a.Kind,
		Name:    a.Name,
		Command: a.Command,
	}
	// Map iteration order is random; sort env pairs for a stable hash.
	for k, v := range a.Env {
		canonical.Env = append(canonical.Env, [2]string{k, v})
	}
	sort.Slice(canonical.Env, func(i, j int) bool {
		return canonical.Env[i][0] < canonical.Env[j][0]
	})

	data, err := json.Marshal(canonical)
	if err != nil {
		// Only unmarshalable types reach here, which the struct above
		// cannot contain.
		panic(fmt.Sprintf("hashing action %s: %v", a.Addr(), err))
	}
	sum := sha256.Sum256(data)
	return "v-" + hex.EncodeToString(sum[:])[:10]
}
