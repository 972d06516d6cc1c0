package hsm

import "sync"

// spawnStack is the process-wide stack of services currently executing a
// scheduled update, so that machine code calling the package-level Spawn
// during a transition knows which service to spawn under without threading
// the interpreter through every layer of user code. Pushed in Start/Send/
// Batch around the machine call and the subsequent action execution, and
// popped immediately after.
var (
	spawnStackMu sync.Mutex
	spawnStack   []*Interpreter
)

func pushSpawnContext(svc *Interpreter) {
	spawnStackMu.Lock()
	spawnStack = append(spawnStack, svc)
	spawnStackMu.Unlock()
}

func popSpawnContext() {
	spawnStackMu.Lock()
	if n := len(spawnStack); n > 0 {
		spawnStack = spawnStack[:n-1]
	}
	spawnStackMu.Unlock()
}

func currentSpawnContext() *Interpreter {
	spawnStackMu.Lock()
	defer spawnStackMu.Unlock()
	if n := len(spawnStack); n > 0 {
		return spawnStack[n-1]
	}
	return nil
}

// Spawn spawns machine as a child of whichever service is currently
// executing a transition or its actions, returning a lightweight reference
// to send events to it. Calling Spawn outside of that context (not during a
// Start/Send/Batch-scheduled step) panics, since there is no service to
// attach the child's lifecycle to.
func Spawn(machine Machine, id string) SpawnedRef {
	svc := currentSpawnContext()
	if svc == nil {
		panic("hsm: Spawn called outside of an active transition")
	}
	return svc.spawn(machine, id)
}
