/*
Package blackboard implements the keyed variable store shared by a graph
hierarchy.

Variables come in two scopes. Globals exist once per Blackboard. Locals
exist once per graph instance: each instance owns a Slot (exposed through
the Scope interface) and the Blackboard fills it from the local templates
on first touch. Templates are never mutated by runtime writes.

ClearRuntimeVars ends a session: runtime globals are dropped and every
slot is invalidated through a generation counter, so the next access
re-instantiates from templates. DeleteLocalVars drops a single instance's
locals, typically when its graph is destroyed.

RedisStore persists runtime globals between sessions.
*/
package blackboard
